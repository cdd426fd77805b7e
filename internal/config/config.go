package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"go.uber.org/multierr"
)

// Config holds all runtime configuration for the trade aggregator.
type Config struct {
	Port               int
	LogLevel           string
	CustomerServiceURL string
	StockServiceURL    string
	ClientTimeout      time.Duration
	StreamRetries      int
	StreamRetryDelay   time.Duration
	StreamBuffer       int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. Every invalid value is reported in the returned error.
func Load() (*Config, error) {
	var errs error

	port, err := getInt("PORT", 8080)
	errs = multierr.Append(errs, wrap("PORT", err))

	streamRetries, err := getInt("STREAM_RETRY_ATTEMPTS", 100)
	errs = multierr.Append(errs, wrap("STREAM_RETRY_ATTEMPTS", err))

	streamBuffer, err := getInt("STREAM_SUBSCRIBER_BUFFER", 256)
	errs = multierr.Append(errs, wrap("STREAM_SUBSCRIBER_BUFFER", err))

	clientTimeout, err := getDuration("CLIENT_TIMEOUT", 5*time.Second)
	errs = multierr.Append(errs, wrap("CLIENT_TIMEOUT", err))

	streamRetryDelay, err := getDuration("STREAM_RETRY_DELAY", 1*time.Second)
	errs = multierr.Append(errs, wrap("STREAM_RETRY_DELAY", err))

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	errs = multierr.Append(errs, wrap("READ_TIMEOUT", err))

	// The price stream holds responses open indefinitely, so no write deadline by default.
	writeTimeout, err := getDuration("WRITE_TIMEOUT", 0)
	errs = multierr.Append(errs, wrap("WRITE_TIMEOUT", err))

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	errs = multierr.Append(errs, wrap("IDLE_TIMEOUT", err))

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	errs = multierr.Append(errs, wrap("SHUTDOWN_TIMEOUT", err))

	if errs != nil {
		return nil, errs
	}

	cfg := &Config{
		Port:               port,
		LogLevel:           getStr("LOG_LEVEL", "info"),
		CustomerServiceURL: getStr("CUSTOMER_SERVICE_URL", "http://localhost:6060"),
		StockServiceURL:    getStr("STOCK_SERVICE_URL", "http://localhost:7070"),
		ClientTimeout:      clientTimeout,
		StreamRetries:      streamRetries,
		StreamRetryDelay:   streamRetryDelay,
		StreamBuffer:       streamBuffer,
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		IdleTimeout:        idleTimeout,
		ShutdownTimeout:    shutdownTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that parsing alone cannot enforce.
func (c *Config) Validate() error {
	var err error
	if c.Port < 1 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("invalid PORT: %d, must be in [1, 65535]", c.Port))
	}
	if !isValidLogLevel(c.LogLevel) {
		err = multierr.Append(err, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", c.LogLevel))
	}
	err = multierr.Append(err, wrap("CUSTOMER_SERVICE_URL", validateBaseURL(c.CustomerServiceURL)))
	err = multierr.Append(err, wrap("STOCK_SERVICE_URL", validateBaseURL(c.StockServiceURL)))
	if c.ClientTimeout <= 0 {
		err = multierr.Append(err, errors.New("invalid CLIENT_TIMEOUT: must be > 0"))
	}
	if c.StreamRetries < 0 {
		err = multierr.Append(err, errors.New("invalid STREAM_RETRY_ATTEMPTS: must be >= 0"))
	}
	if c.StreamRetryDelay < 0 {
		err = multierr.Append(err, errors.New("invalid STREAM_RETRY_DELAY: must be >= 0"))
	}
	if c.StreamBuffer < 1 {
		err = multierr.Append(err, errors.New("invalid STREAM_SUBSCRIBER_BUFFER: must be >= 1"))
	}
	if c.WriteTimeout < 0 {
		err = multierr.Append(err, errors.New("invalid WRITE_TIMEOUT: must be >= 0"))
	}
	return err
}

func wrap(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", key, err)
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must be an absolute http or https URL", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
