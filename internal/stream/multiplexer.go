// Package stream shares one upstream price feed among many subscribers.
//
// A Multiplexer connects to the feed when the first subscriber arrives and
// never more than once at a time. Failures are retried with a fixed delay
// and are invisible to subscribers until the retries run out. The last
// update is replayed to late joiners; once the retries are exhausted the
// terminal error takes its place and every later subscriber gets only that
// error. There is no way back from that state short of a restart.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/innovativecoder/tradeaggregator/internal/domain"
)

const (
	DefaultRetries    = 100
	DefaultRetryDelay = 1 * time.Second
	DefaultBuffer     = 256
)

var (
	// ErrSubscriptionClosed is returned by Next after Close.
	ErrSubscriptionClosed = errors.New("stream: subscription closed")

	errUpstreamEnded = errors.New("stream: upstream ended without error")
)

// Feed is the upstream price source. StreamPrices blocks, calling emit
// synchronously for each update in upstream order, until the connection
// fails or ctx is done, and returns the reason.
type Feed interface {
	StreamPrices(ctx context.Context, emit func(domain.PriceUpdate)) error
}

// ExhaustedError is the terminal failure after every retry has failed.
type ExhaustedError struct {
	Retries int
	Cause   error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("price stream retries exhausted: %d/%d: %v", e.Retries, e.Retries, e.Cause)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// Options configures a Multiplexer. Zero fields take the defaults, except
// Retries, where a negative value means zero.
type Options struct {
	// Retries is how many reconnects are attempted after a failure before
	// the stream terminates. The count restarts once a reconnected feed
	// delivers an update.
	Retries int
	// RetryDelay is the fixed pause before each reconnect.
	RetryDelay time.Duration
	// Buffer bounds the updates queued for one subscriber. When full, the
	// subscriber's oldest queued update is dropped.
	Buffer int
	Logger *slog.Logger
}

// DefaultOptions returns 100 retries one second apart.
func DefaultOptions() Options {
	return Options{
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		Buffer:     DefaultBuffer,
	}
}

// Multiplexer fans one upstream Feed out to any number of subscribers.
type Multiplexer struct {
	ctx    context.Context
	feed   Feed
	opt    Options
	logger *slog.Logger
	start  sync.Once

	mu   sync.Mutex
	subs map[*Subscription]struct{}
	last *domain.PriceUpdate // replay slot; nil until the first update
	err  error               // terminal error; replaces last once set
}

// New creates a Multiplexer over feed. The upstream connection lives until
// ctx is done; it is not opened until the first Subscribe.
func New(ctx context.Context, feed Feed, opt Options) *Multiplexer {
	if opt.Retries < 0 {
		opt.Retries = 0
	}
	if opt.RetryDelay < 0 {
		opt.RetryDelay = 0
	}
	if opt.Buffer <= 0 {
		opt.Buffer = DefaultBuffer
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Multiplexer{
		ctx:    ctx,
		feed:   feed,
		opt:    opt,
		logger: logger.With(slog.String("component", "price_stream")),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscribe joins the shared stream. The subscription starts with the last
// update seen, or with the terminal error if the stream has ended. It is
// closed when ctx is done or Close is called; neither affects other
// subscribers or the upstream connection.
func (m *Multiplexer) Subscribe(ctx context.Context) *Subscription {
	sub := &Subscription{
		id:   uuid.New(),
		m:    m,
		max:  m.opt.Buffer,
		wake: make(chan struct{}, 1),
	}

	m.mu.Lock()
	switch {
	case m.err != nil:
		sub.err = m.err
	case m.last != nil:
		sub.queue = append(sub.queue, *m.last)
		m.subs[sub] = struct{}{}
	default:
		m.subs[sub] = struct{}{}
	}
	m.mu.Unlock()

	m.start.Do(func() {
		go m.run()
	})

	if ctx.Done() != nil {
		sub.stop = context.AfterFunc(ctx, func() {
			sub.closeWith(context.Cause(ctx))
		})
	}
	return sub
}

// run owns the upstream connection for the life of m.ctx.
func (m *Multiplexer) run() {
	retries := 0
	for {
		received := false
		err := m.feed.StreamPrices(m.ctx, func(u domain.PriceUpdate) {
			if !received {
				received = true
				if retries > 0 {
					m.logger.Info("stock service price stream reconnected", slog.Int("attempt", retries))
				}
				retries = 0
			}
			m.broadcast(u)
		})

		if m.ctx.Err() != nil {
			m.terminate(context.Cause(m.ctx))
			return
		}
		if err == nil {
			err = errUpstreamEnded
		}
		if retries >= m.opt.Retries {
			m.terminate(&ExhaustedError{Retries: m.opt.Retries, Cause: err})
			return
		}

		retries++
		m.logger.Error("stock service price stream failed. retrying",
			slog.String("error", err.Error()),
			slog.Int("attempt", retries),
			slog.Int("max_attempts", m.opt.Retries),
		)
		if !m.sleep(m.opt.RetryDelay) {
			m.terminate(context.Cause(m.ctx))
			return
		}
	}
}

func (m *Multiplexer) sleep(d time.Duration) bool {
	if d <= 0 {
		return m.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-m.ctx.Done():
		return false
	}
}

func (m *Multiplexer) broadcast(u domain.PriceUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = &u
	for sub := range m.subs {
		if dropped := sub.push(u); dropped > 0 && (dropped == 1 || dropped%m.opt.Buffer == 0) {
			m.logger.Warn("slow price stream subscriber, dropping oldest updates",
				slog.String("subscriber", sub.id.String()),
				slog.Int("dropped", dropped),
			)
		}
	}
}

func (m *Multiplexer) terminate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
	m.last = nil
	for sub := range m.subs {
		sub.fail(err)
	}
	m.subs = make(map[*Subscription]struct{})

	m.logger.Error("stock service price stream terminated", slog.String("error", err.Error()))
}

func (m *Multiplexer) remove(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, sub)
}
