package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/innovativecoder/tradeaggregator/internal/domain"
)

// ErrStreamClosed is returned when the upstream price stream ends without an error.
var ErrStreamClosed = errors.New("price stream closed by upstream")

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	Method      string
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s from %s %s", e.StatusCode, http.StatusText(e.StatusCode), e.Method, e.URL)
}

// Problem decodes the body as a problem payload. It reports false when the
// body is empty, not JSON, or carries none of the problem fields.
func (e *StatusError) Problem() (*domain.Problem, bool) {
	if len(e.Body) == 0 {
		return nil, false
	}
	var p domain.Problem
	if err := json.Unmarshal(e.Body, &p); err != nil {
		return nil, false
	}
	if p == (domain.Problem{}) {
		return nil, false
	}
	return &p, true
}

// IsStatus reports whether err is a *StatusError with the given status code.
func IsStatus(err error, code int) bool {
	var sErr *StatusError
	return errors.As(err, &sErr) && sErr.StatusCode == code
}
