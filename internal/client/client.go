// Package client talks to the customer and stock services over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 64 << 10

// RequestIDHeader carries the caller's request id to the collaborators.
const RequestIDHeader = "X-Request-Id"

// baseClient performs JSON request/response calls against one service.
type baseClient struct {
	baseURL string
	client  *http.Client
}

func newBaseClient(baseURL string, timeout time.Duration) *baseClient {
	return &baseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends in (if non-nil) as a JSON body and decodes a 2xx response into
// out (if non-nil). Non-2xx responses are returned as *StatusError.
func (c *baseClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setRequestID(ctx, req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(req, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// checkStatus turns a non-2xx response into a *StatusError holding the
// (truncated) body.
func checkStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method:      req.Method,
		URL:         req.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        b,
	}
}

func setRequestID(ctx context.Context, req *http.Request) {
	if id := middleware.GetReqID(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}
}
