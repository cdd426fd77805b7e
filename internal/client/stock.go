package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/innovativecoder/tradeaggregator/internal/domain"
)

// maxEventSize bounds a single line of the price stream.
const maxEventSize = 1 << 20

// StockClient calls the stock-pricing service.
type StockClient struct {
	base *baseClient
	// stream has no overall timeout; the price stream stays open indefinitely.
	stream *http.Client
}

// NewStockClient creates a StockClient for the service at baseURL. Price
// lookups are bounded by timeout; the price stream is not.
func NewStockClient(baseURL string, timeout time.Duration) *StockClient {
	base := newBaseClient(baseURL, timeout)
	return &StockClient{
		base:   base,
		stream: &http.Client{},
	}
}

// GetPrice fetches GET /stock/{ticker}.
func (c *StockClient) GetPrice(ctx context.Context, ticker domain.Ticker) (domain.StockPrice, error) {
	var price domain.StockPrice
	err := c.base.do(ctx, http.MethodGet, "/stock/"+url.PathEscape(string(ticker)), nil, &price)
	return price, err
}

// StreamPrices opens GET /stock/price-stream and calls emit for every price
// update, in order, until the connection fails or ctx is done. It always
// returns a non-nil error; a clean end of stream yields ErrStreamClosed.
//
// Both server-sent events ("data: {...}") and newline-delimited JSON are
// accepted. Comment, event, id and retry lines are ignored.
func (c *StockClient) StreamPrices(ctx context.Context, emit func(domain.PriceUpdate)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.baseURL+"/stock/price-stream", nil)
	if err != nil {
		return fmt.Errorf("build price stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	setRequestID(ctx, req)

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("open price stream: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(req, resp); err != nil {
		return err
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 4096), maxEventSize)
	for sc.Scan() {
		payload, ok := eventPayload(sc.Bytes())
		if !ok {
			continue
		}
		var u domain.PriceUpdate
		if err := json.Unmarshal(payload, &u); err != nil {
			return fmt.Errorf("decode price update %q: %w", payload, err)
		}
		emit(u)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read price stream: %w", err)
	}
	return ErrStreamClosed
}

var (
	dataPrefix    = []byte("data:")
	ignoredFields = [][]byte{[]byte(":"), []byte("event:"), []byte("id:"), []byte("retry:")}
)

// eventPayload extracts the JSON payload from one stream line.
func eventPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	if bytes.HasPrefix(line, dataPrefix) {
		line = bytes.TrimSpace(line[len(dataPrefix):])
		return line, len(line) > 0
	}
	for _, p := range ignoredFields {
		if bytes.HasPrefix(line, p) {
			return nil, false
		}
	}
	return line, true
}
