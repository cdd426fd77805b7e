package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/innovativecoder/tradeaggregator/internal/domain"
	"github.com/innovativecoder/tradeaggregator/internal/stream"
)

// PriceStreamHandler serves the shared price stream as server-sent events.
type PriceStreamHandler struct {
	prices *stream.Multiplexer
	logger *slog.Logger
}

// NewPriceStreamHandler creates a new PriceStreamHandler.
func NewPriceStreamHandler(prices *stream.Multiplexer, logger *slog.Logger) *PriceStreamHandler {
	return &PriceStreamHandler{prices: prices, logger: logger}
}

// Stream handles GET /stock/price-stream. Each update is one "data:" event.
// If the shared stream terminates, a final "error" event carries the problem
// and the response ends.
func (h *PriceStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	sub := h.prices.Subscribe(r.Context())
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("price stream response cannot be flushed", slog.String("error", err.Error()))
		return
	}

	for {
		u, err := sub.Next()
		if err != nil {
			if r.Context().Err() == nil && !errors.Is(err, stream.ErrSubscriptionClosed) {
				h.logger.Warn("price stream ended",
					slog.String("subscriber", sub.ID()),
					slog.String("error", err.Error()),
				)
				_ = writeEvent(w, "error", domain.Problem{
					Type:     problemTypeBase + "price-stream-unavailable",
					Title:    "Price Stream Unavailable",
					Status:   http.StatusServiceUnavailable,
					Detail:   err.Error(),
					Instance: r.URL.Path,
				})
				_ = rc.Flush()
			}
			return
		}
		if err := writeEvent(w, "", u); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent writes one server-sent event with a JSON payload.
func writeEvent(w io.Writer, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}
