package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/innovativecoder/tradeaggregator/internal/domain"
)

// problemTypeBase prefixes every problem type URI this service emits.
const problemTypeBase = "http://innovativecoder.com.au/problems/"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// WriteProblem writes p as an application/problem+json response.
func WriteProblem(w http.ResponseWriter, p domain.Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func invalidTradeRequest(r *http.Request, detail string) domain.Problem {
	return domain.Problem{
		Type:     problemTypeBase + "invalid-trade-request",
		Title:    "Invalid Trade Request",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: r.URL.Path,
	}
}

// ParseJSON decodes the request body as JSON into v. Unknown fields are ignored.
func ParseJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("Request body must be valid JSON")
	}
	return nil
}

// writeError maps domain errors to problem responses. Unclassified errors
// become a 500 and are logged, not echoed.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		validationErr *domain.ValidationError
		notFoundErr   *domain.CustomerNotFoundError
		invalidErr    *domain.InvalidTradeRequestError
	)

	switch {
	case errors.As(err, &validationErr):
		WriteProblem(w, invalidTradeRequest(r, validationErr.Error()))
	case errors.As(err, &invalidErr):
		WriteProblem(w, invalidTradeRequest(r, invalidErr.Detail))
	case errors.Is(err, domain.ErrInvalidCustomerID):
		WriteProblem(w, invalidTradeRequest(r, err.Error()))
	case errors.As(err, &notFoundErr):
		WriteProblem(w, domain.Problem{
			Type:     problemTypeBase + "customer-not-found",
			Title:    "Customer Not Found",
			Status:   http.StatusNotFound,
			Detail:   notFoundErr.Error(),
			Instance: r.URL.Path,
		})
	default:
		logger.Error("unhandled error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteProblem(w, domain.Problem{
			Type:     "about:blank",
			Title:    "Internal Server Error",
			Status:   http.StatusInternalServerError,
			Detail:   "An unexpected error occurred",
			Instance: r.URL.Path,
		})
	}
}
