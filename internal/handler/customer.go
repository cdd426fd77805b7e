package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/innovativecoder/tradeaggregator/internal/domain"
	"github.com/innovativecoder/tradeaggregator/internal/service"
)

// CustomerHandler handles HTTP requests for customer endpoints.
type CustomerHandler struct {
	portfolioSvc *service.PortfolioService
	logger       *slog.Logger
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(portfolioSvc *service.PortfolioService, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{portfolioSvc: portfolioSvc, logger: logger}
}

// GetCustomer handles GET /customers/{customer_id}.
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := customerIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	info, err := h.portfolioSvc.CustomerInformation(r.Context(), customerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, info)
}

// Trade handles POST /customers/{customer_id}/trade.
func (h *CustomerHandler) Trade(w http.ResponseWriter, r *http.Request) {
	customerID, err := customerIDParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req domain.TradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteProblem(w, invalidTradeRequest(r, err.Error()))
		return
	}

	result, err := h.portfolioSvc.Trade(r.Context(), customerID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

func customerIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "customer_id"))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidCustomerID
	}
	return id, nil
}
