package service

import (
	"errors"
	"net/http"

	"github.com/innovativecoder/tradeaggregator/internal/client"
	"github.com/innovativecoder/tradeaggregator/internal/domain"
)

// TranslateCustomerError maps customer-service failures to domain errors:
// 404 becomes *domain.CustomerNotFoundError and 400 becomes
// *domain.InvalidTradeRequestError carrying the problem detail, or the raw
// failure message when the body has no problem payload. Anything else,
// including nil, is returned unchanged.
func TranslateCustomerError(customerID int, err error) error {
	var sErr *client.StatusError
	if !errors.As(err, &sErr) {
		return err
	}

	switch sErr.StatusCode {
	case http.StatusNotFound:
		return &domain.CustomerNotFoundError{CustomerID: customerID}
	case http.StatusBadRequest:
		msg := sErr.Error()
		if p, ok := sErr.Problem(); ok && p.Detail != "" {
			msg = p.Detail
		}
		return &domain.InvalidTradeRequestError{Detail: msg}
	}
	return err
}
