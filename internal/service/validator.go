package service

import "github.com/innovativecoder/tradeaggregator/internal/domain"

// ValidateTradeRequest checks, in order, that the ticker, the action and a
// positive quantity are present. It stops at the first failed check.
func ValidateTradeRequest(req domain.TradeRequest) error {
	if req.Ticker == "" {
		return &domain.ValidationError{Kind: domain.MissingTicker}
	}
	if req.Action == "" {
		return &domain.ValidationError{Kind: domain.MissingTradeAction}
	}
	if req.Quantity <= 0 {
		return &domain.ValidationError{Kind: domain.InvalidQuantity}
	}
	return nil
}
