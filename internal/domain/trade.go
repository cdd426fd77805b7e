package domain

import (
	"encoding/json"
	"fmt"
)

// Ticker is an opaque identifier for a tradable instrument.
type Ticker string

// TradeAction indicates whether a trade buys or sells.
type TradeAction string

const (
	TradeActionBuy  TradeAction = "BUY"
	TradeActionSell TradeAction = "SELL"
)

// UnmarshalJSON accepts only the known actions. An explicit null or an
// absent field leaves the action empty so validation can report it.
func (a *TradeAction) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*a = ""
		return nil
	}
	switch TradeAction(*s) {
	case TradeActionBuy, TradeActionSell:
		*a = TradeAction(*s)
		return nil
	}
	return fmt.Errorf("unknown trade action %q", *s)
}

// TradeRequest is a customer's instruction to buy or sell a quantity of a
// ticker. Zero values mean the field was absent.
type TradeRequest struct {
	Ticker   Ticker      `json:"ticker"`
	Action   TradeAction `json:"action"`
	Quantity int         `json:"quantity"`
}

// PricedOrder is a validated TradeRequest with the looked-up price attached.
// It is the body sent to the customer service.
type PricedOrder struct {
	Ticker   Ticker      `json:"ticker"`
	Price    int         `json:"price"`
	Quantity int         `json:"quantity"`
	Action   TradeAction `json:"action"`
}

// NewPricedOrder copies ticker, quantity and action from req unchanged.
func NewPricedOrder(req TradeRequest, price int) PricedOrder {
	return PricedOrder{
		Ticker:   req.Ticker,
		Price:    price,
		Quantity: req.Quantity,
		Action:   req.Action,
	}
}

// TradeResult is the customer service's record of an executed trade.
type TradeResult struct {
	CustomerID int         `json:"customerId"`
	Ticker     Ticker      `json:"ticker"`
	Price      int         `json:"price"`
	Quantity   int         `json:"quantity"`
	Action     TradeAction `json:"action"`
	TotalPrice int         `json:"totalPrice"`
	Balance    int         `json:"balance"`
}
