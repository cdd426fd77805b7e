package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidCustomerID is returned when a customer id is not a positive integer.
var ErrInvalidCustomerID = errors.New("customer id must be a positive integer")

// ValidationKind identifies which trade request check failed.
type ValidationKind int

const (
	MissingTicker ValidationKind = iota + 1
	MissingTradeAction
	InvalidQuantity
)

func (k ValidationKind) String() string {
	switch k {
	case MissingTicker:
		return "missing_ticker"
	case MissingTradeAction:
		return "missing_trade_action"
	case InvalidQuantity:
		return "invalid_quantity"
	}
	return "unknown"
}

var validationMessages = map[ValidationKind]string{
	MissingTicker:      "Ticker is required",
	MissingTradeAction: "Trade action is required",
	InvalidQuantity:    "Quantity should be > 0",
}

// ValidationError represents a trade request rejected before any outbound call.
type ValidationError struct {
	Kind ValidationKind
}

func (e *ValidationError) Error() string {
	if msg, ok := validationMessages[e.Kind]; ok {
		return msg
	}
	return "invalid trade request"
}

// CustomerNotFoundError is returned when the customer service has no such customer.
type CustomerNotFoundError struct {
	CustomerID int
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("Customer [id=%d] is not found", e.CustomerID)
}

// InvalidTradeRequestError is returned when the customer service rejects a trade.
type InvalidTradeRequestError struct {
	Detail string
}

func (e *InvalidTradeRequestError) Error() string {
	return e.Detail
}
