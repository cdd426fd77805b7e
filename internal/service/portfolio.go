package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/innovativecoder/tradeaggregator/internal/domain"
)

// PriceLookup returns the current price of a ticker.
type PriceLookup interface {
	GetPrice(ctx context.Context, ticker domain.Ticker) (domain.StockPrice, error)
}

// CustomerGateway reads customers and executes priced trades against their accounts.
type CustomerGateway interface {
	GetCustomer(ctx context.Context, customerID int) (domain.CustomerInformation, error)
	Trade(ctx context.Context, customerID int, order domain.PricedOrder) (domain.TradeResult, error)
}

// PortfolioService orchestrates customer reads and trades across the
// customer and stock services.
type PortfolioService struct {
	stocks    PriceLookup
	customers CustomerGateway
	logger    *slog.Logger
}

// NewPortfolioService creates a new PortfolioService with the given dependencies.
func NewPortfolioService(stocks PriceLookup, customers CustomerGateway, logger *slog.Logger) *PortfolioService {
	return &PortfolioService{
		stocks:    stocks,
		customers: customers,
		logger:    logger,
	}
}

// CustomerInformation fetches a customer. A missing customer is reported
// as *domain.CustomerNotFoundError.
func (s *PortfolioService) CustomerInformation(ctx context.Context, customerID int) (domain.CustomerInformation, error) {
	info, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return domain.CustomerInformation{}, TranslateCustomerError(customerID, err)
	}
	return info, nil
}

// Trade validates req, looks up the ticker's price and executes the priced
// order for the customer.
//
// A price lookup failure is returned as-is and the trade is never sent.
// Customer-service failures go through TranslateCustomerError.
func (s *PortfolioService) Trade(ctx context.Context, customerID int, req domain.TradeRequest) (domain.TradeResult, error) {
	if err := ValidateTradeRequest(req); err != nil {
		return domain.TradeResult{}, err
	}

	price, err := s.stocks.GetPrice(ctx, req.Ticker)
	if err != nil {
		return domain.TradeResult{}, err
	}

	order := domain.NewPricedOrder(req, price.Price)
	result, err := s.customers.Trade(ctx, customerID, order)
	if err != nil {
		err = TranslateCustomerError(customerID, err)
		var invalid *domain.InvalidTradeRequestError
		if errors.As(err, &invalid) {
			s.logger.Error("customer service rejected trade",
				slog.Int("customer_id", customerID),
				slog.String("ticker", string(order.Ticker)),
				slog.String("detail", invalid.Detail),
			)
		}
		return domain.TradeResult{}, err
	}

	s.logger.Debug("trade executed",
		slog.Int("customer_id", customerID),
		slog.String("ticker", string(result.Ticker)),
		slog.String("action", string(result.Action)),
		slog.Int("quantity", result.Quantity),
		slog.Int("total_price", result.TotalPrice),
	)
	return result, nil
}
