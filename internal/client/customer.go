package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/innovativecoder/tradeaggregator/internal/domain"
)

// CustomerClient calls the customer/portfolio service.
type CustomerClient struct {
	base *baseClient
}

// NewCustomerClient creates a CustomerClient for the service at baseURL.
// Each call is bounded by timeout.
func NewCustomerClient(baseURL string, timeout time.Duration) *CustomerClient {
	return &CustomerClient{base: newBaseClient(baseURL, timeout)}
}

// GetCustomer fetches GET /customers/{id}.
func (c *CustomerClient) GetCustomer(ctx context.Context, customerID int) (domain.CustomerInformation, error) {
	var info domain.CustomerInformation
	err := c.base.do(ctx, http.MethodGet, fmt.Sprintf("/customers/%d", customerID), nil, &info)
	return info, err
}

// Trade posts a priced order to POST /customers/{id}/trade.
func (c *CustomerClient) Trade(ctx context.Context, customerID int, order domain.PricedOrder) (domain.TradeResult, error) {
	var result domain.TradeResult
	err := c.base.do(ctx, http.MethodPost, fmt.Sprintf("/customers/%d/trade", customerID), order, &result)
	return result, err
}
