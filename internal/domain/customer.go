package domain

// Holding is a customer's position in one ticker.
type Holding struct {
	Ticker   Ticker `json:"ticker"`
	Quantity int    `json:"quantity"`
}

// CustomerInformation is passed through from the customer service as-is.
type CustomerInformation struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Balance  int       `json:"balance"`
	Holdings []Holding `json:"holdings"`
}
