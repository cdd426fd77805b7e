package domain

import (
	"bytes"
	"fmt"
	"time"
)

// StockPrice is the stock service's answer to a single price lookup.
type StockPrice struct {
	Ticker Ticker `json:"ticker"`
	Price  int    `json:"price"`
}

// PriceUpdate is one element of the live price feed.
type PriceUpdate struct {
	Ticker Ticker    `json:"ticker"`
	Price  int       `json:"price"`
	Time   Timestamp `json:"time"`
}

// localDateTime is the zone-less layout some upstreams emit.
const localDateTime = "2006-01-02T15:04:05.999999999"

// Timestamp decodes either RFC 3339 or a zone-less local date-time, which is
// read as UTC. It always encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("timestamp must be a string, got %s", b)
	}
	s := string(b[1 : len(b)-1])
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v
		return nil
	}
	v, err := time.ParseInLocation(localDateTime, s, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = v
	return nil
}
