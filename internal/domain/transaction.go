package domain

import (
	"time"
)

// Transaction is a canonical, validated customer transaction.
// Produced by the ingestion layer; the analytical pipeline never mutates it.
type Transaction struct {
	// Core identifiers
	ID         string `json:"id"`
	CustomerID string `json:"customerId"`

	// Temporal
	Date time.Time `json:"date"`

	// Financial details
	Amount float64 `json:"amount"`

	// Optional descriptive attributes
	ProductID string `json:"productId,omitempty"`
	Category  string `json:"category,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Region    string `json:"region,omitempty"`
}

// TransactionRequest is the API request payload for batch transaction ingestion.
type TransactionRequest struct {
	ID         string  `json:"id"`
	CustomerID string  `json:"customerId"`
	Date       string  `json:"date"` // RFC 3339 or YYYY-MM-DD
	Amount     float64 `json:"amount"`
	ProductID  string  `json:"productId,omitempty"`
	Category   string  `json:"category,omitempty"`
	Channel    string  `json:"channel,omitempty"`
	Region     string  `json:"region,omitempty"`
}

// ToTransaction converts a request to a Transaction domain object.
func (r *TransactionRequest) ToTransaction() (*Transaction, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		Date:       date,
		Amount:     r.Amount,
		ProductID:  r.ProductID,
		Category:   r.Category,
		Channel:    r.Channel,
		Region:     r.Region,
	}, nil
}

// ParseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates, in UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
