package ingest

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ValidationSummary reports what was checked on a canonical transaction set.
type ValidationSummary struct {
	RowCount          int      `json:"rowCount"`
	CustomerCount     int      `json:"customerCount"`
	ValidationsPassed []string `json:"validationsPassed"`
}

// Validate re-checks the canonical invariants the ingestion contract
// guarantees: required fields present, dates set, amounts strictly
// positive. The pipeline trusts validated input, but a violation fails here
// with a typed error rather than producing nonsense downstream.
func Validate(txs []*domain.Transaction) (*ValidationSummary, error) {
	customers := make(map[string]struct{})

	for _, tx := range txs {
		if tx.ID == "" {
			return nil, fmt.Errorf("%w: transaction without ID", domain.ErrInvalidTransaction)
		}
		if tx.CustomerID == "" {
			return nil, fmt.Errorf("%w: transaction %s without customer", domain.ErrInvalidTransaction, tx.ID)
		}
		if tx.Date.IsZero() {
			return nil, fmt.Errorf("%w: transaction %s without date", domain.ErrInvalidTransaction, tx.ID)
		}
		if tx.Amount <= 0 {
			return nil, fmt.Errorf("%w: transaction %s has non-positive amount %.2f", domain.ErrInvalidTransaction, tx.ID, tx.Amount)
		}
		customers[tx.CustomerID] = struct{}{}
	}

	return &ValidationSummary{
		RowCount:      len(txs),
		CustomerCount: len(customers),
		ValidationsPassed: []string{
			"required_fields",
			"valid_dates",
			"positive_amounts",
		},
	}, nil
}
