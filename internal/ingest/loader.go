// Package ingest converts raw Online Retail II CSV exports into canonical
// transactions and validates them before they reach the pipeline.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Raw column names in the Online Retail II export.
const (
	colInvoice     = "Invoice"
	colStockCode   = "StockCode"
	colDescription = "Description"
	colQuantity    = "Quantity"
	colInvoiceDate = "InvoiceDate"
	colPrice       = "Price"
	colCustomerID  = "Customer ID"
	colCountry     = "Country"
)

// cancellationPrefix marks cancelled invoices, which are excluded.
const cancellationPrefix = "C"

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2/1/2006 15:04", // day-first, as shipped in the raw export
	"02/01/2006 15:04",
	time.RFC3339,
}

// LoadCSV reads a raw Online Retail II CSV file and returns canonical
// transactions.
func LoadCSV(path string) ([]*domain.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transactions file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads raw CSV rows and applies the canonicalization policy:
// rows with a missing customer, cancelled invoices, and rows with
// non-positive quantity or price are dropped; the amount is derived as
// quantity times unit price.
func Parse(r io.Reader) ([]*domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var txs []*domain.Transaction
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line+1, err)
		}
		line++

		tx, keep, err := canonicalize(record, idx, line)
		if err != nil {
			return nil, err
		}
		if keep {
			txs = append(txs, tx)
		}
	}

	return txs, nil
}

type columns struct {
	invoice, stockCode, description, quantity, invoiceDate, price, customerID, country int
}

func columnIndex(header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(name)] = i
	}

	required := []string{colInvoice, colQuantity, colInvoiceDate, colPrice, colCustomerID}
	for _, name := range required {
		if _, ok := pos[name]; !ok {
			return columns{}, fmt.Errorf("%w: missing required column %q", domain.ErrInvalidTransaction, name)
		}
	}

	optional := func(name string) int {
		if i, ok := pos[name]; ok {
			return i
		}
		return -1
	}

	return columns{
		invoice:     pos[colInvoice],
		quantity:    pos[colQuantity],
		invoiceDate: pos[colInvoiceDate],
		price:       pos[colPrice],
		customerID:  pos[colCustomerID],
		stockCode:   optional(colStockCode),
		description: optional(colDescription),
		country:     optional(colCountry),
	}, nil
}

func canonicalize(record []string, idx columns, line int) (*domain.Transaction, bool, error) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	customerID := normalizeCustomerID(field(idx.customerID))
	if customerID == "" {
		return nil, false, nil
	}

	invoice := field(idx.invoice)
	if strings.HasPrefix(invoice, cancellationPrefix) {
		return nil, false, nil
	}

	quantity, err := strconv.ParseFloat(field(idx.quantity), 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: row %d has unparseable quantity %q", domain.ErrInvalidTransaction, line, field(idx.quantity))
	}
	price, err := strconv.ParseFloat(field(idx.price), 64)
	if err != nil {
		return nil, false, fmt.Errorf("%w: row %d has unparseable price %q", domain.ErrInvalidTransaction, line, field(idx.price))
	}
	if quantity <= 0 || price <= 0 {
		return nil, false, nil
	}

	date, err := parseInvoiceDate(field(idx.invoiceDate))
	if err != nil {
		return nil, false, fmt.Errorf("%w: row %d has unparseable date %q", domain.ErrInvalidTransaction, line, field(idx.invoiceDate))
	}

	return &domain.Transaction{
		ID:         fmt.Sprintf("%s-%d", invoice, line),
		CustomerID: customerID,
		Date:       date,
		Amount:     quantity * price,
		ProductID:  field(idx.stockCode),
		Category:   field(idx.description),
		Channel:    "online",
		Region:     field(idx.country),
	}, true, nil
}

// normalizeCustomerID strips the float artifact some exports carry
// ("12345.0" for customer 12345).
func normalizeCustomerID(raw string) string {
	return strings.TrimSuffix(raw, ".0")
}

func parseInvoiceDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
}
