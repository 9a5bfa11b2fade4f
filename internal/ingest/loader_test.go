package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const sampleCSV = `Invoice,StockCode,Description,Quantity,InvoiceDate,Price,Customer ID,Country
536365,85123A,WHITE HANGING HEART T-LIGHT HOLDER,6,2010-12-01 08:26:00,2.55,17850.0,United Kingdom
536365,71053,WHITE METAL LANTERN,6,2010-12-01 08:26:00,3.39,17850.0,United Kingdom
C536379,D,Discount,-1,2010-12-01 09:41:00,27.50,14527.0,United Kingdom
536370,22728,ALARM CLOCK BAKELIKE PINK,24,2010-12-01 08:45:00,3.75,12583.0,France
536371,21071,VINTAGE BILLBOARD,12,2010-12-01 09:00:00,0.00,13748.0,United Kingdom
536372,21072,RETROSPOT TEA SET,-4,2010-12-01 09:01:00,1.25,13748.0,United Kingdom
536373,21073,MUG,3,2010-12-01 09:02:00,1.10,,United Kingdom
`

func TestParse(t *testing.T) {
	txs, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	// Kept: two rows for 17850, one for 12583. Dropped: cancellation,
	// zero price, negative quantity, missing customer.
	if len(txs) != 3 {
		t.Fatalf("expected 3 canonical transactions, got %d", len(txs))
	}

	first := txs[0]
	if first.CustomerID != "17850" {
		t.Errorf("customer ID not normalized: got %q", first.CustomerID)
	}
	if first.Amount != 6*2.55 {
		t.Errorf("amount: expected %.2f, got %.2f", 6*2.55, first.Amount)
	}
	if first.ProductID != "85123A" {
		t.Errorf("product: expected 85123A, got %q", first.ProductID)
	}
	if first.Channel != "online" {
		t.Errorf("channel: expected online, got %q", first.Channel)
	}
	if first.Region != "United Kingdom" {
		t.Errorf("region: expected United Kingdom, got %q", first.Region)
	}

	want := time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC)
	if !first.Date.Equal(want) {
		t.Errorf("date: expected %s, got %s", want, first.Date)
	}
}

func TestParseUniqueIDs(t *testing.T) {
	txs, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	seen := make(map[string]bool)
	for _, tx := range txs {
		if seen[tx.ID] {
			t.Errorf("duplicate transaction ID %q", tx.ID)
		}
		seen[tx.ID] = true
	}
}

func TestParseDayFirstDates(t *testing.T) {
	csv := `Invoice,Quantity,InvoiceDate,Price,Customer ID
1001,2,1/12/2010 08:26,5.00,111
`
	txs, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}

	want := time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC)
	if !txs[0].Date.Equal(want) {
		t.Errorf("day-first date: expected %s, got %s", want, txs[0].Date)
	}
}

func TestParseMissingColumn(t *testing.T) {
	csv := `Invoice,Quantity,Price,Customer ID
1001,2,5.00,111
`
	_, err := Parse(strings.NewReader(csv))
	if !errors.Is(err, domain.ErrInvalidTransaction) {
		t.Errorf("expected ErrInvalidTransaction for missing InvoiceDate column, got %v", err)
	}
}

func TestParseUnparseableRow(t *testing.T) {
	csv := `Invoice,Quantity,InvoiceDate,Price,Customer ID
1001,not-a-number,2010-12-01,5.00,111
`
	_, err := Parse(strings.NewReader(csv))
	if !errors.Is(err, domain.ErrInvalidTransaction) {
		t.Errorf("expected ErrInvalidTransaction for bad quantity, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("CleanSet", func(t *testing.T) {
		txs := []*domain.Transaction{
			{ID: "t1", CustomerID: "c1", Date: date, Amount: 10},
			{ID: "t2", CustomerID: "c1", Date: date, Amount: 20},
			{ID: "t3", CustomerID: "c2", Date: date, Amount: 30},
		}

		summary, err := Validate(txs)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if summary.RowCount != 3 {
			t.Errorf("expected 3 rows, got %d", summary.RowCount)
		}
		if summary.CustomerCount != 2 {
			t.Errorf("expected 2 customers, got %d", summary.CustomerCount)
		}
		if len(summary.ValidationsPassed) == 0 {
			t.Error("expected validations to be recorded")
		}
	})

	t.Run("RejectsNonPositiveAmount", func(t *testing.T) {
		txs := []*domain.Transaction{
			{ID: "t1", CustomerID: "c1", Date: date, Amount: 0},
		}
		if _, err := Validate(txs); !errors.Is(err, domain.ErrInvalidTransaction) {
			t.Errorf("expected ErrInvalidTransaction, got %v", err)
		}
	})

	t.Run("RejectsMissingDate", func(t *testing.T) {
		txs := []*domain.Transaction{
			{ID: "t1", CustomerID: "c1", Amount: 5},
		}
		if _, err := Validate(txs); !errors.Is(err, domain.ErrInvalidTransaction) {
			t.Errorf("expected ErrInvalidTransaction, got %v", err)
		}
	})
}
