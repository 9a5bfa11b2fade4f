package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// stubRepository holds transactions and saved runs in memory.
type stubRepository struct {
	mu           sync.Mutex
	transactions []*domain.Transaction
	saved        []*domain.RunResult
}

func (s *stubRepository) SaveTransactions(ctx context.Context, txs []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, txs...)
	return nil
}

func (s *stubRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubRepository) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions, nil
}

func (s *stubRepository) ListTransactionsByCustomer(ctx context.Context, customerID string, since time.Time) ([]*domain.Transaction, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubRepository) CountTransactions(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.transactions)), nil
}

func (s *stubRepository) SaveRunResult(ctx context.Context, result *domain.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, result)
	return nil
}

func (s *stubRepository) savedRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func (s *stubRepository) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubRepository) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubRepository) GetRunResult(ctx context.Context, runID string) (*domain.RunResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubRepository) DeleteRun(ctx context.Context, runID string) error {
	return fmt.Errorf("not implemented")
}

func (s *stubRepository) Ping(ctx context.Context) error { return nil }
func (s *stubRepository) Close() error                   { return nil }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

// seedTransactions covers three customers against a 2024-12-31 snapshot:
// cust-a is healthy, cust-b collapsed from four prior-window purchases to
// one small recent one, cust-c stopped buying months ago.
func seedTransactions() []*domain.Transaction {
	return []*domain.Transaction{
		{ID: "t1", CustomerID: "cust-a", Date: day("2024-12-20"), Amount: 250},
		{ID: "t2", CustomerID: "cust-a", Date: day("2024-11-15"), Amount: 180},
		{ID: "t3", CustomerID: "cust-b", Date: day("2024-10-13"), Amount: 100},
		{ID: "t4", CustomerID: "cust-b", Date: day("2024-09-25"), Amount: 500},
		{ID: "t5", CustomerID: "cust-b", Date: day("2024-09-10"), Amount: 500},
		{ID: "t6", CustomerID: "cust-b", Date: day("2024-08-20"), Amount: 500},
		{ID: "t7", CustomerID: "cust-b", Date: day("2024-08-01"), Amount: 500},
		{ID: "t8", CustomerID: "cust-c", Date: day("2024-02-10"), Amount: 600},
	}
}

func newTestWorker(t *testing.T, repo *stubRepository) (*Worker, *bus.ChannelBus, *cache.LRUCache) {
	t.Helper()

	b := bus.NewChannelBus(100)
	c := cache.NewLRUCache(100)
	t.Cleanup(func() {
		b.Close()
		c.Close()
	})

	w := NewWorker(b, repo, c, domain.DefaultPipelineConfig())
	if err := w.Start(); err != nil {
		t.Fatalf("worker start failed: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	return w, b, c
}

// waitForMessage subscribes to a topic and returns a channel carrying the
// first payload delivered on it.
func waitForMessage(t *testing.T, b *bus.ChannelBus, topic string) <-chan []byte {
	t.Helper()

	ch := make(chan []byte, 1)
	sub, err := b.Subscribe(context.Background(), topic, func(ctx context.Context, msg *domain.Message) error {
		select {
		case ch <- msg.Payload:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	t.Cleanup(func() { sub.Unsubscribe() })

	return ch
}

func TestWorkerProcessesRunRequest(t *testing.T) {
	repo := &stubRepository{transactions: seedTransactions()}
	_, b, c := newTestWorker(t, repo)

	completed := waitForMessage(t, b, domain.TopicRunCompleted)

	payload, _ := json.Marshal(domain.RunRequest{
		SnapshotDate: "2024-12-31",
		WindowDays:   90,
		RequestID:    "req-1",
	})
	if err := b.Publish(context.Background(), domain.TopicRunRequested, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case body := <-completed:
		var run domain.Run
		if err := json.Unmarshal(body, &run); err != nil {
			t.Fatalf("failed to parse completion event: %v", err)
		}
		if run.ID == "" {
			t.Error("expected run ID in completion event")
		}
		if run.CustomerCount != 3 {
			t.Errorf("expected 3 customers, got %d", run.CustomerCount)
		}
		if run.WindowDays != 90 {
			t.Errorf("expected window 90, got %d", run.WindowDays)
		}

		if repo.savedRuns() != 1 {
			t.Errorf("expected 1 saved run, got %d", repo.savedRuns())
		}

		cached, err := c.GetRunResult(context.Background(), run.ID)
		if err != nil {
			t.Fatalf("cache read failed: %v", err)
		}
		if cached == nil {
			t.Error("expected run result in cache")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for run completion")
	}
}

func TestWorkerPublishesFailure(t *testing.T) {
	t.Run("NoTransactions", func(t *testing.T) {
		repo := &stubRepository{}
		_, b, _ := newTestWorker(t, repo)

		failed := waitForMessage(t, b, domain.TopicRunFailed)

		payload, _ := json.Marshal(domain.RunRequest{RequestID: "req-empty"})
		if err := b.Publish(context.Background(), domain.TopicRunRequested, payload); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		select {
		case body := <-failed:
			var failure struct {
				RequestID string `json:"requestId"`
				Error     string `json:"error"`
			}
			if err := json.Unmarshal(body, &failure); err != nil {
				t.Fatalf("failed to parse failure event: %v", err)
			}
			if failure.RequestID != "req-empty" {
				t.Errorf("expected request ID req-empty, got %s", failure.RequestID)
			}
			if failure.Error == "" {
				t.Error("expected error detail in failure event")
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for run failure")
		}

		if repo.savedRuns() != 0 {
			t.Errorf("expected no saved runs, got %d", repo.savedRuns())
		}
	})

	t.Run("InvalidSnapshotDate", func(t *testing.T) {
		repo := &stubRepository{transactions: seedTransactions()}
		_, b, _ := newTestWorker(t, repo)

		failed := waitForMessage(t, b, domain.TopicRunFailed)

		payload, _ := json.Marshal(domain.RunRequest{
			SnapshotDate: "31/12/2024",
			RequestID:    "req-bad-date",
		})
		if err := b.Publish(context.Background(), domain.TopicRunRequested, payload); err != nil {
			t.Fatalf("publish failed: %v", err)
		}

		select {
		case body := <-failed:
			var failure struct {
				RequestID string `json:"requestId"`
			}
			if err := json.Unmarshal(body, &failure); err != nil {
				t.Fatalf("failed to parse failure event: %v", err)
			}
			if failure.RequestID != "req-bad-date" {
				t.Errorf("expected request ID req-bad-date, got %s", failure.RequestID)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for run failure")
		}
	})
}

func TestWorkerHighPriorityDecisions(t *testing.T) {
	repo := &stubRepository{transactions: seedTransactions()}
	_, b, _ := newTestWorker(t, repo)

	highPriority := waitForMessage(t, b, domain.TopicDecisionHighPriority)

	payload, _ := json.Marshal(domain.RunRequest{
		SnapshotDate: "2024-12-31",
		RequestID:    "req-hp",
	})
	if err := b.Publish(context.Background(), domain.TopicRunRequested, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// cust-b's collapse in both spend and frequency lands in High risk
	// while its prior spending keeps it above Low value.
	select {
	case body := <-highPriority:
		var decision domain.DecisionRecord
		if err := json.Unmarshal(body, &decision); err != nil {
			t.Fatalf("failed to parse decision event: %v", err)
		}
		if decision.Action.ActionPriority != domain.PriorityHigh {
			t.Errorf("expected high priority, got %s", decision.Action.ActionPriority)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for high priority decision")
	}
}
