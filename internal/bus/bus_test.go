package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestChannelBus(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()

	ctx := context.Background()

	t.Run("PublishAndSubscribe", func(t *testing.T) {
		var received atomic.Bool
		var wg sync.WaitGroup
		wg.Add(1)

		sub, err := b.Subscribe(ctx, "run.test", func(ctx context.Context, msg *domain.Message) error {
			if string(msg.Payload) == "hello" {
				received.Store(true)
			}
			wg.Done()
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		if err := b.Publish(ctx, "run.test", []byte("hello")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for message delivery with timeout
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			if !received.Load() {
				t.Error("message payload mismatch")
			}
		case <-time.After(time.Second):
			t.Error("timeout waiting for message")
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32

		sub, err := b.Subscribe(ctx, "run.unsub", func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		_ = b.Publish(ctx, "run.unsub", []byte("first"))
		time.Sleep(50 * time.Millisecond)

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("Unsubscribe failed: %v", err)
		}

		_ = b.Publish(ctx, "run.unsub", []byte("second"))
		time.Sleep(50 * time.Millisecond)

		if got := count.Load(); got != 1 {
			t.Errorf("expected 1 message after unsubscribe, got %d", got)
		}
	})

	t.Run("MultipleSubscribers", func(t *testing.T) {
		var count atomic.Int32
		var wg sync.WaitGroup
		wg.Add(3)

		for i := 0; i < 3; i++ {
			sub, err := b.Subscribe(ctx, "run.multi", func(ctx context.Context, msg *domain.Message) error {
				count.Add(1)
				wg.Done()
				return nil
			})
			if err != nil {
				t.Fatalf("Subscribe failed: %v", err)
			}
			defer sub.Unsubscribe()
		}

		_ = b.Publish(ctx, "run.multi", []byte("broadcast"))

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			if got := count.Load(); got != 3 {
				t.Errorf("expected 3 deliveries, got %d", got)
			}
		case <-time.After(time.Second):
			t.Error("timeout waiting for broadcast")
		}
	})

	t.Run("SubscriptionTopic", func(t *testing.T) {
		sub, err := b.Subscribe(ctx, domain.TopicRunCompleted, func(ctx context.Context, msg *domain.Message) error {
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		defer sub.Unsubscribe()

		if sub.Topic() != domain.TopicRunCompleted {
			t.Errorf("expected topic %s, got %s", domain.TopicRunCompleted, sub.Topic())
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := b.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := b.Publish(ctx, "run.closed", []byte("x")); err == nil {
		t.Error("expected publish to fail after close")
	}

	if _, err := b.Subscribe(ctx, "run.closed", func(ctx context.Context, msg *domain.Message) error {
		return nil
	}); err == nil {
		t.Error("expected subscribe to fail after close")
	}

	if err := b.Ping(ctx); err == nil {
		t.Error("expected ping to fail after close")
	}

	// Idempotent
	if err := b.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestChannelBusHighLoad(t *testing.T) {
	b := NewChannelBus(1000)
	defer b.Close()

	ctx := context.Background()

	var count atomic.Int32
	var wg sync.WaitGroup

	const messages = 100
	wg.Add(messages)

	sub, err := b.Subscribe(ctx, "run.load", func(ctx context.Context, msg *domain.Message) error {
		count.Add(1)
		wg.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Unsubscribe()

	for i := 0; i < messages; i++ {
		if err := b.Publish(ctx, "run.load", []byte("msg")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if got := count.Load(); got != messages {
			t.Errorf("expected %d messages, got %d", messages, got)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("timeout: received %d of %d messages", count.Load(), messages)
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 10})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer b.Close()

		if _, ok := b.(*ChannelBus); !ok {
			t.Error("expected ChannelBus for channel type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
