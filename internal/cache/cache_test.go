package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		err := cache.Set(ctx, "key1", []byte("value1"), time.Minute)
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, "key2", []byte("value2"), time.Minute)

		err := cache.Delete(ctx, "key2")
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		_ = cache.Set(ctx, "expiring", []byte("temp"), 10*time.Millisecond)

		// Should be available immediately
		val, _ := cache.Get(ctx, "expiring")
		if val == nil {
			t.Error("expected value before expiration")
		}

		// Wait for expiration
		time.Sleep(20 * time.Millisecond)

		val, _ = cache.Get(ctx, "expiring")
		if val != nil {
			t.Error("expected nil after expiration")
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, "c", []byte("3"), time.Minute)

		// Access 'a' to make it recently used
		_, _ = smallCache.Get(ctx, "a")

		// Add 'd' - should evict 'b' (oldest accessed)
		_ = smallCache.Set(ctx, "d", []byte("4"), time.Minute)

		// 'b' should be evicted
		val, _ := smallCache.Get(ctx, "b")
		if val != nil {
			t.Error("expected 'b' to be evicted")
		}

		// 'a' should still be there
		val, _ = smallCache.Get(ctx, "a")
		if val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(10)
		_ = statsCache.Set(ctx, "x", []byte("1"), time.Minute)
		_ = statsCache.Set(ctx, "y", []byte("2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 10 {
			t.Errorf("expected capacity 10, got %d", capacity)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})
}

func TestLRUCacheRunResult(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()

	result := &domain.RunResult{
		Run: domain.Run{
			ID:            "run-001",
			WindowDays:    90,
			CustomerCount: 2,
		},
		Features: []domain.CustomerFeatures{
			{CustomerID: "c1", RecencyDays: 10, Monetary: 150},
			{CustomerID: "c2", RecencyDays: 200, Monetary: 0},
		},
		Risk: []domain.RiskRecord{
			{CustomerID: "c1", RiskScore: 12.5, RiskLevel: domain.RiskLow},
			{CustomerID: "c2", RiskScore: 72, RiskLevel: domain.RiskHigh},
		},
	}

	if err := cache.SetRunResult(ctx, "run-001", result, time.Minute); err != nil {
		t.Fatalf("SetRunResult failed: %v", err)
	}

	got, err := cache.GetRunResult(ctx, "run-001")
	if err != nil {
		t.Fatalf("GetRunResult failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached run result")
	}
	if got.Run.ID != "run-001" {
		t.Errorf("expected run-001, got %s", got.Run.ID)
	}
	if len(got.Features) != 2 || len(got.Risk) != 2 {
		t.Errorf("tables not round-tripped: %d features, %d risk", len(got.Features), len(got.Risk))
	}
	if got.Risk[1].RiskLevel != domain.RiskHigh {
		t.Errorf("expected High risk level, got %s", got.Risk[1].RiskLevel)
	}

	// Unknown runs miss without error.
	missing, err := cache.GetRunResult(ctx, "run-unknown")
	if err != nil {
		t.Fatalf("GetRunResult failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown run")
	}
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 50})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer c.Close()

		if _, ok := c.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
