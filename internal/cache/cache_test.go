package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Set(ctx, "k", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || string(got) != "value" {
		t.Fatalf("expected cached value, got %q ok=%v", got, ok)
	}

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return current }

	if err := m.Set(ctx, "k", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	current = current.Add(59 * time.Second)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("entry expired early")
	}

	current = current.Add(2 * time.Second)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
	if m.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, have %d entries", m.Len())
	}
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return current }

	if err := m.Set(ctx, "k", []byte("value"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	current = current.Add(1000 * time.Hour)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Fatal("zero TTL entry should not expire")
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Set(ctx, "k", []byte("value"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected deleted key to miss")
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("deleting absent key should succeed: %v", err)
	}
}

func TestMemoryGetCopiesValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Set(ctx, "k", []byte("abc"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	first, _, _ := m.Get(ctx, "k")
	first[0] = 'z'
	second, _, _ := m.Get(ctx, "k")
	if string(second) != "abc" {
		t.Fatalf("cached value mutated through returned slice: %q", second)
	}
}

func TestTTLPolicyFor(t *testing.T) {
	policy := DefaultPolicy()
	if policy.For(true) != policy.Ready {
		t.Fatal("ready snapshots should use the long TTL")
	}
	if policy.For(false) != policy.Processing {
		t.Fatal("in-flight snapshots should use the short TTL")
	}
	if policy.Ready <= policy.Processing {
		t.Fatal("ready TTL should exceed processing TTL")
	}
}

func TestSummaryKey(t *testing.T) {
	if got := SummaryKey("ep-1", "deep", "en"); got != "summary:ep-1:deep:en" {
		t.Fatalf("unexpected key %q", got)
	}
}
