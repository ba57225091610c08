package cache

import (
	"testing"
	"time"

	"FeedSentiment/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestPutThenGetReturnsValue(t *testing.T) {
	t.Parallel()

	c := New[domain.ClassificationEntry](0, 0)
	entry := domain.ClassificationEntry{
		Key:    "id:1",
		Scores: domain.ScoreList{{Label: domain.LabelPositive, Score: 0.9}},
	}
	c.Put("id:1", entry)

	got, ok := c.Get("id:1")
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.Key != entry.Key || len(got.Scores) != 1 || got.Scores[0] != entry.Scores[0] {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestTTLExpiresLazily(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string](120*time.Second, 0).WithClock(clock.Now)
	c.Put("k", "v")

	clock.Advance(120 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry must survive exactly the TTL")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry must be absent once older than the TTL")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be dropped on read, len=%d", c.Len())
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	c := New[string](0, 0).WithClock(clock.Now)
	c.Put("k", "v")
	clock.Advance(24 * time.Hour)

	if _, ok := c.Get("k"); !ok {
		t.Fatalf("session cache entries must not expire")
	}
}

func TestPutOverwrites(t *testing.T) {
	t.Parallel()

	c := New[string](0, 0)
	c.Put("k", "first")
	c.Put("k", "second")

	if got, _ := c.Get("k"); got != "second" {
		t.Fatalf("expected last write to win, got %q", got)
	}
}

func TestMaxEntriesEvictsExpiredThenOldest(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	c := New[int](time.Minute, 2).WithClock(clock.Now)

	c.Put("a", 1)
	clock.Advance(2 * time.Minute)
	c.Put("b", 2)
	c.Put("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expired entry should have been purged first")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("live entry b should remain")
	}

	c.Put("d", 4)
	if c.Len() != 2 {
		t.Fatalf("expected cap of 2, got %d", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Fatalf("oldest live entry b should have been evicted")
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	c := New[int](0, 0)
	c.Put("a", 1)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear")
	}
}
