package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/campaign-manager/internal/send"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(rdb, ttl), mr
}

func TestRedisCache_ProgressRoundTrip(t *testing.T) {
	t.Parallel()

	c, mr := newRedisCache(t, 10*time.Second)
	ctx := context.Background()

	p := send.Progress{
		Total:        10,
		Sent:         4,
		Failed:       1,
		Batch:        2,
		TotalBatches: 5,
		Errors:       []string{"message to +361 failed: declined"},
	}
	if err := c.StoreProgress(ctx, 7, p); err != nil {
		t.Fatalf("StoreProgress() error: %v", err)
	}

	if !mr.Exists("campaign:7:progress") {
		t.Fatalf("expected progress key to exist")
	}
	if ttl := mr.TTL("campaign:7:progress"); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	got, ok, err := c.Progress(ctx, 7)
	if err != nil {
		t.Fatalf("Progress() error: %v", err)
	}
	if !ok {
		t.Fatalf("expected cached snapshot")
	}
	if got.Sent != 4 || got.Failed != 1 || got.TotalBatches != 5 || len(got.Errors) != 1 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestRedisCache_ProgressMissing(t *testing.T) {
	t.Parallel()

	c, _ := newRedisCache(t, time.Minute)

	_, ok, err := c.Progress(context.Background(), 99)
	if err != nil {
		t.Fatalf("Progress() error: %v", err)
	}
	if ok {
		t.Fatalf("expected cache miss")
	}
}

func TestRedisCache_OverwritesLatestSnapshot(t *testing.T) {
	t.Parallel()

	c, mr := newRedisCache(t, time.Minute)
	ctx := context.Background()

	if err := c.StoreProgress(ctx, 1, send.Progress{Sent: 1, Batch: 1}); err != nil {
		t.Fatal(err)
	}
	if err := c.StoreProgress(ctx, 1, send.Progress{Sent: 2, Batch: 2}); err != nil {
		t.Fatal(err)
	}

	raw, err := mr.Get("campaign:1:progress")
	if err != nil {
		t.Fatal(err)
	}
	var got send.Progress
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatal(err)
	}
	if got.Sent != 2 || got.Batch != 2 {
		t.Fatalf("expected newest snapshot to win, got %+v", got)
	}
}

func TestRedisCache_StoreSent(t *testing.T) {
	t.Parallel()

	c, mr := newRedisCache(t, time.Minute)

	sentAt := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	if err := c.StoreSent(context.Background(), 42, sentAt); err != nil {
		t.Fatalf("StoreSent() error: %v", err)
	}

	raw, err := mr.Get("msg:42")
	if err != nil {
		t.Fatal(err)
	}
	var got sentValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatal(err)
	}
	if !got.SentAt.Equal(sentAt) {
		t.Fatalf("expected SentAt %v, got %v", sentAt, got.SentAt)
	}
}

func TestRedisCache_ContextCanceled(t *testing.T) {
	t.Parallel()

	c, _ := newRedisCache(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.StoreProgress(ctx, 1, send.Progress{}); err == nil {
		t.Fatalf("expected error due to canceled context")
	}
}
