package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"streamcast/internal/config"
)

func newTestService(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	svc, err := New(config.RedisConfig{
		Host: mr.Host(),
		Port: mr.Port(),
	})
	if err != nil {
		t.Fatalf("New() unexpected error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	return svc, mr
}

func TestGet_UnknownStream(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), "unknown-id")
	if !errors.Is(err, ErrNotLive) {
		t.Errorf("Get() error = %v, want ErrNotLive", err)
	}
}

func TestGet_NoURLYet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Seed(ctx, "abc123"); err != nil {
		t.Fatalf("Seed() unexpected error = %v", err)
	}

	// Seeded but never published: readers must still see "not live".
	_, err := svc.Get(ctx, "abc123")
	if !errors.Is(err, ErrNotLive) {
		t.Errorf("Get() error = %v, want ErrNotLive", err)
	}
}

func TestSeedAndIncrementViewers(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	if err := svc.Seed(ctx, "abc123"); err != nil {
		t.Fatalf("Seed() unexpected error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := svc.IncrementViewers(ctx, "abc123"); err != nil {
			t.Fatalf("IncrementViewers() unexpected error = %v", err)
		}
	}

	got := mr.HGet("stream:abc123", "viewers")
	if got != "4" {
		t.Errorf("viewers = %s, want 4", got)
	}
}

func TestIncrementViewers_CreatesRecord(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	// HINCRBY on a missing hash creates it, so a chunk arriving before the
	// seed write lands is never lost.
	if err := svc.IncrementViewers(ctx, "fresh"); err != nil {
		t.Fatalf("IncrementViewers() unexpected error = %v", err)
	}

	if got := mr.HGet("stream:fresh", "viewers"); got != "1" {
		t.Errorf("viewers = %s, want 1", got)
	}
}

func TestSetURLAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Seed(ctx, "abc123"); err != nil {
		t.Fatalf("Seed() unexpected error = %v", err)
	}

	url := "https://bucket.s3.us-east-1.amazonaws.com/hls/abc123/stream.m3u8"
	if err := svc.SetURL(ctx, "abc123", url); err != nil {
		t.Fatalf("SetURL() unexpected error = %v", err)
	}

	meta, err := svc.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get() unexpected error = %v", err)
	}
	if meta.URL != url {
		t.Errorf("Get() url = %s, want %s", meta.URL, url)
	}
	if meta.Viewers != 1 {
		t.Errorf("Get() viewers = %d, want 1", meta.Viewers)
	}
	if meta.UpdatedAt == "" {
		t.Error("Get() should return a non-empty updatedAt")
	}
}

func TestResetViewers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Seed(ctx, "abc123"); err != nil {
		t.Fatalf("Seed() unexpected error = %v", err)
	}
	if err := svc.SetURL(ctx, "abc123", "https://example.com/stream.m3u8"); err != nil {
		t.Fatalf("SetURL() unexpected error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := svc.IncrementViewers(ctx, "abc123"); err != nil {
			t.Fatalf("IncrementViewers() unexpected error = %v", err)
		}
	}

	if err := svc.ResetViewers(ctx, "abc123"); err != nil {
		t.Fatalf("ResetViewers() unexpected error = %v", err)
	}

	meta, err := svc.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get() unexpected error = %v", err)
	}
	if meta.Viewers != 0 {
		t.Errorf("Get() viewers = %d, want 0 after reset", meta.Viewers)
	}
	// URL survives the reset so the terminal playlist stays resolvable.
	if meta.URL == "" {
		t.Error("Get() url should survive ResetViewers")
	}
}

func TestHealth(t *testing.T) {
	svc, mr := newTestService(t)

	health := svc.Health()
	if health["status"] != "connected" {
		t.Errorf("Health() status = %s, want connected", health["status"])
	}

	mr.Close()

	health = svc.Health()
	if health["error"] == "" {
		t.Error("Health() should report an error once redis is down")
	}
}
