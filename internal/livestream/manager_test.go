package livestream

import (
	"testing"
	"time"
)

func newIdleSession(streamID string) *Session {
	return NewSession(streamID, "", newFakeTranscoder(), newFakeStore(), newFakePublisher(), time.Second)
}

func TestManager_AcquireRejectsDuplicateIdentifier(t *testing.T) {
	m := NewManager()
	first := newIdleSession("abc123")
	second := newIdleSession("abc123")

	if err := m.Acquire("abc123", first); err != nil {
		t.Fatalf("Acquire() unexpected error = %v", err)
	}
	if err := m.Acquire("abc123", second); err == nil {
		t.Error("Acquire() should reject a second claim of a live identifier")
	}
	if got := m.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount() = %d, want 1", got)
	}
}

func TestManager_ReleaseFreesIdentifier(t *testing.T) {
	m := NewManager()
	first := newIdleSession("abc123")

	if err := m.Acquire("abc123", first); err != nil {
		t.Fatalf("Acquire() unexpected error = %v", err)
	}
	m.Release("abc123", first)

	if err := m.Acquire("abc123", newIdleSession("abc123")); err != nil {
		t.Errorf("Acquire() after release unexpected error = %v", err)
	}
}

func TestManager_ReleaseIgnoresStaleSession(t *testing.T) {
	m := NewManager()
	owner := newIdleSession("abc123")
	stale := newIdleSession("abc123")

	if err := m.Acquire("abc123", owner); err != nil {
		t.Fatalf("Acquire() unexpected error = %v", err)
	}

	// A session that never won the identifier must not evict the owner.
	m.Release("abc123", stale)

	if got := m.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount() = %d, want 1", got)
	}
}
