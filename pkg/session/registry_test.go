package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingMirror struct {
	mu      sync.Mutex
	stored  []Snapshot
	removed []string
}

func (m *recordingMirror) Store(_ context.Context, snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, snap)
}

func (m *recordingMirror) Remove(_ context.Context, callSID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, callSID)
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	s1, created := r.GetOrCreate("CA1", "+1555")
	if !created {
		t.Fatalf("first call should create")
	}
	s2, created := r.GetOrCreate("CA1", "+1555")
	if created {
		t.Fatalf("second call should not create")
	}
	if s1 != s2 {
		t.Fatalf("expected same session instance")
	}
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
}

func TestGetOrCreateEmptySID(t *testing.T) {
	r := NewRegistry(nil)
	if s, created := r.GetOrCreate("", ""); s != nil || created {
		t.Fatalf("empty sid should not create a session")
	}
}

func TestRemoveNotifiesMirror(t *testing.T) {
	mirror := &recordingMirror{}
	r := NewRegistry(mirror)
	r.GetOrCreate("CA1", "+1555")
	r.Remove("CA1")
	if r.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Count())
	}
	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	if len(mirror.stored) != 1 || mirror.stored[0].CallSID != "CA1" {
		t.Fatalf("expected one stored snapshot, got %+v", mirror.stored)
	}
	if len(mirror.removed) != 1 || mirror.removed[0] != "CA1" {
		t.Fatalf("expected one removal, got %v", mirror.removed)
	}
}

func TestSyncAfterRemoveIsNoop(t *testing.T) {
	mirror := &recordingMirror{}
	r := NewRegistry(mirror)
	sess, _ := r.GetOrCreate("CA1", "+1555")
	r.Remove("CA1")
	r.Sync(sess)
	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	if len(mirror.stored) != 1 {
		t.Fatalf("expected no store after removal, got %+v", mirror.stored)
	}
	if len(mirror.removed) != 1 || mirror.removed[0] != "CA1" {
		t.Fatalf("expected one removal, got %v", mirror.removed)
	}
}

func TestRemoveUnknownSIDIsNoop(t *testing.T) {
	r := NewRegistry(nil)
	r.Remove("CA404")
	if r.Count() != 0 {
		t.Fatalf("count should stay 0")
	}
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry(nil)
	r.GetOrCreate("CA1", "")
	r.GetOrCreate("CA2", "")
	r.CloseAll()
	if r.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Count())
	}
}

func TestWaitForEmpty(t *testing.T) {
	r := NewRegistry(nil)
	r.GetOrCreate("CA1", "")
	go func() {
		time.Sleep(30 * time.Millisecond)
		r.Remove("CA1")
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !r.WaitForEmpty(ctx, 10*time.Millisecond) {
		t.Fatalf("expected registry to drain")
	}
}

func TestSnapshots(t *testing.T) {
	r := NewRegistry(nil)
	r.GetOrCreate("CA1", "")
	r.GetOrCreate("CA2", "")
	snaps := r.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
}
