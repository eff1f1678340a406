package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Mirror receives session snapshots for monitoring. Implementations must
// tolerate being called concurrently; failures are advisory only.
type Mirror interface {
	Store(ctx context.Context, snap Snapshot)
	Remove(ctx context.Context, callSID string)
}

// Registry tracks active call sessions keyed by call SID.
// The in-memory map is the source of truth; the mirror only observes.
type Registry struct {
	sessions sync.Map
	count    atomic.Int64
	draining atomic.Bool
	mirror   Mirror
}

func NewRegistry(mirror Mirror) *Registry {
	return &Registry{mirror: mirror}
}

// GetOrCreate returns the session for callSID, creating it when absent.
// The second return value reports whether a new session was created.
func (r *Registry) GetOrCreate(callSID, callerPhone string) (*CallSession, bool) {
	if callSID == "" {
		return nil, false
	}
	if v, ok := r.sessions.Load(callSID); ok {
		return v.(*CallSession), false
	}
	sess := New(callSID, callerPhone)
	actual, loaded := r.sessions.LoadOrStore(callSID, sess)
	if loaded {
		return actual.(*CallSession), false
	}
	r.count.Add(1)
	r.mirrorStore(sess)
	return sess, true
}

func (r *Registry) Get(callSID string) (*CallSession, bool) {
	if v, ok := r.sessions.Load(callSID); ok {
		return v.(*CallSession), true
	}
	return nil, false
}

// Sync pushes the session's current snapshot to the mirror. A session that
// was already removed is skipped, so a turn preempted by a terminal status
// cannot resurrect the mirror entry.
func (r *Registry) Sync(sess *CallSession) {
	if sess == nil {
		return
	}
	if _, ok := r.sessions.Load(sess.CallSID); !ok {
		return
	}
	r.mirrorStore(sess)
}

// Remove drops the session from the registry and the mirror.
func (r *Registry) Remove(callSID string) {
	if _, ok := r.sessions.LoadAndDelete(callSID); ok {
		r.count.Add(-1)
		if r.mirror != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			r.mirror.Remove(ctx, callSID)
			cancel()
		}
	}
}

// CloseAll removes every active session.
func (r *Registry) CloseAll() {
	r.sessions.Range(func(key, value any) bool {
		if callSID, ok := key.(string); ok {
			r.Remove(callSID)
		}
		return true
	})
}

// Snapshots returns a point-in-time view of all active sessions.
func (r *Registry) Snapshots() []Snapshot {
	var out []Snapshot
	r.sessions.Range(func(_, value any) bool {
		out = append(out, value.(*CallSession).Snapshot())
		return true
	})
	return out
}

func (r *Registry) Count() int64 {
	return r.count.Load()
}

func (r *Registry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *Registry) Draining() bool {
	return r.draining.Load()
}

// WaitForEmpty blocks until no sessions remain or ctx expires.
func (r *Registry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (r *Registry) mirrorStore(sess *CallSession) {
	if r.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	r.mirror.Store(ctx, sess.Snapshot())
	cancel()
}
