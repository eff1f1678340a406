package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeSetKey = "tavolo:active_sessions"

// RedisMirror mirrors session snapshots into Redis so dashboards and ops
// tooling can observe live calls. It is write-only from the engine's point
// of view; nothing is ever read back into call handling.
type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisMirror connects to Redis and returns a mirror, or nil when the
// address is empty or the server is unreachable. A nil mirror is valid and
// disables mirroring.
func NewRedisMirror(addr, password string, db int, logger *slog.Logger) *RedisMirror {
	if addr == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis_mirror_unavailable", "addr", addr, "error", err.Error())
		_ = client.Close()
		return nil
	}
	return &RedisMirror{client: client, ttl: 24 * time.Hour, logger: logger}
}

func (m *RedisMirror) Store(ctx context.Context, snap Snapshot) {
	if m == nil {
		return
	}
	key := "tavolo:session:" + snap.CallSID
	fields := map[string]any{
		"call_sid":     snap.CallSID,
		"caller_phone": snap.CallerPhone,
		"status":       snap.Status,
		"turns":        snap.Turns,
		"escalated":    snap.Escalated,
		"created":      snap.Created,
	}
	if snap.EscalationReason != "" {
		fields["escalation_reason"] = snap.EscalationReason
	}
	pipe := m.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, m.ttl)
	pipe.SAdd(ctx, activeSetKey, snap.CallSID)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("redis_mirror_store_failed", "call_sid", snap.CallSID, "error", err.Error())
	}
}

func (m *RedisMirror) Remove(ctx context.Context, callSID string) {
	if m == nil {
		return
	}
	pipe := m.client.Pipeline()
	pipe.Del(ctx, "tavolo:session:"+callSID)
	pipe.SRem(ctx, activeSetKey, callSID)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("redis_mirror_remove_failed", "call_sid", callSID, "error", err.Error())
	}
}

func (m *RedisMirror) Close() error {
	if m == nil {
		return nil
	}
	return m.client.Close()
}
