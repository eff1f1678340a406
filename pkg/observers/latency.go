package observers

import (
	"log/slog"
	"sync"

	"github.com/harunnryd/tavolo/pkg/metrics"
)

// LatencyObserver tracks per-call turn processing latency and logs a
// summary when the call ends.
type LatencyObserver struct {
	mu    sync.Mutex
	calls map[string]*callLatency
	log   *slog.Logger
}

type callLatency struct {
	turns    int
	totalSec float64
	maxSec   float64
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		calls: make(map[string]*callLatency),
		log:   log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	callSID := ""
	if ev.Tags != nil {
		callSID = ev.Tags["call_sid"]
	}
	if callSID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch ev.Name {
	case metrics.EventTurnCompleted, metrics.EventEscalation:
		c := o.calls[callSID]
		if c == nil {
			c = &callLatency{}
			o.calls[callSID] = c
		}
		c.turns++
		c.totalSec += ev.Value
		if ev.Value > c.maxSec {
			c.maxSec = ev.Value
		}
	case metrics.EventCallEnded:
		c := o.calls[callSID]
		if c == nil {
			return
		}
		delete(o.calls, callSID)
		avgMs := int64(0)
		if c.turns > 0 {
			avgMs = int64(c.totalSec / float64(c.turns) * 1000)
		}
		o.log.Info("call_latency",
			"call_sid", callSID,
			"turns", c.turns,
			"avg_turn_ms", avgMs,
			"max_turn_ms", int64(c.maxSec*1000),
		)
	}
}

var _ metrics.Observer = (*LatencyObserver)(nil)
