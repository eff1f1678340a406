package observers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/tavolo/pkg/metrics"
)

// UsageSummary captures provider usage for one call, written alongside
// the timeline so per-call cost can be estimated offline.
type UsageSummary struct {
	CallSID        string `json:"call_sid"`
	Transcriptions int    `json:"transcriptions"`
	TTSBytes       int64  `json:"tts_bytes"`
	LLMTokens      int    `json:"llm_tokens"`
	Escalated      bool   `json:"escalated"`
	RecordedAtUTC  string `json:"recorded_at_utc"`
}

// UsageObserver accumulates per-call usage and writes one summary file
// per call when it ends.
type UsageObserver struct {
	dir   string
	mu    sync.Mutex
	stats map[string]*UsageSummary
}

func NewUsageObserver(dir string) *UsageObserver {
	return &UsageObserver{dir: dir, stats: make(map[string]*UsageSummary)}
}

func (o *UsageObserver) RecordEvent(ev metrics.MetricsEvent) {
	if strings.TrimSpace(o.dir) == "" {
		return
	}
	callSID := ""
	if ev.Tags != nil {
		callSID = ev.Tags["call_sid"]
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// model usage events carry no call tag; attribute tokens to the
	// only active call when there is exactly one.
	if ev.Name == metrics.EventLLMGenerate && callSID == "" {
		if len(o.stats) == 1 {
			for _, stat := range o.stats {
				stat.LLMTokens += int(ev.Value)
			}
		}
		return
	}
	if callSID == "" {
		return
	}

	stat := o.stats[callSID]
	if stat == nil {
		stat = &UsageSummary{CallSID: callSID}
		o.stats[callSID] = stat
	}

	switch ev.Name {
	case metrics.EventSTTTranscribe:
		stat.Transcriptions++
	case metrics.EventTTSSynthesize:
		stat.TTSBytes += int64(ev.Value)
	case metrics.EventLLMGenerate:
		stat.LLMTokens += int(ev.Value)
	case metrics.EventEscalation:
		stat.Escalated = true
	case metrics.EventCallEnded:
		delete(o.stats, callSID)
		o.writeLocked(stat)
	}
}

func (o *UsageObserver) writeLocked(stat *UsageSummary) {
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return
	}
	stat.RecordedAtUTC = time.Now().UTC().Format(time.RFC3339)
	b, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(o.dir, sanitizeID(stat.CallSID)+".usage.json")
	_ = os.WriteFile(path, b, 0o644)
}

// Close flushes summaries for calls still in flight.
func (o *UsageObserver) Close() error {
	if strings.TrimSpace(o.dir) == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for callSID, stat := range o.stats {
		delete(o.stats, callSID)
		o.writeLocked(stat)
	}
	return nil
}

var _ metrics.Observer = (*UsageObserver)(nil)
