package observers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/tavolo/pkg/metrics"
	"github.com/harunnryd/tavolo/pkg/redact"
)

func TestTimelineObserverWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)

	obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventIntentDetected,
		Time: time.Now(),
		Tags: map[string]string{
			"call_sid": "CA123",
			"intent":   "hours_inquiry",
		},
	})
	_ = obs.Close()

	path := filepath.Join(dir, "CA123.jsonl")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(b), "intent_detected") {
		t.Fatalf("expected intent_detected event in file")
	}
	if !strings.Contains(string(b), "hours_inquiry") {
		t.Fatalf("expected intent tag in file")
	}
}

func TestTimelineObserverIgnoresEventsWithoutCallSID(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)

	obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventLLMFallback,
		Time: time.Now(),
		Tags: map[string]string{"provider": "gemini"},
	})
	_ = obs.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no timeline files, got %d", len(entries))
	}
}

func TestTimelineObserverRedactsStringFields(t *testing.T) {
	redact.SetEnabled(true)
	defer redact.SetEnabled(false)

	dir := t.TempDir()
	obs := NewTimelineObserver(dir)

	obs.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventEscalation,
		Time: time.Now(),
		Tags: map[string]string{"call_sid": "CA555"},
		Fields: map[string]any{
			"caller_phone": "+15551234567",
		},
	})
	_ = obs.Close()

	b, err := os.ReadFile(filepath.Join(dir, "CA555.jsonl"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if strings.Contains(string(b), "+15551234567") {
		t.Fatalf("expected phone number redacted, got %s", b)
	}
}
