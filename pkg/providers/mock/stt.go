package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/tavolo/pkg/adapters/stt"
)

type STTConfig struct {
	Text       string
	Confidence float64
	Err        error
}

// Transcriber returns a canned transcript for every recording.
type Transcriber struct {
	cfg   STTConfig
	mu    sync.Mutex
	calls []string
}

func NewTranscriber(cfg STTConfig) *Transcriber {
	if cfg.Text == "" && cfg.Err == nil {
		cfg.Text = "mock transcript"
		cfg.Confidence = 0.95
	}
	return &Transcriber{cfg: cfg}
}

func (t *Transcriber) Name() string { return "mock_stt" }

func (t *Transcriber) Transcribe(_ context.Context, audioURL string) (stt.Result, error) {
	t.mu.Lock()
	t.calls = append(t.calls, audioURL)
	t.mu.Unlock()
	if t.cfg.Err != nil {
		return stt.Result{}, t.cfg.Err
	}
	return stt.Result{Text: t.cfg.Text, Confidence: t.cfg.Confidence}, nil
}

// Calls returns the recording URLs transcribed so far.
func (t *Transcriber) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.calls))
	copy(out, t.calls)
	return out
}

var _ stt.Transcriber = (*Transcriber)(nil)
