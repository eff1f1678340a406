package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/tavolo/pkg/adapters/tts"
)

type TTSConfig struct {
	Audio []byte
	MIME  string
	Err   error
}

// Synthesizer returns canned audio for every text.
type Synthesizer struct {
	cfg   TTSConfig
	mu    sync.Mutex
	texts []string
}

func NewSynthesizer(cfg TTSConfig) *Synthesizer {
	if len(cfg.Audio) == 0 && cfg.Err == nil {
		cfg.Audio = []byte("mock audio")
	}
	if cfg.MIME == "" {
		cfg.MIME = "audio/mpeg"
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(_ context.Context, text string) (tts.Audio, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.cfg.Err != nil {
		return tts.Audio{}, s.cfg.Err
	}
	return tts.Audio{Data: s.cfg.Audio, MIME: s.cfg.MIME}, nil
}

// Texts returns the texts synthesized so far.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
