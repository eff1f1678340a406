package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/tavolo/pkg/adapters/tts"
	"github.com/harunnryd/tavolo/pkg/logging"
	"github.com/harunnryd/tavolo/pkg/resilience"
)

const defaultBaseURL = "https://api.elevenlabs.io"

type Config struct {
	APIKey  string
	VoiceID string
	ModelID string
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

// Synthesizer renders speech through the ElevenLabs HTTP API.
type Synthesizer struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func New(cfg Config) *Synthesizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Synthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
	}
}

func (s *Synthesizer) Name() string { return "elevenlabs_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (tts.Audio, error) {
	if s.cfg.APIKey == "" || s.cfg.VoiceID == "" {
		return tts.Audio{}, errors.New("missing elevenlabs config")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return tts.Audio{}, errors.New("empty text")
	}

	payload := map[string]any{
		"text": text,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.5,
		},
	}
	if s.cfg.ModelID != "" {
		payload["model_id"] = s.cfg.ModelID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return tts.Audio{}, err
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/v1/text-to-speech/" + s.cfg.VoiceID + "/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("elevenlabs_request_failed", "error", err.Error())
		return tts.Audio{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.logger.Error("elevenlabs_rate_limited", "status", resp.Status)
		return tts.Audio{}, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Audio{}, fmt.Errorf("elevenlabs: unexpected status %s: %s", resp.Status, string(snippet))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, err
	}
	if len(data) == 0 {
		return tts.Audio{}, errors.New("elevenlabs: empty audio response")
	}

	s.logger.Debug("tts_audio_received",
		slog.Int("size_bytes", len(data)),
		slog.String("voice_id", s.cfg.VoiceID),
	)
	return tts.Audio{Data: data, MIME: "audio/mpeg"}, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
