package tts

import "context"

// Audio is synthesized speech ready to be served to the telephony layer.
type Audio struct {
	Data []byte
	MIME string
}

// Synthesizer defines the contract for any TTS vendor implementation.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize renders text to audio.
	Synthesize(ctx context.Context, text string) (Audio, error)
}

// Config contains vendor-agnostic TTS configuration.
type Config struct {
	VoiceID string
	Model   string
}
