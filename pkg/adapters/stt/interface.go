package stt

import "context"

// Result is a single transcription outcome.
type Result struct {
	Text       string
	Confidence float64
}

// Transcriber defines the contract for any STT vendor implementation.
// Implementations transcribe recorded audio referenced by URL.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Transcribe fetches and transcribes the recording at audioURL.
	Transcribe(ctx context.Context, audioURL string) (Result, error)
}

// Config contains vendor-agnostic STT configuration.
type Config struct {
	Model    string
	Language string
}
