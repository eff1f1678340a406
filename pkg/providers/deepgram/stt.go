package deepgram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/tavolo/pkg/adapters/stt"
	"github.com/harunnryd/tavolo/pkg/logging"
	"github.com/harunnryd/tavolo/pkg/resilience"

	prerecorded "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey   string
	Model    string
	Language string
}

// Transcriber transcribes call recordings through the Deepgram
// prerecorded REST API.
type Transcriber struct {
	cfg    Config
	api    *prerecorded.Client
	retry  resilience.RetryPolicy
	logger *slog.Logger
}

func New(cfg Config) *Transcriber {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	rest := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Transcriber{
		cfg:    cfg,
		api:    prerecorded.New(rest),
		retry:  resilience.NewRetryPolicy(2, 200*time.Millisecond),
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_stt"),
	}
}

func (t *Transcriber) Name() string { return "deepgram_prerecorded" }

func (t *Transcriber) Transcribe(ctx context.Context, audioURL string) (stt.Result, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.cfg.Model,
		Language:    t.cfg.Language,
		SmartFormat: true,
	}

	var out stt.Result
	err := t.retry.Do(func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, err := t.api.FromURL(ctx, audioURL, options)
		if err != nil {
			t.logger.Warn("deepgram_transcribe_error", "error", err.Error())
			return err
		}
		if resp == nil || len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
			return fmt.Errorf("deepgram: empty transcription result")
		}
		alt := resp.Results.Channels[0].Alternatives[0]
		out = stt.Result{Text: alt.Transcript, Confidence: alt.Confidence}
		return nil
	})
	if err != nil {
		return stt.Result{}, err
	}

	t.logger.Debug("transcript_received",
		slog.String("model", t.cfg.Model),
		slog.Float64("confidence", out.Confidence),
		slog.Int("length", len(out.Text)),
	)
	return out, nil
}

var _ stt.Transcriber = (*Transcriber)(nil)
