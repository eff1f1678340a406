package tavolo

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/tavolo/pkg/adapters/stt"
	"github.com/harunnryd/tavolo/pkg/adapters/tts"
	"github.com/harunnryd/tavolo/pkg/configutil"
	"github.com/harunnryd/tavolo/pkg/llm"
	"github.com/harunnryd/tavolo/pkg/providers/deepgram"
	"github.com/harunnryd/tavolo/pkg/providers/elevenlabs"
	"github.com/harunnryd/tavolo/pkg/providers/gemini"
	"github.com/harunnryd/tavolo/pkg/providers/mock"
	"github.com/harunnryd/tavolo/pkg/providers/openai"
)

type STTFactory func(cfg Config) (stt.Transcriber, error)
type TTSFactory func(cfg Config) (tts.Synthesizer, error)
type LLMFactory func(ctx context.Context, cfg Config) (llm.TextGenerator, error)

type ProviderRegistry struct {
	stt map[string]STTFactory
	tts map[string]TTSFactory
	llm map[string]LLMFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		stt: make(map[string]STTFactory),
		tts: make(map[string]TTSFactory),
		llm: make(map[string]LLMFactory),
	}
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildSTT(provider string, cfg Config) (stt.Transcriber, error) {
	fn := r.stt[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildTTS(provider string, cfg Config) (tts.Synthesizer, error) {
	fn := r.tts[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("tts provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildLLM(ctx context.Context, provider string, cfg Config) (llm.TextGenerator, error) {
	fn := r.llm[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(ctx, cfg)
}

type deepgramSettings struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
}

type elevenlabsSettings struct {
	APIKey  string `mapstructure:"api_key"`
	VoiceID string `mapstructure:"voice_id"`
	ModelID string `mapstructure:"model_id"`
}

type geminiSettings struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type openAISettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type mockSTTSettings struct {
	Text       string  `mapstructure:"text"`
	Confidence float64 `mapstructure:"confidence"`
}

type mockLLMSettings struct {
	ResponseText string `mapstructure:"response_text"`
}

// RegisterDefaults wires the built-in providers.
func RegisterDefaults(reg *ProviderRegistry) {
	reg.RegisterSTT("deepgram", func(cfg Config) (stt.Transcriber, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.STT.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "language"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.stt.settings: %w", err)
		}
		var settings deepgramSettings
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.stt.settings.api_key"); err != nil {
			return nil, err
		}
		return deepgram.New(deepgram.Config{
			APIKey:   settings.APIKey,
			Model:    settings.Model,
			Language: settings.Language,
		}), nil
	})

	reg.RegisterSTT("mock", func(cfg Config) (stt.Transcriber, error) {
		var settings mockSTTSettings
		if err := configutil.DecodeSettings(cfg.Vendors.STT.Settings, &settings); err != nil {
			return nil, err
		}
		if settings.Confidence == 0 {
			settings.Confidence = 1.0
		}
		return mock.NewTranscriber(mock.STTConfig{
			Text:       settings.Text,
			Confidence: settings.Confidence,
		}), nil
	})

	reg.RegisterTTS("elevenlabs", func(cfg Config) (tts.Synthesizer, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.TTS.Settings, configutil.Schema{
			Required: []string{"api_key", "voice_id"},
			Optional: []string{"model_id"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.tts.settings: %w", err)
		}
		var settings elevenlabsSettings
		if err := configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.tts.settings.api_key"); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.VoiceID, "vendors.tts.settings.voice_id"); err != nil {
			return nil, err
		}
		return elevenlabs.New(elevenlabs.Config{
			APIKey:  settings.APIKey,
			VoiceID: settings.VoiceID,
			ModelID: settings.ModelID,
		}), nil
	})

	reg.RegisterTTS("mock", func(cfg Config) (tts.Synthesizer, error) {
		return mock.NewSynthesizer(mock.TTSConfig{}), nil
	})

	reg.RegisterLLM("gemini", func(ctx context.Context, cfg Config) (llm.TextGenerator, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.llm.settings: %w", err)
		}
		var settings geminiSettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
			return nil, err
		}
		return gemini.New(ctx, gemini.Config{
			APIKey: settings.APIKey,
			Model:  settings.Model,
		})
	})

	reg.RegisterLLM("openai", func(ctx context.Context, cfg Config) (llm.TextGenerator, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "base_url"},
		}); err != nil {
			return nil, fmt.Errorf("vendors.llm.settings: %w", err)
		}
		var settings openAISettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
			return nil, err
		}
		return openai.New(openai.Config{
			APIKey:  settings.APIKey,
			Model:   settings.Model,
			BaseURL: settings.BaseURL,
		}), nil
	})

	reg.RegisterLLM("mock", func(ctx context.Context, cfg Config) (llm.TextGenerator, error) {
		var settings mockLLMSettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		return mock.NewTextGenerator(mock.LLMConfig{ResponseText: settings.ResponseText}), nil
	})
}
