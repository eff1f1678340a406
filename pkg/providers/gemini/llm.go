package gemini

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/harunnryd/tavolo/pkg/llm"
	"github.com/harunnryd/tavolo/pkg/logging"
)

type Config struct {
	APIKey string
	Model  string
}

// Generator produces fallback replies with a Gemini model.
type Generator struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing gemini api key")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Generator{
		cfg:    cfg,
		client: client,
		logger: logging.NewComponentLogger(slog.Default(), "gemini_llm"),
	}, nil
}

func (g *Generator) Name() string { return "gemini" }

func (g *Generator) Generate(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	var system string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = m.Content
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	if len(contents) == 0 {
		return llm.Response{}, errors.New("no messages")
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
	if err != nil {
		g.logger.Warn("gemini_generate_failed", "model", g.cfg.Model, "error", err.Error())
		return llm.Response{}, err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return llm.Response{}, errors.New("gemini: empty response")
	}

	out := llm.Response{Text: text}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

var _ llm.TextGenerator = (*Generator)(nil)
