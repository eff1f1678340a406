package mock

import (
	"context"

	"github.com/harunnryd/tavolo/pkg/llm"
)

type LLMConfig struct {
	ResponseText string
	Err          error
}

// TextGenerator returns a canned reply for every prompt.
type TextGenerator struct {
	cfg LLMConfig
}

func NewTextGenerator(cfg LLMConfig) *TextGenerator {
	if cfg.ResponseText == "" && cfg.Err == nil {
		cfg.ResponseText = "mock response"
	}
	return &TextGenerator{cfg: cfg}
}

func (g *TextGenerator) Name() string { return "mock_llm" }

func (g *TextGenerator) Generate(_ context.Context, _ []llm.Message) (llm.Response, error) {
	if g.cfg.Err != nil {
		return llm.Response{}, g.cfg.Err
	}
	return llm.Response{Text: g.cfg.ResponseText}, nil
}

var _ llm.TextGenerator = (*TextGenerator)(nil)
