package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/harunnryd/tavolo/pkg/llm"
	"github.com/harunnryd/tavolo/pkg/resilience"
)

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

// Generator produces replies through the OpenAI chat completions API.
// It is the alternative to the default Gemini model provider.
type Generator struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &Generator{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *Generator) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (g *Generator) Generate(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	if g.cfg.APIKey == "" {
		return llm.Response{}, errors.New("missing openai api key")
	}
	payload := chatRequest{Model: g.cfg.Model, Messages: make([]chatMessage, 0, len(messages))}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return llm.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return llm.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return llm.Response{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(resp.Body)
		return llm.Response{}, resilience.RateLimitError{Provider: "openai", Message: string(msg)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return llm.Response{}, errors.New(string(msg))
	}
	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return llm.Response{}, err
	}
	if len(parsed.Choices) == 0 {
		return llm.Response{}, errors.New("no choices in openai response")
	}
	return llm.Response{
		Text: parsed.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

var _ llm.TextGenerator = (*Generator)(nil)
