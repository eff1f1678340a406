package llm

import "context"

// Message is a single turn of conversation context passed to the model.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text  string
	Usage Usage
}

// TextGenerator produces a reply from conversation context.
type TextGenerator interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
	Name() string
}
