package respond

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/tavolo/pkg/facts"
	"github.com/harunnryd/tavolo/pkg/intent"
	"github.com/harunnryd/tavolo/pkg/llm"
	"github.com/harunnryd/tavolo/pkg/logging"
	"github.com/harunnryd/tavolo/pkg/metrics"
	"github.com/harunnryd/tavolo/pkg/session"
)

// StaffConnectReply is spoken whenever the call is handed to a human.
const StaffConnectReply = "I'll connect you with our staff who can better assist you."

// ApologyReply is spoken when reply generation fails outright.
const ApologyReply = "I apologize, but I'm experiencing technical difficulties. Let me connect you to our staff."

type Config struct {
	Facts        facts.Restaurant
	Model        llm.TextGenerator
	ModelTimeout time.Duration
	Observer     metrics.Observer
	Logger       *slog.Logger
}

// Generator renders replies for classified utterances. Every intent has a
// scripted reply built from restaurant facts; an optional model handles
// general inquiries the script has no answer for.
type Generator struct {
	facts        facts.Restaurant
	model        llm.TextGenerator
	modelTimeout time.Duration
	obs          metrics.Observer
	logger       *slog.Logger
}

func New(cfg Config) *Generator {
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = 5 * time.Second
	}
	if cfg.Observer == nil {
		cfg.Observer = metrics.NoopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewComponentLogger(slog.Default(), "respond")
	}
	return &Generator{
		facts:        cfg.Facts.WithDefaults(),
		model:        cfg.Model,
		modelTimeout: cfg.ModelTimeout,
		obs:          cfg.Observer,
		logger:       cfg.Logger,
	}
}

// Greeting returns the call-opening line.
func (g *Generator) Greeting() string {
	return "Hello! Thank you for calling " + g.facts.Name + ". How can I assist you today?"
}

// Reply produces the assistant reply for one caller utterance. Scripted
// replies depend only on the primary intent and the configured facts; the
// raw utterance is consulted again on the general-inquiry path.
func (g *Generator) Reply(ctx context.Context, utterance string, res intent.Result, history []session.Turn) string {
	switch res.Primary {
	case intent.Greeting:
		return "Hello! Thank you for calling " + g.facts.Name + ". How can I assist you today?"
	case intent.HoursInquiry:
		return "We are " + strings.ToLower(g.facts.Hours) + "."
	case intent.LocationInquiry:
		return "We are located at " + g.facts.Address + "."
	case intent.MenuInquiry:
		return "We offer " + strings.Join(g.facts.MenuCategories(), ", ") + ". For more details, please speak with our staff."
	case intent.OrderRequest, intent.ReservationRequest, intent.Complaint:
		return "I'd be happy to connect you with our staff who can help you with that."
	case intent.DeliveryInquiry:
		return g.facts.DeliveryPolicy + "."
	case intent.Closing:
		return "Thank you for calling " + g.facts.Name + ". Have a great day!"
	case intent.ContactStaff:
		return StaffConnectReply
	default:
		return g.generalReply(ctx, utterance, history)
	}
}

// generalReply tries the model first, then falls back to a keyword scan
// over the raw utterance.
func (g *Generator) generalReply(ctx context.Context, utterance string, history []session.Turn) string {
	if g.model != nil {
		text, err := g.generate(ctx, utterance, history)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		if err != nil {
			g.logger.Warn("model_reply_failed", "provider", g.model.Name(), "error", err.Error())
			g.obs.RecordEvent(metrics.MetricsEvent{
				Name: metrics.EventLLMFallback,
				Time: time.Now(),
				Tags: map[string]string{"provider": g.model.Name()},
			})
		}
	}
	return g.fallback(utterance)
}

// fallback answers a general inquiry from the utterance text alone. The
// scan here is deliberately looser than the classifier's keyword tables.
func (g *Generator) fallback(utterance string) string {
	lowered := strings.ToLower(utterance)
	switch {
	case strings.Contains(lowered, "open") || strings.Contains(lowered, "hour"):
		return "We are " + strings.ToLower(g.facts.Hours) + "."
	case strings.Contains(lowered, "where") || strings.Contains(lowered, "address"):
		return "We are located at " + g.facts.Address + "."
	case strings.Contains(lowered, "menu") || strings.Contains(lowered, "food"):
		return "We offer " + strings.Join(g.facts.MenuCategories(), ", ") + "."
	case strings.Contains(lowered, "order") || strings.Contains(lowered, "delivery"):
		return "I'd be happy to connect you with our staff who can help you place your order."
	default:
		return "Thank you for calling " + g.facts.Name + ". We are " + strings.ToLower(g.facts.Hours) + "."
	}
}

func (g *Generator) generate(ctx context.Context, utterance string, history []session.Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.modelTimeout)
	defer cancel()

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: g.systemPrompt()})
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})

	resp, err := g.model.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	g.obs.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventLLMGenerate,
		Time:  time.Now(),
		Value: float64(resp.Usage.TotalTokens),
		Tags:  map[string]string{"provider": g.model.Name()},
		Fields: map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
		},
	})
	return resp.Text, nil
}

func (g *Generator) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a friendly phone assistant for " + g.facts.Name + ". ")
	b.WriteString("Answer in one or two short sentences suitable for a voice call. ")
	b.WriteString("Business facts: address " + g.facts.Address + "; ")
	b.WriteString("hours " + g.facts.Hours + "; ")
	b.WriteString("menu " + g.facts.Menu + "; ")
	b.WriteString("delivery " + g.facts.DeliveryPolicy + ". ")
	b.WriteString("If the caller wants to place an order, make a reservation, or file a complaint, offer to connect them with our staff.")
	return b.String()
}
