package respond

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/tavolo/pkg/facts"
	"github.com/harunnryd/tavolo/pkg/intent"
	"github.com/harunnryd/tavolo/pkg/llm"
	"github.com/harunnryd/tavolo/pkg/session"
)

func testFacts() facts.Restaurant {
	return facts.Restaurant{
		Name:           "Mario's",
		Address:        "1 Main St",
		Hours:          "Open from 10 AM to 10 PM daily",
		Menu:           "Pizza, Pasta",
		DeliveryPolicy: "We deliver within 5 miles",
		Phone:          "+15550009999",
	}
}

func classify(utterance string) intent.Result {
	return intent.Classify(utterance)
}

func TestScriptedReplies(t *testing.T) {
	g := New(Config{Facts: testFacts()})
	ctx := context.Background()

	cases := []struct {
		utterance string
		want      string
	}{
		{"hello", "Hello! Thank you for calling Mario's. How can I assist you today?"},
		{"what are your hours", "We are open from 10 am to 10 pm daily."},
		{"where are you located", "We are located at 1 Main St."},
		{"what's on the menu", "We offer Pizza, Pasta. For more details, please speak with our staff."},
		{"I want to reserve a table", "I'd be happy to connect you with our staff who can help you with that."},
		{"do you do pickup", "We deliver within 5 miles."},
		{"goodbye", "Thank you for calling Mario's. Have a great day!"},
		{"let me talk to someone", StaffConnectReply},
	}
	for _, tc := range cases {
		got := g.Reply(ctx, tc.utterance, classify(tc.utterance), nil)
		if got != tc.want {
			t.Fatalf("utterance %q: got %q, want %q", tc.utterance, got, tc.want)
		}
	}
}

func TestGeneralInquiryFallbackScan(t *testing.T) {
	g := New(Config{Facts: testFacts()})
	ctx := context.Background()
	res := intent.Result{Primary: intent.GeneralInquiry, All: []intent.Intent{intent.GeneralInquiry}}

	cases := []struct {
		utterance string
		want      string
	}{
		{"are you openable", "We are open from 10 am to 10 pm daily."},
		{"whereabouts", "We are located at 1 Main St."},
		{"foodie question", "We offer Pizza, Pasta."},
		{"ordering stuff", "I'd be happy to connect you with our staff who can help you place your order."},
		{"mumble", "Thank you for calling Mario's. We are open from 10 am to 10 pm daily."},
	}
	for _, tc := range cases {
		got := g.Reply(ctx, tc.utterance, res, nil)
		if got != tc.want {
			t.Fatalf("utterance %q: got %q, want %q", tc.utterance, got, tc.want)
		}
	}
}

func TestReplyIsDeterministicWithoutModel(t *testing.T) {
	g := New(Config{Facts: testFacts()})
	ctx := context.Background()
	res := classify("hello")
	first := g.Reply(ctx, "hello", res, nil)
	for i := 0; i < 5; i++ {
		if got := g.Reply(ctx, "hello", res, nil); got != first {
			t.Fatalf("reply changed between calls: %q vs %q", got, first)
		}
	}
}

type stubModel struct {
	text string
	err  error
	seen []llm.Message
}

func (m *stubModel) Name() string { return "stub" }

func (m *stubModel) Generate(_ context.Context, messages []llm.Message) (llm.Response, error) {
	m.seen = messages
	if m.err != nil {
		return llm.Response{}, m.err
	}
	return llm.Response{Text: m.text}, nil
}

func TestModelHandlesGeneralInquiry(t *testing.T) {
	model := &stubModel{text: "We have gluten-free pasta."}
	g := New(Config{Facts: testFacts(), Model: model})
	res := intent.Result{Primary: intent.GeneralInquiry}
	history := []session.Turn{
		{Role: session.RoleCaller, Text: "hi"},
		{Role: session.RoleAssistant, Text: "hello"},
	}
	got := g.Reply(context.Background(), "any gluten free options", res, history)
	if got != "We have gluten-free pasta." {
		t.Fatalf("expected model reply, got %q", got)
	}
	// system prompt + two history turns + the utterance
	if len(model.seen) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(model.seen))
	}
	if model.seen[0].Role != llm.RoleSystem {
		t.Fatalf("first message should be system, got %s", model.seen[0].Role)
	}
	if model.seen[2].Role != llm.RoleAssistant {
		t.Fatalf("history assistant turn should map to assistant role")
	}
	if model.seen[3].Content != "any gluten free options" {
		t.Fatalf("last message should be the utterance, got %q", model.seen[3].Content)
	}
}

func TestModelFailureFallsBackToScripted(t *testing.T) {
	model := &stubModel{err: errors.New("boom")}
	g := New(Config{Facts: testFacts(), Model: model})
	res := intent.Result{Primary: intent.GeneralInquiry}
	got := g.Reply(context.Background(), "mumble", res, nil)
	if got != "Thank you for calling Mario's. We are open from 10 am to 10 pm daily." {
		t.Fatalf("expected scripted fallback, got %q", got)
	}
}

func TestModelNotUsedForScriptedIntents(t *testing.T) {
	model := &stubModel{text: "should never appear"}
	g := New(Config{Facts: testFacts(), Model: model})
	got := g.Reply(context.Background(), "hello", classify("hello"), nil)
	if got != "Hello! Thank you for calling Mario's. How can I assist you today?" {
		t.Fatalf("scripted intent should bypass the model, got %q", got)
	}
	if model.seen != nil {
		t.Fatalf("model should not have been called")
	}
}
