package call

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/tavolo/pkg/adapters/stt"
	"github.com/harunnryd/tavolo/pkg/adapters/tts"
	"github.com/harunnryd/tavolo/pkg/errorsx"
	"github.com/harunnryd/tavolo/pkg/intent"
	"github.com/harunnryd/tavolo/pkg/logging"
	"github.com/harunnryd/tavolo/pkg/metrics"
	"github.com/harunnryd/tavolo/pkg/redact"
	"github.com/harunnryd/tavolo/pkg/respond"
	"github.com/harunnryd/tavolo/pkg/session"
)

const (
	clarifyText = "I'm sorry, I couldn't hear that clearly. Could you please repeat?"
	// errorHangupText ends the call on malformed events, the only abnormal end.
	errorHangupText = "I'm experiencing technical difficulties. Please call back or visit us directly."

	escalationReason = "Order/Reservation/Complaint detected"
)

// AudioPublisher stores synthesized audio and returns a URL the telephony
// provider can fetch it from.
type AudioPublisher interface {
	Publish(callSID string, audio tts.Audio) (string, error)
}

type Config struct {
	ConfidenceThreshold float64
	RestaurantPhone     string
	TranscribeTimeout   time.Duration
	SynthesizeTimeout   time.Duration

	Registry    *session.Registry
	Responder   *respond.Generator
	Transcriber stt.Transcriber
	Synthesizer tts.Synthesizer
	Publisher   AudioPublisher
	Observer    metrics.Observer
	Logger      *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = 0.5
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 10 * time.Second
	}
	if c.SynthesizeTimeout <= 0 {
		c.SynthesizeTimeout = 10 * time.Second
	}
	if c.Observer == nil {
		c.Observer = metrics.NoopObserver{}
	}
	if c.Logger == nil {
		c.Logger = logging.NewComponentLogger(slog.Default(), "orchestrator")
	}
	return c
}

// control carries per-call mutable state. mu serializes turn processing so
// concurrent webhook deliveries for one call never interleave; ctx is
// cancelled when a terminal status arrives, preempting in-flight provider
// calls for that call.
type control struct {
	mu     sync.Mutex
	sm     *stateMachine
	ctx    context.Context
	cancel context.CancelFunc
}

// Orchestrator drives one state transition per inbound webhook event.
type Orchestrator struct {
	cfg Config

	mu    sync.Mutex
	calls map[string]*control
}

func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg.withDefaults(),
		calls: make(map[string]*control),
	}
}

// HandleCallStart answers an inbound call with the greeting.
func (o *Orchestrator) HandleCallStart(ev CallStart) Effect {
	if ev.CallSID == "" {
		o.cfg.Logger.Error("malformed_event", "event", "call_start")
		return Effect{Kind: EffectHangup, Text: errorHangupText}
	}
	_, created := o.cfg.Registry.GetOrCreate(ev.CallSID, ev.From)
	c := o.control(ev.CallSID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sm.State() == StateInit {
		_ = c.sm.Transition(StateGreeted)
		_ = c.sm.Transition(StateListening)
	}
	if created {
		o.cfg.Observer.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventCallStarted,
			Time: time.Now(),
			Tags: map[string]string{"call_sid": ev.CallSID},
		})
	}
	o.cfg.Logger.Info("call_started",
		"call_sid", ev.CallSID,
		"from", redact.Text(ev.From),
		"state", c.sm.State().String(),
	)
	return o.speak(c.ctx, Effect{Kind: EffectGreeting, Text: o.cfg.Responder.Greeting()}, ev.CallSID)
}

// HandleSpeech processes one recognized utterance and selects the reply
// effect. Any internal failure degrades to an apology-and-transfer reply;
// it never crashes the event path.
func (o *Orchestrator) HandleSpeech(ev SpeechResult) (eff Effect) {
	if ev.CallSID == "" {
		o.cfg.Logger.Error("malformed_event", "event", "speech_result")
		return Effect{Kind: EffectHangup, Text: errorHangupText}
	}
	started := time.Now()
	sess, _ := o.cfg.Registry.GetOrCreate(ev.CallSID, "")
	c := o.control(ev.CallSID)
	c.mu.Lock()
	defer c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			o.cfg.Logger.Error("turn_panic", "call_sid", ev.CallSID, "panic", r)
			sess.MarkEscalated(escalationReason)
			o.cfg.Registry.Sync(sess)
			eff = o.speak(c.ctx, Effect{
				Kind:       EffectEscalate,
				Text:       respond.ApologyReply,
				TransferTo: o.cfg.RestaurantPhone,
			}, ev.CallSID)
		}
	}()

	if c.sm.State() == StateInit {
		// speech before a recorded call start: treat as a fresh session
		_ = c.sm.Transition(StateGreeted)
		_ = c.sm.Transition(StateListening)
	}
	if c.sm.State() == StateTerminated {
		return Effect{Kind: EffectHangup}
	}

	text, confidence := ev.Text, ev.Confidence
	if strings.TrimSpace(text) == "" && ev.RecordingURL != "" && o.cfg.Transcriber != nil {
		text, confidence = o.transcribe(c.ctx, ev.CallSID, ev.RecordingURL)
	}

	if strings.TrimSpace(text) == "" || confidence < o.cfg.ConfidenceThreshold {
		_ = c.sm.Transition(StateClarifying)
		_ = c.sm.Transition(StateListening)
		o.cfg.Observer.RecordEvent(metrics.MetricsEvent{
			Name:  metrics.EventClarify,
			Time:  time.Now(),
			Value: confidence,
			Tags:  map[string]string{"call_sid": ev.CallSID},
		})
		return o.speak(c.ctx, Effect{Kind: EffectClarify, Text: clarifyText}, ev.CallSID)
	}

	analysis := intent.Classify(text)
	history := sess.Turns()
	sess.AppendTurn(session.RoleCaller, text)
	reply := o.cfg.Responder.Reply(c.ctx, text, analysis, history)
	sess.AppendTurn(session.RoleAssistant, reply)

	o.cfg.Observer.RecordEvent(metrics.MetricsEvent{
		Name: metrics.EventIntentDetected,
		Time: time.Now(),
		Tags: map[string]string{
			"call_sid": ev.CallSID,
			"intent":   string(analysis.Primary),
		},
	})

	if analysis.Escalate {
		_ = c.sm.Transition(StateEscalating)
		_ = c.sm.Transition(StateListening)
		sess.MarkEscalated(escalationReason)
		o.cfg.Registry.Sync(sess)
		o.cfg.Logger.Info("escalation_summary",
			"call_sid", sess.CallSID,
			"caller_phone", redact.Text(sess.CallerPhone),
			"final_intent", "Escalated to human",
			"conversation_length", sess.Len(),
			"escalation_reason", sess.EscalationReason(),
		)
		o.cfg.Observer.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventEscalation,
			Time: time.Now(),
			Tags: map[string]string{
				"call_sid": ev.CallSID,
				"intent":   string(analysis.Primary),
			},
			Fields: map[string]any{
				"final_intent":        "Escalated to human",
				"conversation_length": sess.Len(),
				"escalation_reason":   sess.EscalationReason(),
			},
		})
		return o.speak(c.ctx, Effect{
			Kind:       EffectEscalate,
			Text:       reply,
			TransferTo: o.cfg.RestaurantPhone,
		}, ev.CallSID)
	}

	_ = c.sm.Transition(StateResponding)
	_ = c.sm.Transition(StateListening)
	o.cfg.Registry.Sync(sess)
	o.cfg.Observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventTurnCompleted,
		Time:  time.Now(),
		Value: time.Since(started).Seconds(),
		Tags: map[string]string{
			"call_sid": ev.CallSID,
			"intent":   string(analysis.Primary),
		},
	})
	return o.speak(c.ctx, Effect{Kind: EffectSpeakAndListen, Text: reply}, ev.CallSID)
}

// HandleStatus records a telephony status update. A terminal status builds
// the final summary, preempts any pending turn, and destroys the session.
func (o *Orchestrator) HandleStatus(ev CallStatus) Effect {
	if ev.CallSID == "" {
		o.cfg.Logger.Error("malformed_event", "event", "call_status")
		return Effect{Kind: EffectNone}
	}
	sess, ok := o.cfg.Registry.Get(ev.CallSID)
	if ok {
		sess.SetStatus(ev.Status)
	}
	if !IsTerminalStatus(ev.Status) {
		if ok {
			o.cfg.Registry.Sync(sess)
		}
		return Effect{Kind: EffectNone}
	}

	o.mu.Lock()
	c := o.calls[ev.CallSID]
	delete(o.calls, ev.CallSID)
	o.mu.Unlock()
	if c != nil {
		c.cancel()
		_ = c.sm.Transition(StateTerminated)
	}

	// destroy is idempotent: unknown call sids are a no-op
	if ok {
		o.cfg.Logger.Info("call_summary",
			"call_sid", sess.CallSID,
			"caller_phone", redact.Text(sess.CallerPhone),
			"call_status", ev.Status,
			"conversation_length", sess.Len(),
			"escalated", sess.Escalated(),
			"summary", callSummary(sess),
		)
		o.cfg.Observer.RecordEvent(metrics.MetricsEvent{
			Name: metrics.EventCallEnded,
			Time: time.Now(),
			Tags: map[string]string{
				"call_sid": ev.CallSID,
				"status":   ev.Status,
			},
			Fields: map[string]any{
				"conversation_length": sess.Len(),
				"escalated":           sess.Escalated(),
				"summary":             callSummary(sess),
			},
		})
	}
	o.cfg.Registry.Remove(ev.CallSID)
	return Effect{Kind: EffectNone}
}

// State reports the lifecycle state for a call, for monitoring surfaces.
func (o *Orchestrator) State(callSID string) (State, bool) {
	o.mu.Lock()
	c := o.calls[callSID]
	o.mu.Unlock()
	if c == nil {
		return StateInit, false
	}
	return c.sm.State(), true
}

// Close preempts all in-flight calls, used on engine shutdown.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	for sid, c := range o.calls {
		c.cancel()
		delete(o.calls, sid)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) control(callSID string) *control {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.calls[callSID]; ok {
		return c
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &control{sm: newStateMachine(), ctx: ctx, cancel: cancel}
	o.calls[callSID] = c
	return c
}

func (o *Orchestrator) transcribe(ctx context.Context, callSID, recordingURL string) (string, float64) {
	tctx, cancel := context.WithTimeout(ctx, o.cfg.TranscribeTimeout)
	defer cancel()
	res, err := o.cfg.Transcriber.Transcribe(tctx, recordingURL)
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
		o.cfg.Logger.Warn("transcribe_failed",
			"call_sid", callSID,
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error(),
		)
		return "", 0
	}
	o.cfg.Observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventSTTTranscribe,
		Time:  time.Now(),
		Value: res.Confidence,
		Tags:  map[string]string{"call_sid": callSID},
	})
	return res.Text, res.Confidence
}

// speak attaches synthesized audio to a speaking effect when a synthesizer
// is configured. Synthesis failure keeps the effect text-only.
func (o *Orchestrator) speak(ctx context.Context, eff Effect, callSID string) Effect {
	if eff.Text == "" || o.cfg.Synthesizer == nil || o.cfg.Publisher == nil {
		return eff
	}
	sctx, cancel := context.WithTimeout(ctx, o.cfg.SynthesizeTimeout)
	defer cancel()
	audio, err := o.cfg.Synthesizer.Synthesize(sctx, eff.Text)
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonTTSSynthesize)
		o.cfg.Logger.Warn("synthesize_failed",
			"call_sid", callSID,
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error(),
		)
		return eff
	}
	url, err := o.cfg.Publisher.Publish(callSID, audio)
	if err != nil {
		o.cfg.Logger.Warn("audio_publish_failed", "call_sid", callSID, "error", err.Error())
		return eff
	}
	o.cfg.Observer.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventTTSSynthesize,
		Time:  time.Now(),
		Value: float64(len(audio.Data)),
		Tags:  map[string]string{"call_sid": callSID},
	})
	eff.AudioURL = url
	return eff
}

func callSummary(sess *session.CallSession) string {
	if sess.Escalated() {
		return "Escalated to human: " + sess.EscalationReason()
	}
	return "Handled automatically"
}
