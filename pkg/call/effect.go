package call

// EffectKind selects how the transport should answer a webhook event.
type EffectKind int

const (
	// EffectNone means the event needs no caller-facing response.
	EffectNone EffectKind = iota
	// EffectGreeting speaks the greeting and starts listening.
	EffectGreeting
	// EffectSpeakAndListen speaks Text and listens for the next utterance.
	EffectSpeakAndListen
	// EffectClarify asks the caller to repeat and listens again.
	EffectClarify
	// EffectEscalate speaks Text and transfers the call to TransferTo.
	EffectEscalate
	// EffectHangup speaks Text and ends the call.
	EffectHangup
)

func (k EffectKind) String() string {
	switch k {
	case EffectNone:
		return "none"
	case EffectGreeting:
		return "greeting"
	case EffectSpeakAndListen:
		return "speak_and_listen"
	case EffectClarify:
		return "clarify"
	case EffectEscalate:
		return "escalate"
	case EffectHangup:
		return "hangup"
	default:
		return "unknown"
	}
}

// Effect is the orchestrator's answer to one webhook event. The transport
// owns the rendering; the orchestrator only selects the kind and the text.
type Effect struct {
	Kind       EffectKind
	Text       string
	TransferTo string
	// AudioURL points at synthesized speech for Text when synthesis
	// succeeded; empty means the transport should speak Text itself.
	AudioURL string
}
