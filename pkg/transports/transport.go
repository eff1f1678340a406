package transports

import (
	"context"

	"github.com/harunnryd/tavolo/pkg/call"
)

// EventHandler turns webhook events into response effects. The engine's
// orchestrator implements it; transports render the effects.
type EventHandler interface {
	HandleCallStart(call.CallStart) call.Effect
	HandleSpeech(call.SpeechResult) call.Effect
	HandleStatus(call.CallStatus) call.Effect
}

// Transport is a vendor-agnostic telephony boundary. Implementations are
// responsible for their own network lifecycle.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// OutboundDialer allows transports to initiate outbound calls.
type OutboundDialer interface {
	Dial(ctx context.Context, to, from, url string) (callSID string, err error)
}

// DialOptions carries optional outbound dial settings.
type DialOptions struct {
	SendDigits string
}

// OutboundDialerWithOptions extends dialing with optional parameters.
type OutboundDialerWithOptions interface {
	DialWithOptions(ctx context.Context, to, from, url string, opts DialOptions) (callSID string, err error)
}

// CallInfo is a provider-neutral view of one call's details.
type CallInfo struct {
	SID      string
	Status   string
	From     string
	To       string
	Duration string
}

// CallController exposes call control against the telephony provider.
type CallController interface {
	FetchCall(ctx context.Context, callSID string) (CallInfo, error)
	EndCall(ctx context.Context, callSID string) error
}

// ReadyReporter allows transports to expose readiness metadata (e.g., webhook URLs).
// Implementations are optional and used for informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
