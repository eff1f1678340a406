package call

// CallStart is delivered when a new inbound call reaches the webhook.
type CallStart struct {
	CallSID string
	From    string
	To      string
}

// SpeechResult carries one recognized caller utterance. RecordingURL is set
// when the transport received a recording instead of recognized text.
type SpeechResult struct {
	CallSID      string
	Text         string
	Confidence   float64
	RecordingURL string
}

// CallStatus is a telephony status callback.
type CallStatus struct {
	CallSID string
	Status  string
}

// terminalStatuses are the call states after which no more events arrive.
var terminalStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"failed":    true,
	"no-answer": true,
}

// IsTerminalStatus reports whether a telephony status ends the call.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}
