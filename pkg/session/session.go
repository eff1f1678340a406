package session

import (
	"sync"
	"time"
)

const (
	RoleCaller    = "caller"
	RoleAssistant = "assistant"
)

// Turn is one utterance in the conversation history.
type Turn struct {
	Role string
	Text string
	Time time.Time
}

// CallSession is the in-memory conversation state for one active call.
// All methods are safe for concurrent use.
type CallSession struct {
	CallSID     string
	CallerPhone string
	Created     time.Time

	mu               sync.Mutex
	turns            []Turn
	status           string
	escalated        bool
	escalationReason string
}

func New(callSID, callerPhone string) *CallSession {
	return &CallSession{
		CallSID:     callSID,
		CallerPhone: callerPhone,
		Created:     time.Now(),
		status:      "in-progress",
	}
}

// AppendTurn records one utterance. History is append-only.
func (s *CallSession) AppendTurn(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Text: text, Time: time.Now()})
}

// Turns returns a copy of the conversation history.
func (s *CallSession) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of recorded turns.
func (s *CallSession) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// MarkEscalated flags the session as handed to a human. The flag is
// monotonic: once set it never clears, and the first reason wins.
func (s *CallSession) MarkEscalated(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.escalated {
		return
	}
	s.escalated = true
	s.escalationReason = reason
}

// Escalated reports whether the session was handed to a human.
func (s *CallSession) Escalated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.escalated
}

// EscalationReason returns the first escalation reason, if any.
func (s *CallSession) EscalationReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.escalationReason
}

// SetStatus updates the last known telephony status.
func (s *CallSession) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Status returns the last known telephony status.
func (s *CallSession) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot is a read-only view of a session for monitoring surfaces.
type Snapshot struct {
	CallSID          string `json:"call_sid"`
	CallerPhone      string `json:"caller_phone"`
	Status           string `json:"status"`
	Turns            int    `json:"turns"`
	Escalated        bool   `json:"escalated"`
	EscalationReason string `json:"escalation_reason,omitempty"`
	Created          string `json:"created"`
}

// Snapshot captures the session state at a point in time.
func (s *CallSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		CallSID:          s.CallSID,
		CallerPhone:      s.CallerPhone,
		Status:           s.status,
		Turns:            len(s.turns),
		Escalated:        s.escalated,
		EscalationReason: s.escalationReason,
		Created:          s.Created.Format(time.RFC3339),
	}
}
