package session

import (
	"sync"
	"testing"
)

func TestAppendTurnAndLen(t *testing.T) {
	s := New("CA1", "+15550001111")
	s.AppendTurn(RoleCaller, "hello")
	s.AppendTurn(RoleAssistant, "hi there")
	if s.Len() != 2 {
		t.Fatalf("expected 2 turns, got %d", s.Len())
	}
	turns := s.Turns()
	if turns[0].Role != RoleCaller || turns[0].Text != "hello" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant {
		t.Fatalf("unexpected second turn: %+v", turns[1])
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	s := New("CA1", "")
	s.AppendTurn(RoleCaller, "hello")
	turns := s.Turns()
	turns[0].Text = "mutated"
	if s.Turns()[0].Text != "hello" {
		t.Fatalf("history should not be mutable through Turns")
	}
}

func TestMarkEscalatedIsMonotonic(t *testing.T) {
	s := New("CA1", "")
	if s.Escalated() {
		t.Fatalf("new session should not be escalated")
	}
	s.MarkEscalated("Order/Reservation/Complaint detected")
	s.MarkEscalated("second reason")
	if !s.Escalated() {
		t.Fatalf("session should be escalated")
	}
	if got := s.EscalationReason(); got != "Order/Reservation/Complaint detected" {
		t.Fatalf("first reason should win, got %q", got)
	}
}

func TestSnapshotReflectsState(t *testing.T) {
	s := New("CA9", "+15550002222")
	s.AppendTurn(RoleCaller, "hi")
	s.SetStatus("completed")
	s.MarkEscalated("caller asked for staff")
	snap := s.Snapshot()
	if snap.CallSID != "CA9" || snap.CallerPhone != "+15550002222" {
		t.Fatalf("unexpected identity: %+v", snap)
	}
	if snap.Turns != 1 || snap.Status != "completed" || !snap.Escalated {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestConcurrentAppend(t *testing.T) {
	s := New("CA1", "")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendTurn(RoleCaller, "x")
		}()
	}
	wg.Wait()
	if s.Len() != 20 {
		t.Fatalf("expected 20 turns, got %d", s.Len())
	}
}
