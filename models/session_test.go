package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/devloophq/devloop/types"
)

func TestPhase_TransitionTable(t *testing.T) {
	phases := []Phase{PhaseClarify, PhaseBreakdown, PhaseImplement, PhaseHeal, PhaseDeliver, PhaseComplete}
	allowed := map[Phase]map[Phase]bool{
		PhaseClarify:   {PhaseBreakdown: true},
		PhaseBreakdown: {PhaseImplement: true},
		PhaseImplement: {PhaseHeal: true, PhaseDeliver: true},
		PhaseHeal:      {PhaseImplement: true, PhaseDeliver: true},
		PhaseDeliver:   {PhaseComplete: true},
		PhaseComplete:  {},
	}

	for _, from := range phases {
		for _, to := range phases {
			want := from == to || allowed[from][to]
			s := NewSessionState()
			s.Phase = from
			err := s.TransitionTo(to)
			if want && err != nil {
				t.Errorf("%s -> %s: unexpected error %v", from, to, err)
			}
			if !want {
				if err == nil {
					t.Errorf("%s -> %s: expected InvalidTransition", from, to)
				} else {
					if !types.IsInvalidTransition(err) {
						t.Errorf("%s -> %s: error code = %q", from, to, types.CodeOf(err))
					}
					// The error must name the current phase and the
					// requested target alongside the allowed list.
					msg := err.Error()
					if !strings.Contains(msg, string(from)) || !strings.Contains(msg, string(to)) {
						t.Errorf("%s -> %s: error %q does not name both phases", from, to, msg)
					}
				}
				if s.Phase != from {
					t.Errorf("%s -> %s: phase mutated to %s on rejection", from, to, s.Phase)
				}
			}
		}
	}
}

func TestSessionState_SelfTransitionIdempotent(t *testing.T) {
	s := NewSessionState()
	if err := s.TransitionTo(PhaseBreakdown); err != nil {
		t.Fatal(err)
	}
	if err := s.TransitionTo(PhaseBreakdown); err != nil {
		t.Fatalf("self-transition rejected: %v", err)
	}
	if s.Phase != PhaseBreakdown {
		t.Errorf("phase = %s, want breakdown", s.Phase)
	}
}

func TestSessionState_TransitionBumpsUpdatedAt(t *testing.T) {
	t0 := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)
	current := t0
	s := NewSessionState().WithClock(func() time.Time { return current })
	s.UpdatedAt = t0

	current = t1
	if err := s.TransitionTo(PhaseBreakdown); err != nil {
		t.Fatal(err)
	}
	if !s.UpdatedAt.Equal(t1) {
		t.Errorf("UpdatedAt = %v, want %v", s.UpdatedAt, t1)
	}
}

func TestSessionState_Mutators(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	step := 0
	s := NewSessionState().WithClock(func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	})

	s.SetCurrentTask("auth.login")
	if s.CurrentTask != "auth.login" {
		t.Errorf("CurrentTask = %q", s.CurrentTask)
	}
	afterTask := s.UpdatedAt

	s.SetRequirements(json.RawMessage(`{"goal":"ship auth"}`))
	if len(s.Requirements) == 0 {
		t.Error("requirements not stored")
	}
	if !s.UpdatedAt.After(afterTask) {
		t.Error("SetRequirements did not bump UpdatedAt")
	}

	s.AddError(json.RawMessage(`{"task":"auth.login","msg":"tests failed"}`))
	s.AddError(json.RawMessage(`{"task":"auth.login","msg":"still failing"}`))
	if len(s.Errors) != 2 {
		t.Errorf("errors = %d, want 2", len(s.Errors))
	}

	s.ClearErrors()
	if len(s.Errors) != 0 {
		t.Errorf("errors = %d after clear, want 0", len(s.Errors))
	}
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		name string
		want Phase
		ok   bool
	}{
		{"clarify", PhaseClarify, true},
		{"heal", PhaseHeal, true},
		{"complete", PhaseComplete, true},
		{"review", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParsePhase(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePhase(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPhase_IsTerminal(t *testing.T) {
	if !PhaseComplete.IsTerminal() {
		t.Error("complete must be terminal")
	}
	for _, p := range []Phase{PhaseClarify, PhaseBreakdown, PhaseImplement, PhaseHeal, PhaseDeliver} {
		if p.IsTerminal() {
			t.Errorf("%s must not be terminal", p)
		}
	}
}

func TestSessionState_JSONRoundTrip(t *testing.T) {
	s := NewSessionState()
	s.SetCurrentTask("core.init")
	s.SetRequirements(json.RawMessage(`{"language":"go"}`))
	s.AddError(json.RawMessage(`{"msg":"boom"}`))
	if err := s.TransitionTo(PhaseBreakdown); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restored SessionState
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if restored.ID != s.ID || restored.Phase != s.Phase || restored.CurrentTask != s.CurrentTask {
		t.Errorf("restored = %+v", restored)
	}
	if string(restored.Requirements) != `{"language":"go"}` {
		t.Errorf("requirements = %s", restored.Requirements)
	}
	if len(restored.Errors) != 1 {
		t.Errorf("errors = %d, want 1", len(restored.Errors))
	}
	if !restored.UpdatedAt.Equal(s.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", restored.UpdatedAt, s.UpdatedAt)
	}
}
