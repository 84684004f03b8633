package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/devloophq/devloop/types"
)

// Phase represents one stage of the overall workflow session.
type Phase string

const (
	PhaseClarify   Phase = "clarify"
	PhaseBreakdown Phase = "breakdown"
	PhaseImplement Phase = "implement"
	PhaseHeal      Phase = "heal"
	PhaseDeliver   Phase = "deliver"
	PhaseComplete  Phase = "complete"
)

// allowedPhaseTransitions defines the permitted phase changes.
// The self-loop is always additionally permitted and idempotent.
var allowedPhaseTransitions = map[Phase][]Phase{
	PhaseClarify:   {PhaseBreakdown},
	PhaseBreakdown: {PhaseImplement},
	PhaseImplement: {PhaseHeal, PhaseDeliver},
	PhaseHeal:      {PhaseImplement, PhaseDeliver},
	PhaseDeliver:   {PhaseComplete},
	PhaseComplete:  {},
}

// AllowedTargets returns the phases reachable from p, excluding the self-loop.
func (p Phase) AllowedTargets() []Phase {
	return allowedPhaseTransitions[p]
}

// IsTerminal reports whether the phase has no outgoing transitions.
func (p Phase) IsTerminal() bool {
	return len(allowedPhaseTransitions[p]) == 0
}

// ParsePhase resolves a phase from its string name.
func ParsePhase(name string) (Phase, bool) {
	p := Phase(name)
	if _, ok := allowedPhaseTransitions[p]; ok {
		return p, true
	}
	return "", false
}

// SessionState tracks the overall workflow's position: the current phase,
// the task being worked, the requirements payload handed over by the
// clarify stage, and any error records accumulated along the way.
// Requirements and Errors are collaborator-owned blobs; the engine never
// inspects their contents.
type SessionState struct {
	ID           string            `json:"id"`
	Phase        Phase             `json:"phase"`
	CurrentTask  string            `json:"currentTask,omitempty"`
	Requirements json.RawMessage   `json:"requirements,omitempty"`
	Errors       []json.RawMessage `json:"errors,omitempty"`
	StartedAt    time.Time         `json:"startedAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`

	now func() time.Time
}

// NewSessionState creates a session in the clarify phase.
func NewSessionState() *SessionState {
	now := time.Now()
	return &SessionState{
		ID:        uuid.New().String(),
		Phase:     PhaseClarify,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// WithClock overrides the session's notion of now. Test hook.
func (s *SessionState) WithClock(now func() time.Time) *SessionState {
	s.now = now
	return s
}

func (s *SessionState) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *SessionState) touch() {
	s.UpdatedAt = s.clock()
}

// CanTransitionTo reports whether the phase table permits moving to target.
func (s *SessionState) CanTransitionTo(target Phase) bool {
	if target == s.Phase {
		return true
	}
	for _, allowed := range allowedPhaseTransitions[s.Phase] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo applies the phase table and bumps UpdatedAt.
// The self-transition is permitted and leaves the phase unchanged.
func (s *SessionState) TransitionTo(target Phase) error {
	if !s.CanTransitionTo(target) {
		allowed := make([]string, 0, len(allowedPhaseTransitions[s.Phase]))
		for _, p := range allowedPhaseTransitions[s.Phase] {
			allowed = append(allowed, string(p))
		}
		return types.NewInvalidTransition("session phase", string(s.Phase), string(target), allowed)
	}
	s.Phase = target
	s.touch()
	return nil
}

// SetCurrentTask records the task id being worked and bumps UpdatedAt.
func (s *SessionState) SetCurrentTask(id string) {
	s.CurrentTask = id
	s.touch()
}

// SetRequirements replaces the requirements payload and bumps UpdatedAt.
func (s *SessionState) SetRequirements(payload json.RawMessage) {
	s.Requirements = payload
	s.touch()
}

// AddError appends an opaque error record and bumps UpdatedAt.
func (s *SessionState) AddError(record json.RawMessage) {
	s.Errors = append(s.Errors, record)
	s.touch()
}

// ClearErrors drops all error records and bumps UpdatedAt.
func (s *SessionState) ClearErrors() {
	s.Errors = nil
	s.touch()
}
