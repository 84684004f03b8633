package models

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/devloophq/devloop/types"
)

// TaskStatus represents the possible statuses of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusBlocked    TaskStatus = "blocked"
)

// CoreStatuses returns every task status in lifecycle order.
func CoreStatuses() []TaskStatus {
	return []TaskStatus{StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusBlocked}
}

// taskIDPattern matches dotted hierarchical task ids like "auth.login.2".
var taskIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// IsValidTaskID reports whether id is a syntactically valid task id.
func IsValidTaskID(id string) bool {
	return taskIDPattern.MatchString(id)
}

// Task represents a unit of work in the development workflow.
// Status transitions go through Start/Complete/Fail only; none are
// reversible and there is no reopen operation. Persistence is the
// caller's responsibility via the index repository.
type Task struct {
	ID                 string     `json:"id" validate:"required,taskid"`
	Module             string     `json:"module" validate:"required"`
	Priority           int        `json:"priority" validate:"min=0"` // lower = more urgent
	Status             TaskStatus `json:"status" validate:"required,oneof=pending in_progress completed failed blocked"`
	Description        string     `json:"description,omitempty"`
	AcceptanceCriteria []string   `json:"acceptanceCriteria,omitempty"`
	EstimatedMinutes   int        `json:"estimatedMinutes,omitempty" validate:"min=0"`
	Dependencies       []string   `json:"dependencies,omitempty" validate:"dive,taskid"`
	TestRequirements   []string   `json:"testRequirements,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	FailedAt           *time.Time `json:"failedAt,omitempty"`

	// now allows tests to pin the clock. nil means time.Now.
	now func() time.Time
}

// NewTask creates a pending task with the given identity.
func NewTask(id, module string, priority int) *Task {
	return &Task{
		ID:           id,
		Module:       module,
		Priority:     priority,
		Status:       StatusPending,
		Dependencies: []string{},
	}
}

// WithClock overrides the task's notion of now. Test hook.
func (t *Task) WithClock(now func() time.Time) *Task {
	t.now = now
	return t
}

func (t *Task) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// CanStart reports whether Start would succeed.
func (t *Task) CanStart() bool {
	return t.Status == StatusPending
}

// Start moves the task from pending to in_progress and stamps StartedAt.
func (t *Task) Start() error {
	if t.Status != StatusPending {
		return types.NewInvalidTransition("task "+t.ID, string(t.Status), string(StatusInProgress), []string{string(StatusPending)})
	}
	now := t.clock()
	t.Status = StatusInProgress
	t.StartedAt = &now
	return nil
}

// Complete moves the task from in_progress to completed and stamps CompletedAt.
func (t *Task) Complete() error {
	if t.Status != StatusInProgress {
		return types.NewInvalidTransition("task "+t.ID, string(t.Status), string(StatusCompleted), []string{string(StatusInProgress)})
	}
	now := t.clock()
	t.Status = StatusCompleted
	t.CompletedAt = &now
	return nil
}

// Fail moves the task from in_progress to failed and stamps FailedAt.
func (t *Task) Fail() error {
	if t.Status != StatusInProgress {
		return types.NewInvalidTransition("task "+t.ID, string(t.Status), string(StatusFailed), []string{string(StatusInProgress)})
	}
	now := t.clock()
	t.Status = StatusFailed
	t.FailedAt = &now
	return nil
}

// IsBlocked reports whether any dependency is absent from completedIDs.
// A dependency id that no longer exists in the index counts as incomplete,
// so a dangling reference keeps the task blocked; the doctor check
// surfaces those rather than the engine unblocking them silently.
func (t *Task) IsBlocked(completedIDs map[string]bool) bool {
	for _, dep := range t.Dependencies {
		if !completedIDs[dep] {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the task reached completed or failed.
func (t *Task) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// terminalAt returns the completion or failure instant, whichever is set.
func (t *Task) terminalAt() *time.Time {
	if t.CompletedAt != nil {
		return t.CompletedAt
	}
	return t.FailedAt
}

// ActualDuration returns the elapsed minutes between StartedAt and the
// terminal timestamp, rounded half-up. ok is false until both exist.
func (t *Task) ActualDuration() (minutes int, ok bool) {
	end := t.terminalAt()
	if t.StartedAt == nil || end == nil {
		return 0, false
	}
	elapsed := end.Sub(*t.StartedAt)
	return int(math.Floor(elapsed.Minutes() + 0.5)), true
}

// global validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("taskid", func(fl validator.FieldLevel) bool {
		return IsValidTaskID(fl.Field().String())
	})
}

// ValidateStruct performs validation on any struct that has validation tags.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, fmt.Sprintf("validation failed on field '%s': rule '%s' (value: '%v')", e.StructNamespace(), e.Tag(), e.Value()))
		}
		return fmt.Errorf("%s", strings.Join(errorMessages, "; "))
	}
	return nil
}
