package store

import (
	"strings"
	"testing"
	"time"

	"github.com/devloophq/devloop/models"
)

func TestTaskDocument_RoundTrip(t *testing.T) {
	started := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	done := started.Add(42 * time.Minute)
	original := &models.Task{
		ID:                 "auth.login",
		Module:             "auth",
		Priority:           2,
		Status:             models.StatusCompleted,
		Description:        "Implement the login flow",
		AcceptanceCriteria: []string{"form renders", "session cookie is set"},
		EstimatedMinutes:   45,
		Dependencies:       []string{"auth.db", "auth.session"},
		TestRequirements:   []string{"go test ./auth/..."},
		Notes:              "reuses the existing session middleware",
		StartedAt:          &started,
		CompletedAt:        &done,
	}

	restored, err := UnmarshalTask(MarshalTask(original))
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}

	if restored.ID != original.ID || restored.Module != original.Module ||
		restored.Priority != original.Priority || restored.Status != original.Status {
		t.Errorf("header fields = %+v", restored)
	}
	if restored.Description != original.Description {
		t.Errorf("description = %q", restored.Description)
	}
	if restored.EstimatedMinutes != 45 {
		t.Errorf("estimate = %d", restored.EstimatedMinutes)
	}
	if len(restored.Dependencies) != 2 || restored.Dependencies[1] != "auth.session" {
		t.Errorf("dependencies = %v", restored.Dependencies)
	}
	if len(restored.AcceptanceCriteria) != 2 || restored.AcceptanceCriteria[0] != "form renders" {
		t.Errorf("criteria = %v", restored.AcceptanceCriteria)
	}
	if len(restored.TestRequirements) != 1 {
		t.Errorf("tests = %v", restored.TestRequirements)
	}
	if restored.Notes != original.Notes {
		t.Errorf("notes = %q", restored.Notes)
	}
	if restored.StartedAt == nil || !restored.StartedAt.Equal(started) {
		t.Errorf("started = %v", restored.StartedAt)
	}
	if restored.CompletedAt == nil || !restored.CompletedAt.Equal(done) {
		t.Errorf("completed = %v", restored.CompletedAt)
	}
	if restored.FailedAt != nil {
		t.Errorf("failed = %v, want nil", restored.FailedAt)
	}
}

func TestTaskDocument_MinimalTask(t *testing.T) {
	original := models.NewTask("core.init", "core", 1)
	original.Description = "Bootstrap the workspace"

	restored, err := UnmarshalTask(MarshalTask(original))
	if err != nil {
		t.Fatal(err)
	}
	if restored.ID != "core.init" || restored.Status != models.StatusPending {
		t.Errorf("restored = %+v", restored)
	}
	if len(restored.Dependencies) != 0 || len(restored.AcceptanceCriteria) != 0 {
		t.Errorf("optional sections leaked: %+v", restored)
	}
}

func TestUnmarshalTask_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing id", "module: core\npriority: 1\nstatus: pending\n\n# x\n"},
		{"malformed header", "id core.init\n\n# x\n"},
		{"bad priority", "id: core.init\npriority: high\n\n# x\n"},
		{"bad timestamp", "id: core.init\nstarted: yesterday\n\n# x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalTask([]byte(tt.doc)); err == nil {
				t.Error("expected a parse error")
			}
		})
	}
}

func TestMarshalTask_Layout(t *testing.T) {
	task := models.NewTask("core.init", "core", 1)
	task.Description = "Bootstrap the workspace"
	task.AcceptanceCriteria = []string{"go.mod exists"}

	doc := string(MarshalTask(task))
	if !strings.HasPrefix(doc, "id: core.init\n") {
		t.Errorf("doc starts with %q", doc[:20])
	}
	if !strings.Contains(doc, "\n# Bootstrap the workspace\n") {
		t.Error("title line missing")
	}
	if !strings.Contains(doc, "## Acceptance Criteria\n1. go.mod exists\n") {
		t.Error("criteria section malformed")
	}
	if strings.Contains(doc, "## Notes") {
		t.Error("empty notes section emitted")
	}
}

func TestStripNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1. first item", "first item"},
		{"12. later item", "later item"},
		{"no marker here", "no marker here"},
		{"v1. not a list", "v1. not a list"},
	}
	for _, tt := range tests {
		if got := stripNumber(tt.in); got != tt.want {
			t.Errorf("stripNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
