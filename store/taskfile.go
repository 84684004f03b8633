package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/devloophq/devloop/models"
)

// Task documents are plain text: a header block of key:value pairs, a
// blank line, a title line carrying the description, then a numbered
// "Acceptance Criteria" section and optional "Test Requirements" and
// "Notes" sections. The engine exchanges parsed Task objects with the
// agent that edits these files; this codec is the boundary.

const (
	sectionCriteria = "## Acceptance Criteria"
	sectionTests    = "## Test Requirements"
	sectionNotes    = "## Notes"
)

// MarshalTask renders a task document.
func MarshalTask(t *models.Task) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\n", t.ID)
	fmt.Fprintf(&b, "module: %s\n", t.Module)
	fmt.Fprintf(&b, "priority: %d\n", t.Priority)
	fmt.Fprintf(&b, "status: %s\n", t.Status)
	if t.EstimatedMinutes > 0 {
		fmt.Fprintf(&b, "estimate: %d\n", t.EstimatedMinutes)
	}
	if len(t.Dependencies) > 0 {
		fmt.Fprintf(&b, "depends: %s\n", strings.Join(t.Dependencies, ", "))
	}
	writeStamp(&b, "started", t.StartedAt)
	writeStamp(&b, "completed", t.CompletedAt)
	writeStamp(&b, "failed", t.FailedAt)

	fmt.Fprintf(&b, "\n# %s\n", t.Description)

	if len(t.AcceptanceCriteria) > 0 {
		fmt.Fprintf(&b, "\n%s\n", sectionCriteria)
		for i, c := range t.AcceptanceCriteria {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c)
		}
	}
	if len(t.TestRequirements) > 0 {
		fmt.Fprintf(&b, "\n%s\n", sectionTests)
		for i, c := range t.TestRequirements {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c)
		}
	}
	if t.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n%s\n", sectionNotes, t.Notes)
	}
	return []byte(b.String())
}

func writeStamp(b *strings.Builder, key string, ts *time.Time) {
	if ts != nil {
		fmt.Fprintf(b, "%s: %s\n", key, ts.UTC().Format(time.RFC3339Nano))
	}
}

// UnmarshalTask parses a task document back into a Task.
func UnmarshalTask(data []byte) (*models.Task, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	t := &models.Task{}

	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("task document: malformed header line %d: %q", i+1, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "id":
			t.ID = value
		case "module":
			t.Module = value
		case "priority":
			p, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("task document: bad priority %q: %w", value, err)
			}
			t.Priority = p
		case "status":
			t.Status = models.TaskStatus(value)
		case "estimate":
			m, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("task document: bad estimate %q: %w", value, err)
			}
			t.EstimatedMinutes = m
		case "depends":
			for _, dep := range strings.Split(value, ",") {
				if dep = strings.TrimSpace(dep); dep != "" {
					t.Dependencies = append(t.Dependencies, dep)
				}
			}
		case "started":
			ts, err := parseStamp(value)
			if err != nil {
				return nil, err
			}
			t.StartedAt = ts
		case "completed":
			ts, err := parseStamp(value)
			if err != nil {
				return nil, err
			}
			t.CompletedAt = ts
		case "failed":
			ts, err := parseStamp(value)
			if err != nil {
				return nil, err
			}
			t.FailedAt = ts
		default:
			// Unknown header keys are preserved nowhere; skip them so
			// newer writers stay readable by older engines.
		}
	}
	if t.ID == "" {
		return nil, fmt.Errorf("task document: missing id header")
	}

	section := ""
	var notes []string
	for ; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "# ") && !strings.HasPrefix(trimmed, "##"):
			t.Description = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			section = ""
		case trimmed == sectionCriteria:
			section = sectionCriteria
		case trimmed == sectionTests:
			section = sectionTests
		case trimmed == sectionNotes:
			section = sectionNotes
		case trimmed == "":
			if section == sectionNotes && len(notes) > 0 {
				notes = append(notes, "")
			}
		default:
			switch section {
			case sectionCriteria:
				t.AcceptanceCriteria = append(t.AcceptanceCriteria, stripNumber(trimmed))
			case sectionTests:
				t.TestRequirements = append(t.TestRequirements, stripNumber(trimmed))
			case sectionNotes:
				notes = append(notes, line)
			}
		}
	}
	if len(notes) > 0 {
		t.Notes = strings.TrimRight(strings.Join(notes, "\n"), "\n")
	}
	return t, nil
}

func parseStamp(value string) (*time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("task document: bad timestamp %q: %w", value, err)
	}
	return &ts, nil
}

// stripNumber removes a leading "N. " list marker.
func stripNumber(line string) string {
	if dot := strings.Index(line, ". "); dot > 0 {
		if _, err := strconv.Atoi(line[:dot]); err == nil {
			return strings.TrimSpace(line[dot+2:])
		}
	}
	return line
}
