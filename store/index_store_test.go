package store

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/devloophq/devloop/models"
	"github.com/devloophq/devloop/types"
)

const testIndexPath = "/workspace/.devloop/index.json"

func newTestIndexStore(t *testing.T, format string) (*IndexStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := NewIndexStore(NewFileSystem(fs, nil), testIndexPath, format)
	if err != nil {
		t.Fatal(err)
	}
	return s, fs
}

func pendingEntry(priority int, deps ...string) IndexEntry {
	return IndexEntry{Status: models.StatusPending, Priority: priority, Module: "core", Dependencies: deps}
}

func TestIndexStore_ReadAbsentReturnsFreshIndex(t *testing.T) {
	s, _ := newTestIndexStore(t, "")
	idx, err := s.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if idx.Version != IndexVersion {
		t.Errorf("version = %q, want %q", idx.Version, IndexVersion)
	}
	if len(idx.Tasks) != 0 {
		t.Errorf("tasks = %d, want 0", len(idx.Tasks))
	}
	if idx.Tasks == nil {
		t.Error("Tasks map must be initialized")
	}
}

func TestIndexStore_WriteBumpsUpdatedAt(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	s, _ := newTestIndexStore(t, "")
	s.WithClock(func() time.Time { return now })

	idx := NewIndex()
	idx.Tasks["core.init"] = pendingEntry(1)
	if err := s.Write(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
	if !idx.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", idx.UpdatedAt, now)
	}

	restored, err := s.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !restored.UpdatedAt.Equal(now) {
		t.Errorf("persisted UpdatedAt = %v, want %v", restored.UpdatedAt, now)
	}
	if _, ok := restored.Tasks["core.init"]; !ok {
		t.Error("entry lost on round trip")
	}
}

func TestIndexStore_WriteRejectsInvalidIDs(t *testing.T) {
	s, _ := newTestIndexStore(t, "")
	idx := NewIndex()
	idx.Tasks["bad id"] = pendingEntry(1)
	if err := s.Write(context.Background(), idx); err == nil {
		t.Error("expected rejection of an invalid task id")
	}
}

func TestIndexStore_ReadMalformedIsSerializationError(t *testing.T) {
	s, fs := newTestIndexStore(t, "")
	if err := afero.WriteFile(fs, testIndexPath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Read(context.Background())
	if types.CodeOf(err) != types.CodeSerialization {
		t.Errorf("error = %v, want SERIALIZATION code", err)
	}
}

func TestIndexStore_YAMLRoundTrip(t *testing.T) {
	s, _ := newTestIndexStore(t, "yaml")
	idx := NewIndex()
	idx.Metadata.ProjectGoal = "ship the auth module"
	idx.Tasks["auth.login"] = IndexEntry{
		Status:       models.StatusPending,
		Priority:     2,
		Module:       "auth",
		Description:  "login flow",
		Dependencies: []string{"auth.db"},
	}
	if err := s.Write(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
	restored, err := s.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := restored.Tasks["auth.login"]
	if !ok {
		t.Fatal("entry missing after yaml round trip")
	}
	if entry.Priority != 2 || entry.Module != "auth" || len(entry.Dependencies) != 1 {
		t.Errorf("entry = %+v", entry)
	}
	if restored.Metadata.ProjectGoal != "ship the auth module" {
		t.Errorf("metadata = %+v", restored.Metadata)
	}
}

func TestNewIndexStore_RejectsUnknownFormat(t *testing.T) {
	_, err := NewIndexStore(NewFileSystem(afero.NewMemMapFs(), nil), testIndexPath, "toml")
	if err == nil {
		t.Error("expected unsupported-format error")
	}
}

func TestIndexStore_UpsertEntry(t *testing.T) {
	s, _ := newTestIndexStore(t, "")
	ctx := context.Background()

	if err := s.UpsertEntry(ctx, "core.init", pendingEntry(1)); err != nil {
		t.Fatal(err)
	}
	updated := pendingEntry(1)
	updated.Status = models.StatusCompleted
	if err := s.UpsertEntry(ctx, "core.init", updated); err != nil {
		t.Fatal(err)
	}

	idx, err := s.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(idx.Tasks) != 1 {
		t.Errorf("tasks = %d, want 1", len(idx.Tasks))
	}
	if idx.Tasks["core.init"].Status != models.StatusCompleted {
		t.Errorf("status = %s, want completed", idx.Tasks["core.init"].Status)
	}
}

func TestIndexStore_UpdateStatus(t *testing.T) {
	s, _ := newTestIndexStore(t, "")
	ctx := context.Background()

	if err := s.UpsertEntry(ctx, "core.init", pendingEntry(1)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateStatus(ctx, "core.init", models.StatusInProgress); err != nil {
		t.Fatal(err)
	}
	idx, _ := s.Read(ctx)
	if idx.Tasks["core.init"].Status != models.StatusInProgress {
		t.Errorf("status = %s", idx.Tasks["core.init"].Status)
	}

	err := s.UpdateStatus(ctx, "missing.task", models.StatusCompleted)
	if !types.IsNotFound(err) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestIndexStore_UpdateMetadataShallowMerge(t *testing.T) {
	s, _ := newTestIndexStore(t, "")
	ctx := context.Background()

	goal := "build the thing"
	if err := s.UpdateMetadata(ctx, MetadataPatch{ProjectGoal: &goal}); err != nil {
		t.Fatal(err)
	}
	lang := "go1.24"
	if err := s.UpdateMetadata(ctx, MetadataPatch{LanguageConfig: &lang}); err != nil {
		t.Fatal(err)
	}

	idx, err := s.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Metadata.ProjectGoal != goal {
		t.Errorf("ProjectGoal = %q, want it untouched by the second patch", idx.Metadata.ProjectGoal)
	}
	if idx.Metadata.LanguageConfig != lang {
		t.Errorf("LanguageConfig = %q", idx.Metadata.LanguageConfig)
	}
}

func TestIndexStore_Queries(t *testing.T) {
	s, _ := newTestIndexStore(t, "")
	ctx := context.Background()

	entries := map[string]IndexEntry{
		"b.two":   {Status: models.StatusCompleted, Priority: 2, Module: "b"},
		"a.one":   pendingEntry(1),
		"c.three": pendingEntry(3),
	}
	for id, entry := range entries {
		if err := s.UpsertEntry(ctx, id, entry); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := s.QueryByStatus(ctx, models.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0] != "a.one" || pending[1] != "c.three" {
		t.Errorf("pending = %v", pending)
	}

	all, err := s.AllIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.one", "b.two", "c.three"}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("AllIDs = %v, want %v", all, want)
		}
	}

	if ok, _ := s.HasEntry(ctx, "a.one"); !ok {
		t.Error("HasEntry(a.one) = false")
	}
	if ok, _ := s.HasEntry(ctx, "zzz"); ok {
		t.Error("HasEntry(zzz) = true")
	}
}

func TestIndexStore_NextTask(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]IndexEntry
		wantID  string
		wantOK  bool
	}{
		{
			name: "lowest priority wins",
			entries: map[string]IndexEntry{
				"task.a": pendingEntry(3),
				"task.b": pendingEntry(1),
				"task.c": pendingEntry(2),
			},
			wantID: "task.b",
			wantOK: true,
		},
		{
			name: "failed entries skipped",
			entries: map[string]IndexEntry{
				"task.a": {Status: models.StatusFailed, Priority: 1, Module: "core"},
				"task.b": pendingEntry(2),
			},
			wantID: "task.b",
			wantOK: true,
		},
		{
			name: "in_progress qualifies",
			entries: map[string]IndexEntry{
				"task.a": {Status: models.StatusInProgress, Priority: 1, Module: "core"},
				"task.b": pendingEntry(2),
			},
			wantID: "task.a",
			wantOK: true,
		},
		{
			name: "tie breaks on id",
			entries: map[string]IndexEntry{
				"task.b": pendingEntry(1),
				"task.a": pendingEntry(1),
			},
			wantID: "task.a",
			wantOK: true,
		},
		{
			name: "no candidates",
			entries: map[string]IndexEntry{
				"task.a": {Status: models.StatusCompleted, Priority: 1, Module: "core"},
				"task.b": {Status: models.StatusBlocked, Priority: 2, Module: "core"},
			},
			wantOK: false,
		},
		{
			name:    "empty index",
			entries: map[string]IndexEntry{},
			wantOK:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestIndexStore(t, "")
			ctx := context.Background()
			for id, entry := range tt.entries {
				if err := s.UpsertEntry(ctx, id, entry); err != nil {
					t.Fatal(err)
				}
			}
			id, ok, err := s.NextTask(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("NextTask() = %q, %v; want %q, %v", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestIndex_Dangling(t *testing.T) {
	idx := NewIndex()
	idx.Tasks["a"] = pendingEntry(1)
	idx.Tasks["b"] = pendingEntry(2, "a", "gone.1", "gone.2")
	idx.Tasks["c"] = pendingEntry(3, "a")

	dangling := idx.Dangling()
	if len(dangling) != 1 {
		t.Fatalf("dangling = %v", dangling)
	}
	missing := dangling["b"]
	if len(missing) != 2 || missing[0] != "gone.1" || missing[1] != "gone.2" {
		t.Errorf("missing for b = %v", missing)
	}
}

func TestIndex_CompletedIDs(t *testing.T) {
	idx := NewIndex()
	idx.Tasks["a"] = IndexEntry{Status: models.StatusCompleted, Module: "core"}
	idx.Tasks["b"] = pendingEntry(1)

	done := idx.CompletedIDs()
	if !done["a"] || done["b"] || len(done) != 1 {
		t.Errorf("completed = %v", done)
	}
}
