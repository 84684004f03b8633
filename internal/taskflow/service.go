// Package taskflow is the calling service over the task index: it loads
// full task documents, applies lifecycle transitions, keeps the index
// mirror in sync, and performs the dependency-aware next-task selection
// on top of the index's dependency-naive scan.
package taskflow

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/devloophq/devloop/internal/logging"
	"github.com/devloophq/devloop/models"
	"github.com/devloophq/devloop/store"
	"github.com/devloophq/devloop/types"
)

// Service coordinates task documents and their index entries.
type Service struct {
	index    *store.IndexStore
	fsys     *store.FileSystem
	tasksDir string
	log      logging.Logger
}

// NewService wires the task service.
func NewService(index *store.IndexStore, fsys *store.FileSystem, tasksDir string, log logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{index: index, fsys: fsys, tasksDir: tasksDir, log: log}
}

// taskPath resolves the document location for a task, preferring the
// entry's stored locator.
func (s *Service) taskPath(entry store.IndexEntry, id string) string {
	if entry.FilePath != "" {
		return entry.FilePath
	}
	return filepath.Join(s.tasksDir, id+".md")
}

// Load reads and parses the task document for id.
func (s *Service) Load(ctx context.Context, id string) (*models.Task, error) {
	idx, err := s.index.Read(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := idx.Tasks[id]
	if !ok {
		return nil, types.NewNotFound(id)
	}
	data, err := s.fsys.ReadFile(ctx, s.taskPath(entry, id))
	if err != nil {
		return nil, err
	}
	return store.UnmarshalTask(data)
}

// Save writes the task document and its index mirror entry. This is the
// single place that keeps the two representations in sync.
func (s *Service) Save(ctx context.Context, t *models.Task) error {
	if err := models.ValidateStruct(t); err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	path := filepath.Join(s.tasksDir, t.ID+".md")
	if err := s.fsys.EnsureDir(ctx, s.tasksDir); err != nil {
		return err
	}
	if err := s.fsys.WriteFile(ctx, path, store.MarshalTask(t)); err != nil {
		return err
	}
	return s.index.UpsertEntry(ctx, t.ID, store.EntryFromTask(t, path))
}

// Next performs the two-tier next-task selection: the index supplies the
// cheap priority-ordered candidates, then the full documents of pending
// candidates are filtered against the completed-id set. An in_progress
// task always wins so interrupted work is resumed first.
func (s *Service) Next(ctx context.Context) (*models.Task, bool, error) {
	idx, err := s.index.Read(ctx)
	if err != nil {
		return nil, false, err
	}

	type candidate struct {
		id       string
		priority int
		status   models.TaskStatus
	}
	var candidates []candidate
	for id, entry := range idx.Tasks {
		if entry.Status == models.StatusPending || entry.Status == models.StatusInProgress {
			candidates = append(candidates, candidate{id, entry.Priority, entry.Status})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].id < candidates[j].id
	})

	// Interrupted work resumes before anything new starts, regardless
	// of the priorities of the remaining pending tasks.
	for _, c := range candidates {
		if c.status != models.StatusInProgress {
			continue
		}
		t, err := s.Load(ctx, c.id)
		if err != nil {
			return nil, false, err
		}
		return t, true, nil
	}

	completed := idx.CompletedIDs()
	for _, c := range candidates {
		t, err := s.Load(ctx, c.id)
		if err != nil {
			return nil, false, err
		}
		if t.IsBlocked(completed) {
			s.log.Debug("taskflow: %s blocked, skipping", c.id)
			continue
		}
		return t, true, nil
	}
	return nil, false, nil
}

// Start transitions the task to in_progress and persists it.
func (s *Service) Start(ctx context.Context, id string) (*models.Task, error) {
	return s.transition(ctx, id, (*models.Task).Start)
}

// Complete transitions the task to completed and persists it.
func (s *Service) Complete(ctx context.Context, id string) (*models.Task, error) {
	t, err := s.transition(ctx, id, (*models.Task).Complete)
	if err != nil {
		return nil, err
	}
	if minutes, ok := t.ActualDuration(); ok {
		s.log.Info("taskflow: %s completed in %dm", id, minutes)
	}
	return t, nil
}

// Fail transitions the task to failed and persists it.
func (s *Service) Fail(ctx context.Context, id string) (*models.Task, error) {
	t, err := s.transition(ctx, id, (*models.Task).Fail)
	if err != nil {
		return nil, err
	}
	s.log.Warn("taskflow: %s failed", id)
	return t, nil
}

func (s *Service) transition(ctx context.Context, id string, op func(*models.Task) error) (*models.Task, error) {
	t, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := op(t); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
