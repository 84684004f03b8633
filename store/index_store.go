package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/devloophq/devloop/models"
	"github.com/devloophq/devloop/types"
)

const (
	// IndexVersion is written into freshly-initialized indexes.
	IndexVersion = "1.0.0"

	formatJSON = "json"
	formatYAML = "yaml"
)

// IndexEntry is the lightweight projection of a task kept in the index.
// Entries may reference dependency ids that are not present as keys;
// Dangling surfaces those without changing blocking semantics.
type IndexEntry struct {
	Status           models.TaskStatus `json:"status" yaml:"status"`
	Priority         int               `json:"priority" yaml:"priority"`
	Module           string            `json:"module" yaml:"module"`
	Description      string            `json:"description,omitempty" yaml:"description,omitempty"`
	FilePath         string            `json:"filePath,omitempty" yaml:"filePath,omitempty"`
	Dependencies     []string          `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	EstimatedMinutes int               `json:"estimatedMinutes,omitempty" yaml:"estimatedMinutes,omitempty"`
}

// IndexMetadata carries index-wide workspace settings.
type IndexMetadata struct {
	ProjectGoal    string `json:"projectGoal,omitempty" yaml:"projectGoal,omitempty"`
	LanguageConfig string `json:"languageConfig,omitempty" yaml:"languageConfig,omitempty"`
}

// MetadataPatch shallow-merges over IndexMetadata; nil fields are untouched.
type MetadataPatch struct {
	ProjectGoal    *string
	LanguageConfig *string
}

// Index is the persisted registry of task records, one per workspace.
type Index struct {
	Version   string                `json:"version" yaml:"version"`
	UpdatedAt time.Time             `json:"updatedAt" yaml:"updatedAt"`
	Metadata  IndexMetadata         `json:"metadata" yaml:"metadata"`
	Tasks     map[string]IndexEntry `json:"tasks" yaml:"tasks"`
}

// NewIndex returns a freshly-initialized empty index.
func NewIndex() *Index {
	return &Index{
		Version: IndexVersion,
		Tasks:   make(map[string]IndexEntry),
	}
}

// Dangling returns, per task id, the dependency ids that are not present
// as keys in the index. Tasks with such references stay blocked forever;
// the doctor command reports them for manual repair.
func (idx *Index) Dangling() map[string][]string {
	missing := make(map[string][]string)
	for id, entry := range idx.Tasks {
		for _, dep := range entry.Dependencies {
			if _, ok := idx.Tasks[dep]; !ok {
				missing[id] = append(missing[id], dep)
			}
		}
	}
	for id := range missing {
		sort.Strings(missing[id])
	}
	return missing
}

// CompletedIDs returns the set of task ids whose entry is completed.
func (idx *Index) CompletedIDs() map[string]bool {
	done := make(map[string]bool)
	for id, entry := range idx.Tasks {
		if entry.Status == models.StatusCompleted {
			done[id] = true
		}
	}
	return done
}

// EntryFromTask projects a full task onto its index mirror. Whichever
// component saves a Task writes this entry alongside it.
func EntryFromTask(t *models.Task, filePath string) IndexEntry {
	return IndexEntry{
		Status:           t.Status,
		Priority:         t.Priority,
		Module:           t.Module,
		Description:      t.Description,
		FilePath:         filePath,
		Dependencies:     append([]string(nil), t.Dependencies...),
		EstimatedMinutes: t.EstimatedMinutes,
	}
}

// IndexStore is the repository over the persisted index file.
type IndexStore struct {
	fsys   *FileSystem
	path   string
	format string
	now    func() time.Time
}

// NewIndexStore creates a repository for the index at path. format is
// "json" or "yaml"; empty means json.
func NewIndexStore(fsys *FileSystem, path, format string) (*IndexStore, error) {
	switch format {
	case "":
		format = formatJSON
	case formatJSON, formatYAML:
	default:
		return nil, errUnsupportedFormat(format)
	}
	return &IndexStore{fsys: fsys, path: path, format: format, now: time.Now}, nil
}

// WithClock overrides the store's notion of now. Test hook.
func (s *IndexStore) WithClock(now func() time.Time) *IndexStore {
	s.now = now
	return s
}

// Path returns the index file location.
func (s *IndexStore) Path() string { return s.path }

// Read returns the persisted index, or a freshly-initialized empty index
// when no file exists yet.
func (s *IndexStore) Read(ctx context.Context) (*Index, error) {
	exists, err := s.fsys.Exists(ctx, s.path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return NewIndex(), nil
	}
	data, err := s.fsys.ReadFile(ctx, s.path)
	if err != nil {
		return nil, err
	}
	idx := NewIndex()
	switch s.format {
	case formatYAML:
		err = yaml.Unmarshal(data, idx)
	default:
		err = json.Unmarshal(data, idx)
	}
	if err != nil {
		return nil, types.NewSerializationError(s.path, err)
	}
	if idx.Tasks == nil {
		idx.Tasks = make(map[string]IndexEntry)
	}
	return idx, nil
}

// Write bumps UpdatedAt, ensures the storage location exists and persists
// the whole index. Keys must be syntactically valid task ids.
func (s *IndexStore) Write(ctx context.Context, idx *Index) error {
	for id := range idx.Tasks {
		if !models.IsValidTaskID(id) {
			return fmt.Errorf("refusing to write index: invalid task id %q", id)
		}
	}
	idx.UpdatedAt = s.now()
	if err := s.fsys.EnsureDir(ctx, filepath.Dir(s.path)); err != nil {
		return err
	}
	var data []byte
	var err error
	switch s.format {
	case formatYAML:
		data, err = yaml.Marshal(idx)
	default:
		data, err = json.MarshalIndent(idx, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return s.fsys.WriteFile(ctx, s.path, data)
}

// UpsertEntry replaces or inserts a single entry, then writes the index.
func (s *IndexStore) UpsertEntry(ctx context.Context, id string, entry IndexEntry) error {
	if !models.IsValidTaskID(id) {
		return fmt.Errorf("invalid task id %q", id)
	}
	idx, err := s.Read(ctx)
	if err != nil {
		return err
	}
	idx.Tasks[id] = entry
	return s.Write(ctx, idx)
}

// UpdateStatus mutates only the status field of an existing entry.
func (s *IndexStore) UpdateStatus(ctx context.Context, id string, status models.TaskStatus) error {
	idx, err := s.Read(ctx)
	if err != nil {
		return err
	}
	entry, ok := idx.Tasks[id]
	if !ok {
		return types.NewNotFound(id)
	}
	entry.Status = status
	idx.Tasks[id] = entry
	return s.Write(ctx, idx)
}

// UpdateMetadata shallow-merges the patch over existing metadata.
func (s *IndexStore) UpdateMetadata(ctx context.Context, patch MetadataPatch) error {
	idx, err := s.Read(ctx)
	if err != nil {
		return err
	}
	if patch.ProjectGoal != nil {
		idx.Metadata.ProjectGoal = *patch.ProjectGoal
	}
	if patch.LanguageConfig != nil {
		idx.Metadata.LanguageConfig = *patch.LanguageConfig
	}
	return s.Write(ctx, idx)
}

// QueryByStatus returns the ids of entries with the given status, sorted.
func (s *IndexStore) QueryByStatus(ctx context.Context, status models.TaskStatus) ([]string, error) {
	idx, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for id, entry := range idx.Tasks {
		if entry.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// AllIDs returns every task id in the index, sorted.
func (s *IndexStore) AllIDs(ctx context.Context) ([]string, error) {
	idx, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(idx.Tasks))
	for id := range idx.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// HasEntry reports whether id is present in the index.
func (s *IndexStore) HasEntry(ctx context.Context, id string) (bool, error) {
	idx, err := s.Read(ctx)
	if err != nil {
		return false, err
	}
	_, ok := idx.Tasks[id]
	return ok, nil
}

// NextTask returns the id of the lowest-priority-value entry whose status
// is pending or in_progress, or ok=false when none qualifies. The scan is
// dependency-naive: it operates on the lightweight entries only, and the
// task service performs the accurate dependency-aware filter on the
// candidates it returns. Ties break on id for determinism.
func (s *IndexStore) NextTask(ctx context.Context) (id string, ok bool, err error) {
	idx, err := s.Read(ctx)
	if err != nil {
		return "", false, err
	}
	best, found := "", false
	bestPriority := 0
	for candidate, entry := range idx.Tasks {
		if entry.Status != models.StatusPending && entry.Status != models.StatusInProgress {
			continue
		}
		if !found || entry.Priority < bestPriority ||
			(entry.Priority == bestPriority && candidate < best) {
			best, bestPriority, found = candidate, entry.Priority, true
		}
	}
	return best, found, nil
}
