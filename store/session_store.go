package store

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/devloophq/devloop/models"
	"github.com/devloophq/devloop/types"
)

// SessionStore persists the session-state record. The record is always
// JSON: its requirements and error payloads are raw JSON blobs owned by
// collaborators.
type SessionStore struct {
	fsys *FileSystem
	path string
}

// NewSessionStore creates a store for the session record at path.
func NewSessionStore(fsys *FileSystem, path string) *SessionStore {
	return &SessionStore{fsys: fsys, path: path}
}

// Exists reports whether a session record has been persisted.
func (s *SessionStore) Exists(ctx context.Context) (bool, error) {
	return s.fsys.Exists(ctx, s.path)
}

// Load reads the persisted session state.
func (s *SessionStore) Load(ctx context.Context) (*models.SessionState, error) {
	data, err := s.fsys.ReadFile(ctx, s.path)
	if err != nil {
		return nil, err
	}
	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, types.NewSerializationError(s.path, err)
	}
	return &state, nil
}

// Save persists the session state.
func (s *SessionStore) Save(ctx context.Context, state *models.SessionState) error {
	if err := s.fsys.EnsureDir(ctx, filepath.Dir(s.path)); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return s.fsys.WriteFile(ctx, s.path, data)
}

// Archive copies the session record aside and removes the live file.
// Called by the surrounding workflow at session end.
func (s *SessionStore) Archive(ctx context.Context, dst string) error {
	if err := s.fsys.Copy(ctx, s.path, dst); err != nil {
		return err
	}
	return s.fsys.Remove(ctx, s.path)
}
