package file

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aretw0/branchpoll/pkg/domain"
)

// SessionStore implements ports.SessionStore using the local filesystem.
// Sessions are JSON files under <BasePath>/<poll id>/<respondent>.json.
type SessionStore struct {
	BasePath string
}

// NewSessionStore creates a session store rooted at basePath.
// If basePath is empty, it defaults to ".branchpoll/sessions".
func NewSessionStore(basePath string) *SessionStore {
	if basePath == "" {
		basePath = filepath.Join(".branchpoll", "sessions")
	}
	return &SessionStore{BasePath: basePath}
}

func (s *SessionStore) pollDir(pollID int64) string {
	return filepath.Join(s.BasePath, strconv.FormatInt(pollID, 10))
}

func (s *SessionStore) path(key domain.SessionKey) (string, error) {
	if key.RespondentID == "" {
		return "", fmt.Errorf("respondent id cannot be empty")
	}
	// Respondent ids come from the host; escape them into a single path element.
	return filepath.Join(s.pollDir(key.PollID), url.PathEscape(key.RespondentID)+".json"), nil
}

// Save persists the session state to a JSON file atomically.
func (s *SessionStore) Save(ctx context.Context, state *domain.SessionState) error {
	path, err := s.path(state.SessionKey)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return writeAtomic(path, data)
}

// Load retrieves the session state from its JSON file.
func (s *SessionStore) Load(ctx context.Context, key domain.SessionKey) (*domain.SessionState, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &state, nil
}

// Delete removes the session file.
func (s *SessionStore) Delete(ctx context.Context, key domain.SessionKey) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// DeletePoll removes the poll's session directory.
func (s *SessionStore) DeletePoll(ctx context.Context, pollID int64) error {
	if err := os.RemoveAll(s.pollDir(pollID)); err != nil {
		return fmt.Errorf("failed to delete poll sessions: %w", err)
	}
	return nil
}
