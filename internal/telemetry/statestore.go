// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/weavesync/weavesync/models"
)

// StateStore persists the submission state as a JSON file so intervals and
// the obsolete queue survive restarts.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore points the store at its file. An empty path makes the store
// ephemeral (tests).
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Load reads the persisted state, returning a zero state when the file does
// not exist yet.
func (s *StateStore) Load() (*models.SubmissionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := &models.SubmissionState{}
	if s.path == "" {
		return state, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read telemetry state %s: %w", s.path, err)
	}
	if err = json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode telemetry state %s: %w", s.path, err)
	}
	return state, nil
}

// Save writes the state back to its file.
func (s *StateStore) Save(state *models.SubmissionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode telemetry state: %w", err)
	}
	if err = os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write telemetry state %s: %w", s.path, err)
	}
	return nil
}
