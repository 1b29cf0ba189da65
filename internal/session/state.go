// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/weavesync/weavesync/models"
)

// State is the sync metadata persisted between runs: the resolved storage
// node, the server's global and per-engine sync ids, per-collection last-sync
// watermarks and the cached key ring. It maps one-to-one onto a JSON file.
type State struct {
	mu   sync.Mutex
	path string

	ClusterURL    string              `json:"cluster_url,omitempty"`
	NodeUsername  string              `json:"node_username,omitempty"`
	NodePassword  string              `json:"node_password,omitempty"`
	NodeExpiry    int64               `json:"node_expiry,omitempty"` // ms
	GlobalSyncID  string              `json:"global_sync_id,omitempty"`
	EngineSyncIDs map[string]string   `json:"engine_sync_ids,omitempty"`
	LastSync      map[string]int64    `json:"last_sync,omitempty"` // collection -> ms
	KeysTimestamp int64               `json:"keys_timestamp,omitempty"`
	Keys          *models.KeysPayload `json:"keys,omitempty"`
}

// LoadState reads the state file at path, returning a fresh empty state when
// the file does not exist yet.
func LoadState(path string) (*State, error) {
	st := &State{
		path:          path,
		EngineSyncIDs: make(map[string]string),
		LastSync:      make(map[string]int64),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync state %s: %w", path, err)
	}
	if err = json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("decode sync state %s: %w", path, err)
	}
	if st.EngineSyncIDs == nil {
		st.EngineSyncIDs = make(map[string]string)
	}
	if st.LastSync == nil {
		st.LastSync = make(map[string]int64)
	}
	return st, nil
}

// Save writes the state back to its file. A state constructed without a path
// (tests) saves nowhere and never fails.
func (st *State) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sync state: %w", err)
	}
	if err = os.WriteFile(st.path, data, 0o600); err != nil {
		return fmt.Errorf("write sync state %s: %w", st.path, err)
	}
	return nil
}

// LastSyncFor returns the collection's last-sync watermark in milliseconds,
// zero when the collection has never synced.
func (st *State) LastSyncFor(collection string) int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.LastSync[collection]
}

// SetLastSync records a new watermark for the collection.
func (st *State) SetLastSync(collection string, ms int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.LastSync[collection] = ms
}

// ResetEngine clears one collection's watermark and server sync id, forcing
// its next sync to start from scratch.
func (st *State) ResetEngine(collection string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.LastSync, collection)
	delete(st.EngineSyncIDs, collection)
}

// ResetAllEngines clears every collection's watermark and sync id.
func (st *State) ResetAllEngines() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.LastSync = make(map[string]int64)
	st.EngineSyncIDs = make(map[string]string)
}

// SetNode caches the resolved storage node and its credentials until expiry
// (ms since epoch).
func (st *State) SetNode(endpoint, username, password string, expiry int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ClusterURL = endpoint
	st.NodeUsername = username
	st.NodePassword = password
	st.NodeExpiry = expiry
}

// HasValidNode reports whether the cached node credentials are still usable
// at now (ms since epoch).
func (st *State) HasValidNode(now int64) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ClusterURL != "" && st.NodeUsername != "" && now < st.NodeExpiry
}

// InvalidateNode forgets the resolved storage node and its credentials so
// the next run performs a fresh token exchange.
func (st *State) InvalidateNode() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ClusterURL = ""
	st.NodeUsername = ""
	st.NodePassword = ""
	st.NodeExpiry = 0
}
