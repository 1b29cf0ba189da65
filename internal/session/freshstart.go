// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/weavesync/weavesync/internal/adapter"
	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/models"
)

// freshStart reinitialises the account's server storage: wipe everything,
// mint a new sync id and key ring, upload meta/global and crypto/keys. The
// run then aborts so the next one syncs clean against the new layout.
func (s *Session) freshStart(ctx context.Context) error {
	s.log.Info().Msg("performing fresh start")

	resp, err := s.storage.DeleteAll(ctx)
	if err = s.finishCall(resp, err); err != nil {
		return fmt.Errorf("fresh start: wipe server storage: %w", err)
	}
	wipedAt := resp.Timestamp

	engines := make(map[string]models.EngineEntry, len(s.cfg.Collections))
	for _, name := range s.cfg.Collections {
		engines[name] = models.EngineEntry{Version: 1, SyncID: newSyncID()}
	}
	global := models.MetaGlobal{
		SyncID:         newSyncID(),
		StorageVersion: supportedStorageVersion,
		Engines:        engines,
	}

	// Conditional on the wipe timestamp: a 412 means another client started
	// re-provisioning between our wipe and this write, and its layout wins.
	resp, err = s.storage.UploadMetaGlobal(ctx, global, wipedAt)
	if err = s.finishCall(resp, err); err != nil {
		if errors.Is(err, adapter.ErrConcurrentModification) {
			return abort("fresh start: another client re-provisioned first")
		}
		return fmt.Errorf("fresh start: upload meta/global: %w", err)
	}

	keys, err := crypto.GenerateCollectionKeys()
	if err != nil {
		return fmt.Errorf("fresh start: generate collection keys: %w", err)
	}
	bootstrap, err := s.bootstrapBundle()
	if err != nil {
		return fmt.Errorf("fresh start: derive bootstrap bundle: %w", err)
	}
	env, err := crypto.EncodeKeysEnvelope(keys, bootstrap)
	if err != nil {
		return fmt.Errorf("fresh start: encrypt crypto/keys: %w", err)
	}

	resp, err = s.storage.UploadRecord(ctx, env, 0)
	if err = s.finishCall(resp, err); err != nil {
		if errors.Is(err, adapter.ErrConcurrentModification) {
			return abort("fresh start: another client re-provisioned first")
		}
		return fmt.Errorf("fresh start: upload crypto/keys: %w", err)
	}
	keys.SetTimestamp(resp.Timestamp)

	s.state.ResetAllEngines()
	s.state.GlobalSyncID = global.SyncID
	for name, engine := range global.Engines {
		s.state.EngineSyncIDs[name] = engine.SyncID
	}
	s.cacheKeys(keys)

	return abort("fresh start: server storage reinitialised")
}

// newSyncID mints a short opaque sync id in the server's customary format.
func newSyncID() string {
	return uuid.NewString()[:12]
}
