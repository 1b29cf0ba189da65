// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/weavesync/weavesync/internal/adapter"
)

// fetchInfoCollectionsStage downloads the per-collection server timestamps
// that later stages use to skip unchanged collections and detect a newer
// crypto/keys record.
type fetchInfoCollectionsStage struct{}

func (fetchInfoCollectionsStage) Name() string { return "fetchInfoCollections" }

func (fetchInfoCollectionsStage) Execute(ctx context.Context, s *Session) error {
	info, resp, err := s.storage.FetchInfoCollections(ctx)
	if err = s.finishCall(resp, err); err != nil {
		return fmt.Errorf("fetch info/collections: %w", err)
	}
	s.info = info
	return nil
}

// fetchMetaGlobalStage validates the server's storage layout. A missing
// meta/global record or an outdated storage version triggers a fresh start;
// a storage version newer than this client understands aborts through the
// upgrade-required path. Changed sync ids reset the affected engines.
type fetchMetaGlobalStage struct{}

func (fetchMetaGlobalStage) Name() string { return "fetchMetaGlobal" }

func (fetchMetaGlobalStage) Execute(ctx context.Context, s *Session) error {
	global, resp, err := s.storage.FetchMetaGlobal(ctx)
	if errors.Is(err, adapter.ErrNotFound) {
		if boErr := s.observeResponse(resp); boErr != nil {
			return boErr
		}
		return s.freshStart(ctx)
	}
	if err = s.finishCall(resp, err); err != nil {
		return fmt.Errorf("fetch meta/global: %w", err)
	}

	if global.StorageVersion > supportedStorageVersion {
		return &UpgradeRequiredError{ServerVersion: global.StorageVersion}
	}
	if global.StorageVersion < supportedStorageVersion {
		s.log.Info().Int("storage_version", global.StorageVersion).
			Msg("server storage format outdated")
		return s.freshStart(ctx)
	}

	if global.SyncID != s.state.GlobalSyncID {
		s.log.Info().Str("sync_id", global.SyncID).Msg("global sync id changed, resetting engines")
		s.state.ResetAllEngines()
		s.state.GlobalSyncID = global.SyncID
	}
	for name, engine := range global.Engines {
		if known, ok := s.state.EngineSyncIDs[name]; ok && known != engine.SyncID {
			s.log.Info().Str("engine", name).Msg("engine sync id changed, resetting")
			s.state.ResetEngine(name)
		}
		s.state.EngineSyncIDs[name] = engine.SyncID
	}
	for _, name := range global.Declined {
		s.skip[name] = true
	}

	s.global = global
	return s.state.Save()
}
