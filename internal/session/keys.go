// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/weavesync/weavesync/internal/adapter"
	"github.com/weavesync/weavesync/internal/crypto"
)

const (
	cryptoCollection = "crypto"
	keysRecordGUID   = "keys"
)

// ensureKeysStage establishes the collection key ring for the run. The
// cached ring is reused while the server's crypto collection is no newer
// than it; otherwise the bootstrap record is re-fetched and decrypted with
// the bundle derived from the recovery key. A default bundle that no longer
// matches the cached one invalidates every collection at once; changed
// per-collection overrides invalidate only those collections. Either way the
// run ends in error so the next one syncs from scratch under the new keys.
type ensureKeysStage struct{}

func (ensureKeysStage) Name() string { return "ensureKeys" }

func (ensureKeysStage) Execute(ctx context.Context, s *Session) error {
	serverTS := s.info.ModifiedMillis(cryptoCollection)
	if s.keys != nil && serverTS <= s.keys.Timestamp() {
		s.log.Debug().Msg("cached key ring still current")
		return nil
	}

	env, resp, err := s.storage.FetchRecord(ctx, cryptoCollection, keysRecordGUID)
	if errors.Is(err, adapter.ErrNotFound) {
		if boErr := s.observeResponse(resp); boErr != nil {
			return boErr
		}
		return s.freshStart(ctx)
	}
	if err = s.finishCall(resp, err); err != nil {
		return fmt.Errorf("fetch crypto/keys: %w", err)
	}

	bootstrap, err := s.bootstrapBundle()
	if err != nil {
		return fmt.Errorf("derive bootstrap bundle: %w", err)
	}
	fresh, err := crypto.DecodeKeysEnvelope(env, bootstrap)
	if err != nil {
		return fmt.Errorf("decode crypto/keys: %w", err)
	}

	if s.keys != nil {
		if s.keys.DefaultDiffers(fresh) {
			s.state.ResetAllEngines()
			s.cacheKeys(fresh)
			return &KeyMismatchError{Full: true}
		}
		if diffs := s.keys.Differences(fresh); len(diffs) > 0 {
			for _, name := range diffs {
				s.state.ResetEngine(name)
			}
			s.cacheKeys(fresh)
			return &KeyMismatchError{Collections: diffs}
		}
	}

	s.cacheKeys(fresh)
	return nil
}

// cacheKeys installs the ring for the rest of the run and persists it.
func (s *Session) cacheKeys(keys *crypto.CollectionKeys) {
	s.keys = keys

	payload := keys.AsPayload()
	s.state.Keys = &payload
	s.state.KeysTimestamp = keys.Timestamp()
	if err := s.state.Save(); err != nil {
		s.log.Error().Err(err).Msg("persist key ring failed")
	}
}
