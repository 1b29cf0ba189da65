// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/weavesync/weavesync/internal/adapter"
	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/internal/store"
	"github.com/weavesync/weavesync/models"
)

// syncCollectionStage synchronizes one collection: incoming envelopes are
// decrypted and reconciled into the local store, then local changes the
// server has not seen are encrypted and uploaded. The last-sync watermark
// advances to the server clock only after both directions succeeded.
type syncCollectionStage struct {
	collection string
}

func (st syncCollectionStage) Name() string { return "sync:" + st.collection }

func (st syncCollectionStage) Execute(ctx context.Context, s *Session) error {
	if s.skip[st.collection] {
		s.log.Debug().Str("collection", st.collection).Msg("collection declined, skipping")
		return nil
	}

	lastSync := s.state.LastSyncFor(st.collection)
	if lastSync > 0 && s.info.Contains(st.collection) &&
		s.info.ModifiedMillis(st.collection) <= lastSync {
		s.log.Debug().Str("collection", st.collection).Msg("collection unchanged on server, skipping")
		return nil
	}

	bundle := s.keys.BundleFor(st.collection)
	backend := s.backends(st.collection)

	repo := store.NewRepositorySession(st.collection, backend, lastSync, nil, s.log)
	if err := repo.Begin(); err != nil {
		return err
	}
	defer func() {
		if err := repo.Finish(); err != nil {
			s.log.Warn().Err(err).Str("collection", st.collection).Msg("finish repository session")
		}
	}()

	// Local modifications are captured before incoming records land, so the
	// upload set reflects what this device changed since the last sync.
	locals, err := backend.Since(ctx, st.collection, lastSync)
	if err != nil {
		return fmt.Errorf("load local changes for %s: %w", st.collection, err)
	}

	envs, resp, err := s.storage.FetchCollection(ctx, st.collection, lastSync)
	if err = s.finishCall(resp, err); err != nil {
		return fmt.Errorf("fetch %s: %w", st.collection, err)
	}
	serverNow := resp.Timestamp

	incoming, parseFailures := st.decodeIncoming(s, envs, bundle)
	s.stats.ParseFailures += parseFailures

	if len(incoming) > 0 {
		if err = st.applyIncoming(ctx, s, repo, incoming); err != nil {
			return err
		}
	}

	uploaded, err := st.uploadLocal(ctx, s, backend, locals, incoming, bundle)
	if err != nil {
		return err
	}
	if uploaded != nil && uploaded.Timestamp > 0 {
		serverNow = uploaded.Timestamp
	}

	if serverNow > 0 {
		s.state.SetLastSync(st.collection, serverNow)
		if err = s.state.Save(); err != nil {
			return err
		}
	}

	s.log.Info().Str("collection", st.collection).
		Int("downloaded", len(incoming)).
		Msg("collection synced")
	return nil
}

// decodeIncoming decrypts fetched envelopes into records, keyed by guid.
// Undecryptable records are counted and skipped; one corrupt record must not
// sink the whole collection.
func (st syncCollectionStage) decodeIncoming(s *Session, envs []models.Envelope, bundle crypto.KeyBundle) (map[string]models.Record, int) {
	incoming := make(map[string]models.Record, len(envs))
	failures := 0

	for _, env := range envs {
		rec, err := decodeRecord(st.collection, env, bundle)
		if err != nil {
			failures++
			s.log.Warn().Err(err).
				Str("collection", st.collection).
				Str("guid", env.GUID).
				Msg("undecodable record skipped")
			continue
		}
		incoming[rec.GUID] = rec
	}
	return incoming, failures
}

// applyIncoming reconciles the downloaded records through the repository
// session and waits for the batch to complete. Per-record failures are
// logged and counted; only a store-level breakdown stops the stage.
func (st syncCollectionStage) applyIncoming(ctx context.Context, s *Session, repo *store.RepositorySession, incoming map[string]models.Record) error {
	var (
		mu     sync.Mutex
		failed []string
	)
	done := make(chan struct{})

	repo.SetStoreDelegate(store.StoreDelegate{
		OnRecordFailed: func(guid string, err error) {
			mu.Lock()
			failed = append(failed, guid)
			mu.Unlock()
			s.log.Warn().Err(err).
				Str("collection", st.collection).
				Str("guid", guid).
				Msg("record reconciliation failed")
		},
		OnBatchComplete: func(int64) { close(done) },
	})

	for _, rec := range incoming {
		if err := repo.Store(ctx, rec); err != nil {
			return err
		}
	}
	if err := repo.StoreDone(ctx); err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if len(failed) > 0 {
		s.stats.OtherFailures += len(failed)
	}
	return nil
}

// uploadLocal encrypts and uploads the locally modified records that were
// not superseded by the incoming batch. Returns the upload response, or nil
// when nothing needed uploading.
func (st syncCollectionStage) uploadLocal(ctx context.Context, s *Session, backend store.RecordStore, locals []models.Record, incoming map[string]models.Record, bundle crypto.KeyBundle) (*adapter.ServerResponse, error) {
	var out []models.Envelope

	for _, loc := range locals {
		current, err := backend.Get(ctx, st.collection, loc.GUID)
		if errors.Is(err, store.ErrRecordNotFound) {
			// A remote tombstone removed it during reconciliation.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reload local record %s: %w", loc.GUID, err)
		}
		if remote, ok := incoming[loc.GUID]; ok && current.EqualPayloads(remote) {
			// The remote side won; echoing it back would only churn server
			// timestamps.
			continue
		}

		cleartext, err := encodeRecordCleartext(current)
		if err != nil {
			return nil, fmt.Errorf("encode record %s: %w", loc.GUID, err)
		}
		env, err := crypto.EncryptEnvelope(current.GUID, st.collection, cleartext, bundle)
		if err != nil {
			return nil, fmt.Errorf("encrypt record %s: %w", loc.GUID, err)
		}
		env.SortIndex = current.SortIndex
		env.TTL = current.TTL
		out = append(out, env)
	}

	if len(out) == 0 {
		return nil, nil
	}

	resp, err := s.storage.UploadRecords(ctx, st.collection, out)
	if err = s.finishCall(resp, err); err != nil {
		return nil, fmt.Errorf("upload %s: %w", st.collection, err)
	}
	s.log.Debug().Str("collection", st.collection).Int("uploaded", len(out)).Msg("local changes uploaded")
	return resp, nil
}

// decodeRecord turns one wire envelope into a local record. The cleartext
// body keeps riding along in Fields; tombstones carry deleted=true inside
// the body.
func decodeRecord(collection string, env models.Envelope, bundle crypto.KeyBundle) (models.Record, error) {
	cleartext, err := crypto.DecryptEnvelope(env, bundle)
	if err != nil {
		return models.Record{}, err
	}

	var probe struct {
		Deleted bool `json:"deleted"`
	}
	if err = json.Unmarshal(cleartext, &probe); err != nil {
		return models.Record{}, fmt.Errorf("%w: %w", crypto.ErrMalformedEnvelope, err)
	}

	rec := models.Record{
		GUID:         env.GUID,
		Collection:   collection,
		LastModified: env.ModifiedMillis(),
		Deleted:      probe.Deleted,
		SortIndex:    env.SortIndex,
		TTL:          env.TTL,
	}
	if !probe.Deleted {
		rec.Fields = cleartext
	}
	return rec, nil
}

// encodeRecordCleartext renders a record's wire body: the collection fields
// with the guid folded in, or a minimal tombstone.
func encodeRecordCleartext(rec models.Record) ([]byte, error) {
	if rec.Deleted {
		return json.Marshal(map[string]any{"id": rec.GUID, "deleted": true})
	}

	fields := make(map[string]any)
	if len(rec.Fields) > 0 {
		if err := json.Unmarshal(rec.Fields, &fields); err != nil {
			return nil, err
		}
	}
	fields["id"] = rec.GUID
	return json.Marshal(fields)
}
