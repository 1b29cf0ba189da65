// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"

	"github.com/weavesync/weavesync/internal/adapter"
	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

// supportedStorageVersion is the newest server storage format this client
// understands.
const supportedStorageVersion = 5

// Config carries the per-account inputs of a run.
type Config struct {
	// Assertion is the identity assertion presented to the token server.
	Assertion string

	// SyncKey is the 16-byte recovery key the bootstrap bundle derives from.
	SyncKey []byte

	// AccountID salts the key derivation so two accounts sharing a recovery
	// key never share bundles.
	AccountID string

	// Collections lists the engines to sync, in order.
	Collections []string

	// DeviceGUID and Client describe this device's record in the clients
	// collection.
	DeviceGUID string
	Client     models.ClientRecord
}

// Session is one single-use synchronization run over a fixed stage sequence.
// It owns the key ring and persisted sync state for the duration of the run;
// the scheduler guarantees runs for one account never overlap.
type Session struct {
	cfg      Config
	storage  adapter.StorageClient
	tokens   adapter.TokenClient
	state    *State
	backends BackendProvider
	delegate Delegate
	log      *logger.Logger

	stages   []Stage
	tolerant map[string]bool

	// Run-scoped intermediate state, written by stages in order.
	info    models.InfoCollections
	global  models.MetaGlobal
	keys    *crypto.CollectionKeys
	skip    map[string]bool
	current string
	stats   models.SyncStats
	ran     bool
}

// NewSession builds a run with the default stage sequence for cfg's
// collections. The cached key ring, if the state holds one, is restored so
// EnsureKeys can compare it against the server.
func NewSession(cfg Config, storage adapter.StorageClient, tokens adapter.TokenClient,
	state *State, backends BackendProvider, delegate Delegate, log *logger.Logger) *Session {

	s := &Session{
		cfg:      cfg,
		storage:  storage,
		tokens:   tokens,
		state:    state,
		backends: backends,
		delegate: delegate,
		log:      log,
		tolerant: make(map[string]bool),
		skip:     make(map[string]bool),
	}
	s.stages = defaultStages(cfg.Collections)

	if state.Keys != nil {
		if cached, err := crypto.CollectionKeysFromPayload(*state.Keys); err == nil {
			cached.SetTimestamp(state.KeysTimestamp)
			s.keys = cached
		} else {
			log.Warn().Err(err).Msg("discarding unreadable cached key ring")
		}
	}
	return s
}

func defaultStages(collections []string) []Stage {
	stages := []Stage{
		ensureClusterURLStage{},
		fetchInfoCollectionsStage{},
		fetchMetaGlobalStage{},
		ensureKeysStage{},
		syncClientsStage{},
	}
	for _, c := range collections {
		stages = append(stages, syncCollectionStage{collection: c})
	}
	return stages
}

// UseStages replaces the stage sequence. Tests inject shortened or
// instrumented sequences here.
func (s *Session) UseStages(stages ...Stage) { s.stages = stages }

// SetBackoffTolerant overrides the backoff policy for one stage. A tolerant
// stage propagates a server-requested backoff upstream but keeps the run
// going; by default every stage stops the run.
func (s *Session) SetBackoffTolerant(stageName string, tolerant bool) {
	s.tolerant[stageName] = tolerant
}

// Stats returns the counters accumulated so far. Meaningful after the run's
// terminal callback fired.
func (s *Session) Stats() models.SyncStats { return s.stats }

// Run executes the stage sequence. Exactly one terminal callback fires:
// success after the last stage, aborted on a deliberate stop, error
// otherwise. Run never returns before the terminal callback.
func (s *Session) Run(ctx context.Context) {
	if s.ran {
		s.fail(ErrSessionAlreadyRan)
		return
	}
	s.ran = true

	for _, stage := range s.stages {
		if err := ctx.Err(); err != nil {
			s.abort("run cancelled: " + err.Error())
			return
		}

		s.current = stage.Name()
		s.log.Debug().Str("stage", s.current).Msg("stage started")

		if err := stage.Execute(ctx, s); err != nil {
			var ab *abortError
			if errors.As(err, &ab) {
				s.abort(ab.reason)
				return
			}
			s.fail(err)
			return
		}
	}

	s.stats.Completed = 1
	s.log.Info().Msg("sync run completed")
	if s.delegate.HandleSuccess != nil {
		s.delegate.HandleSuccess(s.stats)
	}
}

func (s *Session) abort(reason string) {
	s.log.Info().Str("stage", s.current).Str("reason", reason).Msg("sync run aborted")
	if s.delegate.HandleAborted != nil {
		s.delegate.HandleAborted(reason, s.stats)
	}
}

func (s *Session) fail(err error) {
	switch classify(err) {
	case failureAuth:
		s.stats.AuthFailures++
		if errors.Is(err, adapter.ErrUnauthorized) {
			// The node may have been reassigned. Forget the cached node so
			// the next run re-resolves it through the token server.
			s.state.InvalidateNode()
			if saveErr := s.state.Save(); saveErr != nil {
				s.log.Error().Err(saveErr).Msg("persist sync state failed")
			}
			err = errors.Join(ErrNodeReassigned, err)
		}
	case failureParse:
		s.stats.ParseFailures++
	case failureIO:
		s.stats.IOFailures++
	default:
		s.stats.OtherFailures++
	}

	s.log.Error().Err(err).Str("stage", s.current).Msg("sync run failed")
	if s.delegate.HandleError != nil {
		s.delegate.HandleError(err, s.stats)
	}
}

// observeResponse propagates a server-requested backoff upstream, once per
// response, and stops the run unless the current stage tolerates backoff.
func (s *Session) observeResponse(resp *adapter.ServerResponse) error {
	if resp == nil {
		return nil
	}
	millis := resp.BackoffMillis()
	if millis <= 0 {
		return nil
	}

	s.stats.Backoffs++
	if s.delegate.RequestBackoff != nil {
		s.delegate.RequestBackoff(millis)
	}
	if s.tolerant[s.current] {
		s.log.Debug().Int64("backoff_ms", millis).Str("stage", s.current).
			Msg("backoff requested, stage tolerates it")
		return nil
	}
	return abortf("server requested %dms backoff", millis)
}

// finishCall folds backoff observation into a storage call's outcome. The
// transport error wins; a backoff abort surfaces only on otherwise
// successful calls.
func (s *Session) finishCall(resp *adapter.ServerResponse, err error) error {
	backoffErr := s.observeResponse(resp)
	if err != nil {
		return err
	}
	return backoffErr
}

func (s *Session) bootstrapBundle() (crypto.KeyBundle, error) {
	return crypto.BundleFromSyncKey(s.cfg.SyncKey, s.cfg.AccountID)
}
