// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

// SessionState is the lifecycle state of a repository session.
type SessionState int

const (
	SessionUnstarted SessionState = iota
	SessionActive
	SessionFinished
)

func (s SessionState) String() string {
	switch s {
	case SessionUnstarted:
		return "unstarted"
	case SessionActive:
		return "active"
	case SessionFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// RepositorySession drives one collection's records through one sync run.
// Data operations are asynchronous: each runs on its own goroutine and
// reports through delegate callbacks delivered via the session's executor.
//
// By contract the caller owns one operation at a time: a second Store must
// not be issued before the first record's callback arrived. The session does
// not enforce this with a lock; Store batches are the one exception, tracked
// by a counting barrier so StoreDone can order its completion callback after
// every per-record callback.
type RepositorySession struct {
	collection string
	backend    RecordStore
	exec       Executor
	log        *logger.Logger
	now        func() int64 // ms

	// lastSync is the watermark used to decide whether a local record
	// counts as modified since the previous sync.
	lastSync int64

	mu            sync.Mutex
	state         SessionState
	storeDelegate StoreDelegate

	// pending counts store operations whose per-record callback has not yet
	// been delivered.
	pending sync.WaitGroup
}

// NewRepositorySession constructs an unstarted session for one collection.
// exec may be nil for inline callback delivery.
func NewRepositorySession(collection string, backend RecordStore, lastSync int64, exec Executor, log *logger.Logger) *RepositorySession {
	if exec == nil {
		exec = DirectExecutor{}
	}
	return &RepositorySession{
		collection: collection,
		backend:    backend,
		exec:       exec,
		log:        log,
		now:        func() int64 { return time.Now().UnixMilli() },
		lastSync:   lastSync,
		state:      SessionUnstarted,
	}
}

// Collection returns the collection this session serves.
func (s *RepositorySession) Collection() string { return s.collection }

// State returns the current lifecycle state.
func (s *RepositorySession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin activates the session. Fails with ErrInvalidTransition unless the
// session is unstarted.
func (s *RepositorySession) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionUnstarted {
		return fmt.Errorf("%w: begin on %s session", ErrInvalidTransition, s.state)
	}
	s.state = SessionActive
	return nil
}

// Finish closes the session. Fails with ErrInvalidTransition unless the
// session is active. Finishing twice is an error, never a no-op.
func (s *RepositorySession) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return fmt.Errorf("%w: finish on %s session", ErrInvalidTransition, s.state)
	}
	s.state = SessionFinished
	return nil
}

func (s *RepositorySession) requireActive(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionActive {
		return fmt.Errorf("%w: %s on %s session", ErrInactiveSession, op, s.state)
	}
	return nil
}

// SetStoreDelegate installs the delegate for subsequent Store batches.
func (s *RepositorySession) SetStoreDelegate(d StoreDelegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeDelegate = d
}

// FetchAll streams every record of the collection to the delegate.
func (s *RepositorySession) FetchAll(ctx context.Context, d FetchDelegate) error {
	if err := s.requireActive("fetchAll"); err != nil {
		return err
	}
	go s.runFetch(d, func() ([]models.Record, error) {
		return s.backend.All(ctx, s.collection)
	})
	return nil
}

// Fetch streams the records matching guids. An empty or nil guid list is an
// invalid request and fails synchronously with ErrNoGUIDs.
func (s *RepositorySession) Fetch(ctx context.Context, guids []string, d FetchDelegate) error {
	if err := s.requireActive("fetch"); err != nil {
		return err
	}
	if len(guids) == 0 {
		return ErrNoGUIDs
	}
	go s.runFetch(d, func() ([]models.Record, error) {
		return s.backend.ByGUIDs(ctx, s.collection, guids)
	})
	return nil
}

// FetchSince streams records modified at or after the timestamp (inclusive).
func (s *RepositorySession) FetchSince(ctx context.Context, since int64, d FetchDelegate) error {
	if err := s.requireActive("fetchSince"); err != nil {
		return err
	}
	go s.runFetch(d, func() ([]models.Record, error) {
		return s.backend.Since(ctx, s.collection, since)
	})
	return nil
}

// GUIDsSince delivers the guids of records modified at or after the
// timestamp (inclusive).
func (s *RepositorySession) GUIDsSince(ctx context.Context, since int64, d GUIDsDelegate) error {
	if err := s.requireActive("guidsSince"); err != nil {
		return err
	}
	go func() {
		guids, err := s.backend.GUIDsSince(ctx, s.collection, since)
		if err != nil {
			s.deliver(func() {
				if d.OnError != nil {
					d.OnError(err)
				}
			})
			return
		}
		s.deliver(func() {
			if d.OnComplete != nil {
				d.OnComplete(guids)
			}
		})
	}()
	return nil
}

func (s *RepositorySession) runFetch(d FetchDelegate, load func() ([]models.Record, error)) {
	records, err := load()
	if err != nil {
		s.deliver(func() {
			if d.OnError != nil {
				d.OnError(err)
			}
		})
		return
	}

	for _, rec := range records {
		rec := rec
		s.deliver(func() {
			if d.OnFetched != nil {
				d.OnFetched(rec)
			}
		})
	}
	ts := s.now()
	s.deliver(func() {
		if d.OnComplete != nil {
			d.OnComplete(ts)
		}
	})
}

// Store applies one incoming record asynchronously. The per-record outcome
// is reported through the store delegate; a failed record never aborts its
// batch siblings.
func (s *RepositorySession) Store(ctx context.Context, incoming models.Record) error {
	if err := s.requireActive("store"); err != nil {
		return err
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		d := s.currentStoreDelegate()
		if err := s.applyIncoming(ctx, incoming); err != nil {
			s.log.Debug().Err(err).
				Str("collection", s.collection).
				Str("guid", incoming.GUID).
				Msg("record store failed")
			s.deliver(func() {
				if d.OnRecordFailed != nil {
					d.OnRecordFailed(incoming.GUID, err)
				}
			})
			return
		}
		s.deliver(func() {
			if d.OnRecordSucceeded != nil {
				d.OnRecordSucceeded(incoming.GUID)
			}
		})
	}()
	return nil
}

// StoreDone signals the end of a store batch. The delegate's
// OnBatchComplete fires only after every per-record callback of the batch
// has been delivered; the counting barrier makes that ordering explicit
// rather than assumed from goroutine scheduling.
func (s *RepositorySession) StoreDone(ctx context.Context) error {
	if err := s.requireActive("storeDone"); err != nil {
		return err
	}

	d := s.currentStoreDelegate()
	go func() {
		s.pending.Wait()
		ts := s.now()
		s.deliver(func() {
			if d.OnBatchComplete != nil {
				d.OnBatchComplete(ts)
			}
		})
	}()
	return nil
}

// Wipe removes every record of the collection. Defined only on an active
// session.
func (s *RepositorySession) Wipe(ctx context.Context, d WipeDelegate) error {
	if err := s.requireActive("wipe"); err != nil {
		return err
	}
	go func() {
		if err := s.backend.Wipe(ctx, s.collection); err != nil {
			s.deliver(func() {
				if d.OnError != nil {
					d.OnError(err)
				}
			})
			return
		}
		s.deliver(func() {
			if d.OnComplete != nil {
				d.OnComplete()
			}
		})
	}()
	return nil
}

func (s *RepositorySession) currentStoreDelegate() StoreDelegate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeDelegate
}

func (s *RepositorySession) deliver(f func()) {
	s.exec.Submit(f)
}

// applyIncoming is the reconciliation algorithm for one incoming record.
func (s *RepositorySession) applyIncoming(ctx context.Context, incoming models.Record) error {
	existing, err := s.backend.Get(ctx, s.collection, incoming.GUID)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		if incoming.Deleted {
			// A tombstone for a record we never had: nothing to delete,
			// still a success.
			return nil
		}
		_, err := s.backend.Insert(ctx, incoming)
		return err

	case errors.Is(err, ErrDuplicateGUID):
		return err

	case err != nil:
		return fmt.Errorf("load existing record %s: %w", incoming.GUID, err)
	}

	switch reconcile(existing, incoming, s.lastSync) {
	case outcomeNoop, outcomeKeepLocal:
		return nil

	case outcomeDeleteLocal:
		return s.backend.Delete(ctx, s.collection, existing.GUID)

	case outcomeReplace:
		merged := incoming
		merged.LocalID = existing.LocalID
		return s.backend.Update(ctx, merged)

	default:
		return fmt.Errorf("unhandled reconcile outcome for %s", incoming.GUID)
	}
}
