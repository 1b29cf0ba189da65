// SPDX-License-Identifier: Apache-2.0

// Package store implements per-collection repository sessions over a
// pluggable record backend: the lifecycle contract (begin/fetch/store/
// storeDone/wipe/finish), the last-writer-wins reconciliation of incoming
// records against local modifications, and the sqlite- and memory-backed
// record stores.
package store

import (
	"context"

	"github.com/weavesync/weavesync/models"
)

// RecordStore is the storage backend a repository session drives. One value
// serves all collections; every call names its collection explicitly.
//
// Get must detect and report ErrDuplicateGUID when more than one row matches
// the guid; implementations must not deduplicate silently.
type RecordStore interface {
	// Get returns the record with the given guid, ErrRecordNotFound when no
	// row matches, or ErrDuplicateGUID when several do.
	Get(ctx context.Context, collection, guid string) (models.Record, error)

	// Insert stores a new record and returns its local row id.
	Insert(ctx context.Context, rec models.Record) (int64, error)

	// Update rewrites the row identified by rec.LocalID with rec's values.
	Update(ctx context.Context, rec models.Record) error

	// Delete removes the row identified by guid.
	Delete(ctx context.Context, collection, guid string) error

	// All returns every record of the collection.
	All(ctx context.Context, collection string) ([]models.Record, error)

	// Since returns records modified at or after the timestamp (ms,
	// inclusive lower bound).
	Since(ctx context.Context, collection string, since int64) ([]models.Record, error)

	// GUIDsSince returns the guids of records modified at or after the
	// timestamp (ms, inclusive).
	GUIDsSince(ctx context.Context, collection string, since int64) ([]string, error)

	// ByGUIDs returns the records matching the given guids. Missing guids
	// are skipped, duplicated guids surface ErrDuplicateGUID.
	ByGUIDs(ctx context.Context, collection string, guids []string) ([]models.Record, error)

	// Wipe removes every record of the collection.
	Wipe(ctx context.Context, collection string) error
}

// Executor delivers delegate callbacks. Sessions invoke all completion
// callbacks through an executor so callers can redirect them onto their own
// goroutine (e.g. away from the session's worker).
type Executor interface {
	Submit(f func())
}

// FetchDelegate receives the results of fetch-side operations. OnFetched is
// called once per record, then exactly one of OnComplete or OnError.
// Handler structs built from closures, not an inheritance tree: leave a
// field nil to ignore that event.
type FetchDelegate struct {
	OnFetched  func(models.Record)
	OnComplete func(timestamp int64)
	OnError    func(error)
}

// GUIDsDelegate receives the result of GUIDsSince.
type GUIDsDelegate struct {
	OnComplete func(guids []string)
	OnError    func(error)
}

// StoreDelegate receives per-record store outcomes plus the end-of-batch
// signal. OnBatchComplete fires only after every per-record callback of the
// batch has been delivered.
type StoreDelegate struct {
	OnRecordSucceeded func(guid string)
	OnRecordFailed    func(guid string, err error)
	OnBatchComplete   func(timestamp int64)
}

// WipeDelegate receives the outcome of Wipe.
type WipeDelegate struct {
	OnComplete func()
	OnError    func(error)
}
