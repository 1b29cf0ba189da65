// SPDX-License-Identifier: Apache-2.0

// Package session drives one full synchronization run as an ordered sequence
// of stages: resolve the storage node, read server metadata, establish the
// collection key ring, then sync each collection. Stages execute strictly one
// after another on the run's goroutine; a stage either completes and lets the
// run advance, or stops the whole run through an error or a deliberate abort.
package session

import (
	"context"

	"github.com/weavesync/weavesync/internal/store"
	"github.com/weavesync/weavesync/models"
)

// Stage is one step of a synchronization run. Execute returning nil advances
// the run to the next stage; an abortError stops the run through the aborted
// callback; any other error stops it through the error callback.
type Stage interface {
	Name() string
	Execute(ctx context.Context, s *Session) error
}

// Delegate receives the terminal outcome of a run plus server-driven flow
// control. RequestBackoff fires exactly once per response that carried a
// backoff header, whether or not the run continues afterwards.
type Delegate struct {
	HandleSuccess  func(stats models.SyncStats)
	HandleError    func(err error, stats models.SyncStats)
	HandleAborted  func(reason string, stats models.SyncStats)
	RequestBackoff func(millis int64)
}

// BackendProvider hands out the record store backing one collection.
type BackendProvider func(collection string) store.RecordStore
