// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weavesync/weavesync/models"
)

// Builder aggregates per-run sync statistics into the next telemetry
// document. Sync runs feed it from their terminal callbacks; the submitter
// drains it when the policy allows an upload.
type Builder struct {
	mu    sync.Mutex
	runs  int
	stats models.SyncStats
	since time.Time
}

// NewBuilder returns an empty aggregate.
func NewBuilder() *Builder {
	return &Builder{since: time.Now()}
}

// RecordRun folds one run's counters into the aggregate.
func (b *Builder) RecordRun(stats models.SyncStats) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.runs++
	b.stats.Completed += stats.Completed
	b.stats.AuthFailures += stats.AuthFailures
	b.stats.IOFailures += stats.IOFailures
	b.stats.ParseFailures += stats.ParseFailures
	b.stats.OtherFailures += stats.OtherFailures
	b.stats.Backoffs += stats.Backoffs
}

// Build drains the aggregate into a document. Returns false when no runs
// happened since the last drain, so nothing is uploaded.
func (b *Builder) Build(obsolete []string) (models.TelemetryDocument, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.runs == 0 {
		return models.TelemetryDocument{}, false
	}

	payload, err := json.Marshal(struct {
		Since time.Time        `json:"since"`
		Until time.Time        `json:"until"`
		Runs  int              `json:"runs"`
		Sync  models.SyncStats `json:"sync"`
	}{Since: b.since, Until: time.Now(), Runs: b.runs, Sync: b.stats})
	if err != nil {
		return models.TelemetryDocument{}, false
	}

	doc := models.TelemetryDocument{
		ID:       uuid.NewString(),
		Payload:  payload,
		Obsolete: obsolete,
	}

	b.runs = 0
	b.stats = models.SyncStats{}
	b.since = time.Now()
	return doc, true
}
