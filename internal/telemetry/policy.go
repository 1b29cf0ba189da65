// SPDX-License-Identifier: Apache-2.0

// Package telemetry submits aggregated sync statistics documents under a
// retry/backoff policy: minimum inter-request intervals, a daily failure
// budget and a deterministic queue of superseded documents pending server
// deletion.
package telemetry

import (
	"sort"
	"time"

	"github.com/weavesync/weavesync/models"
)

// PolicyConfig are the intervals and budgets of the submission policy. All
// durations compare against wall-clock milliseconds in [Policy.Tick].
type PolicyConfig struct {
	// MinimumTimeBeforeFirstSubmission delays the very first submission
	// after the policy's first tick, so a freshly set up client does not
	// phone home immediately.
	MinimumTimeBeforeFirstSubmission time.Duration

	// MinimumTimeBetweenUploads is the normal inter-upload interval.
	MinimumTimeBetweenUploads time.Duration

	// MinimumTimeAfterFailure is the shortened retry interval after a soft
	// failure, while the daily failure budget lasts.
	MinimumTimeAfterFailure time.Duration

	// MaxDailyFailures is the soft-failure budget; once reached, the retry
	// interval reverts to MinimumTimeBetweenUploads and the counter resets.
	MaxDailyFailures int

	// MaxObsoleteAttempts is how many deletion attempts each obsolete
	// document id gets before being dropped from the queue.
	MaxObsoleteAttempts int

	// MaxTrackedObsoleteIDs caps the obsolete queue size.
	MaxTrackedObsoleteIDs int
}

// DefaultPolicyConfig mirrors the intervals browsers customarily use.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MinimumTimeBeforeFirstSubmission: time.Hour,
		MinimumTimeBetweenUploads:        24 * time.Hour,
		MinimumTimeAfterFailure:          15 * time.Minute,
		MaxDailyFailures:                 2,
		MaxObsoleteAttempts:              5,
		MaxTrackedObsoleteIDs:            50,
	}
}

// Action is what one policy tick decided to do.
type Action int

const (
	// ActionNone: nothing is due yet.
	ActionNone Action = iota
	// ActionDeleteObsolete: delete the obsolete document named in the
	// decision. Deletions take priority over uploads.
	ActionDeleteObsolete
	// ActionUpload: upload the next document.
	ActionUpload
)

// Decision is the outcome of one tick.
type Decision struct {
	Action Action

	// ObsoleteID is the document to delete when Action is
	// ActionDeleteObsolete: always the lexicographically smallest pending
	// id, so processing order is deterministic regardless of insertion
	// order.
	ObsoleteID string
}

// Policy decides, as a pure function of the current time and persisted
// state, whether submission work should run now. It does not perform IO;
// the submitter feeds outcomes back through the Record* methods.
type Policy struct {
	cfg   PolicyConfig
	state *models.SubmissionState
}

// NewPolicy wraps the persisted state. The state is mutated in place; the
// caller owns persisting it after outcome callbacks.
func NewPolicy(cfg PolicyConfig, state *models.SubmissionState) *Policy {
	return &Policy{cfg: cfg, state: state}
}

// State exposes the wrapped state for persistence.
func (p *Policy) State() *models.SubmissionState { return p.state }

// Tick returns what, if anything, should run at now (ms since epoch). The
// first tick anchors the first-submission delay.
func (p *Policy) Tick(now int64) Decision {
	st := p.state

	if st.FirstRun == 0 {
		st.FirstRun = now
	}
	if now-st.FirstRun < p.cfg.MinimumTimeBeforeFirstSubmission.Milliseconds() {
		return Decision{Action: ActionNone}
	}
	if now < p.nextAllowed() {
		return Decision{Action: ActionNone}
	}

	if id, ok := p.smallestObsoleteID(); ok {
		return Decision{Action: ActionDeleteObsolete, ObsoleteID: id}
	}
	return Decision{Action: ActionUpload}
}

// nextAllowed computes the earliest time the next request may go out. While
// soft failures are being retried within the daily budget, the shortened
// failure interval applies, anchored at the failure; otherwise the normal
// interval applies, anchored at the last request.
func (p *Policy) nextAllowed() int64 {
	st := p.state
	if st.LastUploadRequested == 0 {
		return 0
	}
	if st.LastUploadFailed > 0 && st.CurrentDayFailureCount > 0 {
		return st.LastUploadFailed + p.cfg.MinimumTimeAfterFailure.Milliseconds()
	}
	return st.LastUploadRequested + p.cfg.MinimumTimeBetweenUploads.Milliseconds()
}

// RecordUploadRequested marks that a request (upload or obsolete deletion)
// was dispatched at now.
func (p *Policy) RecordUploadRequested(now int64) {
	p.state.LastUploadRequested = now
}

// RecordUploadSucceeded resets the failure budget and remembers the uploaded
// document id so a successor can mark it obsolete.
func (p *Policy) RecordUploadSucceeded(now int64, id string) {
	st := p.state
	st.LastUploadSucceeded = now
	st.CurrentDayFailureCount = 0
	st.LastSuccessfulID = id
}

// RecordUploadSoftFailure charges the daily failure budget. While budget
// remains, the next retry uses the shortened interval; on the exhausting
// failure the interval reverts to normal and the counter resets, so a
// persistently failing server is not hammered.
func (p *Policy) RecordUploadSoftFailure(now int64) {
	st := p.state
	st.LastUploadFailed = now
	st.CurrentDayFailureCount++
	if st.CurrentDayFailureCount >= p.cfg.MaxDailyFailures {
		st.CurrentDayFailureCount = 0
		st.LastUploadFailed = 0
	}
}

// RecordUploadHardFailure handles client-side rejections: the fault is not
// transient, so the budget is not charged and the normal interval applies.
func (p *Policy) RecordUploadHardFailure(now int64) {
	p.state.LastUploadFailed = 0
}

// TrackObsolete queues a superseded document id for deletion with a fresh
// attempts budget. When the queue is full, the lexicographically largest id
// is discarded so the retained set never depends on insertion order.
func (p *Policy) TrackObsolete(id string) {
	st := p.state
	if st.ObsoleteDocs == nil {
		st.ObsoleteDocs = make(map[string]int)
	}
	if _, tracked := st.ObsoleteDocs[id]; !tracked && len(st.ObsoleteDocs) >= p.cfg.MaxTrackedObsoleteIDs {
		largest := ""
		for tracked := range st.ObsoleteDocs {
			if tracked > largest {
				largest = tracked
			}
		}
		if id > largest {
			return
		}
		delete(st.ObsoleteDocs, largest)
	}
	st.ObsoleteDocs[id] = p.cfg.MaxObsoleteAttempts
}

// ObsoleteIDs returns the queued ids in processing order.
func (p *Policy) ObsoleteIDs() []string {
	ids := make([]string, 0, len(p.state.ObsoleteDocs))
	for id := range p.state.ObsoleteDocs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ObsoleteDeleteSucceeded removes the id from the queue.
func (p *Policy) ObsoleteDeleteSucceeded(id string) {
	delete(p.state.ObsoleteDocs, id)
}

// ObsoleteDeleteFailed burns one attempt; an id out of attempts is dropped.
func (p *Policy) ObsoleteDeleteFailed(id string) {
	st := p.state
	attempts, ok := st.ObsoleteDocs[id]
	if !ok {
		return
	}
	attempts--
	if attempts <= 0 {
		delete(st.ObsoleteDocs, id)
		return
	}
	st.ObsoleteDocs[id] = attempts
}

func (p *Policy) smallestObsoleteID() (string, bool) {
	smallest := ""
	for id := range p.state.ObsoleteDocs {
		if smallest == "" || id < smallest {
			smallest = id
		}
	}
	return smallest, smallest != ""
}
