// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

// Submitter is the background loop tying policy, builder, transport and
// persisted state together. It implements the workers.Worker contract.
type Submitter struct {
	policy   *Policy
	store    *StateStore
	client   DocumentClient
	builder  *Builder
	interval time.Duration
	now      func() int64 // ms
	log      *logger.Logger

	// pending holds a built document whose upload soft-failed. The builder
	// drains its aggregate on Build, so the document must survive here
	// until the failure-interval retry delivers or hard-fails it.
	pending *models.TelemetryDocument
}

// NewSubmitter wires a submitter polling the policy every interval.
func NewSubmitter(policy *Policy, store *StateStore, client DocumentClient, builder *Builder, interval time.Duration, log *logger.Logger) *Submitter {
	return &Submitter{
		policy:   policy,
		store:    store,
		client:   client,
		builder:  builder,
		interval: interval,
		now:      func() int64 { return time.Now().UnixMilli() },
		log:      log,
	}
}

// Run polls until ctx is cancelled.
func (s *Submitter) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick executes at most one policy action and persists the resulting state.
func (s *Submitter) tick(ctx context.Context) {
	now := s.now()

	// The very first tick anchors FirstRun. That anchor must be persisted
	// even when no action is due yet, or a client restarting more often
	// than the first-submission delay re-anchors forever and never submits.
	anchored := s.policy.State().FirstRun != 0

	switch decision := s.policy.Tick(now); decision.Action {
	case ActionDeleteObsolete:
		s.deleteObsolete(ctx, now, decision.ObsoleteID)
	case ActionUpload:
		s.upload(ctx, now)
	default:
		if anchored {
			return
		}
	}

	if err := s.store.Save(s.policy.State()); err != nil {
		s.log.Error().Err(err).Msg("persist telemetry state failed")
	}
}

func (s *Submitter) deleteObsolete(ctx context.Context, now int64, id string) {
	s.policy.RecordUploadRequested(now)

	if err := s.client.Delete(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("doc_id", id).Msg("obsolete document deletion failed")
		s.policy.ObsoleteDeleteFailed(id)
		return
	}
	s.policy.ObsoleteDeleteSucceeded(id)
	s.log.Debug().Str("doc_id", id).Msg("obsolete document deleted")
}

func (s *Submitter) upload(ctx context.Context, now int64) {
	doc := s.pending
	if doc == nil {
		built, ok := s.builder.Build(s.policy.ObsoleteIDs())
		if !ok {
			return
		}
		doc = &built
	} else {
		doc.Obsolete = s.policy.ObsoleteIDs()
	}
	previous := s.policy.State().LastSuccessfulID

	s.policy.RecordUploadRequested(now)
	err := s.client.Upload(ctx, *doc)
	switch {
	case err == nil:
		s.pending = nil
		s.policy.RecordUploadSucceeded(now, doc.ID)
		if previous != "" {
			s.policy.TrackObsolete(previous)
		}
		s.log.Info().Str("doc_id", doc.ID).Msg("telemetry document uploaded")

	case errors.Is(err, ErrHardFailure):
		s.pending = nil
		s.policy.RecordUploadHardFailure(now)
		s.log.Error().Err(err).Str("doc_id", doc.ID).Msg("telemetry document rejected")

	default:
		s.pending = doc
		s.policy.RecordUploadSoftFailure(now)
		s.log.Warn().Err(err).Str("doc_id", doc.ID).Msg("telemetry upload failed")
	}
}
