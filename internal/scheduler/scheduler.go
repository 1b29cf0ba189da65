// SPDX-License-Identifier: Apache-2.0

// Package scheduler maps periodic and on-demand triggers onto sync runs. It
// enforces the two inter-run rules the stage machine itself cannot: runs for
// one account never overlap, and server-requested backoff postpones every
// trigger until the backoff window has passed.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/internal/session"
	"github.com/weavesync/weavesync/internal/telemetry"
	"github.com/weavesync/weavesync/models"
)

// Runner is one single-use sync run. Run blocks until the run's terminal
// callback fired.
type Runner interface {
	Run(ctx context.Context)
}

// RunnerFactory builds a fresh run wired to the given delegate. Sessions are
// single-use, so the scheduler asks for a new one per trigger.
type RunnerFactory func(d session.Delegate) Runner

// Scheduler drives sync runs from a periodic ticker plus manual kicks.
type Scheduler struct {
	interval time.Duration
	factory  RunnerFactory
	builder  *telemetry.Builder
	log      *logger.Logger
	now      func() int64 // ms

	syncing      atomic.Bool
	backoffUntil atomic.Int64
	kick         chan struct{}
}

// New builds a scheduler syncing every interval. builder may be nil when no
// telemetry is collected.
func New(interval time.Duration, factory RunnerFactory, builder *telemetry.Builder, log *logger.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		factory:  factory,
		builder:  builder,
		log:      log,
		now:      func() int64 { return time.Now().UnixMilli() },
		kick:     make(chan struct{}, 1),
	}
}

// RequestSync asks for a run outside the periodic schedule. Non-blocking; a
// kick while one is already pending is folded into it.
func (s *Scheduler) RequestSync() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run implements the workers contract: sync on every tick and every kick
// until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.TrySync(ctx)
		case <-s.kick:
			s.TrySync(ctx)
		}
	}
}

// TrySync starts a run unless one is already in flight or a server-requested
// backoff window is still open. Reports whether a run happened.
func (s *Scheduler) TrySync(ctx context.Context) bool {
	if !s.syncing.CompareAndSwap(false, true) {
		s.log.Debug().Msg("sync already in flight, trigger dropped")
		return false
	}
	defer s.syncing.Store(false)

	if until := s.backoffUntil.Load(); s.now() < until {
		s.log.Debug().Int64("until_ms", until).Msg("sync postponed by server backoff")
		return false
	}

	runner := s.factory(session.Delegate{
		HandleSuccess: func(stats models.SyncStats) {
			s.recordRun(stats)
		},
		HandleError: func(err error, stats models.SyncStats) {
			s.log.Warn().Err(err).Msg("sync run failed")
			s.recordRun(stats)
		},
		HandleAborted: func(reason string, stats models.SyncStats) {
			s.log.Info().Str("reason", reason).Msg("sync run aborted")
			s.recordRun(stats)
		},
		RequestBackoff: func(millis int64) {
			s.extendBackoff(millis)
		},
	})

	runner.Run(ctx)
	return true
}

func (s *Scheduler) recordRun(stats models.SyncStats) {
	if s.builder != nil {
		s.builder.RecordRun(stats)
	}
}

// extendBackoff pushes the earliest next run out. Windows only ever grow; a
// shorter request never shrinks an open one.
func (s *Scheduler) extendBackoff(millis int64) {
	until := s.now() + millis
	for {
		current := s.backoffUntil.Load()
		if until <= current {
			return
		}
		if s.backoffUntil.CompareAndSwap(current, until) {
			return
		}
	}
}
