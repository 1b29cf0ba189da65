package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/internal/session"
	"github.com/weavesync/weavesync/internal/telemetry"
	"github.com/weavesync/weavesync/models"
)

// fakeRunner drives its delegate according to the scripted outcome, and can
// block to simulate a long run.
type fakeRunner struct {
	delegate session.Delegate
	block    chan struct{} // closed to release, nil for instant runs
	outcome  func(d session.Delegate)
}

func (r *fakeRunner) Run(ctx context.Context) {
	if r.block != nil {
		<-r.block
	}
	if r.outcome != nil {
		r.outcome(r.delegate)
	}
}

func TestScheduler_OverlappingRunsAreDropped(t *testing.T) {
	release := make(chan struct{})

	s := New(time.Hour, func(d session.Delegate) Runner {
		return &fakeRunner{delegate: d, block: release, outcome: func(d session.Delegate) {
			d.HandleSuccess(models.SyncStats{Completed: 1})
		}}
	}, nil, logger.Nop())

	first := make(chan bool, 1)
	go func() {
		first <- s.TrySync(context.Background())
	}()

	// Wait until the slow run actually holds the guard before racing it.
	deadline := time.After(5 * time.Second)
	for !s.syncing.Load() {
		select {
		case <-deadline:
			t.Fatal("first run never took the guard")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	assert.False(t, s.TrySync(context.Background()), "second trigger must be dropped")

	close(release)
	select {
	case ok := <-first:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("first run never finished")
	}
}

func TestScheduler_BackoffPostponesRuns(t *testing.T) {
	runs := 0
	s := New(time.Hour, func(d session.Delegate) Runner {
		runs++
		return &fakeRunner{delegate: d, outcome: func(d session.Delegate) {
			// The server asks for a 60s backoff mid-run.
			d.RequestBackoff(60_000)
			d.HandleAborted("server requested backoff", models.SyncStats{Backoffs: 1})
		}}
	}, nil, logger.Nop())

	clock := int64(1_000_000)
	s.now = func() int64 { return clock }

	require.True(t, s.TrySync(context.Background()))
	require.Equal(t, 1, runs)

	// Inside the backoff window nothing runs.
	clock += 30_000
	assert.False(t, s.TrySync(context.Background()))
	assert.Equal(t, 1, runs)

	// After the window closes, syncing resumes.
	clock += 31_000
	assert.True(t, s.TrySync(context.Background()))
	assert.Equal(t, 2, runs)
}

func TestScheduler_ShorterBackoffNeverShrinksWindow(t *testing.T) {
	s := New(time.Hour, func(d session.Delegate) Runner { return &fakeRunner{delegate: d} }, nil, logger.Nop())
	s.now = func() int64 { return 0 }

	s.extendBackoff(60_000)
	s.extendBackoff(10_000)
	assert.Equal(t, int64(60_000), s.backoffUntil.Load())
}

func TestScheduler_RunStatsFeedTelemetry(t *testing.T) {
	builder := telemetry.NewBuilder()
	s := New(time.Hour, func(d session.Delegate) Runner {
		return &fakeRunner{delegate: d, outcome: func(d session.Delegate) {
			d.HandleSuccess(models.SyncStats{Completed: 1})
		}}
	}, builder, logger.Nop())

	require.True(t, s.TrySync(context.Background()))

	doc, ok := builder.Build(nil)
	require.True(t, ok)
	assert.Contains(t, string(doc.Payload), `"completed":1`)
}

func TestScheduler_RequestSyncCoalesces(t *testing.T) {
	s := New(time.Hour, func(d session.Delegate) Runner { return &fakeRunner{delegate: d} }, nil, logger.Nop())

	// Repeated kicks while none is consumed must never block.
	for i := 0; i < 10; i++ {
		s.RequestSync()
	}
}
