package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// blockingWorker runs until its context is cancelled and counts invocations.
type blockingWorker struct {
	started atomic.Int32
}

func (w *blockingWorker) Run(ctx context.Context) {
	w.started.Add(1)
	<-ctx.Done()
}

func TestWorkers_RunAllAndStopTogether(t *testing.T) {
	w1 := &blockingWorker{}
	w2 := &blockingWorker{}
	w3 := &blockingWorker{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewWorkers(w1, w2, w3).Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for _, w := range []*blockingWorker{w1, w2, w3} {
		for w.started.Load() == 0 {
			select {
			case <-deadline:
				t.Fatal("worker never started")
			default:
				time.Sleep(time.Millisecond)
			}
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestWorkers_RunEmpty(t *testing.T) {
	// Must return immediately and not panic with no members.
	NewWorkers().Run(context.Background())

	var w Workers
	w.Run(context.Background())
}
