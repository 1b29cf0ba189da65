package workers

import (
	"context"
	"sync"
)

// Workers is an aggregate that runs its members concurrently and waits for
// every one of them to return.
type Workers struct {
	workers []Worker
}

// NewWorkers builds an aggregate over the given workers.
func NewWorkers(ws ...Worker) *Workers {
	return &Workers{workers: ws}
}

// Run starts every worker on its own goroutine and blocks until all of them
// returned, which they do when ctx is cancelled.
func (w *Workers) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, worker := range w.workers {
		wg.Add(1)
		go func(worker Worker) {
			defer wg.Done()
			worker.Run(ctx)
		}(worker)
	}
	wg.Wait()
}
