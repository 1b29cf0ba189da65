// Package workers runs the engine's long-lived background loops (the sync
// scheduler, the telemetry submitter) under one lifecycle: start them
// together, wait for all of them to stop when the context ends.
package workers

import "context"

// Worker is one background loop. Run blocks until ctx is cancelled; the
// worker owns its own ticker or wait logic internally.
type Worker interface {
	Run(ctx context.Context)
}
