package gateway

import "context"

// Scheduler routes stream events to workers. Events sharing a key are
// processed in arrival order; events with different keys may run
// concurrently.
type Scheduler interface {
	AddWork(ctx context.Context, key string, evt *StreamEvent) error
	Shutdown()
}
