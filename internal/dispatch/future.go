package dispatch

import (
	"context"
	"fmt"
)

// Future is the pending result of a dispatched call.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func failedFuture(err error) *Future {
	f := newFuture()
	f.complete(nil, err)
	return f
}

func (f *Future) complete(value any, err error) {
	f.value, f.err = value, err
	close(f.done)
}

// Done is closed once the call has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call finishes. When ctx is cancelled first it still
// waits for the call to return, so no call outlives its caller, and then
// reports the cancellation. Callables must honor ctx.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		<-f.done
		return nil, fmt.Errorf("await cancelled: %w", ctx.Err())
	}
}
