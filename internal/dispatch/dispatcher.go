// Package dispatch resolves skills and decision stages by name, invokes them,
// and charges every invocation against a transaction's execution budget.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Observer is told about every completed call.
type Observer interface {
	ObserveCall(kind, name string, d time.Duration, err error)
}

// Dispatcher invokes registered callables.
type Dispatcher struct {
	registry *Registry
	observer Observer
	log      zerolog.Logger
}

// NewDispatcher creates a dispatcher over a registry.
func NewDispatcher(registry *Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// SetObserver attaches a call observer (metrics).
func (d *Dispatcher) SetObserver(o Observer) {
	d.observer = o
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Go resolves name, charges the budget and starts the call. The budget is
// charged before the call starts; an exhausted budget yields a failed future.
func (d *Dispatcher) Go(ctx context.Context, budget *Budget, name string, call Call) *Future {
	c, err := d.registry.Resolve(name)
	if err != nil {
		return failedFuture(err)
	}

	if c.Kind == KindReasoner {
		err = budget.BumpReasoner()
	} else {
		err = budget.BumpSkill()
	}
	if err != nil {
		return failedFuture(err)
	}

	f := newFuture()
	go func() {
		start := time.Now()
		var (
			value any
			err   error
		)
		defer func() {
			if p := recover(); p != nil {
				value, err = nil, fmt.Errorf("panic in %s %s: %v", c.Kind, c.Name, p)
			}
			if d.observer != nil {
				d.observer.ObserveCall(c.Kind.String(), c.Short, time.Since(start), err)
			}
			d.log.Debug().
				Str("callable", c.Name).
				Dur("duration", time.Since(start)).
				Err(err).
				Msg("call completed")
			f.complete(value, err)
		}()
		value, err = c.invoke(ctx, call)
	}()
	return f
}

// Invoke dispatches a call and waits for its typed result.
func Invoke[R any](ctx context.Context, d *Dispatcher, budget *Budget, name string, call Call) (R, error) {
	var zero R

	value, err := d.Go(ctx, budget, name, call).Await(ctx)
	if err != nil {
		return zero, err
	}
	result, ok := value.(R)
	if !ok {
		return zero, fmt.Errorf("%s returned %T, expected %T", name, value, zero)
	}
	return result, nil
}
