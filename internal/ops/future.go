package ops

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/bridge"
)

// Future is an awaited op whose request is already queued on the bridge.
// Exactly one of Wait or Err should be called.
type Future[T any] struct {
	pending *bridge.Pending
	done    func(*error)
}

func submit[T any](o *Ops, op string, req bridge.Request) (*Future[T], error) {
	done := o.track(op)
	p, err := o.ch.Send(req)
	if err != nil {
		done(&err)
		return nil, err
	}
	return &Future[T]{pending: p, done: done}, nil
}

// Wait blocks until the host replies.
func (f *Future[T]) Wait(ctx context.Context) (v T, err error) {
	defer f.done(&err)
	return bridge.Await[T](ctx, f.pending)
}

// Err waits and discards the reply value.
func (f *Future[T]) Err(ctx context.Context) error {
	_, err := f.Wait(ctx)
	return err
}
