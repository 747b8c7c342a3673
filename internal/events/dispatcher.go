package events

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Invoker runs a callback for an event. It is called on the sandbox loop.
type Invoker[F any] func(fn F, ev Event) error

// Dispatcher pulls events from a Queue and hands them to the sandbox loop,
// where they are matched against the callback Table.
type Dispatcher[F any] struct {
	queue  *Queue
	table  *Table[F]
	invoke Invoker[F]
	logger *zap.Logger
}

func NewDispatcher[F any](queue *Queue, table *Table[F], invoke Invoker[F], logger *zap.Logger) *Dispatcher[F] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher[F]{
		queue:  queue,
		table:  table,
		invoke: invoke,
		logger: logger.Named("events"),
	}
}

// Deliver invokes the callback bound to ev, if any. It must run on the
// goroutine that owns the table and reports whether a callback ran.
func (d *Dispatcher[F]) Deliver(ev Event) bool {
	fn, ok := d.table.Lookup(Key{Widget: ev.Widget, Event: ev.Name})
	if !ok {
		d.logger.Debug("no handler for event", zap.Stringer("event", ev))
		d.queue.observe("unhandled")
		return false
	}
	if err := d.invoke(fn, ev); err != nil {
		d.logger.Warn("event handler failed", zap.Stringer("event", ev), zap.Error(err))
		d.queue.observe("failed")
		return true
	}
	d.queue.observe("delivered")
	return true
}

// Run polls the queue and passes each event to schedule, which must run
// Deliver on the table owner. Run returns nil once the queue is closed.
func (d *Dispatcher[F]) Run(ctx context.Context, schedule func(func()) bool) error {
	for {
		ev, err := d.queue.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrDisconnected) {
				d.logger.Debug("event queue closed")
				return nil
			}
			return err
		}
		if !schedule(func() { d.Deliver(ev) }) {
			d.logger.Debug("sandbox loop gone, dropping event", zap.Stringer("event", ev))
			return nil
		}
	}
}
