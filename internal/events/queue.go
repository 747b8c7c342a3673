package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

var ErrDisconnected = errors.New("event queue disconnected")

// Event targets a callback registered on a widget under an event name.
type Event struct {
	Widget widget.ID `json:"widget_id"`
	Name   string    `json:"event_name"`
}

func (e Event) String() string {
	return fmt.Sprintf("%d/%s", e.Widget, e.Name)
}

// Recorder receives event observations. monitoring.Metrics satisfies it.
type Recorder interface {
	ObserveEvent(outcome string)
}

// Queue holds pending events until the sandbox polls them.
type Queue struct {
	mu      sync.Mutex
	pending []Event
	closed  bool
	wake    chan struct{}
	done    chan struct{}

	recorder Recorder
}

// NewQueue creates an open queue. rec may be nil.
func NewQueue(rec Recorder) *Queue {
	return &Queue{
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		recorder: rec,
	}
}

// Push enqueues ev. Safe from any goroutine.
func (q *Queue) Push(ev Event) error {
	if ev.Widget == 0 || ev.Name == "" {
		return fmt.Errorf("event %s: missing widget or name", ev)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrDisconnected
	}
	q.pending = append(q.pending, ev)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	q.observe("queued")
	return nil
}

// Next suspends until an event is available, the queue is closed or ctx
// ends. Each event is returned at most once.
func (q *Queue) Next(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			ev := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return ev, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Event{}, ErrDisconnected
		}

		select {
		case <-q.wake:
		case <-q.done:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Len returns the number of undelivered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close discards pending events and wakes the poller with ErrDisconnected.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.pending = nil
	close(q.done)
}

func (q *Queue) observe(outcome string) {
	if q.recorder != nil {
		q.recorder.ObserveEvent(outcome)
	}
}
