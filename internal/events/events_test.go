package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

type callback func(ev Event)

func invokeCallback(fn callback, ev Event) error {
	fn(ev)
	return nil
}

func widgetID(n uint32) widget.ID { return widget.ID(n) }

func widgetEvent(n uint32, name string) Event {
	return Event{Widget: widget.ID(n), Name: name}
}

func TestDeliverInvokesOnlyMatchingCallback(t *testing.T) {
	table := NewTable[callback]()
	calls := map[string]int{}
	record := func(label string) callback {
		return func(Event) { calls[label]++ }
	}

	table.Bind(Key{Widget: 5, Event: "onSelect"}, table.Register(record("5/onSelect")))
	table.Bind(Key{Widget: 5, Event: "onChange"}, table.Register(record("5/onChange")))
	table.Bind(Key{Widget: 6, Event: "onSelect"}, table.Register(record("6/onSelect")))

	d := NewDispatcher(NewQueue(nil), table, invokeCallback, nil)
	assert.True(t, d.Deliver(Event{Widget: 5, Name: "onSelect"}))

	assert.Equal(t, map[string]int{"5/onSelect": 1}, calls)
}

func TestDeliverWithoutHandler(t *testing.T) {
	d := NewDispatcher(NewQueue(nil), NewTable[callback](), invokeCallback, nil)
	assert.False(t, d.Deliver(Event{Widget: 1, Name: "onAction"}))
}

func TestDeliverReportsHandlerFailure(t *testing.T) {
	table := NewTable[callback]()
	table.Bind(Key{Widget: 1, Event: "onAction"}, table.Register(func(Event) {}))

	failing := func(callback, Event) error { return errors.New("boom") }
	d := NewDispatcher(NewQueue(nil), table, failing, nil)
	assert.True(t, d.Deliver(Event{Widget: 1, Name: "onAction"}))
}

func TestTableRebindReleasesOldHandle(t *testing.T) {
	table := NewTable[string]()
	key := Key{Widget: 3, Event: "onClick"}

	first := table.Register("first")
	table.Bind(key, first)
	second := table.Register("second")
	table.Bind(key, second)

	fn, ok := table.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, "second", fn)
	assert.Equal(t, 1, table.Len())
	assert.NotEqual(t, first, second)
}

func TestTableRelease(t *testing.T) {
	table := NewTable[string]()
	key := Key{Widget: 3, Event: "onClick"}

	bound := table.Register("bound")
	table.Bind(key, bound)
	orphan := table.Register("orphan")

	table.Release(orphan)
	table.Release(bound)
	assert.Equal(t, 1, table.Len())

	table.Unbind(key)
	_, ok := table.Lookup(key)
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
}

func TestQueueDeliversEachEventOnce(t *testing.T) {
	q := NewQueue(nil)
	require.NoError(t, q.Push(Event{Widget: 1, Name: "a"}))
	require.NoError(t, q.Push(Event{Widget: 2, Name: "b"}))

	ctx := context.Background()
	ev, err := q.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, Event{Widget: 1, Name: "a"}, ev)

	ev, err = q.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, Event{Widget: 2, Name: "b"}, ev)
	assert.Equal(t, 0, q.Len())
}

func TestQueueRejectsIncompleteEvents(t *testing.T) {
	q := NewQueue(nil)
	assert.Error(t, q.Push(Event{Name: "onAction"}))
	assert.Error(t, q.Push(Event{Widget: 1}))
}

func TestQueueNextSuspendsUntilPush(t *testing.T) {
	q := NewQueue(nil)
	got := make(chan Event, 1)
	go func() {
		ev, err := q.Next(context.Background())
		if err == nil {
			got <- ev
		}
	}()

	select {
	case <-got:
		t.Fatal("Next returned before any event was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, q.Push(Event{Widget: 9, Name: "onAction"}))
	select {
	case ev := <-got:
		assert.Equal(t, widgetEvent(9, "onAction"), ev)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not wake on push")
	}
}

func TestQueueCloseDisconnectsPoller(t *testing.T) {
	q := NewQueue(nil)
	errc := make(chan error, 1)
	go func() {
		_, err := q.Next(context.Background())
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()
	q.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("poller hung after Close")
	}
	assert.ErrorIs(t, q.Push(Event{Widget: 1, Name: "a"}), ErrDisconnected)
}

func TestRunSchedulesDeliveriesInOrder(t *testing.T) {
	q := NewQueue(nil)
	table := NewTable[callback]()

	var seen []Event
	for _, w := range []uint32{1, 2, 3} {
		table.Bind(Key{Widget: widgetID(w), Event: "onAction"}, table.Register(func(ev Event) {
			seen = append(seen, ev)
		}))
	}

	// A single goroutine stands in for the sandbox loop.
	loop := make(chan func(), 8)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		for fn := range loop {
			fn()
		}
	}()

	d := NewDispatcher(q, table, invokeCallback, nil)
	runErr := make(chan error, 1)
	go func() {
		runErr <- d.Run(context.Background(), func(fn func()) bool {
			loop <- fn
			return true
		})
	}()

	for _, w := range []uint32{1, 2, 3} {
		require.NoError(t, q.Push(Event{Widget: widgetID(w), Name: "onAction"}))
	}
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)

	q.Close()
	require.NoError(t, <-runErr)
	close(loop)
	<-loopDone

	assert.Equal(t, []Event{
		widgetEvent(1, "onAction"),
		widgetEvent(2, "onAction"),
		widgetEvent(3, "onAction"),
	}, seen)
}

func TestRunStopsWhenLoopIsGone(t *testing.T) {
	q := NewQueue(nil)
	d := NewDispatcher(q, NewTable[callback](), invokeCallback, nil)
	require.NoError(t, q.Push(Event{Widget: 1, Name: "a"}))

	err := d.Run(context.Background(), func(func()) bool { return false })
	assert.NoError(t, err)
}

func TestRunHonorsContext(t *testing.T) {
	d := NewDispatcher(NewQueue(nil), NewTable[callback](), invokeCallback, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := d.Run(ctx, func(func()) bool { return true })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
