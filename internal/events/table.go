package events

import "github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"

// Key identifies a callback slot.
type Key struct {
	Widget widget.ID
	Event  string
}

// Table maps opaque handles to sandbox callbacks and (widget, event) keys
// to handles. It is owned by the sandbox loop and is not synchronized.
type Table[F any] struct {
	next     widget.Handle
	handlers map[widget.Handle]F
	bindings map[Key]widget.Handle
}

func NewTable[F any]() *Table[F] {
	return &Table[F]{
		handlers: make(map[widget.Handle]F),
		bindings: make(map[Key]widget.Handle),
	}
}

// Register stores fn under a fresh handle. The handle is not reachable by
// events until Bind is called.
func (t *Table[F]) Register(fn F) widget.Handle {
	t.next++
	t.handlers[t.next] = fn
	return t.next
}

// Bind points key at h, releasing whatever handle the key held before.
func (t *Table[F]) Bind(key Key, h widget.Handle) {
	if old, ok := t.bindings[key]; ok && old != h {
		delete(t.handlers, old)
	}
	t.bindings[key] = h
}

// Release forgets an unbound handle, e.g. after the host rejected the
// batch that carried it.
func (t *Table[F]) Release(h widget.Handle) {
	for _, bound := range t.bindings {
		if bound == h {
			return
		}
	}
	delete(t.handlers, h)
}

// Unbind drops the callback bound to key.
func (t *Table[F]) Unbind(key Key) {
	if h, ok := t.bindings[key]; ok {
		delete(t.bindings, key)
		delete(t.handlers, h)
	}
}

// Lookup returns the callback bound to key.
func (t *Table[F]) Lookup(key Key) (F, bool) {
	var zero F
	h, ok := t.bindings[key]
	if !ok {
		return zero, false
	}
	fn, ok := t.handlers[h]
	if !ok {
		return zero, false
	}
	return fn, true
}

// Len returns the number of live handles.
func (t *Table[F]) Len() int {
	return len(t.handlers)
}
