// Package events returns user interaction from the renderer to the sandbox.
//
// The host pushes (widget id, event name) records into a Queue from any
// goroutine. The sandbox pulls them one at a time and delivers each record
// through its own callback Table, so plugin callbacks only ever run on the
// sandbox loop.
package events
