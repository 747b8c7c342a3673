// Package sandbox runs untrusted plugin JavaScript in a goja VM.
//
// The VM is not reentrant, so every touch of it happens on one goroutine
// (the run loop). Other goroutines reach the VM only by posting jobs:
//   - awaited host ops resolve their promise through a posted job
//   - setTimeout callbacks are posted when their timer fires
//   - UI events are posted by the event dispatcher
//
// The plugin sees a single global, host, carrying the capability ops.
// Function-typed widget properties are registered in a callback table owned
// by the loop; the host only ever sees opaque handles.
package sandbox
