// Package host is the trusted side of the plugin boundary.
//
// A Host owns the widget tree, the last accepted render per location and
// the plugin's declared data. Serve consumes render bridge envelopes one at
// a time, so host effects happen in submission order, and every envelope
// gets exactly one reply. Presentation is delegated to a Frontend.
package host
