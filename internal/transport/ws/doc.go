// Package ws connects renderer clients to the plugin host over WebSocket.
//
// The Handler is the host's Frontend: every host action is broadcast to all
// connected renderers as a JSON frame. Renderers send user interaction back
// as event frames, which are queued for the sandbox.
//
// Message Types (Client → Server):
//   - event: {"type":"event","widget_id":5,"event_name":"onClick"}
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection established
//   - render: Accepted render payload
//   - plugin_error_view, preferences_required, clear_inline_view
//   - hud, hide_window, loading_bar
//   - pong, error
//
// Example Usage:
//
//	handler := ws.NewHandler(queue, ws.WithMetrics(metrics), ws.WithLogger(logger))
//	router.GET("/ws", handler.HandleConnection)
package ws
