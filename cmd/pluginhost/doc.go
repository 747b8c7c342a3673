// Package main is the entry point for the plugin host.
//
// The host loads one plugin directory, evaluates its script inside a goja
// sandbox and presents the widget trees it renders to renderer clients.
//
// Architecture:
//
//	Plugin script (goja) → capability ops → render bridge → host loop
//	                                                      → renderers (WebSocket)
//	Renderers → event queue → sandbox callbacks
//
// Endpoints:
//   - GET /ws: renderer WebSocket (render pushes out, UI events in)
//   - GET /metrics: Prometheus metrics
//   - GET /healthz: plugin id, connected renderers, pending requests
//
// Configuration:
//   - Environment variables (PORT, PLUGIN_DIR, SANDBOX_TIMEOUT, ASSETS_RETRIES, ...)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Serve ./plugins/notes on the default port
//	./pluginhost -plugin ./plugins/notes
//
//	# Development mode (colored console logs)
//	./pluginhost -plugin ./plugins/notes -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
