/*
Package monitoring collects Prometheus metrics for the plugin host.

Metrics covers render bridge requests, capability ops, render submissions,
UI events, image asset resolutions and renderer WebSocket traffic. Every
Metrics owns its registry, so tests and multiple hosts in one process do
not collide.

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	ch := bridge.New(bridge.WithRecorder(metrics))

	timer := monitoring.NewTimer(metrics, "show_hud")
	// ...
	timer.Stop("ok")
*/
package monitoring
