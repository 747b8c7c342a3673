// Package middleware provides the HTTP middleware in front of the renderer
// endpoints.
//
//   - CORS: cross-origin reads of /healthz and /metrics from configured
//     renderer origins
//   - RateLimit: per-IP token bucket, applied to WebSocket upgrades as well;
//     idle clients are evicted
//
// Example Usage:
//
//	router.Use(middleware.CORS(cfg.Server.AllowOrigins))
//	router.Use(middleware.RateLimit(cfg.RateLimit))
package middleware
