// Package httpserver serves the read-only HTTP surface of a running
// worldsave watcher.
//
// Routes:
//
//	GET /health         liveness
//	GET /slots          slot infos, ?sort=recent orders by save date
//	GET /slots/{name}   one slot info
//	GET /metrics        Prometheus metrics, when a registry is configured
//	GET /events         websocket stream of slot changes, when a Feed is configured
//
// JSON responses use the Response envelope.
package httpserver
