// Package api implements the HTTP REST API for formcheck-server.
//
// New(store, alerts) returns a Handler that serves:
//
//	GET /api/v1/health          mean form score, state, per-state counts
//	GET /api/v1/sessions        all live sessions ([]SessionResponse)
//	GET /api/v1/sessions/{id}   single session; 404 if unknown or stale
//	GET /api/v1/alerts          firing and recently resolved alerts
//	GET /api/v1/snapshot        health plus all live sessions + generated_at
//	GET /metrics                Prometheus text exposition of the same state
//
// JSON endpoints respond with Content-Type: application/json. All endpoints
// return 405 for non-GET methods and exclude stale sessions. JSON types are
// defined in types.go. No external HTTP framework is used.
package api
