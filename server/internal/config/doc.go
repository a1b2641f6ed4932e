// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` and `analysis:` keys are ignored by the server
// binary).
//
// Config fields:
//   - GRPCPort: port for the gRPC receiver (default 50051)
//   - HTTPPort: port for the REST API and WebSocket hub (default 8080)
//   - Auth.Mode: "apikey" or "none"
//   - Auth.KeyEnv: environment variable holding the expected API key
//   - Auth.Header: gRPC metadata/HTTP header name (default "x-api-key")
//   - Store.TTL: how long an idle session remains live (default 5m)
//   - BroadcastInterval: WebSocket snapshot period (default 1s)
//   - Alerts: rules and webhooks
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
