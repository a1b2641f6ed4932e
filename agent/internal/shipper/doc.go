// Package shipper sends types.AnalysisRecord values to formcheck-server via
// gRPC (ResultService.SendResult unary RPC, see pkg/rpc).
//
// Shipper.Ship() is non-blocking: records are placed in an in-memory channel
// (default capacity 1000). When the buffer is full the oldest entry is
// evicted so the latest frames are always preserved. ShipResult and
// ShipError build the record from an engine result or a source failure.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff (1s→60s, ±25% jitter) on connection or send errors.
// Permanent gRPC errors (Unauthenticated, PermissionDenied, InvalidArgument)
// discard the record immediately rather than retrying.
//
// Auth: mTLS via credentials.NewTLS(), API key via gRPC metadata header,
// or insecure (plaintext) for local development.
//
// The dialFn field is injectable for testing.
package shipper
