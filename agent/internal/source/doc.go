// Package source reads landmark frames for one analysis session.
//
// Implemented sources: JSONL replay (jsonl.go) and HTTP polling of a
// detector endpoint (http.go). Factory: New(config.Session, pollInterval)
// returns the correct Source.
//
// Both sources decode the same JSON object per frame:
//
//	{"timestamp_ms": 1767225600123, "reset": false,
//	 "landmarks": [{"x": 0.41, "y": 0.30, "z": -0.1, "visibility": 0.98}, ...]}
//
// A frame that cannot be decoded is returned as a Sample with Err set so the
// session keeps running. Next returns io.EOF once a finite source is
// exhausted.
//
// Authentication (API key, bearer token, basic) for the HTTP source is
// handled by authRoundTripper in base.go.
package source
