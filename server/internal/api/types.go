package api

import (
	"github.com/formcheck/formcheck/pkg/pose"
	"github.com/formcheck/formcheck/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	MeanScore    float64 `json:"mean_score"`
	State        string  `json:"state"`
	SessionCount int     `json:"session_count"`
	ValidCount   int     `json:"valid_count"`
	InvalidCount int     `json:"invalid_count"`
	PendingCount int     `json:"pending_count"` // no analysis received yet
	ErrorCount   int     `json:"error_count"`   // last record was a source error
	AlertCount   int     `json:"alert_count"`
}

// SessionResponse is one session entry in GET /api/v1/sessions or
// GET /api/v1/sessions/{id}.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Exercise  string `json:"exercise"`
	State     string `json:"state"`

	FormScore     int                 `json:"form_score"`
	Valid         bool                `json:"valid"`
	Jitter        float64             `json:"jitter"`
	Angles        map[string]*float64 `json:"angles"`
	Penalties     types.Penalties     `json:"penalties"`
	LowVisibility []string            `json:"low_visibility"`
	Failures      []pose.Failure      `json:"failures"`
	Violations    []pose.Violation    `json:"violations"`

	Sequence    uint64  `json:"sequence"`
	Frames      uint64  `json:"frames"`
	ValidFrames uint64  `json:"valid_frames"`
	ValidRatio  float64 `json:"valid_ratio"`
	Errors      uint64  `json:"errors"`
	LastError   string  `json:"last_error,omitempty"`

	Diagnostics []DiagnosticHint `json:"diagnostics"`
	CapturedAt  string           `json:"captured_at,omitempty"` // RFC3339Nano
	LastSeen    string           `json:"last_seen"`             // RFC3339
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and for every
// WebSocket push.
type SnapshotResponse struct {
	Health      HealthResponse    `json:"health"`
	Sessions    []SessionResponse `json:"sessions"`
	GeneratedAt string            `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
