package types

import (
	"errors"
	"maps"
	"slices"

	"github.com/formcheck/formcheck/pkg/pose"
)

// AnalysisRecord is one analyzed frame as shipped to the server.
type AnalysisRecord struct {
	SessionID       string `json:"session_id"`
	Exercise        string `json:"exercise"`
	Sequence        uint64 `json:"sequence"`
	TimestampUnixMs int64  `json:"timestamp_unix_ms"`

	// Angles maps joint names to degrees. Unmeasurable joints are present
	// with a nil value.
	Angles map[string]*float64 `json:"angles"`

	FormScore int     `json:"form_score"`
	Valid     bool    `json:"valid"`
	Jitter    float64 `json:"jitter"`

	Penalties     Penalties        `json:"penalties"`
	LowVisibility []string         `json:"low_visibility,omitempty"`
	Failures      []pose.Failure   `json:"failures,omitempty"`
	Violations    []pose.Violation `json:"violations"`

	// ErrorMessage is set when the frame could not be read from its source.
	// Such records carry no analysis.
	ErrorMessage string `json:"error_message,omitempty"`
}

// Penalties is the points deducted from the form score per factor.
type Penalties struct {
	Visibility float64 `json:"visibility"`
	Symmetry   float64 `json:"symmetry"`
	Stability  float64 `json:"stability"`
}

// SendResponse acknowledges an AnalysisRecord.
type SendResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// FromResult flattens a pose.Result into a record for sessionID.
func FromResult(sessionID, exercise string, seq uint64, r pose.Result) *AnalysisRecord {
	rec := &AnalysisRecord{
		SessionID:       sessionID,
		Exercise:        exercise,
		Sequence:        seq,
		TimestampUnixMs: r.Timestamp.UnixMilli(),
		Angles:          make(map[string]*float64, len(r.Angles)),
		FormScore:       r.FormScore,
		Valid:           r.IsValidPose,
		Jitter:          r.Jitter,
		Penalties: Penalties{
			Visibility: r.Score.VisibilityPenalty,
			Symmetry:   r.Score.SymmetryPenalty,
			Stability:  r.Score.StabilityPenalty,
		},
		Failures:   slices.Clone(r.Failures),
		Violations: slices.Clone(r.Violations),
	}
	if rec.Violations == nil {
		rec.Violations = []pose.Violation{}
	}
	for j, a := range r.Angles {
		if deg, ok := a.Degrees(); ok {
			rec.Angles[string(j)] = &deg
		} else {
			rec.Angles[string(j)] = nil
		}
	}
	for _, idx := range r.Score.LowVisibility {
		rec.LowVisibility = append(rec.LowVisibility, idx.String())
	}
	return rec
}

// Angle returns the angle recorded for joint and whether it was measured.
func (r *AnalysisRecord) Angle(joint string) (float64, bool) {
	v, ok := r.Angles[joint]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Joints returns the recorded joint names in sorted order.
func (r *AnalysisRecord) Joints() []string {
	return slices.Sorted(maps.Keys(r.Angles))
}

// Validate checks the fields the server relies on.
func (r *AnalysisRecord) Validate() error {
	var errs []error
	if r.SessionID == "" {
		errs = append(errs, errors.New("session_id is required"))
	}
	if r.ErrorMessage == "" && (r.FormScore < pose.MinScore || r.FormScore > pose.MaxScore) {
		errs = append(errs, errors.New("form_score must be within [0, 100]"))
	}
	for _, v := range r.Violations {
		if v.ZoneIndex < 0 {
			errs = append(errs, errors.New("violation zone_index must not be negative"))
			break
		}
	}
	return errors.Join(errs...)
}
