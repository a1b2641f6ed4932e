package api

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/formcheck/formcheck/pkg/pose"
	"github.com/formcheck/formcheck/server/internal/store"
)

// DiagnosticHint is one human-readable insight about a session's form.
// The dashboard displays these as chips on the session card; clicking one
// shows Detail.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints from a session's latest state.
// Hints are ordered: critical first, then warnings, then info.
func computeDiagnostics(e *store.Entry) []DiagnosticHint {
	hints := make([]DiagnosticHint, 0)

	if e.LastError != "" {
		hints = append(hints, DiagnosticHint{
			Key:   "source_error",
			Level: "critical",
			Title: "Can't read frames",
			Detail: fmt.Sprintf(
				"The agent could not read the last frame from this session's detector: %q. "+
					"Check that the detector is running and the source path or endpoint is correct. "+
					"The values shown are from the last frame that was analyzed.",
				e.LastError,
			),
		})
	}

	rec := e.Record
	if rec == nil {
		hints = append(hints, DiagnosticHint{
			Key:    "warming_up",
			Level:  "info",
			Title:  "Waiting for frames",
			Detail: "No frame has been analyzed for this session yet.",
		})
		return hints
	}

	for _, v := range rec.Violations {
		hints = append(hints, DiagnosticHint{
			Key:   fmt.Sprintf("zone_%d_%s", v.ZoneIndex, v.BodyPart),
			Level: "critical",
			Title: fmt.Sprintf("%s in zone %d", v.BodyPart, v.ZoneIndex),
			Detail: fmt.Sprintf(
				"The %s entered exclusion zone %d. Ask the patient to move back "+
					"to the marked area before continuing.",
				v.BodyPart, v.ZoneIndex,
			),
		})
	}

	var ranges, hidden []string
	for _, f := range rec.Failures {
		switch f.Check {
		case pose.CheckRange:
			ranges = append(ranges, f.Subject)
		case pose.CheckVisibility:
			hidden = append(hidden, f.Subject)
		}
	}
	if len(ranges) > 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "out_of_range",
			Level: "warning",
			Title: "Joint out of range",
			Detail: fmt.Sprintf(
				"These joints are outside the range set for %s: %s. "+
					"A joint the camera cannot measure also counts as out of range.",
				rec.Exercise, strings.Join(ranges, ", "),
			),
		})
	}
	if len(hidden) > 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "required_hidden",
			Level: "warning",
			Title: "Arms not fully visible",
			Detail: fmt.Sprintf(
				"The camera cannot see these landmarks clearly: %s. "+
					"Check lighting and make sure the patient's upper body is in frame.",
				strings.Join(hidden, ", "),
			),
		})
	}

	if p := rec.Penalties.Visibility; p > 0 {
		v := p
		hints = append(hints, DiagnosticHint{
			Key:   "low_visibility",
			Level: "info",
			Title: "Partially occluded",
			Detail: fmt.Sprintf(
				"%d key landmark(s) are hard to see (%s), costing %.0f points.",
				len(rec.LowVisibility), strings.Join(rec.LowVisibility, ", "), p,
			),
			Value: &v,
		})
	}
	if p := rec.Penalties.Symmetry; p > 0 {
		v := p
		hints = append(hints, DiagnosticHint{
			Key:    "asymmetry",
			Level:  "warning",
			Title:  "Left/right imbalance",
			Detail: fmt.Sprintf("The two sides are moving differently, costing %.0f points. Cue the patient to even out both arms.", p),
			Value:  &v,
		})
	}
	if p := rec.Penalties.Stability; p > 0 {
		v := rec.Jitter
		hints = append(hints, DiagnosticHint{
			Key:    "unsteady",
			Level:  "info",
			Title:  "Unsteady",
			Detail: fmt.Sprintf("Shoulders and elbows are shaking between frames (jitter %.3f), costing %.0f points.", rec.Jitter, p),
			Value:  &v,
		})
	}

	if rec.Valid && len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "good_form",
			Level:  "ok",
			Title:  "Good form",
			Detail: "All checks pass for this exercise.",
		})
	}

	slices.SortStableFunc(hints, func(a, b DiagnosticHint) int {
		return cmp.Compare(levelRank[a.Level], levelRank[b.Level])
	})
	return hints
}
