package pose

import "math"

// Score bounds.
const (
	MaxScore = 100
	MinScore = 0
)

// ScoreInput holds everything the form scorer reads. ComputeScore has no
// other inputs and no hidden state.
type ScoreInput struct {
	// Critical is the visibility of each critical landmark.
	Critical []Reading

	// Left and Right are the symmetry pair's angles.
	Left  Angle
	Right Angle

	// Jitter is the stability tracker's output for this frame.
	Jitter float64

	Thresholds Thresholds
}

// ScoreOutput is the form score and the penalties that produced it.
type ScoreOutput struct {
	// Score is the form score in [0, 100].
	Score int `json:"score"`

	// Points deducted per factor. Each is zero when its condition did
	// not hold.
	VisibilityPenalty float64 `json:"visibility_penalty"`
	SymmetryPenalty   float64 `json:"symmetry_penalty"`
	StabilityPenalty  float64 `json:"stability_penalty"`

	// LowVisibility lists the critical landmarks below the visibility floor.
	LowVisibility []LandmarkIndex `json:"low_visibility,omitempty"`
}

// ComputeScore calculates the form score:
//
//	score = 100
//	      - VisibilityPenalty per critical landmark below VisibilityFloor
//	      - SymmetryPenalty   if |left - right| > SymmetryLimit
//	      - StabilityPenalty  if jitter > StabilityLimit
//
// rounded and clamped to [0, 100]. The symmetry penalty needs both angles
// measured; an unmeasurable pair is already paid for by visibility.
func ComputeScore(in ScoreInput) ScoreOutput {
	th := in.Thresholds
	var out ScoreOutput

	for _, r := range in.Critical {
		if r.Visibility < th.VisibilityFloor {
			out.VisibilityPenalty += th.VisibilityPenalty
			out.LowVisibility = append(out.LowVisibility, r.Index)
		}
	}

	left, okL := in.Left.Degrees()
	right, okR := in.Right.Degrees()
	if okL && okR && math.Abs(left-right) > th.SymmetryLimit {
		out.SymmetryPenalty = th.SymmetryPenalty
	}

	if in.Jitter > th.StabilityLimit {
		out.StabilityPenalty = th.StabilityPenalty
	}

	raw := MaxScore - out.VisibilityPenalty - out.SymmetryPenalty - out.StabilityPenalty
	out.Score = clampScore(int(math.Round(raw)))
	return out
}

// clampScore restricts s to [MinScore, MaxScore].
func clampScore(s int) int {
	if s < MinScore {
		return MinScore
	}
	if s > MaxScore {
		return MaxScore
	}
	return s
}
