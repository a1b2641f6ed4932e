package pose

import (
	"maps"
	"slices"
	"strconv"
)

// Validity check names reported in Failure.Check.
const (
	CheckVisibility = "visibility"
	CheckScore      = "score"
	CheckRange      = "range"
)

// Failure is one failed validity check. Subject names the landmark or joint
// that failed; it is the score itself for CheckScore.
type Failure struct {
	Check   string `json:"check"`
	Subject string `json:"subject"`
}

// ValidityInput holds everything the validity classifier reads.
type ValidityInput struct {
	// Required is the visibility of each required landmark.
	Required []Reading

	FormScore int
	Angles    JointAngleSet

	// Ranges is the active exercise profile.
	Ranges Profile

	Thresholds Thresholds
}

// ValidityOutput is the verdict and every check that failed.
type ValidityOutput struct {
	Valid    bool
	Failures []Failure
}

// Validate applies the conjunctive validity gate. A pose is valid only when
// every required landmark reaches RequiredVisibility, the score reaches
// MinValidScore and every ranged joint is measured and strictly inside its
// range. All checks run so Failures is complete.
func Validate(in ValidityInput) ValidityOutput {
	th := in.Thresholds
	var out ValidityOutput

	for _, r := range in.Required {
		if r.Visibility < th.RequiredVisibility {
			out.Failures = append(out.Failures, Failure{Check: CheckVisibility, Subject: r.Index.String()})
		}
	}

	if in.FormScore < th.MinValidScore {
		out.Failures = append(out.Failures, Failure{Check: CheckScore, Subject: strconv.Itoa(in.FormScore)})
	}

	for _, j := range slices.Sorted(maps.Keys(in.Ranges)) {
		deg, ok := in.Angles[j].Degrees()
		if !ok || !in.Ranges[j].Contains(deg) {
			out.Failures = append(out.Failures, Failure{Check: CheckRange, Subject: string(j)})
		}
	}

	out.Valid = len(out.Failures) == 0
	return out
}
