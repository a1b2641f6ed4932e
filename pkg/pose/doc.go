// Package pose turns one frame of detected body landmarks into quality and
// safety signals: joint angles, a 0–100 form score, a pose-validity verdict
// and exclusion-zone violations.
//
// landmark.go defines the 33-point BlazePose topology and the Frame type.
// Out-of-range indices read as absent (visibility 0); nothing in this package
// panics or returns an error on degraded input.
//
// angle.go computes interior joint angles. An angle is a tagged value:
// Measured(deg) or Unmeasurable() when a landmark is absent.
//
// stability.go tracks frame-to-frame jitter. StabilityState is a value that
// callers thread through successive calls; its zero value means "no history"
// and yields zero jitter.
//
// score.go provides the pure ComputeScore(ScoreInput) function:
// 100 minus visibility, symmetry and stability penalties, clamped to [0,100].
//
// validity.go provides Validate, a conjunctive gate over required-landmark
// visibility, the form score and per-exercise angle ranges.
//
// zones.go tests extremity landmarks against caller-supplied zones.
//
// engine.go assembles the pieces. Analyzer.Analyze is pure; Engine keeps one
// StabilityState per session and is safe for concurrent use.
package pose
