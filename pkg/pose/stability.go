package pose

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// StabilityState is the previous frame's positions of the tracked landmarks.
// The zero value has no history. A state belongs to exactly one session;
// Track never modifies the state it is given.
type StabilityState struct {
	positions []r2.Vec
	present   []bool
}

// HasHistory reports whether a previous frame has been recorded.
func (s StabilityState) HasHistory() bool {
	return s.positions != nil
}

// Reset discards the recorded frame. It must be called when a session
// restarts, otherwise the first frame of the new session is compared with
// the last frame of the old one.
func (s *StabilityState) Reset() {
	*s = StabilityState{}
}

// Track returns the mean (x, y) displacement of the landmarks at indices
// between prev and f, and the state to pass to the next call.
//
// Without history the jitter is 0. A landmark absent from either frame adds
// no displacement but still counts towards the mean.
func Track(f Frame, prev StabilityState, indices []LandmarkIndex) (float64, StabilityState) {
	next := StabilityState{
		positions: make([]r2.Vec, len(indices)),
		present:   make([]bool, len(indices)),
	}
	for i, idx := range indices {
		if lm, ok := f.At(idx); ok {
			next.positions[i] = lm.Vec()
			next.present[i] = true
		}
	}

	// A tracked set that changed size (configuration reload) has no usable
	// history either.
	if !prev.HasHistory() || len(prev.positions) != len(indices) || len(indices) == 0 {
		return 0, next
	}

	moved := make([]float64, len(indices))
	for i := range indices {
		if next.present[i] && prev.present[i] {
			moved[i] = r2.Norm(r2.Sub(next.positions[i], prev.positions[i]))
		}
	}
	return floats.Sum(moved) / float64(len(indices)), next
}
