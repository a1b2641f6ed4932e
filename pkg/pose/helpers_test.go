package pose

import (
	"math"
	"time"
)

// baseTime is a fixed reference point so result timestamps are deterministic.
var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// polar returns the landmark r units from origin in direction deg, measured
// the way image coordinates run (y grows downwards).
func polar(origin Landmark, deg, r float64) Landmark {
	rad := deg * math.Pi / 180
	return Landmark{
		X:          origin.X + r*math.Cos(rad),
		Y:          origin.Y + r*math.Sin(rad),
		Visibility: origin.Visibility,
	}
}

// uniformFrame returns a complete frame with every landmark at (0.5, 0.5)
// and the given visibility.
func uniformFrame(vis float64) Frame {
	f := make(Frame, LandmarkCount)
	for i := range f {
		f[i] = Landmark{X: 0.5, Y: 0.5, Visibility: vis}
	}
	return f
}

// goodFormFrame builds a complete frame whose elbows measure 90° and 92° and
// whose shoulders measure 80° and 82°, all landmarks at visibility 0.9.
func goodFormFrame() Frame {
	f := uniformFrame(0.9)

	ls := Landmark{X: 0.4, Y: 0.3, Visibility: 0.9}
	rs := Landmark{X: 0.6, Y: 0.3, Visibility: 0.9}
	f[LeftShoulder], f[RightShoulder] = ls, rs
	f[LeftHip] = polar(ls, 90, 0.3)
	f[RightHip] = polar(rs, 90, 0.3)

	// Shoulder angle is measured between the hip (straight down, 90°) and
	// the elbow.
	f[LeftElbow] = polar(ls, 90+80, 0.15)
	f[RightElbow] = polar(rs, 90-82, 0.15)

	// Elbow angle is measured between the shoulder and the wrist.
	f[LeftWrist] = polar(f[LeftElbow], -10+90, 0.15)
	f[RightWrist] = polar(f[RightElbow], 188-92, 0.15)

	f[LeftKnee] = polar(f[LeftHip], 90, 0.2)
	f[RightKnee] = polar(f[RightHip], 90, 0.2)
	f[LeftAnkle] = polar(f[LeftKnee], 90, 0.2)
	f[RightAnkle] = polar(f[RightKnee], 90, 0.2)
	return f
}

// shift returns a copy of f with every landmark moved by (dx, dy).
func shift(f Frame, dx, dy float64) Frame {
	out := make(Frame, len(f))
	for i, lm := range f {
		lm.X += dx
		lm.Y += dy
		out[i] = lm
	}
	return out
}

func mustAnalyzer(cfg Config) *Analyzer {
	a, err := NewAnalyzer(cfg)
	if err != nil {
		panic(err)
	}
	return a
}
