package pose

import (
	"encoding/json"
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r2"
)

// Angle is a joint angle that may not have been measurable. The zero value
// is Unmeasurable, so a missing entry never reads as a real 0°.
type Angle struct {
	deg      float64
	measured bool
}

// Measured returns an Angle holding deg degrees.
func Measured(deg float64) Angle {
	return Angle{deg: deg, measured: true}
}

// Unmeasurable returns an Angle for a joint whose landmarks were absent.
func Unmeasurable() Angle {
	return Angle{}
}

// Degrees returns the angle and whether it was measured.
func (a Angle) Degrees() (float64, bool) {
	return a.deg, a.measured
}

// IsMeasured reports whether the angle holds a value.
func (a Angle) IsMeasured() bool {
	return a.measured
}

func (a Angle) String() string {
	if !a.measured {
		return "unmeasurable"
	}
	return strconv.FormatFloat(a.deg, 'f', 1, 64) + "°"
}

// MarshalJSON encodes a measured angle as a number and an unmeasurable one
// as null.
func (a Angle) MarshalJSON() ([]byte, error) {
	if !a.measured {
		return []byte("null"), nil
	}
	return json.Marshal(a.deg)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (a *Angle) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = Unmeasurable()
		return nil
	}
	var deg float64
	if err := json.Unmarshal(b, &deg); err != nil {
		return err
	}
	*a = Measured(deg)
	return nil
}

// JointAngleSet holds one Angle per configured joint.
type JointAngleSet map[Joint]Angle

// AngleBetween returns the interior angle at b, in degrees within [0, 180],
// between the segments b→a and b→c. Only directions matter, so a degenerate
// triple (a == c) yields 0 and opposite directions yield 180.
func AngleBetween(a, b, c Landmark) float64 {
	ba := r2.Sub(a.Vec(), b.Vec())
	bc := r2.Sub(c.Vec(), b.Vec())

	rad := math.Atan2(bc.Y, bc.X) - math.Atan2(ba.Y, ba.X)
	deg := math.Abs(rad * 180 / math.Pi)
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// JointAngle measures the joint described by t in f. It returns Unmeasurable
// when any of the three landmarks is outside the frame.
func JointAngle(f Frame, t JointTriple) Angle {
	a, okA := f.At(t.Proximal)
	b, okB := f.At(t.Vertex)
	c, okC := f.At(t.Distal)
	if !okA || !okB || !okC {
		return Unmeasurable()
	}
	return Measured(AngleBetween(a, b, c))
}

// ComputeAngles measures every joint in the table. The set is rebuilt on
// every call.
func ComputeAngles(f Frame, joints map[Joint]JointTriple) JointAngleSet {
	out := make(JointAngleSet, len(joints))
	for j, t := range joints {
		out[j] = JointAngle(f, t)
	}
	return out
}
