package pose

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/spatial/r2"
)

// Landmark is one detected body keypoint. X, Y and Z are normalized to the
// frame; Visibility is the detector's confidence in [0, 1].
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`

	// Missing marks a slot the detector left empty. Such a landmark is
	// absent even though its index lies inside the frame.
	Missing bool `json:"-"`
}

// Vec returns the landmark's position in the image plane.
func (l Landmark) Vec() r2.Vec {
	return r2.Vec{X: l.X, Y: l.Y}
}

// Frame is one detection cycle's landmarks, indexed by LandmarkIndex.
// The engine only reads frames; callers own them.
type Frame []Landmark

// At returns the landmark at i. ok is false when i falls outside the frame
// or the slot is Missing; callers treat both as an absent landmark.
func (f Frame) At(i LandmarkIndex) (Landmark, bool) {
	if i < 0 || int(i) >= len(f) || f[i].Missing {
		return Landmark{}, false
	}
	return f[i], true
}

// UnmarshalJSON decodes a landmark array in which null stands for an
// undetected keypoint.
func (f *Frame) UnmarshalJSON(b []byte) error {
	var raw []*Landmark
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*f = nil
		return nil
	}
	out := make(Frame, len(raw))
	for i, lm := range raw {
		if lm == nil {
			out[i] = Landmark{Missing: true}
			continue
		}
		out[i] = *lm
	}
	*f = out
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (f Frame) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	raw := make([]*Landmark, len(f))
	for i := range f {
		if !f[i].Missing {
			raw[i] = &f[i]
		}
	}
	return json.Marshal(raw)
}

// Visibility returns the visibility of landmark i, or 0 when it is absent
// or not a number.
func (f Frame) Visibility(i LandmarkIndex) float64 {
	lm, ok := f.At(i)
	if !ok || math.IsNaN(lm.Visibility) {
		return 0
	}
	return lm.Visibility
}

// LandmarkIndex is a position in the BlazePose landmark topology.
type LandmarkIndex int

// BlazePose landmark indices.
const (
	Nose LandmarkIndex = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	// LandmarkCount is the size of a complete frame.
	LandmarkCount int = iota
)

var landmarkNames = [LandmarkCount]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// String returns the snake_case landmark name, e.g. "left_shoulder".
func (i LandmarkIndex) String() string {
	if i < 0 || int(i) >= LandmarkCount {
		return "landmark(" + strconv.Itoa(int(i)) + ")"
	}
	return landmarkNames[i]
}

// MarshalText encodes the index as its landmark name.
func (i LandmarkIndex) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText decodes a landmark name.
func (i *LandmarkIndex) UnmarshalText(b []byte) error {
	idx, ok := ParseLandmark(string(b))
	if !ok {
		return fmt.Errorf("pose: unknown landmark %q", b)
	}
	*i = idx
	return nil
}

// LandmarkNames returns every landmark name in index order.
func LandmarkNames() []string {
	out := make([]string, LandmarkCount)
	copy(out, landmarkNames[:])
	return out
}

// ParseLandmark resolves a snake_case landmark name.
func ParseLandmark(name string) (LandmarkIndex, bool) {
	for i, n := range landmarkNames {
		if n == name {
			return LandmarkIndex(i), true
		}
	}
	return 0, false
}

// Reading pairs a landmark index with the visibility observed for it.
type Reading struct {
	Index      LandmarkIndex
	Visibility float64
}

// ReadVisibility returns one Reading per index, in order. Absent landmarks
// read as visibility 0.
func ReadVisibility(f Frame, indices []LandmarkIndex) []Reading {
	out := make([]Reading, len(indices))
	for i, idx := range indices {
		out[i] = Reading{Index: idx, Visibility: f.Visibility(idx)}
	}
	return out
}
