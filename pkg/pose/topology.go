package pose

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Joint names an angle computed from a landmark triple.
type Joint string

// Joints computed by the default topology.
const (
	JointLeftElbow     Joint = "leftElbow"
	JointRightElbow    Joint = "rightElbow"
	JointLeftKnee      Joint = "leftKnee"
	JointRightKnee     Joint = "rightKnee"
	JointLeftShoulder  Joint = "leftShoulder"
	JointRightShoulder Joint = "rightShoulder"
)

// DefaultExercise is the profile used when a session names no exercise or
// names one that is not configured.
const DefaultExercise = "default"

// JointTriple locates a joint angle: the angle is measured at Vertex between
// the segments towards Proximal and Distal.
type JointTriple struct {
	Proximal LandmarkIndex
	Vertex   LandmarkIndex
	Distal   LandmarkIndex
}

// BodyPart is a named landmark checked against exclusion zones.
type BodyPart struct {
	Name     string
	Landmark LandmarkIndex
}

// SymmetryPair names the two joints compared by the symmetry penalty.
type SymmetryPair struct {
	Left  Joint
	Right Joint
}

// Topology is the landmark layout the engine reads.
type Topology struct {
	// Joints maps each computed joint to its landmark triple.
	Joints map[Joint]JointTriple

	// Critical landmarks cost a visibility penalty each when poorly seen.
	Critical []LandmarkIndex

	// Required landmarks must all be confidently seen for a valid pose.
	Required []LandmarkIndex

	// Stability landmarks are compared frame to frame to measure jitter.
	Stability []LandmarkIndex

	// Extremities are tested against exclusion zones.
	Extremities []BodyPart

	// Symmetry is the bilateral joint pair compared by the scorer.
	Symmetry SymmetryPair
}

// Range is an open interval of acceptable angles in degrees.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether deg lies strictly inside the range.
func (r Range) Contains(deg float64) bool {
	return deg > r.Min && deg < r.Max
}

// Profile maps joints to the angle range an exercise accepts.
// Joints without an entry are not range-checked.
type Profile map[Joint]Range

// Thresholds holds every weight and threshold used by scoring, validity and
// zone monitoring.
type Thresholds struct {
	// VisibilityFloor is the visibility below which a critical landmark
	// costs VisibilityPenalty points.
	VisibilityFloor   float64
	VisibilityPenalty float64

	// SymmetryLimit is the largest tolerated difference, in degrees,
	// between the two symmetry joints.
	SymmetryLimit   float64
	SymmetryPenalty float64

	// StabilityLimit is the largest tolerated jitter in normalized units.
	StabilityLimit   float64
	StabilityPenalty float64

	// RequiredVisibility is the minimum visibility for required landmarks.
	RequiredVisibility float64

	// MinValidScore is the lowest form score a valid pose may have.
	MinValidScore int

	// ZoneVisibilityFloor is the minimum visibility for an extremity to be
	// tested against exclusion zones.
	ZoneVisibilityFloor float64
}

// Config is the full injectable configuration of an Analyzer.
type Config struct {
	Topology   Topology
	Thresholds Thresholds
	// Exercises maps exercise names to angle-range profiles. It must contain
	// DefaultExercise.
	Exercises map[string]Profile
}

// DefaultThresholds returns the stock weights and thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		VisibilityFloor:     0.5,
		VisibilityPenalty:   10,
		SymmetryLimit:       30,
		SymmetryPenalty:     15,
		StabilityLimit:      0.1,
		StabilityPenalty:    10,
		RequiredVisibility:  0.6,
		MinValidScore:       60,
		ZoneVisibilityFloor: 0.5,
	}
}

// DefaultTopology returns the six-joint BlazePose topology.
func DefaultTopology() Topology {
	return Topology{
		Joints: map[Joint]JointTriple{
			JointLeftElbow:     {LeftShoulder, LeftElbow, LeftWrist},
			JointRightElbow:    {RightShoulder, RightElbow, RightWrist},
			JointLeftKnee:      {LeftHip, LeftKnee, LeftAnkle},
			JointRightKnee:     {RightHip, RightKnee, RightAnkle},
			JointLeftShoulder:  {LeftElbow, LeftShoulder, LeftHip},
			JointRightShoulder: {RightElbow, RightShoulder, RightHip},
		},
		Critical: []LandmarkIndex{
			LeftShoulder, RightShoulder,
			LeftElbow, RightElbow,
			LeftHip, RightHip,
			LeftKnee, RightKnee,
		},
		Required: []LandmarkIndex{
			LeftShoulder, RightShoulder,
			LeftElbow, RightElbow,
			LeftWrist, RightWrist,
		},
		Stability: []LandmarkIndex{
			LeftShoulder, RightShoulder,
			LeftElbow, RightElbow,
		},
		Extremities: []BodyPart{
			{Name: "left_hand", Landmark: LeftPinky},
			{Name: "right_hand", Landmark: RightPinky},
			{Name: "left_foot", Landmark: LeftAnkle},
			{Name: "right_foot", Landmark: RightAnkle},
		},
		Symmetry: SymmetryPair{Left: JointLeftElbow, Right: JointRightElbow},
	}
}

// DefaultProfile returns the exercise-agnostic angle ranges.
func DefaultProfile() Profile {
	return Profile{
		JointLeftElbow:     {Min: 30, Max: 180},
		JointRightElbow:    {Min: 30, Max: 180},
		JointLeftShoulder:  {Min: 30, Max: 150},
		JointRightShoulder: {Min: 30, Max: 150},
	}
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Topology:   DefaultTopology(),
		Thresholds: DefaultThresholds(),
		Exercises:  map[string]Profile{DefaultExercise: DefaultProfile()},
	}
}

// Validate checks that every index is inside the topology, every referenced
// joint exists and every threshold is usable.
func (c Config) Validate() error {
	var errs []error

	t := c.Topology
	if len(t.Joints) == 0 {
		errs = append(errs, errors.New("topology: no joints"))
	}
	for _, j := range slices.Sorted(maps.Keys(t.Joints)) {
		tr := t.Joints[j]
		for _, idx := range []LandmarkIndex{tr.Proximal, tr.Vertex, tr.Distal} {
			if !validIndex(idx) {
				errs = append(errs, fmt.Errorf("joint %q: landmark index %d out of range", j, idx))
			}
		}
	}
	for name, set := range map[string][]LandmarkIndex{
		"critical":  t.Critical,
		"required":  t.Required,
		"stability": t.Stability,
	} {
		for _, idx := range set {
			if !validIndex(idx) {
				errs = append(errs, fmt.Errorf("%s landmarks: index %d out of range", name, idx))
			}
		}
	}
	for _, p := range t.Extremities {
		if p.Name == "" {
			errs = append(errs, errors.New("extremity: name is required"))
		}
		if !validIndex(p.Landmark) {
			errs = append(errs, fmt.Errorf("extremity %q: index %d out of range", p.Name, p.Landmark))
		}
	}
	for _, j := range []Joint{t.Symmetry.Left, t.Symmetry.Right} {
		if _, ok := t.Joints[j]; !ok {
			errs = append(errs, fmt.Errorf("symmetry: unknown joint %q", j))
		}
	}

	th := c.Thresholds
	for name, v := range map[string]float64{
		"visibility_floor":      th.VisibilityFloor,
		"required_visibility":   th.RequiredVisibility,
		"zone_visibility_floor": th.ZoneVisibilityFloor,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("thresholds.%s %v outside [0, 1]", name, v))
		}
	}
	for name, v := range map[string]float64{
		"visibility_penalty": th.VisibilityPenalty,
		"symmetry_limit":     th.SymmetryLimit,
		"symmetry_penalty":   th.SymmetryPenalty,
		"stability_limit":    th.StabilityLimit,
		"stability_penalty":  th.StabilityPenalty,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("thresholds.%s must not be negative", name))
		}
	}
	if th.MinValidScore < 0 || th.MinValidScore > 100 {
		errs = append(errs, fmt.Errorf("thresholds.min_valid_score %d outside [0, 100]", th.MinValidScore))
	}

	if _, ok := c.Exercises[DefaultExercise]; !ok {
		errs = append(errs, fmt.Errorf("exercises: %q profile is required", DefaultExercise))
	}
	for _, name := range slices.Sorted(maps.Keys(c.Exercises)) {
		for _, j := range slices.Sorted(maps.Keys(c.Exercises[name])) {
			r := c.Exercises[name][j]
			if _, ok := t.Joints[j]; !ok {
				errs = append(errs, fmt.Errorf("exercise %q: unknown joint %q", name, j))
			}
			if r.Min >= r.Max {
				errs = append(errs, fmt.Errorf("exercise %q joint %q: min %v must be below max %v", name, j, r.Min, r.Max))
			}
		}
	}

	return errors.Join(errs...)
}

// clone returns a deep copy so an Analyzer never aliases caller-owned maps.
func (c Config) clone() Config {
	out := c
	out.Topology.Joints = maps.Clone(c.Topology.Joints)
	out.Topology.Critical = slices.Clone(c.Topology.Critical)
	out.Topology.Required = slices.Clone(c.Topology.Required)
	out.Topology.Stability = slices.Clone(c.Topology.Stability)
	out.Topology.Extremities = slices.Clone(c.Topology.Extremities)
	out.Exercises = make(map[string]Profile, len(c.Exercises))
	for name, p := range c.Exercises {
		out.Exercises[name] = maps.Clone(p)
	}
	return out
}

func validIndex(i LandmarkIndex) bool {
	return i >= 0 && int(i) < LandmarkCount
}
