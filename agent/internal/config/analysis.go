package config

import (
	"errors"
	"fmt"

	"github.com/formcheck/formcheck/pkg/pose"
)

// AnalysisConfig is the YAML form of pose.Config. Landmarks are referred to
// by their snake_case names and joints by the names used as map keys.
type AnalysisConfig struct {
	Thresholds  ThresholdsConfig                  `yaml:"thresholds"`
	Joints      map[string]JointConfig            `yaml:"joints"`
	Critical    []string                          `yaml:"critical_landmarks"`
	Required    []string                          `yaml:"required_landmarks"`
	Stability   []string                          `yaml:"stability_landmarks"`
	Extremities []ExtremityConfig                 `yaml:"extremities"`
	Symmetry    SymmetryConfig                    `yaml:"symmetry"`
	Exercises   map[string]map[string]RangeConfig `yaml:"exercises"`
}

// ThresholdsConfig mirrors pose.Thresholds.
type ThresholdsConfig struct {
	VisibilityFloor     float64 `yaml:"visibility_floor"`
	VisibilityPenalty   float64 `yaml:"visibility_penalty"`
	SymmetryLimit       float64 `yaml:"symmetry_limit"`
	SymmetryPenalty     float64 `yaml:"symmetry_penalty"`
	StabilityLimit      float64 `yaml:"stability_limit"`
	StabilityPenalty    float64 `yaml:"stability_penalty"`
	RequiredVisibility  float64 `yaml:"required_visibility"`
	MinValidScore       int     `yaml:"min_valid_score"`
	ZoneVisibilityFloor float64 `yaml:"zone_visibility_floor"`
}

// JointConfig names the three landmarks of a joint angle.
type JointConfig struct {
	Proximal string `yaml:"proximal"`
	Vertex   string `yaml:"vertex"`
	Distal   string `yaml:"distal"`
}

// ExtremityConfig is a named landmark checked against exclusion zones.
type ExtremityConfig struct {
	Name     string `yaml:"name"`
	Landmark string `yaml:"landmark"`
}

// SymmetryConfig names the joints compared by the symmetry penalty.
type SymmetryConfig struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

// RangeConfig is an open angle interval in degrees.
type RangeConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// defaultAnalysis renders pose.DefaultConfig in YAML form so that omitted
// fields keep the engine defaults. Joint and exercise maps merge with the
// file's entries; lists are replaced.
func defaultAnalysis() AnalysisConfig {
	d := pose.DefaultConfig()
	th := d.Thresholds

	out := AnalysisConfig{
		Thresholds: ThresholdsConfig{
			VisibilityFloor:     th.VisibilityFloor,
			VisibilityPenalty:   th.VisibilityPenalty,
			SymmetryLimit:       th.SymmetryLimit,
			SymmetryPenalty:     th.SymmetryPenalty,
			StabilityLimit:      th.StabilityLimit,
			StabilityPenalty:    th.StabilityPenalty,
			RequiredVisibility:  th.RequiredVisibility,
			MinValidScore:       th.MinValidScore,
			ZoneVisibilityFloor: th.ZoneVisibilityFloor,
		},
		Joints:    make(map[string]JointConfig, len(d.Topology.Joints)),
		Critical:  names(d.Topology.Critical),
		Required:  names(d.Topology.Required),
		Stability: names(d.Topology.Stability),
		Symmetry: SymmetryConfig{
			Left:  string(d.Topology.Symmetry.Left),
			Right: string(d.Topology.Symmetry.Right),
		},
		Exercises: make(map[string]map[string]RangeConfig, len(d.Exercises)),
	}
	for j, t := range d.Topology.Joints {
		out.Joints[string(j)] = JointConfig{
			Proximal: t.Proximal.String(),
			Vertex:   t.Vertex.String(),
			Distal:   t.Distal.String(),
		}
	}
	for _, p := range d.Topology.Extremities {
		out.Extremities = append(out.Extremities, ExtremityConfig{Name: p.Name, Landmark: p.Landmark.String()})
	}
	for name, prof := range d.Exercises {
		ranges := make(map[string]RangeConfig, len(prof))
		for j, r := range prof {
			ranges[string(j)] = RangeConfig{Min: r.Min, Max: r.Max}
		}
		out.Exercises[name] = ranges
	}
	return out
}

func names(idx []pose.LandmarkIndex) []string {
	out := make([]string, len(idx))
	for i, x := range idx {
		out[i] = x.String()
	}
	return out
}

// Build resolves every name and returns a validated engine configuration.
// All problems are reported together, each unknown name with its closest
// match.
func (a AnalysisConfig) Build() (pose.Config, error) {
	var errs []error

	landmark := func(field, name string) pose.LandmarkIndex {
		idx, ok := pose.ParseLandmark(name)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: unknown landmark %q%s", field, name, didYouMean(name, pose.LandmarkNames())))
		}
		return idx
	}
	landmarks := func(field string, in []string) []pose.LandmarkIndex {
		out := make([]pose.LandmarkIndex, 0, len(in))
		for _, n := range in {
			out = append(out, landmark(field, n))
		}
		return out
	}
	jointNames := sortedKeys(a.Joints)
	joint := func(field, name string) pose.Joint {
		if _, ok := a.Joints[name]; !ok {
			errs = append(errs, fmt.Errorf("%s: unknown joint %q%s", field, name, didYouMean(name, jointNames)))
		}
		return pose.Joint(name)
	}

	cfg := pose.Config{
		Topology: pose.Topology{
			Joints:    make(map[pose.Joint]pose.JointTriple, len(a.Joints)),
			Critical:  landmarks("critical_landmarks", a.Critical),
			Required:  landmarks("required_landmarks", a.Required),
			Stability: landmarks("stability_landmarks", a.Stability),
		},
		Thresholds: pose.Thresholds{
			VisibilityFloor:     a.Thresholds.VisibilityFloor,
			VisibilityPenalty:   a.Thresholds.VisibilityPenalty,
			SymmetryLimit:       a.Thresholds.SymmetryLimit,
			SymmetryPenalty:     a.Thresholds.SymmetryPenalty,
			StabilityLimit:      a.Thresholds.StabilityLimit,
			StabilityPenalty:    a.Thresholds.StabilityPenalty,
			RequiredVisibility:  a.Thresholds.RequiredVisibility,
			MinValidScore:       a.Thresholds.MinValidScore,
			ZoneVisibilityFloor: a.Thresholds.ZoneVisibilityFloor,
		},
		Exercises: make(map[string]pose.Profile, len(a.Exercises)),
	}

	for _, name := range jointNames {
		j := a.Joints[name]
		field := "joints." + name
		cfg.Topology.Joints[pose.Joint(name)] = pose.JointTriple{
			Proximal: landmark(field, j.Proximal),
			Vertex:   landmark(field, j.Vertex),
			Distal:   landmark(field, j.Distal),
		}
	}
	for i, e := range a.Extremities {
		cfg.Topology.Extremities = append(cfg.Topology.Extremities, pose.BodyPart{
			Name:     e.Name,
			Landmark: landmark(fmt.Sprintf("extremities[%d]", i), e.Landmark),
		})
	}
	cfg.Topology.Symmetry = pose.SymmetryPair{
		Left:  joint("symmetry.left", a.Symmetry.Left),
		Right: joint("symmetry.right", a.Symmetry.Right),
	}
	for _, name := range sortedKeys(a.Exercises) {
		prof := make(pose.Profile, len(a.Exercises[name]))
		for _, jn := range sortedKeys(a.Exercises[name]) {
			r := a.Exercises[name][jn]
			prof[joint("exercises."+name, jn)] = pose.Range{Min: r.Min, Max: r.Max}
		}
		cfg.Exercises[name] = prof
	}

	if len(errs) > 0 {
		return pose.Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return pose.Config{}, err
	}
	return cfg, nil
}
