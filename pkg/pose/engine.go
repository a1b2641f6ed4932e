package pose

import (
	"fmt"
	"sync"
	"time"
)

// Input is one frame to analyze.
type Input struct {
	Frame Frame

	// Exercise selects the angle-range profile. Unknown or empty names use
	// DefaultExercise.
	Exercise string

	// Zones are the session's exclusion zones; nil means none configured.
	Zones []Zone

	// Previous is the stability state returned by the last call for the
	// same session, or the zero value at session start.
	Previous StabilityState

	// Now stamps the result. It plays no part in any calculation.
	Now time.Time
}

// Result is the analysis of one frame. Results are never modified after
// Analyze returns them.
type Result struct {
	Angles      JointAngleSet `json:"angles"`
	FormScore   int           `json:"form_score"`
	IsValidPose bool          `json:"is_valid_pose"`
	Timestamp   time.Time     `json:"timestamp"`

	Jitter     float64     `json:"jitter"`
	Score      ScoreOutput `json:"score"`
	Failures   []Failure   `json:"failures,omitempty"`
	Violations []Violation `json:"violations"`
}

// Analyzer runs the full per-frame pipeline for one immutable Config.
// It holds no per-session state and is safe for concurrent use.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer validates cfg and returns an Analyzer that owns a private
// copy of it.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pose: invalid config: %w", err)
	}
	return &Analyzer{cfg: cfg.clone()}, nil
}

// Config returns a copy of the analyzer's configuration.
func (a *Analyzer) Config() Config {
	return a.cfg.clone()
}

// Analyze computes angles, jitter, form score, validity and zone violations
// for in.Frame. It returns the result and the stability state to pass as
// Previous on the session's next frame.
func (a *Analyzer) Analyze(in Input) (Result, StabilityState) {
	t := a.cfg.Topology
	th := a.cfg.Thresholds

	angles := ComputeAngles(in.Frame, t.Joints)
	jitter, next := Track(in.Frame, in.Previous, t.Stability)

	score := ComputeScore(ScoreInput{
		Critical:   ReadVisibility(in.Frame, t.Critical),
		Left:       angles[t.Symmetry.Left],
		Right:      angles[t.Symmetry.Right],
		Jitter:     jitter,
		Thresholds: th,
	})

	validity := Validate(ValidityInput{
		Required:   ReadVisibility(in.Frame, t.Required),
		FormScore:  score.Score,
		Angles:     angles,
		Ranges:     a.profile(in.Exercise),
		Thresholds: th,
	})

	return Result{
		Angles:      angles,
		FormScore:   score.Score,
		IsValidPose: validity.Valid,
		Timestamp:   in.Now,
		Jitter:      jitter,
		Score:       score,
		Failures:    validity.Failures,
		Violations:  CheckZones(in.Frame, in.Zones, t.Extremities, th.ZoneVisibilityFloor),
	}, next
}

// HasExercise reports whether name has its own profile.
func (a *Analyzer) HasExercise(name string) bool {
	_, ok := a.cfg.Exercises[name]
	return ok
}

func (a *Analyzer) profile(name string) Profile {
	if p, ok := a.cfg.Exercises[name]; ok {
		return p
	}
	return a.cfg.Exercises[DefaultExercise]
}

// Engine keeps one StabilityState per session and feeds it through the
// Analyzer on every frame. Sessions never share state.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	analyzer *Analyzer
	states   map[string]StabilityState
}

// NewEngine returns an Engine that analyzes frames with a.
func NewEngine(a *Analyzer) *Engine {
	return &Engine{
		analyzer: a,
		states:   make(map[string]StabilityState),
	}
}

// Process analyzes one frame for sessionID and records its stability state.
// The first frame of a session (or the first after Reset) has zero jitter.
func (e *Engine) Process(sessionID, exercise string, f Frame, zones []Zone, now time.Time) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, next := e.analyzer.Analyze(Input{
		Frame:    f,
		Exercise: exercise,
		Zones:    zones,
		Previous: e.states[sessionID],
		Now:      now,
	})
	e.states[sessionID] = next
	return res
}

// Reset clears the session's history. Call it when the session restarts.
func (e *Engine) Reset(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if st, ok := e.states[sessionID]; ok {
		st.Reset()
		e.states[sessionID] = st
	}
}

// End discards the session's state.
func (e *Engine) End(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, sessionID)
}

// Sessions returns the number of sessions with recorded state.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.states)
}

// SetAnalyzer swaps the analyzer used for subsequent frames. Recorded
// stability states are kept.
func (e *Engine) SetAnalyzer(a *Analyzer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.analyzer = a
}

// Analyzer returns the analyzer currently in use.
func (e *Engine) Analyzer() *Analyzer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.analyzer
}
