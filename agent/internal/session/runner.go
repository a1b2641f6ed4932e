package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/formcheck/formcheck/agent/internal/config"
	"github.com/formcheck/formcheck/agent/internal/source"
	"github.com/formcheck/formcheck/pkg/pose"
)

// Sink receives the outcome of every frame.
type Sink interface {
	ShipResult(sessionID, exercise string, seq uint64, res pose.Result)
	ShipError(sessionID, exercise string, seq uint64, at time.Time, err error)
}

// Runner analyzes the frames of one session.
type Runner struct {
	id     string
	src    source.Source
	engine *pose.Engine
	sink   Sink

	mu       sync.RWMutex
	exercise string
	zones    []pose.Zone

	frames atomic.Uint64
	failed atomic.Uint64
}

// New returns a Runner for sess reading from src.
func New(sess config.Session, src source.Source, engine *pose.Engine, sink Sink) *Runner {
	r := &Runner{
		id:     sess.ID,
		src:    src,
		engine: engine,
		sink:   sink,
	}
	r.Update(sess)
	return r
}

// ID returns the session id.
func (r *Runner) ID() string {
	return r.id
}

// Update swaps the exercise and zones used for subsequent frames.
func (r *Runner) Update(sess config.Session) {
	if !r.engine.Analyzer().HasExercise(sess.Exercise) {
		slog.Warn("session: unknown exercise, using default profile",
			"session", r.id, "exercise", sess.Exercise)
	}
	zones := sess.PoseZones()

	r.mu.Lock()
	r.exercise = sess.Exercise
	r.zones = zones
	r.mu.Unlock()
}

func (r *Runner) settings() (string, []pose.Zone) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exercise, r.zones
}

// Frames returns the number of frames read so far, failed ones included.
func (r *Runner) Frames() uint64 {
	return r.frames.Load()
}

// Errors returns the number of frames that could not be read.
func (r *Runner) Errors() uint64 {
	return r.failed.Load()
}

// Run processes frames until the source is exhausted or ctx is cancelled,
// both of which return nil. A source read error ends the session and is
// returned.
func (r *Runner) Run(ctx context.Context) error {
	defer r.src.Close()
	defer r.engine.End(r.id)

	slog.Info("session: started", "session", r.id)

	for {
		sample, err := r.src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			slog.Info("session: source exhausted", "session", r.id, "frames", r.Frames())
			return nil
		case ctx.Err() != nil:
			return nil
		case err != nil:
			return fmt.Errorf("session %q: %w", r.id, err)
		}

		seq := r.frames.Add(1)
		exercise, zones := r.settings()

		if sample.Err != nil {
			r.failed.Add(1)
			slog.Warn("session: bad frame", "session", r.id, "sequence", seq, "err", sample.Err)
			r.sink.ShipError(r.id, exercise, seq, sample.CapturedAt, sample.Err)
			continue
		}

		if sample.Reset {
			slog.Info("session: restart signalled, clearing stability history", "session", r.id)
			r.engine.Reset(r.id)
		}

		res := r.engine.Process(r.id, exercise, sample.Frame, zones, sample.CapturedAt)
		r.sink.ShipResult(r.id, exercise, seq, res)

		slog.Debug("session: frame analyzed",
			"session", r.id,
			"sequence", seq,
			"score", res.FormScore,
			"valid", res.IsValidPose,
			"violations", len(res.Violations),
		)
	}
}
