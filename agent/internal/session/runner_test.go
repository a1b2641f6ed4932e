package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formcheck/formcheck/agent/internal/config"
	"github.com/formcheck/formcheck/agent/internal/source"
	"github.com/formcheck/formcheck/pkg/pose"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeSource replays a fixed list of samples, then returns end.
type fakeSource struct {
	samples []*source.Sample
	end     error
	closed  bool
}

func (f *fakeSource) Next(ctx context.Context) (*source.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.samples) == 0 {
		if f.end == nil {
			return nil, io.EOF
		}
		return nil, f.end
	}
	s := f.samples[0]
	f.samples = f.samples[1:]
	return s, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type shipped struct {
	seq      uint64
	exercise string
	res      pose.Result
	err      error
}

// fakeSink records everything it is given.
type fakeSink struct {
	mu  sync.Mutex
	got []shipped
}

func (s *fakeSink) ShipResult(_, exercise string, seq uint64, res pose.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, shipped{seq: seq, exercise: exercise, res: res})
}

func (s *fakeSink) ShipError(_, exercise string, seq uint64, _ time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, shipped{seq: seq, exercise: exercise, err: err})
}

// torsoFrame returns a complete, well-seen frame with the shoulders and
// elbows offset by dx.
func torsoFrame(dx float64) pose.Frame {
	f := make(pose.Frame, pose.LandmarkCount)
	for i := range f {
		f[i] = pose.Landmark{X: 0.5 + dx, Y: 0.5, Visibility: 0.9}
	}
	return f
}

func sample(f pose.Frame, reset bool) *source.Sample {
	return &source.Sample{SessionID: "s1", Frame: f, CapturedAt: baseTime, Reset: reset}
}

func newRunner(t *testing.T, src source.Source, sink Sink, sess config.Session) (*Runner, *pose.Engine) {
	t.Helper()
	a, err := pose.NewAnalyzer(pose.DefaultConfig())
	require.NoError(t, err)
	e := pose.NewEngine(a)
	return New(sess, src, e, sink), e
}

func TestRunner_ProcessesUntilEOF(t *testing.T) {
	src := &fakeSource{samples: []*source.Sample{
		sample(torsoFrame(0), false),
		sample(torsoFrame(0.2), false),
	}}
	sink := &fakeSink{}
	r, e := newRunner(t, src, sink, config.Session{ID: "s1", Exercise: pose.DefaultExercise})

	require.NoError(t, r.Run(context.Background()))

	require.Len(t, sink.got, 2)
	assert.Equal(t, uint64(1), sink.got[0].seq)
	assert.Zero(t, sink.got[0].res.Jitter)
	assert.InDelta(t, 0.2, sink.got[1].res.Jitter, 1e-9)
	assert.Equal(t, baseTime, sink.got[1].res.Timestamp)

	assert.True(t, src.closed, "source closed at end of session")
	assert.Zero(t, e.Sessions(), "session state dropped at end of session")
	assert.Equal(t, uint64(2), r.Frames())
}

func TestRunner_ResetClearsHistory(t *testing.T) {
	src := &fakeSource{samples: []*source.Sample{
		sample(torsoFrame(0), false),
		sample(torsoFrame(0.3), true),
	}}
	sink := &fakeSink{}
	r, _ := newRunner(t, src, sink, config.Session{ID: "s1"})

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, sink.got, 2)
	assert.Zero(t, sink.got[1].res.Jitter, "frame after reset must not be compared with the old session")
}

func TestRunner_BadFrameShipsErrorAndContinues(t *testing.T) {
	src := &fakeSource{samples: []*source.Sample{
		{SessionID: "s1", CapturedAt: baseTime, Err: errors.New("decode frame: eof")},
		sample(torsoFrame(0), false),
	}}
	sink := &fakeSink{}
	r, _ := newRunner(t, src, sink, config.Session{ID: "s1"})

	require.NoError(t, r.Run(context.Background()))
	require.Len(t, sink.got, 2)
	assert.EqualError(t, sink.got[0].err, "decode frame: eof")
	assert.NoError(t, sink.got[1].err)
	assert.Equal(t, uint64(2), sink.got[1].seq)
	assert.Equal(t, uint64(1), r.Errors())
}

func TestRunner_SourceFailureEndsSession(t *testing.T) {
	src := &fakeSource{end: errors.New("disk gone")}
	r, e := newRunner(t, src, &fakeSink{}, config.Session{ID: "s1"})

	err := r.Run(context.Background())
	assert.ErrorContains(t, err, "disk gone")
	assert.Zero(t, e.Sessions())
}

func TestRunner_CancelReturnsNil(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := newRunner(t, &fakeSource{end: errors.New("unused")}, &fakeSink{}, config.Session{ID: "s1"})
	assert.NoError(t, r.Run(ctx))
}

func TestRunner_UpdateSwapsZonesAndExercise(t *testing.T) {
	sink := &fakeSink{}
	r, _ := newRunner(t, &fakeSource{}, sink, config.Session{ID: "s1", Exercise: "default"})

	r.Update(config.Session{
		ID:       "s1",
		Exercise: "knee-extension",
		Zones:    []config.ZoneConfig{{Shape: "circle", X: 0.5, Y: 0.5, Radius: 0.1}},
	})
	exercise, zones := r.settings()
	assert.Equal(t, "knee-extension", exercise)
	require.Len(t, zones, 1)
	assert.Equal(t, pose.Circle{X: 0.5, Y: 0.5, Radius: 0.1}, zones[0])

	r.src = &fakeSource{samples: []*source.Sample{sample(torsoFrame(0), false)}}
	require.NoError(t, r.Run(context.Background()))
	require.Len(t, sink.got, 1)
	assert.Equal(t, "knee-extension", sink.got[0].exercise)
	assert.NotEmpty(t, sink.got[0].res.Violations, "pinkies at the centre fall in the zone")
}
