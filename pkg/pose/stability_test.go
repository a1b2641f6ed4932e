package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var trackSet = []LandmarkIndex{LeftShoulder, RightShoulder, LeftElbow, RightElbow}

func TestTrack_FirstFrameHasZeroJitter(t *testing.T) {
	jitter, next := Track(goodFormFrame(), StabilityState{}, trackSet)
	assert.Zero(t, jitter)
	assert.True(t, next.HasHistory())
}

func TestTrack_IdenticalFramesHaveZeroJitter(t *testing.T) {
	f := goodFormFrame()
	_, st := Track(f, StabilityState{}, trackSet)
	jitter, _ := Track(f, st, trackSet)
	assert.Zero(t, jitter)
}

func TestTrack_MeanDisplacement(t *testing.T) {
	f := goodFormFrame()
	_, st := Track(f, StabilityState{}, trackSet)

	// Every landmark moves by a 3-4-5 triangle scaled to 0.05.
	jitter, _ := Track(shift(f, 0.03, 0.04), st, trackSet)
	assert.InDelta(t, 0.05, jitter, 1e-9)
}

func TestTrack_MissingLandmarkContributesZero(t *testing.T) {
	f := goodFormFrame()
	_, st := Track(f, StabilityState{}, trackSet)

	// Only the shoulders survive; elbows fall outside the truncated frame.
	moved := shift(f, 0.2, 0)[:int(LeftElbow)]
	jitter, _ := Track(moved, st, trackSet)

	// Two of four landmarks moved 0.2.
	assert.InDelta(t, 0.1, jitter, 1e-9)
}

func TestTrack_DoesNotModifyPrevious(t *testing.T) {
	f := goodFormFrame()
	_, st := Track(f, StabilityState{}, trackSet)
	before := st.positions[0]

	Track(shift(f, 0.3, 0.3), st, trackSet)
	assert.Equal(t, before, st.positions[0])
}

func TestStabilityState_Reset(t *testing.T) {
	f := goodFormFrame()
	_, st := Track(f, StabilityState{}, trackSet)
	st.Reset()
	assert.False(t, st.HasHistory())

	jitter, _ := Track(shift(f, 0.5, 0.5), st, trackSet)
	assert.Zero(t, jitter, "first frame after reset must not be compared with the old session")
}

func TestTrack_ChangedSetHasNoHistory(t *testing.T) {
	f := goodFormFrame()
	_, st := Track(f, StabilityState{}, trackSet)

	jitter, _ := Track(shift(f, 0.5, 0.5), st, trackSet[:2])
	assert.Zero(t, jitter)
}
