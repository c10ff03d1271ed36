package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = float32(1) / 60

func fly(s KinematicState, inputs []PlayerInput) KinematicState {
	for _, in := range inputs {
		s, _ = ComputePhysics(s, in, dt, DefaultTuning())
	}
	return s
}

func mixedInputs(n int) []PlayerInput {
	inputs := make([]PlayerInput, n)
	for i := range inputs {
		inputs[i] = PlayerInput{
			Index:    uint32(i + 1),
			Pitch:    float32(i%7)/7 - 0.3,
			Yaw:      float32(i%3) - 1,
			Roll:     float32(i%5)/5 - 0.5,
			Throttle: float32(i%11) / 10,
		}
	}
	return inputs
}

// TestComputePhysicsDeterministic replays the same inputs twice and expects
// bit-identical states.
func TestComputePhysicsDeterministic(t *testing.T) {
	start := NewKinematicState(mgl32.Vec3{0, 0, 1000}, DefaultTuning())
	inputs := mixedInputs(600)

	a := fly(start, inputs)
	b := fly(start, inputs)
	if a != b {
		t.Fatalf("replay diverged: %+v vs %+v", a, b)
	}
}

func TestComputePhysicsStraightFlight(t *testing.T) {
	tuning := DefaultTuning()
	start := NewKinematicState(mgl32.Vec3{}, tuning)

	s, motion := ComputePhysics(start, PlayerInput{Index: 1}, dt, tuning)

	step := tuning.StartForwardSpeed * dt
	assert.InDelta(t, step, s.Position.X(), 1e-3)
	assert.InDelta(t, 0, s.Position.Y(), 1e-6)
	assert.InDelta(t, 0, s.Position.Z(), 1e-6)
	assert.InDelta(t, step, motion.LocalOffset.X(), 1e-6)
	assert.Equal(t, Rotator{}, motion.Rotation)
	assert.InDelta(t, tuning.StartForwardSpeed, s.Velocity.X(), 1e-3)
}

func TestComputePhysicsSpeed(t *testing.T) {
	tuning := DefaultTuning()
	start := NewKinematicState(mgl32.Vec3{}, tuning)

	s, _ := ComputePhysics(start, PlayerInput{Throttle: 1}, dt, tuning)
	assert.InDelta(t, tuning.MinSpeed+tuning.Acceleration*dt, s.ForwardSpeed, 1e-3)

	// Throttle beyond range behaves like full throttle.
	over, _ := ComputePhysics(start, PlayerInput{Throttle: 5}, dt, tuning)
	assert.Equal(t, s.ForwardSpeed, over.ForwardSpeed)

	// Idle never drops below the minimum.
	s, _ = ComputePhysics(start, PlayerInput{Throttle: -1}, dt, tuning)
	assert.Equal(t, tuning.MinSpeed, s.ForwardSpeed)

	// A long full-throttle climb saturates at the maximum.
	s = start
	for i := 0; i < 60*20; i++ {
		s, _ = ComputePhysics(s, PlayerInput{Throttle: 1}, dt, tuning)
	}
	assert.Equal(t, tuning.MaxSpeed, s.ForwardSpeed)
}

func TestComputePhysicsRates(t *testing.T) {
	tuning := DefaultTuning()
	start := NewKinematicState(mgl32.Vec3{}, tuning)

	s, motion := ComputePhysics(start, PlayerInput{Pitch: 1, Yaw: 1, Roll: -1}, 0.1, tuning)

	assert.Equal(t, tuning.YawRate, s.YawRate, "yaw snaps to its target")
	assert.InDelta(t, tuning.PitchRateMult*0.2, s.PitchRate, 1e-3)
	assert.InDelta(t, -tuning.RollRateMult*0.2, s.RollRate, 1e-3)
	assert.InDelta(t, s.YawRate*0.1, motion.Rotation.Yaw, 1e-3)
	assert.InDelta(t, s.PitchRate*0.1, motion.Rotation.Pitch, 1e-3)

	// Releasing yaw stops the turn immediately.
	s, _ = ComputePhysics(s, PlayerInput{}, 0.1, tuning)
	assert.Equal(t, float32(0), s.YawRate)
	assert.NotZero(t, s.PitchRate)
}

func TestComputePhysicsDirections(t *testing.T) {
	tuning := DefaultTuning()
	start := NewKinematicState(mgl32.Vec3{}, tuning)

	up := fly(start, []PlayerInput{{Pitch: 1}, {Pitch: 1}, {Pitch: 1}})
	assert.Greater(t, up.Orientation.Rotate(Forward).Z(), float32(0))

	right := fly(start, []PlayerInput{{Yaw: 1}, {Yaw: 1}})
	assert.Greater(t, right.Orientation.Rotate(Forward).Y(), float32(0))

	assert.InDelta(t, 1, up.Orientation.Len(), 1e-5)
}

func TestInterpTo(t *testing.T) {
	near := float32(5.00001)
	assert.Equal(t, near, InterpTo(5, near, 0.1, 2), "snaps once close enough")
	assert.Equal(t, float32(10), InterpTo(0, 10, 1, 2), "step is capped at the full distance")
	assert.InDelta(t, 2, InterpTo(0, 10, 0.1, 2), 1e-6)
}

func TestRotatorRoundTrip(t *testing.T) {
	for _, r := range []Rotator{
		{},
		{Pitch: 10, Yaw: 20, Roll: 30},
		{Pitch: -45, Yaw: 170, Roll: -120},
		{Pitch: 80, Yaw: -90, Roll: 5},
	} {
		got := ToRotator(FromRotator(r))
		require.InDelta(t, r.Pitch, got.Pitch, 1e-2, "%+v", r)
		require.InDelta(t, r.Yaw, got.Yaw, 1e-2, "%+v", r)
		require.InDelta(t, r.Roll, got.Roll, 1e-2, "%+v", r)
	}
}

func TestRotationOrderMatters(t *testing.T) {
	a := mgl32.QuatIdent().Mul(pitchRotation(30)).Mul(yawRotation(30))
	b := mgl32.QuatIdent().Mul(yawRotation(30)).Mul(pitchRotation(30))
	assert.NotEqual(t, a.Rotate(Forward), b.Rotate(Forward))
}

func TestLerp(t *testing.T) {
	a := mgl32.Vec3{100, -50, 8}
	b := mgl32.Vec3{300, 50, 16}
	assert.Equal(t, a, Lerp(a, b, 0))
	assert.Equal(t, b, Lerp(a, b, 1))
	assert.Equal(t, mgl32.Vec3{200, 0, 12}, Lerp(a, b, 0.5))
}
