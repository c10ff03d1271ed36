package world

import "github.com/go-gl/mathgl/mgl32"

// PlayerInput is one tick of control input. Index is assigned by the sender,
// starts at 1 and strictly increases; 0 means no input yet.
type PlayerInput struct {
	Index    uint32
	Pitch    float32
	Yaw      float32
	Roll     float32
	Throttle float32
}

// KinematicState is everything ComputePhysics reads and writes for a plane.
// Velocity is derived from Orientation and ForwardSpeed on every step.
type KinematicState struct {
	Position     mgl32.Vec3
	Velocity     mgl32.Vec3
	Orientation  mgl32.Quat
	ForwardSpeed float32
	PitchRate    float32
	YawRate      float32
	RollRate     float32
}

func NewKinematicState(position mgl32.Vec3, t Tuning) KinematicState {
	orientation := mgl32.QuatIdent()
	return KinematicState{
		Position:     position,
		Velocity:     orientation.Rotate(Forward).Mul(t.StartForwardSpeed),
		Orientation:  orientation,
		ForwardSpeed: t.StartForwardSpeed,
	}
}

// Motion is the change one ComputePhysics step made, expressed the way an
// actor applies it: a local-space offset and a local rotation in degrees.
type Motion struct {
	LocalOffset mgl32.Vec3
	Rotation    Rotator
}
