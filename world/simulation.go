package world

import (
	"ace/utils"

	"github.com/go-gl/mathgl/mgl32"
)

// Tuning holds the flight constants. Client and server must use the same
// values or predictions will never match the authoritative state.
type Tuning struct {
	Acceleration      float32
	MinSpeed          float32
	MaxSpeed          float32
	StartForwardSpeed float32
	PitchRateMult     float32
	RollRateMult      float32
	YawRate           float32
}

func DefaultTuning() Tuning {
	return Tuning{
		Acceleration:      400,
		MinSpeed:          500,
		MaxSpeed:          4000,
		StartForwardSpeed: 500,
		PitchRateMult:     200,
		RollRateMult:      200,
		YawRate:           200,
	}
}

func TuningFromConfig(c utils.PlaneConfig) Tuning {
	return Tuning{
		Acceleration:      c.Acceleration,
		MinSpeed:          c.MinSpeed,
		MaxSpeed:          c.MaxSpeed,
		StartForwardSpeed: c.StartForwardSpeed,
		PitchRateMult:     c.PitchRateMult,
		RollRateMult:      c.RollRateMult,
		YawRate:           c.YawRate,
	}
}

const rateInterpSpeed = 2

// InterpTo moves current toward target by the fraction dt*speed of the
// remaining distance, and snaps once the distance is negligible.
func InterpTo(current, target, dt, speed float32) float32 {
	dist := target - current
	if dist*dist < 1e-8 {
		return target
	}
	return current + dist*utils.Clamp(dt*speed, 0, 1)
}

func approach(current, target, maxStep float32) float32 {
	if current < target {
		return utils.Min(current+maxStep, target)
	}
	if next := current - maxStep; next > target {
		return next
	}
	return target
}

// ComputePhysics advances s by one step of dt seconds under in. It is a pure
// function: identical arguments give bit-identical results on a given
// platform.
func ComputePhysics(s KinematicState, in PlayerInput, dt float32, t Tuning) (KinematicState, Motion) {
	throttle := utils.Clamp(in.Throttle, 0, 1)
	targetSpeed := t.MinSpeed + throttle*(t.MaxSpeed-t.MinSpeed)
	s.ForwardSpeed = approach(s.ForwardSpeed, targetSpeed, t.Acceleration*dt)
	s.ForwardSpeed = utils.Clamp(s.ForwardSpeed, t.MinSpeed, t.MaxSpeed)

	distance := s.ForwardSpeed * dt
	forward := s.Orientation.Rotate(Forward)
	s.Position = s.Position.Add(forward.Mul(distance))

	s.PitchRate = InterpTo(s.PitchRate, in.Pitch*t.PitchRateMult, dt, rateInterpSpeed)
	s.RollRate = InterpTo(s.RollRate, in.Roll*t.RollRateMult, dt, rateInterpSpeed)
	s.YawRate = in.Yaw * t.YawRate

	delta := Rotator{
		Pitch: s.PitchRate * dt,
		Yaw:   s.YawRate * dt,
		Roll:  s.RollRate * dt,
	}
	s.Orientation = AddLocalRotation(s.Orientation, delta)
	s.Velocity = s.Orientation.Rotate(Forward).Mul(s.ForwardSpeed)

	return s, Motion{
		LocalOffset: mgl32.Vec3{distance, 0, 0},
		Rotation:    delta,
	}
}
