package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Axes follow a right-handed frame with X forward, Y right and Z up.
var (
	Forward = mgl32.Vec3{1, 0, 0}
	Right   = mgl32.Vec3{0, 1, 0}
	Up      = mgl32.Vec3{0, 0, 1}
)

// Lerp returns a at t=0 and b at t=1.
func Lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// Rotator is an orientation or rotation delta in degrees.
type Rotator struct {
	Pitch, Yaw, Roll float32
}

// Pitch is nose-up around -Y, yaw is nose-right around Z, roll is around X.
func pitchRotation(degrees float32) mgl32.Quat {
	return mgl32.QuatRotate(mgl32.DegToRad(-degrees), Right)
}

func yawRotation(degrees float32) mgl32.Quat {
	return mgl32.QuatRotate(mgl32.DegToRad(degrees), Up)
}

func rollRotation(degrees float32) mgl32.Quat {
	return mgl32.QuatRotate(mgl32.DegToRad(degrees), Forward)
}

// FromRotator builds yaw, then pitch, then roll, each in the frame left by
// the previous one.
func FromRotator(r Rotator) mgl32.Quat {
	return yawRotation(r.Yaw).Mul(pitchRotation(r.Pitch)).Mul(rollRotation(r.Roll))
}

// ToRotator is the inverse of FromRotator away from the +-90 degree pitch
// poles.
func ToRotator(q mgl32.Quat) Rotator {
	f := q.Rotate(Forward)
	pitch := math.Asin(math.Max(-1, math.Min(1, float64(f.Z()))))
	yaw := math.Atan2(float64(f.Y()), float64(f.X()))

	r := Rotator{
		Pitch: mgl32.RadToDeg(float32(pitch)),
		Yaw:   mgl32.RadToDeg(float32(yaw)),
	}
	base := FromRotator(r)
	up := q.Rotate(Up)
	roll := math.Atan2(-float64(up.Dot(base.Rotate(Right))), float64(up.Dot(base.Rotate(Up))))
	r.Roll = mgl32.RadToDeg(float32(roll))
	return r
}

// AddLocalRotation turns q by r in its own frame: pitch first, then yaw,
// then roll. The order is part of the simulation and must not change.
func AddLocalRotation(q mgl32.Quat, r Rotator) mgl32.Quat {
	return q.Mul(pitchRotation(r.Pitch)).
		Mul(yawRotation(r.Yaw)).
		Mul(rollRotation(r.Roll)).
		Normalize()
}
