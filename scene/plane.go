// Package scene holds the display-side objects the client engine drives.
// Nothing here touches the renderer, so it runs headless.
package scene

import (
	"ace/world"

	"github.com/go-gl/mathgl/mgl32"
)

// Plane is the local player's aircraft as the scene sees it. It has no
// collision, so sweep requests move it like plain offsets.
type Plane struct {
	position    mgl32.Vec3
	orientation mgl32.Quat
}

func NewPlane(position mgl32.Vec3, rotation world.Rotator) *Plane {
	return &Plane{
		position:    position,
		orientation: world.FromRotator(rotation),
	}
}

// AddLocalOffset moves the plane by offset expressed in its own frame.
func (p *Plane) AddLocalOffset(offset mgl32.Vec3, sweep bool) {
	p.position = p.position.Add(p.orientation.Rotate(offset))
}

func (p *Plane) AddLocalRotation(rotation world.Rotator) {
	p.orientation = world.AddLocalRotation(p.orientation, rotation)
}

func (p *Plane) SetWorldPosition(position mgl32.Vec3) {
	p.position = position
}

func (p *Plane) WorldRotation() world.Rotator {
	return world.ToRotator(p.orientation)
}

func (p *Plane) Position() mgl32.Vec3 {
	return p.position
}

func (p *Plane) Orientation() mgl32.Quat {
	return p.orientation
}
