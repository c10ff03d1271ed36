package client

import (
	"ace/protocol"
	"ace/transport"
	"ace/world"

	"github.com/go-gl/mathgl/mgl32"
)

// Actor is the scene object the local player drives. The engine calls only
// these methods on it.
type Actor interface {
	AddLocalOffset(offset mgl32.Vec3, sweep bool)
	AddLocalRotation(rotation world.Rotator)
	SetWorldPosition(position mgl32.Vec3)
	WorldRotation() world.Rotator
}

// PredictedInput is an input sent to the server but not yet acknowledged,
// with the local state right after applying it.
type PredictedInput struct {
	Input world.PlayerInput
	State world.KinematicState
}

func (c *Client) SetControlledEntity(actor Actor) {
	c.actor = actor
	if actor != nil {
		c.state.Orientation = world.FromRotator(actor.WorldRotation())
		c.acked.Orientation = c.state.Orientation
	}
}

func (c *Client) ControlledEntity() Actor {
	return c.actor
}

// SetInput records the current control device state. It is sampled once
// per local tick.
func (c *Client) SetInput(pitch, yaw, roll, throttle float32) {
	c.input = world.PlayerInput{Pitch: pitch, Yaw: yaw, Roll: roll, Throttle: throttle}
}

// State is the predicted state of the local player.
func (c *Client) State() world.KinematicState {
	return c.state
}

func (c *Client) dt() float32 {
	return float32(c.cfg.Tick().Seconds())
}

// predict runs one local tick: the input goes to the server and is applied
// locally right away.
func (c *Client) predict() {
	g := c.game
	in := c.input
	in.Index = g.NextInputIndex
	g.NextInputIndex++

	c.send(&protocol.PlayerInputPacket{Input: in}, transport.FlagReliable)

	var motion world.Motion
	c.state, motion = world.ComputePhysics(c.state, in, c.dt(), c.cfg.Tuning)
	g.PredictedInputs = append(g.PredictedInputs, PredictedInput{Input: in, State: c.state})
	g.setOwnPosition(c.state.Position)

	if c.actor != nil {
		c.actor.AddLocalOffset(motion.LocalOffset, true)
		c.actor.AddLocalRotation(motion.Rotation)
	}
}

// reconcile rebases the prediction on the server state for input ack and
// replays the inputs the server has not applied yet.
func (c *Client) reconcile(ack uint32, own *protocol.OwnPlayerData) {
	g := c.game
	base := c.acked
	n := 0
	for n < len(g.PredictedInputs) && g.PredictedInputs[n].Input.Index <= ack {
		base = g.PredictedInputs[n].State
		n++
	}
	g.PredictedInputs = append(g.PredictedInputs[:0], g.PredictedInputs[n:]...)

	base.Position = own.Position
	base.Velocity = own.Velocity
	c.acked = base

	s := base
	for i := range g.PredictedInputs {
		s, _ = world.ComputePhysics(s, g.PredictedInputs[i].Input, c.dt(), c.cfg.Tuning)
		g.PredictedInputs[i].State = s
	}
	c.state = s
	g.setOwnPosition(s.Position)

	if c.actor != nil {
		c.actor.SetWorldPosition(s.Position)
	}
}
