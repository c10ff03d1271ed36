// Package viewer is the ebiten front end: it feeds keyboard input to the
// client engine and draws the session from above.
package viewer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ace/client"
	"ace/scene"
	"ace/utils"
	"ace/world"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

var (
	ErrQuit         = errors.New("quit")
	ErrDisconnected = errors.New("disconnected from server")
)

const (
	pixelsPerUnit = 0.05
	// throttleRate is how fast the throttle lever moves, per second.
	throttleRate  = 0.5
	maxFrameDelta = 250 * time.Millisecond
)

type remote struct {
	position mgl32.Vec3
	heading  float64
}

type Game struct {
	client   *client.Client
	plane    *scene.Plane
	renderer *Renderer
	remotes  map[uint16]*remote

	throttle   float32
	now        func() time.Time
	lastUpdate time.Time
}

func NewGame(c *client.Client) *Game {
	g := &Game{
		client:   c,
		plane:    scene.NewPlane(mgl32.Vec3{}, world.Rotator{}),
		renderer: NewRenderer(pixelsPerUnit),
		remotes:  make(map[uint16]*remote),
		now:      time.Now,
	}
	c.SetControlledEntity(g.plane)
	c.AddListener(client.Listener{
		OnPlayerJoined: func(index uint16) {
			g.remotes[index] = &remote{}
		},
		OnPlayerLeft: func(index uint16) {
			delete(g.remotes, index)
			g.renderer.Forget(index)
		},
		OnPositionUpdated: func(index uint16, position mgl32.Vec3) {
			r, ok := g.remotes[index]
			if !ok {
				return
			}
			r.heading = travelHeading(r.position, position, r.heading)
			r.position = position
		},
	})
	return g
}

// Run opens the window and blocks until it is closed or the session ends.
func Run(c *client.Client, ui utils.UIConfig) error {
	ebiten.SetWindowSize(ui.Resolution.X, ui.Resolution.Y)
	ebiten.SetWindowTitle("Ace")
	ebiten.SetWindowResizable(true)

	err := ebiten.RunGame(NewGame(c))
	if errors.Is(err, ErrQuit) {
		return nil
	}
	return err
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ErrQuit
	}

	now := g.now()
	delta := time.Second / time.Duration(ebiten.MaxTPS())
	if !g.lastUpdate.IsZero() {
		delta = now.Sub(g.lastUpdate)
	}
	g.lastUpdate = now
	if delta > maxFrameDelta {
		delta = maxFrameDelta
	}

	pitch, yaw, roll, throttleDir := readControls(ebiten.IsKeyPressed)
	g.throttle = utils.Clamp(g.throttle+throttleDir*throttleRate*float32(delta.Seconds()), 0, 1)
	g.client.SetInput(pitch, yaw, roll, g.throttle)

	if err := g.client.Update(delta); err != nil {
		return err
	}
	if !g.client.Connected() {
		return ErrDisconnected
	}
	return nil
}

// readControls maps held keys to control axes: W/S pitch, Q/E yaw, A/D roll.
// The throttle axis is the direction the lever moves in.
func readControls(pressed func(ebiten.Key) bool) (pitch, yaw, roll, throttle float32) {
	axis := func(negative, positive ebiten.Key) float32 {
		var v float32
		if pressed(negative) {
			v--
		}
		if pressed(positive) {
			v++
		}
		return v
	}
	return axis(ebiten.KeyS, ebiten.KeyW),
		axis(ebiten.KeyQ, ebiten.KeyE),
		axis(ebiten.KeyA, ebiten.KeyD),
		axis(ebiten.KeyControl, ebiten.KeyShift)
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.renderer.Begin(screen, g.now())

	session := g.client.Game()
	own := uint16(0)
	if session != nil {
		own = session.OwnPlayerIndex
	}
	camera := g.renderer.Smoothed(own, g.plane.Position())
	g.renderer.RenderGrid(screen, camera)

	for index, r := range g.remotes {
		position := g.renderer.Smoothed(index, r.position)
		g.renderer.RenderPlane(screen, false, camera, position, r.heading, g.name(index))
	}
	g.renderer.RenderPlane(screen, true, camera, camera, yawHeading(g.plane.WorldRotation().Yaw), g.name(own))

	ebitenutil.DebugPrint(screen, g.debugString())
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int) {
	return outsideWidth, outsideHeight
}

func (g *Game) name(index uint16) string {
	if session := g.client.Game(); session != nil {
		if p := session.Player(index); p != nil && p.Name != "" {
			return p.Name
		}
	}
	return fmt.Sprintf("#%d", index)
}

func (g *Game) debugString() string {
	lines := []string{
		fmt.Sprintf("TPS: %0.02f, FPS: %0.02f", ebiten.CurrentTPS(), ebiten.CurrentFPS()),
	}
	session := g.client.Game()
	if session == nil {
		return strings.Join(append(lines, "waiting for server"), "\n")
	}
	s := g.client.State()
	lines = append(lines,
		fmt.Sprintf("player %d, %d in game", session.OwnPlayerIndex, len(session.Players)),
		fmt.Sprintf("speed %0.0f, throttle %0.2f", s.ForwardSpeed, g.throttle),
		fmt.Sprintf("pos (%0.0f, %0.0f, %0.0f)", s.Position.X(), s.Position.Y(), s.Position.Z()),
		fmt.Sprintf("unacked inputs %d, interpolation %d", len(session.PredictedInputs), session.Interpolation.Len()),
	)
	return strings.Join(lines, "\n")
}
