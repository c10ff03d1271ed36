package viewer

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"ace/scene"

	"github.com/ebiten/emoji"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

const (
	ownSprite   = "🛫"
	otherSprite = "🛬"
	// The sprites point up and to the right.
	spriteHeading = math.Pi / 4
	spriteScale   = 0.3

	// correctionRate is in world units per 60 Hz frame.
	correctionRate = 150
	gridSpacing    = 1000
)

var (
	skyColor      = color.RGBA{164, 178, 191, 255}
	gridColor     = color.RGBA{140, 155, 170, 255}
	fallbackColor = color.RGBA{200, 40, 40, 255}
)

// Renderer draws a top-down view centred on a camera point. World X is up
// on screen and world Y is to the right.
type Renderer struct {
	Scale float64

	smoother     *scene.Smoother
	own, other   *ebiten.Image
	lastDrawTime time.Time
	elapsed      time.Duration
}

func NewRenderer(scale float64) *Renderer {
	return &Renderer{
		Scale:    scale,
		smoother: scene.NewSmoother(correctionRate),
		own:      emoji.Image(ownSprite),
		other:    emoji.Image(otherSprite),
	}
}

// Begin starts a frame drawn at now.
func (r *Renderer) Begin(screen *ebiten.Image, now time.Time) {
	if !r.lastDrawTime.IsZero() {
		r.elapsed = now.Sub(r.lastDrawTime)
	}
	r.lastDrawTime = now
	screen.Fill(skyColor)
}

// Smoothed is where entity index should be drawn this frame.
func (r *Renderer) Smoothed(index uint16, position mgl32.Vec3) mgl32.Vec3 {
	return r.smoother.Position(index, position, r.elapsed)
}

func (r *Renderer) Forget(index uint16) {
	r.smoother.Forget(index)
}

func (r *Renderer) toScreen(screen *ebiten.Image, camera, p mgl32.Vec3) (float64, float64) {
	w, h := screen.Size()
	x := float64(w)/2 + float64(p.Y()-camera.Y())*r.Scale
	y := float64(h)/2 - float64(p.X()-camera.X())*r.Scale
	return x, y
}

func (r *Renderer) RenderGrid(screen *ebiten.Image, camera mgl32.Vec3) {
	w, h := screen.Size()
	halfW := float64(w) / 2 / r.Scale
	halfH := float64(h) / 2 / r.Scale

	for y := math.Floor((float64(camera.Y())-halfW)/gridSpacing) * gridSpacing; y <= float64(camera.Y())+halfW; y += gridSpacing {
		sx, _ := r.toScreen(screen, camera, mgl32.Vec3{camera.X(), float32(y), 0})
		ebitenutil.DrawLine(screen, sx, 0, sx, float64(h), gridColor)
	}
	for x := math.Floor((float64(camera.X())-halfH)/gridSpacing) * gridSpacing; x <= float64(camera.X())+halfH; x += gridSpacing {
		_, sy := r.toScreen(screen, camera, mgl32.Vec3{float32(x), camera.Y(), 0})
		ebitenutil.DrawLine(screen, 0, sy, float64(w), sy, gridColor)
	}
}

// RenderPlane draws a plane at position facing heading, in radians clockwise
// from screen up.
func (r *Renderer) RenderPlane(screen *ebiten.Image, own bool, camera, position mgl32.Vec3, heading float64, name string) {
	image := r.other
	if own {
		image = r.own
	}
	x, y := r.toScreen(screen, camera, position)

	labelOffset := 12
	if image == nil {
		ebitenutil.DrawRect(screen, x-6, y-6, 12, 12, fallbackColor)
	} else {
		width, height := image.Size()
		opt := &ebiten.DrawImageOptions{}
		opt.GeoM.Translate(float64(-width/2), float64(-height/2))
		opt.GeoM.Rotate(heading - spriteHeading)
		opt.GeoM.Scale(spriteScale, spriteScale)
		opt.GeoM.Translate(x, y)
		opt.Filter = ebiten.FilterLinear
		screen.DrawImage(image, opt)
		labelOffset = int(float64(height) * spriteScale / 2)
	}

	label := fmt.Sprintf("%s\nalt %0.0f", name, position.Z())
	ebitenutil.DebugPrintAt(screen, label, int(x)-labelOffset, int(y)+labelOffset)
}

// yawHeading turns a yaw in degrees into a screen heading.
func yawHeading(yaw float32) float64 {
	return float64(yaw) * math.Pi / 180
}

// travelHeading is the screen heading of a move from a to b, or fallback
// when the move has no horizontal component.
func travelHeading(a, b mgl32.Vec3, fallback float64) float64 {
	dx, dy := float64(b.X()-a.X()), float64(b.Y()-a.Y())
	if dx == 0 && dy == 0 {
		return fallback
	}
	return math.Atan2(dy, dx)
}
