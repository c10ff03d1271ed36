package client

import (
	"math"
	"time"

	"ace/world"

	"github.com/go-gl/mathgl/mgl32"
)

// Snapshot is the remote player positions the server reported for one tick.
type Snapshot struct {
	Tick      uint32
	Positions map[uint16]mgl32.Vec3
}

// InterpolationBuffer delays remote players by a few ticks and blends
// between the two oldest snapshots it holds.
type InterpolationBuffer struct {
	target    int
	max       int
	snapshots []Snapshot
	progress  float32
}

func NewInterpolationBuffer(target, max int) *InterpolationBuffer {
	return &InterpolationBuffer{target: target, max: max}
}

func (b *InterpolationBuffer) Len() int {
	return len(b.snapshots)
}

func (b *InterpolationBuffer) Progress() float32 {
	return b.progress
}

// Push appends s. The first snapshot is duplicated one tick earlier so there
// are two points to blend between right away. Snapshots not newer than the
// last buffered one are ignored.
func (b *InterpolationBuffer) Push(s Snapshot) bool {
	n := len(b.snapshots)
	if n == 0 {
		if s.Tick > 0 {
			b.snapshots = append(b.snapshots, Snapshot{Tick: s.Tick - 1, Positions: s.Positions})
		}
		b.snapshots = append(b.snapshots, s)
		return true
	}
	if s.Tick <= b.snapshots[n-1].Tick {
		return false
	}

	b.snapshots = append(b.snapshots, s)
	if b.max > 0 && len(b.snapshots) > b.max {
		b.snapshots = append(b.snapshots[:0], b.snapshots[len(b.snapshots)-b.max:]...)
	}
	return true
}

// Advance moves playback forward by dt. One tick gap takes netTick at the
// nominal rate; each snapshot above or below the target occupancy speeds
// playback up or slows it down by 20%.
func (b *InterpolationBuffer) Advance(dt, netTick time.Duration) {
	if len(b.snapshots) < 2 || netTick <= 0 {
		return
	}

	gap := b.snapshots[1].Tick - b.snapshots[0].Tick
	inc := float32(dt) / float32(netTick) / float32(gap)
	scale := 1 + 0.2*float32(len(b.snapshots)-b.target)
	if scale < 0 {
		scale = 0
	}
	b.progress += inc * scale

	for b.progress >= 1 && len(b.snapshots) >= 2 {
		b.snapshots = b.snapshots[1:]
		b.progress -= 1
	}
	if b.progress >= 1 {
		b.progress -= float32(math.Floor(float64(b.progress)))
	}
}

// Sample returns the blended position of player index.
func (b *InterpolationBuffer) Sample(index uint16) (mgl32.Vec3, bool) {
	switch len(b.snapshots) {
	case 0:
		return mgl32.Vec3{}, false
	case 1:
		p, ok := b.snapshots[0].Positions[index]
		return p, ok
	}

	from, okFrom := b.snapshots[0].Positions[index]
	to, okTo := b.snapshots[1].Positions[index]
	switch {
	case okFrom && okTo:
		return world.Lerp(from, to, b.progress), true
	case okTo:
		return to, true
	default:
		return from, okFrom
	}
}

func (b *InterpolationBuffer) Clear() {
	b.snapshots = nil
	b.progress = 0
}
