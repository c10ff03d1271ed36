package client

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const netTick = 16 * time.Millisecond

func snapshotAt(tick uint32, positions map[uint16]mgl32.Vec3) Snapshot {
	return Snapshot{Tick: tick, Positions: positions}
}

// TestSampleMidpoint checks that halfway between ticks 10 and 11 a remote
// player is drawn exactly between its two reported positions.
func TestSampleMidpoint(t *testing.T) {
	a := mgl32.Vec3{100, -50, 8}
	b := mgl32.Vec3{300, 50, 16}
	buf := &InterpolationBuffer{
		target: 5,
		snapshots: []Snapshot{
			snapshotAt(10, map[uint16]mgl32.Vec3{7: a}),
			snapshotAt(11, map[uint16]mgl32.Vec3{7: b}),
		},
		progress: 0.5,
	}

	got, ok := buf.Sample(7)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{200, 0, 12}, got)

	_, ok = buf.Sample(8)
	assert.False(t, ok)
}

func TestPushBackfillsFirstSnapshot(t *testing.T) {
	buf := NewInterpolationBuffer(5, 20)
	p := map[uint16]mgl32.Vec3{1: {1, 0, 0}}
	require.True(t, buf.Push(snapshotAt(10, p)))

	require.Equal(t, 2, buf.Len())
	assert.Equal(t, uint32(9), buf.snapshots[0].Tick)
	assert.Equal(t, uint32(10), buf.snapshots[1].Tick)

	got, ok := buf.Sample(1)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, got)
}

func TestPushIgnoresStaleTicks(t *testing.T) {
	buf := NewInterpolationBuffer(5, 20)
	buf.Push(snapshotAt(10, nil))
	assert.False(t, buf.Push(snapshotAt(10, nil)))
	assert.False(t, buf.Push(snapshotAt(4, nil)))
	assert.True(t, buf.Push(snapshotAt(12, nil)))
	assert.Equal(t, 3, buf.Len())
}

func TestPushIsBounded(t *testing.T) {
	buf := NewInterpolationBuffer(2, 4)
	for tick := uint32(1); tick <= 10; tick++ {
		buf.Push(snapshotAt(tick, nil))
	}
	require.Equal(t, 4, buf.Len())
	assert.Equal(t, uint32(7), buf.snapshots[0].Tick)
	assert.Equal(t, uint32(10), buf.snapshots[3].Tick)
}

func TestAdvanceAtTargetPopsOncePerTick(t *testing.T) {
	buf := &InterpolationBuffer{
		target:    3,
		snapshots: []Snapshot{snapshotAt(1, nil), snapshotAt(2, nil), snapshotAt(3, nil)},
	}

	buf.Advance(netTick/2, netTick)
	assert.InDelta(t, 0.5, buf.Progress(), 1e-6)
	assert.Equal(t, 3, buf.Len())

	buf.Advance(netTick/2, netTick)
	assert.Equal(t, 2, buf.Len())
	assert.InDelta(t, 0, buf.Progress(), 1e-6)
}

func TestAdvanceScalesWithTickGap(t *testing.T) {
	buf := NewInterpolationBuffer(2, 20)
	buf.Push(snapshotAt(10, nil))
	buf.snapshots[0].Tick = 6

	buf.Advance(netTick, netTick)
	assert.InDelta(t, 0.25, buf.Progress(), 1e-6)
}

func TestAdvanceSlowsWhenStarved(t *testing.T) {
	buf := NewInterpolationBuffer(5, 20)
	buf.Push(snapshotAt(10, nil))

	buf.Advance(netTick/2, netTick)
	assert.InDelta(t, 0.5*0.4, buf.Progress(), 1e-6)
}

func TestProgressStaysInRange(t *testing.T) {
	buf := NewInterpolationBuffer(5, 20)
	tick := uint32(100)
	for frame := 0; frame < 1000; frame++ {
		if frame%3 != 0 {
			tick += uint32(frame%2 + 1)
			buf.Push(snapshotAt(tick, nil))
		}
		buf.Advance(time.Duration(frame%40)*time.Millisecond, netTick)
		require.GreaterOrEqual(t, buf.Progress(), float32(0))
		require.Less(t, buf.Progress(), float32(1))
	}
}

func TestClear(t *testing.T) {
	buf := NewInterpolationBuffer(5, 20)
	buf.Push(snapshotAt(3, nil))
	buf.Advance(netTick/2, netTick)
	buf.Clear()
	assert.Zero(t, buf.Len())
	assert.Zero(t, buf.Progress())
}
