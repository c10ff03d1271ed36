package server

import (
	"errors"
	"math"
	"time"

	"ace/transport"
	"ace/world"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var errStaleInput = errors.New("input index not increasing")

// Player is one roster slot. Index never changes for the life of the slot;
// Peer is nil while nobody occupies it.
type Player struct {
	Index     uint16
	Name      string
	Peer      transport.Peer
	State     world.KinematicState
	LastInput world.PlayerInput

	inputs         []world.PlayerInput
	playout        float32
	disconnectedAt time.Time
	warnings       *rate.Limiter
}

func newPlayer(index uint16) *Player {
	return &Player{
		Index:    index,
		warnings: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (p *Player) Connected() bool {
	return p.Peer != nil
}

func (p *Player) QueuedInputs() int {
	return len(p.inputs)
}

func (p *Player) reset(peer transport.Peer, spawn world.KinematicState) {
	p.Peer = peer
	p.Name = ""
	p.State = spawn
	p.LastInput = world.PlayerInput{}
	p.inputs = p.inputs[:0]
	p.playout = 0
	p.disconnectedAt = time.Time{}
}

// warn returns nil once the per-player budget is spent; zerolog treats a
// nil event as disabled.
func (p *Player) warn() *zerolog.Event {
	if !p.warnings.Allow() {
		return nil
	}
	return log.Warn().Uint16("player", p.Index)
}

func (p *Player) lastQueuedIndex() uint32 {
	if n := len(p.inputs); n > 0 {
		return p.inputs[n-1].Index
	}
	return p.LastInput.Index
}

// pushInput appends in to the playout queue. When the queue is longer than
// maxQueued the oldest entries are dropped.
func (p *Player) pushInput(in world.PlayerInput, maxQueued int) error {
	if in.Index <= p.lastQueuedIndex() {
		return errStaleInput
	}
	p.inputs = append(p.inputs, in)
	if maxQueued > 0 && len(p.inputs) > maxQueued {
		p.inputs = append(p.inputs[:0], p.inputs[len(p.inputs)-maxQueued:]...)
	}
	return nil
}

// advancePlayout drains the input queue at one input per tick, sped up or
// slowed down by 5% per queued input away from target.
func (p *Player) advancePlayout(target int) {
	if len(p.inputs) == 0 {
		return
	}

	inc := 1 + 0.05*float32(len(p.inputs)-target)
	if inc < 0 {
		inc = 0
	}
	p.playout += inc
	for p.playout >= 1 && len(p.inputs) > 0 {
		p.LastInput = p.inputs[0]
		p.inputs = p.inputs[1:]
		p.playout -= 1
	}
	if p.playout >= 1 {
		p.playout -= float32(math.Floor(float64(p.playout)))
	}
}
