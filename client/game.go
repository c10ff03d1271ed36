package client

import (
	"errors"
	"fmt"

	"ace/protocol"
	"ace/world"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog/log"
)

var ErrOwnPlayerMissing = errors.New("own player missing from roster")

type PlayerRecord struct {
	Index    uint16
	Name     string
	Position mgl32.Vec3
}

// GameData is the client's mirror of the session. It exists from the
// S_GAMEDATA handshake until disconnect.
type GameData struct {
	Players         []PlayerRecord
	OwnPlayerIndex  uint16
	NextInputIndex  uint32
	PredictedInputs []PredictedInput
	Interpolation   *InterpolationBuffer

	lastSnapshotTick uint32
}

func newGameData(own uint16, name string, interpolation *InterpolationBuffer) *GameData {
	return &GameData{
		Players:        []PlayerRecord{{Index: own, Name: name}},
		OwnPlayerIndex: own,
		NextInputIndex: 1,
		Interpolation:  interpolation,
	}
}

func (g *GameData) Player(index uint16) *PlayerRecord {
	for i := range g.Players {
		if g.Players[i].Index == index {
			return &g.Players[i]
		}
	}
	return nil
}

func (g *GameData) setOwnPosition(position mgl32.Vec3) {
	if own := g.Player(g.OwnPlayerIndex); own != nil {
		own.Position = position
	}
}

// applyRoster makes Players match the roster: records missing from it are
// removed and new ones appended. Order of surviving records is kept.
func (g *GameData) applyRoster(p *protocol.PlayerListPacket) (joined, left []uint16) {
	names := make(map[uint16]string, len(p.Players))
	for _, entry := range p.Players {
		names[entry.Index] = entry.Name
	}

	kept := g.Players[:0]
	for _, record := range g.Players {
		name, ok := names[record.Index]
		if !ok {
			left = append(left, record.Index)
			continue
		}
		record.Name = name
		kept = append(kept, record)
		delete(names, record.Index)
	}
	g.Players = kept

	for _, entry := range p.Players {
		if _, ok := names[entry.Index]; !ok {
			continue
		}
		delete(names, entry.Index)
		g.Players = append(g.Players, PlayerRecord{Index: entry.Index, Name: entry.Name})
		joined = append(joined, entry.Index)
	}
	return joined, left
}

func (c *Client) handlePacket(packet protocol.Packet) error {
	if p, ok := packet.(*protocol.GameDataPacket); ok {
		c.startGame(p.PlayerIndex)
		return nil
	}
	if c.game == nil {
		log.Warn().Stringer("opcode", packet.Opcode()).Msg("message before handshake, dropping")
		return nil
	}

	switch p := packet.(type) {
	case *protocol.PlayerListPacket:
		joined, left := c.game.applyRoster(p)
		for _, index := range left {
			c.emitLeft(index)
		}
		for _, index := range joined {
			c.emitJoined(index)
		}
	case *protocol.PlayersPositionPacket:
		return c.applySnapshot(p)
	default:
		log.Warn().Stringer("opcode", p.Opcode()).Msg("unexpected message, dropping")
	}
	return nil
}

func (c *Client) startGame(own uint16) {
	c.game = newGameData(own, c.cfg.Name,
		NewInterpolationBuffer(c.cfg.TargetInterpolationBufferSize, c.cfg.MaxInterpolationBufferSize))
	c.state = world.NewKinematicState(c.cfg.SpawnPoint, c.cfg.Tuning)
	if c.actor != nil {
		c.state.Orientation = world.FromRotator(c.actor.WorldRotation())
		c.actor.SetWorldPosition(c.state.Position)
	}
	c.acked = c.state
	c.accumulator = 0
	log.Info().Uint16("player", own).Msg("joined game")
}

func (c *Client) applySnapshot(p *protocol.PlayersPositionPacket) error {
	g := c.game
	if g.Player(g.OwnPlayerIndex) == nil {
		return fmt.Errorf("snapshot for tick %d: %w", p.TickIndex, ErrOwnPlayerMissing)
	}
	if p.TickIndex <= g.lastSnapshotTick {
		log.Debug().Uint32("tick", p.TickIndex).Uint32("last", g.lastSnapshotTick).Msg("stale snapshot")
		return nil
	}
	g.lastSnapshotTick = p.TickIndex

	if p.Own != nil {
		c.reconcile(p.LastInputIndex, p.Own)
	}

	positions := make(map[uint16]mgl32.Vec3, len(p.Players))
	for _, player := range p.Players {
		positions[uint16(player.Index)] = player.Position
	}
	g.Interpolation.Push(Snapshot{Tick: p.TickIndex, Positions: positions})
	return nil
}
