// Package server is the authoritative side of the game: it owns the roster,
// plays out buffered client inputs at a fixed tick rate and sends every
// connected player a snapshot per tick.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"ace/protocol"
	"ace/transport"
	"ace/utils"
	"ace/world"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog/log"
)

// ErrUnknownPeer means the transport reported traffic for a peer the roster
// has no slot for. The roster and the transport disagree, which is fatal.
var ErrUnknownPeer = errors.New("event for unknown peer")

const pollTimeout = time.Millisecond

type Config struct {
	TickRate              int
	MaxClients            int
	TargetInputBufferSize int
	MaxInputBufferSize    int
	SpawnPoint            mgl32.Vec3
	// SlotRetention is how long a vacated slot at the end of the roster is
	// kept before it is pruned. Zero keeps slots forever.
	SlotRetention time.Duration
	Tuning        world.Tuning
}

func DefaultConfig() Config {
	return ConfigFromUtils(utils.DefaultConfig())
}

func ConfigFromUtils(c *utils.Config) Config {
	return Config{
		TickRate:              c.Net.TickRate,
		MaxClients:            c.Net.MaxClients,
		TargetInputBufferSize: c.Server.TargetInputBufferSize,
		MaxInputBufferSize:    c.Server.MaxInputBufferSize,
		SpawnPoint:            mgl32.Vec3{c.Server.Spawn[0], c.Server.Spawn[1], c.Server.Spawn[2]},
		SlotRetention:         time.Duration(c.Server.SlotRetentionMS) * time.Millisecond,
		Tuning:                world.TuningFromConfig(c.Plane),
	}
}

// Tick is NET_TICK, the simulated duration of one step.
func (c Config) Tick() time.Duration {
	return utils.NetConfig{TickRate: c.TickRate}.Tick()
}

type Server struct {
	cfg  Config
	host transport.Host
	now  func() time.Time

	tick     uint32
	players  []*Player
	byPeer   map[string]*Player
	rejected map[string]struct{}

	status atomic.Pointer[[]byte]
}

// New clamps cfg.MaxClients to [1, utils.MaxPlayerSlots]; zero means as many
// as snapshots can address.
func New(cfg Config, host transport.Host) *Server {
	if cfg.MaxClients <= 0 || cfg.MaxClients > utils.MaxPlayerSlots {
		if cfg.MaxClients > utils.MaxPlayerSlots {
			log.Warn().Int("max_clients", cfg.MaxClients).Int("limit", utils.MaxPlayerSlots).Msg("max clients capped")
		}
		cfg.MaxClients = utils.MaxPlayerSlots
	}
	s := &Server{
		cfg:      cfg,
		host:     host,
		now:      time.Now,
		byPeer:   make(map[string]*Player),
		rejected: make(map[string]struct{}),
	}
	s.publishStatus()
	return s
}

func (s *Server) TickIndex() uint32 {
	return s.tick
}

// Player returns the slot with the given index, or nil.
func (s *Server) Player(index uint16) *Player {
	if int(index) >= len(s.players) {
		return nil
	}
	return s.players[index]
}

// Run services the transport and ticks at the configured rate until ctx is
// done. Only ErrUnknownPeer stops it early.
func (s *Server) Run(ctx context.Context) error {
	tick := s.cfg.Tick()
	nextTick := s.now()
	log.Info().Dur("tick", tick).Msg("server loop started")

	for ctx.Err() == nil {
		timeout := pollTimeout
		for {
			e, ok := s.host.Service(timeout)
			if !ok {
				break
			}
			timeout = 0
			if err := s.HandleEvent(e); err != nil {
				return err
			}
		}

		if now := s.now(); !now.Before(nextTick) {
			s.Tick()
			nextTick = nextTick.Add(tick)
		}
	}
	return nil
}

// HandleEvent applies one transport event to the roster.
func (s *Server) HandleEvent(e transport.Event) error {
	if e.Peer == nil {
		return nil
	}
	if _, ok := s.rejected[e.Peer.ID()]; ok {
		if e.Type == transport.EventDisconnect {
			delete(s.rejected, e.Peer.ID())
		}
		return nil
	}

	switch e.Type {
	case transport.EventConnect:
		s.onConnect(e.Peer)
	case transport.EventDisconnect:
		return s.onDisconnect(e.Peer)
	case transport.EventReceive:
		player, ok := s.byPeer[e.Peer.ID()]
		if !ok {
			return fmt.Errorf("receive from %s: %w", e.Peer.ID(), ErrUnknownPeer)
		}
		s.onMessage(player, e.Packet.Data)
	}
	return nil
}

func (s *Server) freeSlot() *Player {
	for _, p := range s.players {
		if !p.Connected() {
			return p
		}
	}
	if len(s.players) >= s.cfg.MaxClients {
		return nil
	}
	p := newPlayer(uint16(len(s.players)))
	s.players = append(s.players, p)
	return p
}

func (s *Server) onConnect(peer transport.Peer) {
	player := s.freeSlot()
	if player == nil {
		log.Warn().Str("peer", peer.ID()).Int("max_clients", s.cfg.MaxClients).Msg("server full, rejecting peer")
		s.rejected[peer.ID()] = struct{}{}
		peer.Disconnect()
		return
	}

	player.reset(peer, world.NewKinematicState(s.cfg.SpawnPoint, s.cfg.Tuning))
	s.byPeer[peer.ID()] = player
	log.Info().Str("peer", peer.ID()).Uint16("player", player.Index).Msg("peer connected")

	s.send(player, &protocol.GameDataPacket{PlayerIndex: player.Index}, transport.FlagReliable)
	s.broadcastRoster()
}

func (s *Server) onDisconnect(peer transport.Peer) error {
	player, ok := s.byPeer[peer.ID()]
	if !ok {
		return fmt.Errorf("disconnect of %s: %w", peer.ID(), ErrUnknownPeer)
	}
	delete(s.byPeer, peer.ID())
	player.Peer = nil
	player.disconnectedAt = s.now()
	log.Info().Str("peer", peer.ID()).Uint16("player", player.Index).Msg("peer disconnected")

	s.broadcastRoster()
	return nil
}

func (s *Server) onMessage(player *Player, data []byte) {
	packet, err := protocol.Decode(data)
	if err != nil {
		player.warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed message")
		return
	}

	switch p := packet.(type) {
	case *protocol.PlayerInputPacket:
		if err := player.pushInput(p.Input, s.cfg.MaxInputBufferSize); err != nil {
			player.warn().Err(err).
				Uint32("index", p.Input.Index).
				Uint32("last", player.lastQueuedIndex()).
				Msg("dropping input")
		}
	case *protocol.PlayerNamePacket:
		player.Name = p.Name
		s.broadcastRoster()
	default:
		player.warn().Stringer("opcode", p.Opcode()).Msg("dropping unexpected message")
	}
}

// Tick advances the simulation by one NET_TICK and sends snapshots.
func (s *Server) Tick() {
	s.tick++
	dt := float32(s.cfg.Tick().Seconds())

	for _, player := range s.players {
		if !player.Connected() {
			continue
		}
		player.advancePlayout(s.cfg.TargetInputBufferSize)
		player.State, _ = world.ComputePhysics(player.State, player.LastInput, dt, s.cfg.Tuning)
	}

	for _, player := range s.players {
		if player.Connected() {
			s.send(player, s.positionPacket(player), 0)
		}
	}

	s.prune()
	s.publishStatus()
}

func (s *Server) positionPacket(player *Player) *protocol.PlayersPositionPacket {
	packet := &protocol.PlayersPositionPacket{
		LastInputIndex: player.LastInput.Index,
		TickIndex:      s.tick,
		Own: &protocol.OwnPlayerData{
			Position: player.State.Position,
			Velocity: player.State.Velocity,
		},
	}
	for _, other := range s.players {
		if other == player || !other.Connected() {
			continue
		}
		packet.Players = append(packet.Players, protocol.PlayerPosition{
			Index:    uint8(other.Index),
			Position: other.State.Position,
		})
	}
	return packet
}

// prune drops vacated slots from the end of the roster once they have been
// empty for SlotRetention. Interior slots stay so no index ever moves.
func (s *Server) prune() {
	if s.cfg.SlotRetention <= 0 {
		return
	}
	now := s.now()
	n := len(s.players)
	for n > 0 {
		p := s.players[n-1]
		if p.Connected() || now.Sub(p.disconnectedAt) < s.cfg.SlotRetention {
			break
		}
		n--
	}
	if n < len(s.players) {
		log.Debug().Int("slots", len(s.players)-n).Msg("pruned vacated slots")
		s.players = s.players[:n]
	}
}

func (s *Server) roster() *protocol.PlayerListPacket {
	packet := &protocol.PlayerListPacket{}
	for _, player := range s.players {
		if player.Connected() {
			packet.Players = append(packet.Players, protocol.PlayerListEntry{
				Index: player.Index,
				Name:  player.Name,
			})
		}
	}
	return packet
}

func (s *Server) broadcastRoster() {
	packet := protocol.BuildPacket(s.roster(), transport.FlagReliable)
	for _, player := range s.players {
		if player.Connected() {
			s.sendRaw(player, packet)
		}
	}
}

func (s *Server) send(player *Player, p protocol.Packet, flags transport.Flags) {
	s.sendRaw(player, protocol.BuildPacket(p, flags))
}

// sendRaw failures are logged only; a broken peer shows up as a disconnect
// event on a later poll.
func (s *Server) sendRaw(player *Player, packet *transport.Packet) {
	if err := player.Peer.Send(packet); err != nil {
		log.Debug().Err(err).Uint16("player", player.Index).Msg("send failed")
	}
}
