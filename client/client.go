// Package client is the player's side of a session: it predicts the local
// plane from its own inputs, reconciles with server snapshots and smooths
// remote planes through an interpolation buffer.
package client

import (
	"context"
	"time"

	"ace/protocol"
	"ace/transport"
	"ace/utils"
	"ace/world"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/rs/zerolog/log"
)

// Dialer opens a host connected (or connecting) to address.
type Dialer func(ctx context.Context, address string) (transport.Host, error)

func WebsocketDialer(opts transport.Options) Dialer {
	return func(ctx context.Context, address string) (transport.Host, error) {
		return transport.Dial(ctx, address, opts)
	}
}

func LoopbackDialer(l *transport.Loopback) Dialer {
	return func(context.Context, string) (transport.Host, error) {
		return l.Dial()
	}
}

type Config struct {
	TickRate                      int
	MaxWait                       time.Duration
	RetryTime                     time.Duration
	TargetInterpolationBufferSize int
	MaxInterpolationBufferSize    int
	Name                          string
	Tuning                        world.Tuning
	// SpawnPoint must match the server's so the first prediction starts
	// where the server places the plane.
	SpawnPoint mgl32.Vec3
}

func DefaultConfig() Config {
	return ConfigFromUtils(utils.DefaultConfig())
}

func ConfigFromUtils(c *utils.Config) Config {
	return Config{
		TickRate:                      c.Net.TickRate,
		MaxWait:                       c.Net.MaxWait(),
		RetryTime:                     c.Net.RetryTime(),
		TargetInterpolationBufferSize: c.Client.TargetInterpolationBufferSize,
		MaxInterpolationBufferSize:    c.Client.MaxInterpolationBufferSize,
		Name:                          c.Client.Name,
		Tuning:                        world.TuningFromConfig(c.Plane),
		SpawnPoint:                    mgl32.Vec3(c.Server.Spawn),
	}
}

func (c Config) Tick() time.Duration {
	return utils.NetConfig{TickRate: c.TickRate}.Tick()
}

// Listener receives roster and position events. Nil fields are skipped.
type Listener struct {
	OnPlayerJoined    func(index uint16)
	OnPlayerLeft      func(index uint16)
	OnPositionUpdated func(index uint16, position mgl32.Vec3)
}

// Client is not safe for concurrent use; drive it from one loop.
type Client struct {
	cfg  Config
	dial Dialer

	host transport.Host
	peer transport.Peer
	game *GameData

	actor       Actor
	input       world.PlayerInput
	state       world.KinematicState
	acked       world.KinematicState
	accumulator time.Duration

	listeners []Listener
}

func New(cfg Config, dial Dialer) *Client {
	state := world.NewKinematicState(cfg.SpawnPoint, cfg.Tuning)
	return &Client{
		cfg:   cfg,
		dial:  dial,
		state: state,
		acked: state,
	}
}

func (c *Client) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}

func (c *Client) Connected() bool {
	return c.peer != nil
}

// Game is nil until the server has assigned a slot.
func (c *Client) Game() *GameData {
	return c.game
}

// Connect dials address and waits for the connection for at most MaxWait,
// polling every RetryTime. Any previous connection is closed first.
func (c *Client) Connect(address string) bool {
	c.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.MaxWait)
	defer cancel()
	host, err := c.dial(ctx, address)
	if err != nil {
		log.Error().Err(err).Str("address", address).Msg("dial failed")
		return false
	}

	retry := c.cfg.RetryTime
	if retry <= 0 {
		retry = time.Millisecond
	}
	for i := time.Duration(0); i < c.cfg.MaxWait/retry; i++ {
		e, ok := host.Service(retry)
		if !ok {
			continue
		}
		if e.Type == transport.EventDisconnect {
			break
		}
		if e.Type != transport.EventConnect {
			continue
		}
		c.host = host
		c.peer = e.Peer
		log.Info().Str("address", address).Str("peer", e.Peer.ID()).Msg("connected")
		if c.cfg.Name != "" {
			c.send(&protocol.PlayerNamePacket{Name: c.cfg.Name}, transport.FlagReliable)
		}
		return true
	}

	host.Close()
	log.Error().Str("address", address).Dur("waited", c.cfg.MaxWait).Msg("connection timed out")
	return false
}

// Disconnect drops the connection and the session. Calling it while
// disconnected does nothing.
func (c *Client) Disconnect() {
	if c.peer != nil {
		c.peer.Disconnect()
	}
	c.teardown()
}

func (c *Client) teardown() {
	if c.host != nil {
		if err := c.host.Close(); err != nil {
			log.Debug().Err(err).Msg("closing host")
		}
	}
	c.host = nil
	c.peer = nil

	if c.game != nil {
		for _, record := range c.game.Players {
			if record.Index != c.game.OwnPlayerIndex {
				c.emitLeft(record.Index)
			}
		}
	}
	c.game = nil
}

// Update runs one frame: it handles pending network events, runs a local
// tick for every NET_TICK elapsed and moves remote players along. An error
// means the session state is broken and the caller should stop.
func (c *Client) Update(frameDelta time.Duration) error {
	if c.host == nil {
		return nil
	}
	for c.host != nil {
		e, ok := c.host.Service(0)
		if !ok {
			break
		}
		if err := c.handleEvent(e); err != nil {
			return err
		}
	}
	if c.game == nil {
		return nil
	}

	tick := c.cfg.Tick()
	c.accumulator += frameDelta
	for c.accumulator >= tick {
		c.accumulator -= tick
		c.predict()
	}

	c.game.Interpolation.Advance(frameDelta, tick)
	for i := range c.game.Players {
		record := &c.game.Players[i]
		if record.Index == c.game.OwnPlayerIndex {
			continue
		}
		if position, ok := c.game.Interpolation.Sample(record.Index); ok {
			record.Position = position
			c.emitPosition(record.Index, position)
		}
	}
	return nil
}

func (c *Client) handleEvent(e transport.Event) error {
	switch e.Type {
	case transport.EventDisconnect:
		log.Warn().Str("peer", e.Peer.ID()).Msg("disconnected by server")
		c.teardown()
	case transport.EventReceive:
		packet, err := protocol.Decode(e.Packet.Data)
		if err != nil {
			log.Warn().Err(err).Int("bytes", len(e.Packet.Data)).Msg("dropping malformed message")
			return nil
		}
		return c.handlePacket(packet)
	}
	return nil
}

func (c *Client) send(p protocol.Packet, flags transport.Flags) {
	if c.peer == nil {
		return
	}
	if err := c.peer.Send(protocol.BuildPacket(p, flags)); err != nil {
		log.Debug().Err(err).Stringer("opcode", p.Opcode()).Msg("send failed")
	}
}

func (c *Client) emitJoined(index uint16) {
	for _, l := range c.listeners {
		if l.OnPlayerJoined != nil {
			l.OnPlayerJoined(index)
		}
	}
}

func (c *Client) emitLeft(index uint16) {
	for _, l := range c.listeners {
		if l.OnPlayerLeft != nil {
			l.OnPlayerLeft(index)
		}
	}
}

func (c *Client) emitPosition(index uint16, position mgl32.Vec3) {
	for _, l := range c.listeners {
		if l.OnPositionUpdated != nil {
			l.OnPositionUpdated(index, position)
		}
	}
}
