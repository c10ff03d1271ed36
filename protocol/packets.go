package protocol

import (
	"errors"
	"fmt"

	"ace/transport"
	"ace/world"

	"github.com/go-gl/mathgl/mgl32"
)

type Opcode uint8

const (
	OpPlayerInput Opcode = iota
	OpGameData
	OpPlayerList
	OpPlayerPosition
	OpPlayerName
)

func (o Opcode) String() string {
	switch o {
	case OpPlayerInput:
		return "C_PLAYERINPUT"
	case OpGameData:
		return "S_GAMEDATA"
	case OpPlayerList:
		return "S_PLAYERLIST"
	case OpPlayerPosition:
		return "S_PLAYERPOSITION"
	case OpPlayerName:
		return "C_PLAYERNAME"
	}
	return fmt.Sprintf("Opcode(%d)", uint8(o))
}

var (
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrUnexpectedOpcode = errors.New("unexpected opcode")
	ErrTrailingData     = errors.New("trailing data after packet")
)

// Packet is one message of the game protocol. The set of implementations is
// closed: the five types below.
type Packet interface {
	Opcode() Opcode
	MarshalTo(w *Writer)
	UnmarshalFrom(r *Reader) error
}

// PlayerInputPacket carries one tick of input from a client.
type PlayerInputPacket struct {
	Input world.PlayerInput
}

func (*PlayerInputPacket) Opcode() Opcode { return OpPlayerInput }

func (p *PlayerInputPacket) MarshalTo(w *Writer) {
	w.U32(p.Input.Index)
	w.F32(p.Input.Pitch)
	w.F32(p.Input.Yaw)
	w.F32(p.Input.Roll)
	w.F32(p.Input.Throttle)
}

func (p *PlayerInputPacket) UnmarshalFrom(r *Reader) error {
	p.Input.Index = r.U32()
	p.Input.Pitch = r.F32()
	p.Input.Yaw = r.F32()
	p.Input.Roll = r.F32()
	p.Input.Throttle = r.F32()
	return r.Err()
}

// GameDataPacket tells a freshly connected client which slot it owns.
type GameDataPacket struct {
	PlayerIndex uint16
}

func (*GameDataPacket) Opcode() Opcode { return OpGameData }

func (p *GameDataPacket) MarshalTo(w *Writer) {
	w.U16(p.PlayerIndex)
}

func (p *GameDataPacket) UnmarshalFrom(r *Reader) error {
	p.PlayerIndex = r.U16()
	return r.Err()
}

type PlayerListEntry struct {
	Index uint16
	Name  string
}

// PlayerListPacket is the full roster of connected players.
type PlayerListPacket struct {
	Players []PlayerListEntry
}

func (*PlayerListPacket) Opcode() Opcode { return OpPlayerList }

func (p *PlayerListPacket) MarshalTo(w *Writer) {
	w.U16(uint16(len(p.Players)))
	for _, player := range p.Players {
		w.Str(player.Name)
		w.U16(player.Index)
	}
}

func (p *PlayerListPacket) UnmarshalFrom(r *Reader) error {
	n := int(r.U16())
	p.Players = nil
	for i := 0; i < n && r.Err() == nil; i++ {
		var player PlayerListEntry
		player.Name = r.Str()
		player.Index = r.U16()
		p.Players = append(p.Players, player)
	}
	return r.Err()
}

type PlayerPosition struct {
	Index    uint8
	Position mgl32.Vec3
}

// OwnPlayerData is the authoritative state of the receiving player.
type OwnPlayerData struct {
	Position mgl32.Vec3
	Velocity mgl32.Vec3
}

// PlayersPositionPacket is the per-tick snapshot. LastInputIndex is the last
// input of the receiving player the server has applied.
type PlayersPositionPacket struct {
	LastInputIndex uint32
	TickIndex      uint32
	Players        []PlayerPosition
	Own            *OwnPlayerData
}

func (*PlayersPositionPacket) Opcode() Opcode { return OpPlayerPosition }

func (p *PlayersPositionPacket) MarshalTo(w *Writer) {
	w.U32(p.LastInputIndex)
	w.U32(p.TickIndex)
	w.U16(uint16(len(p.Players)))
	for _, player := range p.Players {
		w.U8(player.Index)
		writeVector(w, player.Position)
	}
	w.Bool(p.Own != nil)
	if p.Own != nil {
		writeVector(w, p.Own.Position)
		writeVector(w, p.Own.Velocity)
	}
}

func (p *PlayersPositionPacket) UnmarshalFrom(r *Reader) error {
	p.LastInputIndex = r.U32()
	p.TickIndex = r.U32()
	n := int(r.U16())
	p.Players = nil
	for i := 0; i < n && r.Err() == nil; i++ {
		var player PlayerPosition
		player.Index = r.U8()
		player.Position = readVector(r)
		p.Players = append(p.Players, player)
	}
	p.Own = nil
	if r.Bool() {
		p.Own = &OwnPlayerData{
			Position: readVector(r),
			Velocity: readVector(r),
		}
	}
	return r.Err()
}

// PlayerNamePacket sets the display name of the sending player.
type PlayerNamePacket struct {
	Name string
}

func (*PlayerNamePacket) Opcode() Opcode { return OpPlayerName }

func (p *PlayerNamePacket) MarshalTo(w *Writer) {
	w.Str(p.Name)
}

func (p *PlayerNamePacket) UnmarshalFrom(r *Reader) error {
	p.Name = r.Str()
	return r.Err()
}

func writeVector(w *Writer, v mgl32.Vec3) {
	w.Vector(v.X(), v.Y(), v.Z())
}

func readVector(r *Reader) mgl32.Vec3 {
	return mgl32.Vec3{r.F32(), r.F32(), r.F32()}
}

// Marshal returns the opcode byte followed by the payload.
func Marshal(p Packet) []byte {
	w := NewWriter(64)
	w.U8(uint8(p.Opcode()))
	p.MarshalTo(w)
	return w.Bytes()
}

func BuildPacket(p Packet, flags transport.Flags) *transport.Packet {
	return &transport.Packet{Data: Marshal(p), Flags: flags}
}

func newPacket(op Opcode) (Packet, error) {
	switch op {
	case OpPlayerInput:
		return &PlayerInputPacket{}, nil
	case OpGameData:
		return &GameDataPacket{}, nil
	case OpPlayerList:
		return &PlayerListPacket{}, nil
	case OpPlayerPosition:
		return &PlayersPositionPacket{}, nil
	case OpPlayerName:
		return &PlayerNamePacket{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, uint8(op))
}

// Decode parses one whole packet. Every byte of b must be consumed.
func Decode(b []byte) (Packet, error) {
	r := NewReader(b)
	op := Opcode(r.U8())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("opcode: %w", err)
	}

	p, err := newPacket(op)
	if err != nil {
		return nil, err
	}
	if err := p.UnmarshalFrom(r); err != nil {
		return nil, fmt.Errorf("%v: %w", op, err)
	}
	if r.Remaining() > 0 {
		return nil, fmt.Errorf("%v: %d bytes: %w", op, r.Remaining(), ErrTrailingData)
	}
	return p, nil
}

// DecodeAs decodes b and checks that it holds a T.
func DecodeAs[T Packet](b []byte) (T, error) {
	var zero T
	p, err := Decode(b)
	if err != nil {
		return zero, err
	}
	t, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %v, want %v", ErrUnexpectedOpcode, p.Opcode(), zero.Opcode())
	}
	return t, nil
}
