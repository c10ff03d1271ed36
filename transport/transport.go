// Package transport is the thin peer-to-peer layer the simulation talks to:
// connect, disconnect, send with a reliability flag and poll events.
package transport

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrPeerClosed = errors.New("peer closed")
	ErrQueueFull  = errors.New("send queue full")
	ErrNoListener = errors.New("no listener")
)

type Flags uint8

const (
	// FlagReliable packets are delivered in order or the peer is dropped.
	// Packets without it may be discarded under pressure.
	FlagReliable Flags = 1 << iota
)

type Packet struct {
	Data  []byte
	Flags Flags
}

func (p *Packet) Reliable() bool {
	return p.Flags&FlagReliable != 0
}

type EventType int

const (
	EventNone EventType = iota
	EventConnect
	EventDisconnect
	EventReceive
)

func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventReceive:
		return "receive"
	}
	return "none"
}

type Event struct {
	Type   EventType
	Peer   Peer
	Packet *Packet
}

type Peer interface {
	ID() string
	Send(packet *Packet) error
	Disconnect()
}

type Host interface {
	// Service waits up to timeout for the next event. A zero timeout polls.
	Service(timeout time.Duration) (Event, bool)
	Close() error
}

// eventQueue is an unbounded FIFO handed from network goroutines to the
// single loop that owns the simulation.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		notify: make(chan struct{}, 1),
	}
}

func (q *eventQueue) push(e Event) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) tryPop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	e := q.items[0]
	q.items[0] = Event{}
	q.items = q.items[1:]
	return e, true
}

func (q *eventQueue) pop(timeout time.Duration) (Event, bool) {
	if e, ok := q.tryPop(); ok || timeout <= 0 {
		return e, ok
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.notify:
			if e, ok := q.tryPop(); ok {
				return e, true
			}
		case <-timer.C:
			return q.tryPop()
		}
	}
}
