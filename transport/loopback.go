package transport

import (
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

// Loopback is an in-process network with one listening host. Both ends of
// every connection live in the same process, which makes it suitable for
// tests and for playing against a local server.
type Loopback struct {
	mu     sync.Mutex
	server *LoopbackHost

	// DropUnreliable, when set, decides whether an unreliable packet is lost.
	DropUnreliable func(p *Packet) bool
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Listen() *LoopbackHost {
	h := l.newHost()
	l.mu.Lock()
	l.server = h
	l.mu.Unlock()
	return h
}

// Dial connects a new client host to the listening host. Both hosts receive
// an EventConnect.
func (l *Loopback) Dial() (*LoopbackHost, error) {
	l.mu.Lock()
	server := l.server
	l.mu.Unlock()
	if server == nil || server.isClosed() {
		return nil, ErrNoListener
	}

	client := l.newHost()
	toServer := &loopbackPeer{id: ksuid.New().String(), owner: client, net: l}
	toClient := &loopbackPeer{id: ksuid.New().String(), owner: server, net: l}
	toServer.remote = toClient
	toClient.remote = toServer

	server.track(toClient)
	client.track(toServer)
	server.events.push(Event{Type: EventConnect, Peer: toClient})
	client.events.push(Event{Type: EventConnect, Peer: toServer})
	return client, nil
}

func (l *Loopback) newHost() *LoopbackHost {
	return &LoopbackHost{
		events: newEventQueue(),
		peers:  make(map[*loopbackPeer]struct{}),
	}
}

type LoopbackHost struct {
	events *eventQueue
	mu     sync.Mutex
	peers  map[*loopbackPeer]struct{}
	closed bool
}

func (h *LoopbackHost) track(p *loopbackPeer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
}

func (h *LoopbackHost) untrack(p *loopbackPeer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
}

func (h *LoopbackHost) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *LoopbackHost) Service(timeout time.Duration) (Event, bool) {
	return h.events.pop(timeout)
}

func (h *LoopbackHost) Close() error {
	h.mu.Lock()
	h.closed = true
	peers := make([]*loopbackPeer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.Disconnect()
	}
	return nil
}

type loopbackPeer struct {
	id     string
	owner  *LoopbackHost
	remote *loopbackPeer
	net    *Loopback

	mu     sync.Mutex
	closed bool
}

func (p *loopbackPeer) ID() string {
	return p.id
}

func (p *loopbackPeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *loopbackPeer) Send(packet *Packet) error {
	if p.isClosed() {
		return ErrPeerClosed
	}
	if !packet.Reliable() && p.net.DropUnreliable != nil && p.net.DropUnreliable(packet) {
		return nil
	}

	data := make([]byte, len(packet.Data))
	copy(data, packet.Data)
	p.remote.owner.events.push(Event{
		Type:   EventReceive,
		Peer:   p.remote,
		Packet: &Packet{Data: data, Flags: packet.Flags},
	})
	return nil
}

// Disconnect closes both ends. Each host gets one EventDisconnect for its
// side, the same as a websocket peer whose read loop ends.
func (p *loopbackPeer) Disconnect() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.owner.untrack(p)
	p.owner.events.push(Event{Type: EventDisconnect, Peer: p})

	remote := p.remote
	remote.mu.Lock()
	alreadyClosed := remote.closed
	remote.closed = true
	remote.mu.Unlock()
	if alreadyClosed {
		return
	}
	remote.owner.untrack(remote)
	remote.owner.events.push(Event{Type: EventDisconnect, Peer: remote})
}
