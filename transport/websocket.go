package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
	"nhooyr.io/websocket"
)

type Options struct {
	SendQueueSize  int
	WriteTimeout   time.Duration
	ReadLimit      int64
	OriginPatterns []string
}

func DefaultOptions() Options {
	return Options{
		SendQueueSize: 1024,
		WriteTimeout:  time.Second,
		ReadLimit:     1 << 16,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = d.SendQueueSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
	return o
}

// WebsocketHost carries binary packets over websocket connections. A
// listening host accepts any number of peers; a dialed host has exactly one.
type WebsocketHost struct {
	opts   Options
	events *eventQueue
	ctx    context.Context
	cancel context.CancelFunc

	serveMux http.ServeMux
	listener net.Listener
	server   *http.Server

	mu    sync.Mutex
	peers map[*wsPeer]struct{}
}

func newWebsocketHost(ctx context.Context, opts Options) *WebsocketHost {
	ctx, cancel := context.WithCancel(ctx)
	return &WebsocketHost{
		opts:   opts.withDefaults(),
		events: newEventQueue(),
		ctx:    ctx,
		cancel: cancel,
		peers:  make(map[*wsPeer]struct{}),
	}
}

// Listen accepts websocket peers on address. The same mux serves pprof and
// any handler registered through Handle.
func Listen(ctx context.Context, address string, opts Options) (*WebsocketHost, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	h := newWebsocketHost(ctx, opts)
	h.listener = l
	h.serveMux.HandleFunc("/", h.onConnection)
	h.serveMux.HandleFunc("/debug/pprof/", pprof.Index)
	h.serveMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	h.serveMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	h.serveMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	h.serveMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	h.server = &http.Server{
		Handler:           &h.serveMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := h.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("websocket listener stopped")
		}
	}()
	log.Info().Str("addr", l.Addr().String()).Msg("listening")
	return h, nil
}

// Dial connects to a listening host. ctx bounds the handshake only. The
// connect event is queued before Dial returns.
func Dial(ctx context.Context, url string, opts Options) (*WebsocketHost, error) {
	h := newWebsocketHost(context.Background(), opts)
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		h.cancel()
		return nil, err
	}
	p := h.newPeer(c)
	h.events.push(Event{Type: EventConnect, Peer: p})
	go h.servePeer(p)
	return h, nil
}

func (h *WebsocketHost) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

func (h *WebsocketHost) Handle(pattern string, handler http.Handler) {
	h.serveMux.Handle(pattern, handler)
}

func (h *WebsocketHost) Service(timeout time.Duration) (Event, bool) {
	return h.events.pop(timeout)
}

func (h *WebsocketHost) Close() error {
	h.mu.Lock()
	peers := make([]*wsPeer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		p.Disconnect()
	}
	h.cancel()
	if h.server != nil {
		return h.server.Close()
	}
	return nil
}

func (h *WebsocketHost) onConnection(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		log.Warn().Err(err).Msg("websocket accept")
		return
	}

	p := h.newPeer(c)
	h.events.push(Event{Type: EventConnect, Peer: p})
	h.servePeer(p)
}

func (h *WebsocketHost) newPeer(c *websocket.Conn) *wsPeer {
	c.SetReadLimit(h.opts.ReadLimit)
	p := &wsPeer{
		id:   ksuid.New().String(),
		host: h,
		c:    c,
		out:  make(chan *Packet, h.opts.SendQueueSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	return p
}

// servePeer blocks until the connection is gone, then queues the disconnect
// event. Explicit closes and timeouts end up here alike.
func (h *WebsocketHost) servePeer(p *wsPeer) {
	go p.writeMessages(h.ctx)
	if err := p.readMessages(h.ctx); err != nil {
		log.Debug().Err(err).Str("peer", p.id).Msg("read loop ended")
	}
	p.Disconnect()

	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
	h.events.push(Event{Type: EventDisconnect, Peer: p})
}

type wsPeer struct {
	id   string
	host *WebsocketHost
	c    *websocket.Conn
	out  chan *Packet

	closeOnce sync.Once
	done      chan struct{}
}

func (p *wsPeer) ID() string {
	return p.id
}

func (p *wsPeer) Send(packet *Packet) error {
	select {
	case <-p.done:
		return ErrPeerClosed
	default:
	}

	if !packet.Reliable() {
		select {
		case p.out <- packet:
		default:
			log.Debug().Str("peer", p.id).Msg("unreliable packet dropped")
		}
		return nil
	}

	timer := time.NewTimer(p.host.opts.WriteTimeout)
	defer timer.Stop()
	select {
	case p.out <- packet:
		return nil
	case <-p.done:
		return ErrPeerClosed
	case <-timer.C:
		p.Disconnect()
		return ErrQueueFull
	}
}

func (p *wsPeer) Disconnect() {
	p.closeOnce.Do(func() {
		close(p.done)
		// Close waits for the closing handshake, keep it off the caller's loop.
		go p.c.Close(websocket.StatusNormalClosure, "")
	})
}

func (p *wsPeer) readMessages(ctx context.Context) error {
	for {
		messageType, b, err := p.c.Read(ctx)
		if err != nil {
			return err
		}
		if messageType != websocket.MessageBinary || len(b) == 0 {
			continue
		}
		p.host.events.push(Event{
			Type:   EventReceive,
			Peer:   p,
			Packet: &Packet{Data: b},
		})
	}
}

func (p *wsPeer) writeMessages(ctx context.Context) {
	for {
		select {
		case packet := <-p.out:
			writeCtx, cancel := context.WithTimeout(ctx, p.host.opts.WriteTimeout)
			err := p.c.Write(writeCtx, websocket.MessageBinary, packet.Data)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("peer", p.id).Msg("write failed")
				p.Disconnect()
				return
			}
		case <-p.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
