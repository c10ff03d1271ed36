package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustService(t *testing.T, h Host, want EventType) Event {
	t.Helper()
	e, ok := h.Service(2 * time.Second)
	require.True(t, ok, "timed out waiting for %v", want)
	require.Equal(t, want, e.Type)
	return e
}

func TestLoopbackConnectSendDisconnect(t *testing.T) {
	net := NewLoopback()
	server := net.Listen()

	client, err := net.Dial()
	require.NoError(t, err)

	serverSide := mustService(t, server, EventConnect).Peer
	clientSide := mustService(t, client, EventConnect).Peer
	assert.NotEqual(t, serverSide.ID(), clientSide.ID())

	payload := []byte{1, 2, 3}
	require.NoError(t, clientSide.Send(&Packet{Data: payload, Flags: FlagReliable}))
	payload[0] = 9

	e := mustService(t, server, EventReceive)
	assert.Equal(t, serverSide, e.Peer)
	assert.Equal(t, []byte{1, 2, 3}, e.Packet.Data)
	assert.True(t, e.Packet.Reliable())

	clientSide.Disconnect()
	e = mustService(t, server, EventDisconnect)
	assert.Equal(t, serverSide, e.Peer)
	assert.ErrorIs(t, serverSide.Send(&Packet{}), ErrPeerClosed)

	e = mustService(t, client, EventDisconnect)
	assert.Equal(t, clientSide, e.Peer)
	_, ok := client.Service(0)
	assert.False(t, ok)

	clientSide.Disconnect()
	_, ok = server.Service(0)
	assert.False(t, ok, "second disconnect is a no-op")
}

func TestLoopbackDropsUnreliable(t *testing.T) {
	net := NewLoopback()
	net.DropUnreliable = func(*Packet) bool { return true }
	server := net.Listen()
	client, err := net.Dial()
	require.NoError(t, err)
	mustService(t, server, EventConnect)
	peer := mustService(t, client, EventConnect).Peer

	require.NoError(t, peer.Send(&Packet{Data: []byte{1}}))
	require.NoError(t, peer.Send(&Packet{Data: []byte{2}, Flags: FlagReliable}))

	e := mustService(t, server, EventReceive)
	assert.Equal(t, []byte{2}, e.Packet.Data)
	_, ok := server.Service(0)
	assert.False(t, ok)
}

func TestLoopbackDialWithoutListener(t *testing.T) {
	_, err := NewLoopback().Dial()
	assert.ErrorIs(t, err, ErrNoListener)
}

func TestLoopbackHostCloseNotifiesRemote(t *testing.T) {
	net := NewLoopback()
	server := net.Listen()
	client, err := net.Dial()
	require.NoError(t, err)
	mustService(t, server, EventConnect)
	mustService(t, client, EventConnect)

	require.NoError(t, server.Close())
	mustService(t, client, EventDisconnect)

	_, err = net.Dial()
	assert.ErrorIs(t, err, ErrNoListener)
}

func TestServiceWaitsForEvent(t *testing.T) {
	q := newEventQueue()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.push(Event{Type: EventConnect})
	}()

	e, ok := q.pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, EventConnect, e.Type)

	start := time.Now()
	_, ok = q.pop(5 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestWebsocketRoundTrip(t *testing.T) {
	ctx := context.Background()
	server, err := Listen(ctx, "127.0.0.1:0", DefaultOptions())
	require.NoError(t, err)
	defer server.Close()

	client, err := Dial(ctx, fmt.Sprintf("ws://%s", server.Addr()), DefaultOptions())
	require.NoError(t, err)
	defer client.Close()

	toServer := mustService(t, client, EventConnect).Peer
	toClient := mustService(t, server, EventConnect).Peer

	require.NoError(t, toServer.Send(&Packet{Data: []byte("ping"), Flags: FlagReliable}))
	e := mustService(t, server, EventReceive)
	assert.Equal(t, []byte("ping"), e.Packet.Data)
	assert.Equal(t, toClient, e.Peer)

	require.NoError(t, toClient.Send(&Packet{Data: []byte("pong")}))
	e = mustService(t, client, EventReceive)
	assert.Equal(t, []byte("pong"), e.Packet.Data)

	toServer.Disconnect()
	e = mustService(t, server, EventDisconnect)
	assert.Equal(t, toClient, e.Peer)
}
