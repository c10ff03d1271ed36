package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"ace/protocol"
	"ace/transport"
	"ace/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenServesPlayersAndStatus(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.Server.Address = "127.0.0.1"
	cfg.Net.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := Listen(ctx, cfg)
	require.NoError(t, err)
	host := s.host.(*transport.WebsocketHost)
	defer host.Close()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	c, err := transport.Dial(ctx, "ws://"+host.Addr().String(), transport.DefaultOptions())
	require.NoError(t, err)
	defer c.Close()

	got := map[protocol.Opcode]bool{}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !(got[protocol.OpGameData] && got[protocol.OpPlayerList]) {
		e, ok := c.Service(10 * time.Millisecond)
		if !ok || e.Type != transport.EventReceive {
			continue
		}
		p, err := protocol.Decode(e.Packet.Data)
		require.NoError(t, err)
		got[p.Opcode()] = true
	}
	assert.True(t, got[protocol.OpGameData], "game data")
	assert.True(t, got[protocol.OpPlayerList], "roster")

	resp, err := http.Get("http://" + host.Addr().String() + "/status")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"players"`)

	cancel()
	require.NoError(t, <-done)
}

func TestListenRejectsBusyPort(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.Server.Address = "127.0.0.1"
	cfg.Net.Port = 0

	ctx := context.Background()
	s, err := Listen(ctx, cfg)
	require.NoError(t, err)
	host := s.host.(*transport.WebsocketHost)
	defer host.Close()

	cfg.Net.Port = host.Addr().(*net.TCPAddr).Port
	_, err = Listen(ctx, cfg)
	assert.Error(t, err)
}
