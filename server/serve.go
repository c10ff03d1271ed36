package server

import (
	"context"
	"fmt"

	"ace/transport"
	"ace/utils"

	"github.com/rs/zerolog/log"
)

// Listen opens a websocket host on the configured port and wraps it in a
// Server. The status page is served on the same port at /status.
func Listen(ctx context.Context, cfg *utils.Config) (*Server, error) {
	opts := transport.DefaultOptions()
	opts.SendQueueSize = cfg.Net.SendQueueSize

	address := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Net.Port)
	host, err := transport.Listen(ctx, address, opts)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}
	s := New(ConfigFromUtils(cfg), host)
	host.Handle("/status", s.StatusHandler())
	log.Info().Int("max_clients", cfg.Net.MaxClients).Int("tick_rate", cfg.Net.TickRate).Msg("server ready")
	return s, nil
}

// Run serves until ctx is cancelled.
func Run(ctx context.Context, cfg *utils.Config) error {
	s, err := Listen(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.host.Close()
	return s.Run(ctx)
}
