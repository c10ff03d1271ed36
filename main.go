package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ace/client"
	"ace/logging"
	"ace/server"
	"ace/transport"
	"ace/utils"
	"ace/viewer"

	"github.com/rs/zerolog/log"
)

const configFile = "config.toml"

func main() {
	cfg, err := utils.Load(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 && os.Args[1] == "server" {
		if err := server.Run(ctx, cfg); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
		return
	}

	opts := transport.DefaultOptions()
	opts.SendQueueSize = cfg.Net.SendQueueSize
	c := client.New(client.ConfigFromUtils(cfg), client.WebsocketDialer(opts))

	address := fmt.Sprintf("ws://%s:%d", cfg.Client.Address, cfg.Net.Port)
	if !c.Connect(address) {
		log.Warn().Str("address", address).Msg("no server, starting one in process")

		// Try to spin up the server if we fail to connect.
		srv, err := server.Listen(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("starting server")
		}
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Fatal().Err(err).Msg("server stopped")
			}
		}()
		if !c.Connect(address) {
			log.Fatal().Str("address", address).Msg("could not connect")
		}
	}
	defer c.Disconnect()

	if err := viewer.Run(c, cfg.UI); err != nil {
		log.Error().Err(err).Msg("game stopped")
	}
}
