package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ace/logging"
	"ace/server"
	"ace/utils"

	"github.com/rs/zerolog/log"
)

func main() {
	configFile := "config.toml"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}
	cfg, err := utils.Load(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
