package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/demxyuanli/selfa-indicators/internal/supervisor"
	"github.com/demxyuanli/selfa-indicators/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("database", cfg.Database.Path).
		Int("api_port", cfg.API.Port).
		Str("log_level", level.String()).
		Msg("Indicator engine starting")

	sup := supervisor.New()
	if err := sup.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start supervisor")
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down indicator engine")
}
