package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/weiawesome/wes-io-live/relay-service/internal/config"
	"github.com/weiawesome/wes-io-live/relay-service/internal/feeder"
	pkglog "github.com/weiawesome/wes-io-live/relay-service/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFeeder()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "frame-feeder",
	})
	logger := pkglog.L()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := feeder.Run(pkglog.WithLogger(ctx, logger), cfg.Feeder); err != nil {
		logger.Error().Err(err).Msg("frame feeder failed")
		stop()
		os.Exit(1)
	}
}
