package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-live/relay-service/internal/config"
	"github.com/weiawesome/wes-io-live/relay-service/internal/events"
	"github.com/weiawesome/wes-io-live/relay-service/internal/handler"
	"github.com/weiawesome/wes-io-live/relay-service/internal/service"
	pkglog "github.com/weiawesome/wes-io-live/relay-service/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "relay-service",
		InstanceID:  cfg.Relay.InstanceID,
	})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting relay-service")

	// Create event publisher
	publisher, err := events.NewPublisher(cfg.Events)
	if err != nil {
		logger.Fatal().Err(err).Str(pkglog.FieldDriver, cfg.Events.Driver).Msg("failed to create event publisher")
	}
	defer publisher.Close()
	logger.Info().Str(pkglog.FieldDriver, cfg.Events.Driver).Msg("event publisher ready")

	dispatcher := events.NewDispatcher(publisher, cfg.Events.BufferSize, cfg.Events.PublishTimeout)

	// Create service
	svc, err := service.NewRelayService(cfg, dispatcher)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create relay service")
	}

	// Create handlers
	wsHandler := handler.NewWSHandler(svc.Hub(), cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(svc)

	// Setup routes
	router := handler.NewRouter(wsHandler, httpHandler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      pkglog.HTTPMiddleware(logger)(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// The dispatcher is stopped by svc.Stop once the hub has closed every
	// connection.
	g.Go(func() error {
		return svc.Start(context.Background())
	})

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("relay-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down relay-service")

		svc.Stop() // 1. close producer and viewers with 1001, flush events

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil { // 2. stop accepting connections
			logger.Error().Err(err).Msg("server shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("relay-service exited with error")
		stop()
		publisher.Close()
		os.Exit(1)
	}
	logger.Info().Msg("relay-service stopped")
}
