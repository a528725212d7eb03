package feeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-live/relay-service/internal/config"
	"github.com/weiawesome/wes-io-live/relay-service/internal/reconnect"
	pkglog "github.com/weiawesome/wes-io-live/relay-service/pkg/log"
)

// NewSource creates the frame source selected by cfg.Source.
func NewSource(cfg config.StreamConfig) (Source, error) {
	switch cfg.Source {
	case config.SourceLoop:
		return NewLoopSource(cfg.SourceDir), nil
	case config.SourceWatch:
		return NewWatchSource(cfg.SourceDir)
	default:
		return nil, fmt.Errorf("unknown frame source %q", cfg.Source)
	}
}

// Run streams frames to the relay until ctx is cancelled, reconnecting with
// backoff whenever the connection is lost or refused.
func Run(ctx context.Context, cfg config.StreamConfig) error {
	source, err := NewSource(cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	streamer := NewStreamer(cfg, source)

	r := reconnect.New(reconnect.Backoff{
		Initial:    cfg.Reconnect.Initial,
		Max:        cfg.Reconnect.Max,
		Multiplier: cfg.Reconnect.Multiplier,
		Jitter:     cfg.Reconnect.Jitter,
	}, cfg.Reconnect.MaxElapsed)

	l := pkglog.Ctx(ctx)
	r.OnStatus = func(status reconnect.Status, err error) {
		switch {
		case status == reconnect.StatusConnected:
			l.Info().Str("url", cfg.URL).Msg("connected to relay")
		case streamer.SlotOccupied(err):
			l.Warn().Str("url", cfg.URL).Msg("relay producer slot occupied, retrying")
		case err != nil && ctx.Err() == nil:
			l.Warn().Err(err).Str(pkglog.FieldState, string(status)).Msg("relay connection lost")
		default:
			l.Debug().Str(pkglog.FieldState, string(status)).Msg("relay connection status")
		}
	}

	r.OnRetry = func(err error, delay time.Duration) {
		l.Debug().Err(err).Dur("delay", delay).Msg("reconnecting to relay")
	}

	l.Info().
		Str("url", cfg.URL).
		Str("source", cfg.Source).
		Str("dir", cfg.SourceDir).
		Float64("fps", cfg.FPS).
		Msg("frame feeder started")

	err = r.Run(ctx, streamer)
	l.Info().Uint64("frames_sent", streamer.Sent()).Msg("frame feeder stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
