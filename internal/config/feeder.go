package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
	pkgconfig "github.com/weiawesome/wes-io-live/relay-service/pkg/config"
)

// Frame sources understood by the feeder.
const (
	SourceLoop  = "loop"
	SourceWatch = "watch"
)

// FeederConfig configures the frame-feeder binary.
type FeederConfig struct {
	Feeder StreamConfig
	Log    LogConfig
}

type StreamConfig struct {
	URL          string
	Source       string
	SourceDir    string        `mapstructure:"source_dir"`
	FPS          float64       `mapstructure:"fps"`
	JPEGQuality  int           `mapstructure:"jpeg_quality"`
	MaxDimension int           `mapstructure:"max_dimension"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	// ConflictCloseCode must match the relay's relay.conflict_close_code.
	// Zero means the default, 4000.
	ConflictCloseCode int `mapstructure:"conflict_close_code"`
	Reconnect         ReconnectConfig
}

type ReconnectConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
	MaxElapsed time.Duration `mapstructure:"max_elapsed"`
}

func LoadFeeder() (*FeederConfig, error) {
	v, err := pkgconfig.Load("./config", "feeder")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("feeder.url", "ws://127.0.0.1:8000/ws/producer")
	v.SetDefault("feeder.source", SourceLoop)
	v.SetDefault("feeder.source_dir", "./frames")
	v.SetDefault("feeder.fps", 5)
	v.SetDefault("feeder.jpeg_quality", 60)
	v.SetDefault("feeder.max_dimension", 1920)
	v.SetDefault("feeder.write_wait", "10s")
	v.SetDefault("feeder.conflict_close_code", domain.CloseSlotConflict)
	v.SetDefault("feeder.reconnect.initial", "1s")
	v.SetDefault("feeder.reconnect.max", "30s")
	v.SetDefault("feeder.reconnect.multiplier", 2.0)
	v.SetDefault("feeder.reconnect.jitter", 0.2)
	v.SetDefault("feeder.reconnect.max_elapsed", "10m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	// Override from environment
	v.BindEnv("feeder.url", "FEEDER_URL")
	v.BindEnv("feeder.source", "FEEDER_SOURCE")
	v.BindEnv("feeder.source_dir", "FEEDER_SOURCE_DIR")
	v.BindEnv("feeder.fps", "FEEDER_FPS")
	v.BindEnv("feeder.conflict_close_code", "FEEDER_CONFLICT_CLOSE_CODE")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg FeederConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Feeder.WriteWait = pkgconfig.Duration(v, "feeder.write_wait", 10*time.Second)
	cfg.Feeder.Reconnect.Initial = pkgconfig.Duration(v, "feeder.reconnect.initial", time.Second)
	cfg.Feeder.Reconnect.Max = pkgconfig.Duration(v, "feeder.reconnect.max", 30*time.Second)
	cfg.Feeder.Reconnect.MaxElapsed = pkgconfig.Duration(v, "feeder.reconnect.max_elapsed", 10*time.Minute)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the feeder cannot run with.
func (c *FeederConfig) Validate() error {
	u, err := url.Parse(c.Feeder.URL)
	if err != nil {
		return fmt.Errorf("feeder.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("feeder.url must use ws or wss, got %q", c.Feeder.URL)
	}
	if c.Feeder.Source != SourceLoop && c.Feeder.Source != SourceWatch {
		return fmt.Errorf("feeder.source must be %q or %q, got %q", SourceLoop, SourceWatch, c.Feeder.Source)
	}
	if c.Feeder.SourceDir == "" {
		return fmt.Errorf("feeder.source_dir is required")
	}
	if c.Feeder.FPS <= 0 {
		return fmt.Errorf("feeder.fps must be positive, got %v", c.Feeder.FPS)
	}
	if c.Feeder.JPEGQuality < 1 || c.Feeder.JPEGQuality > 100 {
		return fmt.Errorf("feeder.jpeg_quality must be in 1-100, got %d", c.Feeder.JPEGQuality)
	}
	if code := c.Feeder.ConflictCloseCode; code != 0 && (code < 4000 || code > 4999) {
		return fmt.Errorf("feeder.conflict_close_code must be in the private range 4000-4999, got %d", c.Feeder.ConflictCloseCode)
	}
	if c.Feeder.MaxDimension < 0 {
		return fmt.Errorf("feeder.max_dimension must not be negative")
	}
	return nil
}
