package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/relay-service/internal/events"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("server.port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Relay.ViewerQueueSize != 2 {
		t.Errorf("relay.viewer_queue_size = %d, want 2", cfg.Relay.ViewerQueueSize)
	}
	if cfg.Relay.DropPolicy != string(domain.DropOldest) {
		t.Errorf("relay.drop_policy = %q", cfg.Relay.DropPolicy)
	}
	if cfg.Relay.ConflictCloseCode != domain.CloseSlotConflict {
		t.Errorf("relay.conflict_close_code = %d", cfg.Relay.ConflictCloseCode)
	}
	if !cfg.Relay.StatusNotices {
		t.Error("relay.status_notices should default to true")
	}
	if cfg.WebSocket.PingInterval != 0 {
		t.Errorf("websocket.ping_interval = %v, want disabled", cfg.WebSocket.PingInterval)
	}
	if cfg.WebSocket.WriteWait != 10*time.Second {
		t.Errorf("websocket.write_wait = %v", cfg.WebSocket.WriteWait)
	}
	if cfg.Events.Driver != events.DriverNone {
		t.Errorf("events.driver = %q", cfg.Events.Driver)
	}
	if cfg.Events.Redis.Channel != "relay:events" {
		t.Errorf("events.redis.channel = %q", cfg.Events.Redis.Channel)
	}
	if cfg.Relay.InstanceID == "" {
		t.Error("relay.instance_id should default to the hostname")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir())
	t.Setenv("PORT", "9100")
	t.Setenv("RELAY_VIEWER_QUEUE_SIZE", "3")
	t.Setenv("RELAY_DROP_POLICY", "drop_newest")
	t.Setenv("EVENTS_DRIVER", "redis")
	t.Setenv("REDIS_ADDRESS", "redis:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Relay.ViewerQueueSize != 3 {
		t.Errorf("relay.viewer_queue_size = %d, want 3", cfg.Relay.ViewerQueueSize)
	}
	if cfg.Relay.DropPolicy != "drop_newest" {
		t.Errorf("relay.drop_policy = %q", cfg.Relay.DropPolicy)
	}
	if cfg.Events.Driver != "redis" || cfg.Events.Redis.Address != "redis:6379" {
		t.Errorf("events = %+v", cfg.Events)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := strings.Join([]string{
		"websocket:",
		"  ping_interval: 20s",
		"  pong_wait: 45s",
		"relay:",
		"  status_notices: false",
		"  viewer_queue_size: 1",
	}, "\n")
	if err := os.WriteFile(filepath.Join(dir, "relay.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WebSocket.PingInterval != 20*time.Second || cfg.WebSocket.PongWait != 45*time.Second {
		t.Errorf("websocket = %+v", cfg.WebSocket)
	}
	if cfg.Relay.StatusNotices {
		t.Error("status_notices should be disabled by the file")
	}
	if cfg.Relay.ViewerQueueSize != 1 {
		t.Errorf("viewer_queue_size = %d, want 1", cfg.Relay.ViewerQueueSize)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			WebSocket: WebSocketConfig{PongWait: time.Minute, MaxMessageSize: 1024},
			Relay: RelayConfig{
				ViewerQueueSize:   2,
				DropPolicy:        "drop_oldest",
				ConflictCloseCode: 4000,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero queue", func(c *Config) { c.Relay.ViewerQueueSize = 0 }, true},
		{"bad policy", func(c *Config) { c.Relay.DropPolicy = "drop_random" }, true},
		{"empty policy means default", func(c *Config) { c.Relay.DropPolicy = "" }, false},
		{"reserved code out of range", func(c *Config) { c.Relay.ConflictCloseCode = 1008 }, true},
		{"no frame limit", func(c *Config) { c.WebSocket.MaxMessageSize = 0 }, true},
		{"ping slower than pong wait", func(c *Config) { c.WebSocket.PingInterval = 2 * time.Minute }, true},
		{"ping enabled", func(c *Config) { c.WebSocket.PingInterval = 30 * time.Second }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFeeder(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir())
	t.Setenv("FEEDER_SOURCE_DIR", "/srv/frames")

	cfg, err := LoadFeeder()
	if err != nil {
		t.Fatalf("LoadFeeder() error = %v", err)
	}
	f := cfg.Feeder
	if f.URL != "ws://127.0.0.1:8000/ws/producer" || f.Source != SourceLoop {
		t.Errorf("stream = %+v", f)
	}
	if f.SourceDir != "/srv/frames" {
		t.Errorf("source_dir = %q, want env override", f.SourceDir)
	}
	if f.FPS != 5 || f.JPEGQuality != 60 || f.MaxDimension != 1920 {
		t.Errorf("fps/quality/dimension = %v/%d/%d", f.FPS, f.JPEGQuality, f.MaxDimension)
	}
	if f.ConflictCloseCode != domain.CloseSlotConflict {
		t.Errorf("conflict_close_code = %d, want %d", f.ConflictCloseCode, domain.CloseSlotConflict)
	}
	if f.Reconnect.Initial != time.Second || f.Reconnect.Max != 30*time.Second || f.Reconnect.MaxElapsed != 10*time.Minute {
		t.Errorf("reconnect = %+v", f.Reconnect)
	}
}

func TestFeederValidate(t *testing.T) {
	valid := func() FeederConfig {
		return FeederConfig{Feeder: StreamConfig{
			URL:          "wss://relay.example.com/ws/producer",
			Source:       SourceWatch,
			SourceDir:    "frames",
			FPS:          5,
			JPEGQuality:  60,
			MaxDimension: 1920,
		}}
	}

	tests := []struct {
		name    string
		mutate  func(*FeederConfig)
		wantErr bool
	}{
		{"valid", func(*FeederConfig) {}, false},
		{"http url", func(c *FeederConfig) { c.Feeder.URL = "http://relay/ws/producer" }, true},
		{"unknown source", func(c *FeederConfig) { c.Feeder.Source = "camera" }, true},
		{"no dir", func(c *FeederConfig) { c.Feeder.SourceDir = "" }, true},
		{"zero fps", func(c *FeederConfig) { c.Feeder.FPS = 0 }, true},
		{"quality too high", func(c *FeederConfig) { c.Feeder.JPEGQuality = 101 }, true},
		{"no downscale", func(c *FeederConfig) { c.Feeder.MaxDimension = 0 }, false},
		{"custom conflict code", func(c *FeederConfig) { c.Feeder.ConflictCloseCode = 4001 }, false},
		{"conflict code outside private range", func(c *FeederConfig) { c.Feeder.ConflictCloseCode = 1008 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
