package config

import (
	"fmt"
	"os"
	"time"

	"github.com/weiawesome/wes-io-live/relay-service/internal/domain"
	"github.com/weiawesome/wes-io-live/relay-service/internal/events"
	pkgconfig "github.com/weiawesome/wes-io-live/relay-service/pkg/config"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Relay     RelayConfig
	Events    events.Config
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WebSocketConfig struct {
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
}

type RelayConfig struct {
	InstanceID        string `mapstructure:"instance_id"`
	ViewerQueueSize   int    `mapstructure:"viewer_queue_size"`
	DropPolicy        string `mapstructure:"drop_policy"`
	ConflictCloseCode int    `mapstructure:"conflict_close_code"`
	StatusNotices     bool   `mapstructure:"status_notices"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "relay")
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "relay"
	}
	ev := events.DefaultConfig()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("websocket.ping_interval", "0s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8<<20)
	v.SetDefault("websocket.read_buffer_size", 4096)
	v.SetDefault("websocket.write_buffer_size", 32768)
	v.SetDefault("relay.instance_id", hostname)
	v.SetDefault("relay.viewer_queue_size", 2)
	v.SetDefault("relay.drop_policy", string(domain.DropOldest))
	v.SetDefault("relay.conflict_close_code", domain.CloseSlotConflict)
	v.SetDefault("relay.status_notices", true)
	v.SetDefault("events.driver", ev.Driver)
	v.SetDefault("events.buffer_size", ev.BufferSize)
	v.SetDefault("events.publish_timeout", ev.PublishTimeout.String())
	v.SetDefault("events.redis.address", ev.Redis.Address)
	v.SetDefault("events.redis.password", "")
	v.SetDefault("events.redis.db", 0)
	v.SetDefault("events.redis.channel", ev.Redis.Channel)
	v.SetDefault("events.redis.pool_size", ev.Redis.PoolSize)
	v.SetDefault("events.redis.read_timeout", ev.Redis.ReadTimeout.String())
	v.SetDefault("events.redis.write_timeout", ev.Redis.WriteTimeout.String())
	v.SetDefault("events.kafka.brokers", ev.Kafka.Brokers)
	v.SetDefault("events.kafka.topic", ev.Kafka.Topic)
	v.SetDefault("events.kafka.partitions", ev.Kafka.Partitions)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("relay.instance_id", "RELAY_INSTANCE_ID")
	v.BindEnv("relay.viewer_queue_size", "RELAY_VIEWER_QUEUE_SIZE")
	v.BindEnv("relay.drop_policy", "RELAY_DROP_POLICY")
	v.BindEnv("events.driver", "EVENTS_DRIVER")
	v.BindEnv("events.redis.address", "REDIS_ADDRESS")
	v.BindEnv("events.redis.password", "REDIS_PASSWORD")
	v.BindEnv("events.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("events.kafka.topic", "KAFKA_EVENTS_TOPIC")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 0)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Events.PublishTimeout = pkgconfig.Duration(v, "events.publish_timeout", ev.PublishTimeout)
	cfg.Events.Redis.ReadTimeout = pkgconfig.Duration(v, "events.redis.read_timeout", ev.Redis.ReadTimeout)
	cfg.Events.Redis.WriteTimeout = pkgconfig.Duration(v, "events.redis.write_timeout", ev.Redis.WriteTimeout)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the relay cannot run with.
func (c *Config) Validate() error {
	if c.Relay.ViewerQueueSize < 1 {
		return fmt.Errorf("relay.viewer_queue_size must be at least 1, got %d", c.Relay.ViewerQueueSize)
	}
	if _, err := domain.ParseDropPolicy(c.Relay.DropPolicy); err != nil {
		return fmt.Errorf("relay.drop_policy: %w", err)
	}
	if c.Relay.ConflictCloseCode < 4000 || c.Relay.ConflictCloseCode > 4999 {
		return fmt.Errorf("relay.conflict_close_code must be in the private range 4000-4999, got %d", c.Relay.ConflictCloseCode)
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket.max_message_size must be positive")
	}
	if c.WebSocket.PingInterval > 0 && c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return fmt.Errorf("websocket.ping_interval (%s) must be shorter than pong_wait (%s)",
			c.WebSocket.PingInterval, c.WebSocket.PongWait)
	}
	return nil
}
