package events

import (
	"context"
	"fmt"
	"time"
)

// Drivers accepted by NewPublisher.
const (
	DriverNone  = "none"
	DriverRedis = "redis"
	DriverKafka = "kafka"
)

// Config holds the configuration for lifecycle event publication.
type Config struct {
	Driver         string        `mapstructure:"driver"`
	BufferSize     int           `mapstructure:"buffer_size"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
	Redis          RedisConfig   `mapstructure:"redis"`
	Kafka          KafkaConfig   `mapstructure:"kafka"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Channel      string        `mapstructure:"channel"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	Topic      string `mapstructure:"topic"`
	Partitions int    `mapstructure:"partitions"`
}

// DefaultConfig returns the default configuration: publication disabled.
func DefaultConfig() Config {
	return Config{
		Driver:         DriverNone,
		BufferSize:     256,
		PublishTimeout: 3 * time.Second,
		Redis: RedisConfig{
			Address:      "localhost:6379",
			Channel:      "relay:events",
			PoolSize:     4,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    "localhost:9092",
			Topic:      "relay-events",
			Partitions: 1,
		},
	}
}

// NewPublisher creates the Publisher selected by cfg.Driver.
func NewPublisher(cfg Config) (Publisher, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return NopPublisher{}, nil
	case DriverRedis:
		return NewRedisPublisher(cfg.Redis)
	case DriverKafka:
		return NewKafkaPublisher(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, _ *Event) error { return nil }
func (NopPublisher) Close() error                              { return nil }
