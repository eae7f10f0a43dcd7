// Package config provides hierarchical configuration loading for eventcore.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for an eventcore process.
type Config struct {
	Server      Server      `yaml:"server"`
	NATS        NATS        `yaml:"nats"`
	Streams     Streams     `yaml:"streams"`
	Consumer    Consumer    `yaml:"consumer"`
	Idempotency Idempotency `yaml:"idempotency"`
	DeadLetter  DeadLetter  `yaml:"dead_letter"`
	Logging     Logging     `yaml:"logging"`
	Telemetry   Telemetry   `yaml:"telemetry"`
}

// Server holds the operational health endpoint configuration.
type Server struct {
	Port string `yaml:"port"` // empty disables the health endpoint
}

// NATS holds broker connection configuration.
type NATS struct {
	Servers        []string      `yaml:"servers"`
	Name           string        `yaml:"name"`
	MaxReconnects  int           `yaml:"max_reconnects"` // -1 = unlimited
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
}

// Streams holds the durable stream topology.
type Streams struct {
	Main            string        `yaml:"main"`
	DeadLetter      string        `yaml:"dead_letter"`
	MaxAge          time.Duration `yaml:"max_age"`
	MaxMsgs         int64         `yaml:"max_msgs"`
	MaxBytes        int64         `yaml:"max_bytes"` // -1 = unlimited
	DuplicateWindow time.Duration `yaml:"duplicate_window"`
	Replicas        int           `yaml:"replicas"`
	DLQMaxAge       time.Duration `yaml:"dlq_max_age"`
	DLQMaxMsgs      int64         `yaml:"dlq_max_msgs"`
}

// Consumer holds durable consumer defaults applied to every subscription.
type Consumer struct {
	Service       string        `yaml:"service"` // prefix for derived durable names
	AckWait       time.Duration `yaml:"ack_wait"`
	MaxDeliver    int           `yaml:"max_deliver"`
	DeliverPolicy string        `yaml:"deliver_policy"` // "all" | "new"
	BatchSize     int           `yaml:"batch_size"`
	NakDelay      time.Duration `yaml:"nak_delay"`
	MaxNakDelay   time.Duration `yaml:"max_nak_delay"`
}

// Idempotency holds the processed-event tracker configuration.
type Idempotency struct {
	Backend       string        `yaml:"backend"` // "memory" | "kv"
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Bucket        string        `yaml:"bucket"`         // JetStream KV bucket for the kv backend
	L1MaxSizeMB   int64         `yaml:"l1_max_size_mb"` // in-process cache in front of the kv backend
}

// DeadLetter holds dead-letter routing configuration.
type DeadLetter struct {
	BreakerMaxFailures int           `yaml:"breaker_max_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	Enabled      bool          `yaml:"enabled"`
	OTLPEndpoint string        `yaml:"otlp_endpoint"`
	Insecure     bool          `yaml:"insecure"`
	SampleRate   float64       `yaml:"sample_rate"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port: "8081",
		},
		NATS: NATS{
			Servers:        []string{"nats://localhost:4222"},
			Name:           "eventcore",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			ConnectTimeout: 5 * time.Second,
			DrainTimeout:   10 * time.Second,
		},
		Streams: Streams{
			Main:            "EVENTS",
			DeadLetter:      "EVENTS_DLQ",
			MaxAge:          7 * 24 * time.Hour,
			MaxMsgs:         1_000_000,
			MaxBytes:        -1,
			DuplicateWindow: 2 * time.Minute,
			Replicas:        1,
			DLQMaxAge:       30 * 24 * time.Hour,
			DLQMaxMsgs:      100_000,
		},
		Consumer: Consumer{
			Service:       "eventcore",
			AckWait:       30 * time.Second,
			MaxDeliver:    3,
			DeliverPolicy: "all",
			BatchSize:     10,
			NakDelay:      time.Second,
			MaxNakDelay:   30 * time.Second,
		},
		Idempotency: Idempotency{
			Backend:       "memory",
			TTL:           time.Hour,
			SweepInterval: 5 * time.Minute,
			Bucket:        "processed_events",
			L1MaxSizeMB:   16,
		},
		DeadLetter: DeadLetter{
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "eventcore",
		},
		Telemetry: Telemetry{
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			BatchTimeout: 5 * time.Second,
		},
	}
}
