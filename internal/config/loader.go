package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "eventcore.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "EVENTCORE_HEALTH_PORT")

	// NATS_URL is kept for parity with the other services; NATS_SERVERS wins.
	setList(&cfg.NATS.Servers, "NATS_URL")
	setList(&cfg.NATS.Servers, "NATS_SERVERS")
	setString(&cfg.NATS.Name, "EVENTCORE_NATS_NAME")
	setInt(&cfg.NATS.MaxReconnects, "EVENTCORE_NATS_MAX_RECONNECTS")
	setDuration(&cfg.NATS.ReconnectWait, "EVENTCORE_NATS_RECONNECT_WAIT")
	setDuration(&cfg.NATS.ConnectTimeout, "EVENTCORE_NATS_CONNECT_TIMEOUT")
	setDuration(&cfg.NATS.DrainTimeout, "EVENTCORE_NATS_DRAIN_TIMEOUT")

	// Streams
	setString(&cfg.Streams.Main, "EVENTCORE_STREAM")
	setString(&cfg.Streams.DeadLetter, "EVENTCORE_DLQ_STREAM")
	setDuration(&cfg.Streams.MaxAge, "EVENTCORE_STREAM_MAX_AGE")
	setInt64(&cfg.Streams.MaxMsgs, "EVENTCORE_STREAM_MAX_MSGS")
	setInt64(&cfg.Streams.MaxBytes, "EVENTCORE_STREAM_MAX_BYTES")
	setDuration(&cfg.Streams.DuplicateWindow, "EVENTCORE_STREAM_DUPLICATE_WINDOW")
	setInt(&cfg.Streams.Replicas, "EVENTCORE_STREAM_REPLICAS")
	setDuration(&cfg.Streams.DLQMaxAge, "EVENTCORE_DLQ_MAX_AGE")
	setInt64(&cfg.Streams.DLQMaxMsgs, "EVENTCORE_DLQ_MAX_MSGS")

	// Consumer
	setString(&cfg.Consumer.Service, "EVENTCORE_SERVICE")
	setDuration(&cfg.Consumer.AckWait, "EVENTCORE_ACK_WAIT")
	setInt(&cfg.Consumer.MaxDeliver, "EVENTCORE_MAX_DELIVER")
	setString(&cfg.Consumer.DeliverPolicy, "EVENTCORE_DELIVER_POLICY")
	setInt(&cfg.Consumer.BatchSize, "EVENTCORE_BATCH_SIZE")
	setDuration(&cfg.Consumer.NakDelay, "EVENTCORE_NAK_DELAY")
	setDuration(&cfg.Consumer.MaxNakDelay, "EVENTCORE_MAX_NAK_DELAY")

	// Idempotency
	setString(&cfg.Idempotency.Backend, "EVENTCORE_IDEMPOTENCY_BACKEND")
	setDuration(&cfg.Idempotency.TTL, "EVENTCORE_IDEMPOTENCY_TTL")
	setDuration(&cfg.Idempotency.SweepInterval, "EVENTCORE_IDEMPOTENCY_SWEEP")
	setString(&cfg.Idempotency.Bucket, "EVENTCORE_IDEMPOTENCY_BUCKET")
	setInt64(&cfg.Idempotency.L1MaxSizeMB, "EVENTCORE_IDEMPOTENCY_L1_SIZE_MB")

	// Dead letter
	setInt(&cfg.DeadLetter.BreakerMaxFailures, "EVENTCORE_DLQ_BREAKER_MAX_FAILURES")
	setDuration(&cfg.DeadLetter.BreakerTimeout, "EVENTCORE_DLQ_BREAKER_TIMEOUT")

	// Logging
	setString(&cfg.Logging.Level, "EVENTCORE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "EVENTCORE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "EVENTCORE_LOG_ASYNC")

	// Telemetry
	setBool(&cfg.Telemetry.Enabled, "EVENTCORE_OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "EVENTCORE_OTEL_INSECURE")
	setFloat64(&cfg.Telemetry.SampleRate, "EVENTCORE_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if len(cfg.NATS.Servers) == 0 {
		return errors.New("nats.servers is required")
	}
	if cfg.NATS.MaxReconnects < -1 {
		return errors.New("nats.max_reconnects must be >= -1")
	}
	if cfg.Streams.Main == "" || cfg.Streams.DeadLetter == "" {
		return errors.New("streams.main and streams.dead_letter are required")
	}
	if cfg.Streams.Main == cfg.Streams.DeadLetter {
		return errors.New("streams.main and streams.dead_letter must differ")
	}
	if cfg.Consumer.Service == "" {
		return errors.New("consumer.service is required")
	}
	if cfg.Consumer.MaxDeliver < 1 {
		return errors.New("consumer.max_deliver must be >= 1")
	}
	if cfg.Consumer.BatchSize < 1 {
		return errors.New("consumer.batch_size must be >= 1")
	}
	switch cfg.Consumer.DeliverPolicy {
	case "all", "new":
	default:
		return fmt.Errorf("consumer.deliver_policy %q must be \"all\" or \"new\"", cfg.Consumer.DeliverPolicy)
	}
	switch cfg.Idempotency.Backend {
	case "memory", "kv":
	default:
		return fmt.Errorf("idempotency.backend %q must be \"memory\" or \"kv\"", cfg.Idempotency.Backend)
	}
	if cfg.Idempotency.TTL <= 0 {
		return errors.New("idempotency.ttl must be > 0")
	}
	if cfg.Idempotency.SweepInterval <= 0 {
		return errors.New("idempotency.sweep_interval must be > 0")
	}
	if cfg.DeadLetter.BreakerMaxFailures < 1 {
		return errors.New("dead_letter.breaker_max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList splits a comma-separated value, dropping empty elements.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
