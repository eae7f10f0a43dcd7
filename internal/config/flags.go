package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// CLIFlags holds command-line overrides. Nil pointers mean "not set".
type CLIFlags struct {
	ConfigPath    *string
	Servers       *string
	LogLevel      *string
	HealthPort    *string
	Service       *string
	ProvisionOnly bool
}

// ParseFlags parses args (without the program name) into CLIFlags.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := pflag.NewFlagSet("eventcore", pflag.ContinueOnError)

	configPath := fs.StringP("config", "c", "", "path to YAML config file")
	servers := fs.StringP("servers", "s", "", "comma-separated NATS server URLs")
	logLevel := fs.StringP("log-level", "l", "", "log level (debug|info|warn|error)")
	healthPort := fs.StringP("health-port", "p", "", "health endpoint port (empty disables)")
	service := fs.String("service", "", "service name used to derive durable consumer names")
	provisionOnly := fs.Bool("provision-only", false, "provision streams and exit")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var flags CLIFlags
	if fs.Changed("config") {
		flags.ConfigPath = configPath
	}
	if fs.Changed("servers") {
		flags.Servers = servers
	}
	if fs.Changed("log-level") {
		flags.LogLevel = logLevel
	}
	if fs.Changed("health-port") {
		flags.HealthPort = healthPort
	}
	if fs.Changed("service") {
		flags.Service = service
	}
	flags.ProvisionOnly = *provisionOnly
	return flags, nil
}

// LoadWithCLI loads config with the hierarchy defaults < YAML < ENV < CLI.
// It returns the resolved YAML path alongside the config.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil && *flags.ConfigPath != "" {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, path, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, path, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}

func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Servers != nil {
		var servers []string
		for _, s := range strings.Split(*flags.Servers, ",") {
			if s = strings.TrimSpace(s); s != "" {
				servers = append(servers, s)
			}
		}
		if len(servers) > 0 {
			cfg.NATS.Servers = servers
		}
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.HealthPort != nil {
		cfg.Server.Port = *flags.HealthPort
	}
	if flags.Service != nil {
		cfg.Consumer.Service = *flags.Service
		cfg.Logging.Service = *flags.Service
	}
}
