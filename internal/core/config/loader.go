package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"

	"github.com/prepfox/prepfox-ops/internal/infra/functions"
)

// Load reads configuration from a YAML file, then applies PREPFOX_*
// environment overrides and defaults. An empty path skips the file.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	applyDefaults(&cfg)

	if _, err := cfg.Retry.Policies(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.FailedThreshold == 0 {
		cfg.Server.FailedThreshold = 50
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Functions.Transport == "" && cfg.Functions.GRPCTarget != "" && cfg.Functions.BaseURL == "" {
		cfg.Functions.Transport = functions.TransportGRPC
	}
}
