package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a JSON config file and overlays secrets from the environment.
// A missing file is not an error: Default() is returned so the gateway can
// run with zero configuration in development.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return applyEnv(cfg), nil
			}
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		// Unmarshal over the defaults so unset fields keep their default value.
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	return applyEnv(cfg), nil
}

// applyEnv overlays secret fields that must never live in config.json.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("FORGELINE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("FORGELINE_DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	return cfg
}
