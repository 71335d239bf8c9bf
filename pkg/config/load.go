package config

import (
	"log/slog"
	"os"

	"github.com/boreq/errors"
	"github.com/goccy/go-yaml"
)

// Load reads a YAML config on top of Default. A missing file yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("config file not found, using default config", "path", path)
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "error reading the config file")
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "error parsing the config file")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}
