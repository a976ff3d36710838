package config

import (
	"github.com/yndnr/worldsave/internal/infra/confloader"
)

// Load builds the configuration from defaults, the optional file at path,
// WORLDSAVE_ environment variables and overrides, in increasing priority,
// and verifies the result.
func Load(path string, overrides map[string]any) (*Config, error) {
	cfg := Default()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
