package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/yndnr/worldsave/pkg/crypto/adaptive"
)

// Verify validates the configuration. It reports every problem found.
func Verify(cfg *Config) error {
	return errors.Join(
		verifyStorage(&cfg.Storage),
		verifySave(&cfg.Save),
		verifyLog(&cfg.Log),
		verifyMetrics(&cfg.Metrics),
		verifyTracing(&cfg.Tracing),
	)
}

func verifyStorage(cfg *StorageSection) error {
	var errs []error
	switch cfg.Engine {
	case "file", "badger", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.engine must be file, badger or sqlite, got %q", cfg.Engine))
	}
	if cfg.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}
	if strings.ContainsAny(cfg.Extension, `/\`) {
		errs = append(errs, fmt.Errorf("storage.extension %q must not contain a path separator", cfg.Extension))
	}
	if t := cfg.Badger.GCThreshold; t < 0 || t >= 1 {
		errs = append(errs, fmt.Errorf("storage.badger.gc_threshold must be in [0,1), got %v", t))
	}
	if enc := cfg.Encryption; enc.Key != "" {
		if _, err := adaptive.ParseKey(enc.Key); err != nil {
			errs = append(errs, fmt.Errorf("storage.encryption.key: %w", err))
		}
	}
	switch adaptive.CipherType(cfg.Encryption.Cipher) {
	case "", adaptive.CipherAESGCM, adaptive.CipherChaCha20:
	default:
		errs = append(errs, fmt.Errorf("storage.encryption.cipher must be %s or %s, got %q",
			adaptive.CipherAESGCM, adaptive.CipherChaCha20, cfg.Encryption.Cipher))
	}
	return errors.Join(errs...)
}

func verifySave(cfg *SaveSection) error {
	var errs []error
	if cfg.Workers < 1 {
		errs = append(errs, errors.New("save.workers must be at least 1"))
	}
	if cfg.MinShardSize < 1 {
		errs = append(errs, errors.New("save.min_shard_size must be at least 1"))
	}
	if cfg.MaxShards < 0 {
		errs = append(errs, errors.New("save.max_shards must not be negative"))
	}
	if cfg.AutosaveInterval < 0 {
		errs = append(errs, errors.New("save.autosave_interval must not be negative"))
	}
	if cfg.AutosaveSlots < 1 {
		errs = append(errs, errors.New("save.autosave_slots must be at least 1"))
	}
	return errors.Join(errs...)
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

func verifyLog(cfg *LogSection) error {
	var errs []error
	if !slices.Contains(logLevels, strings.ToLower(cfg.Level)) {
		errs = append(errs, fmt.Errorf("log.level must be one of %v, got %q", logLevels, cfg.Level))
	}
	if !slices.Contains(logFormats, strings.ToLower(cfg.Format)) {
		errs = append(errs, fmt.Errorf("log.format must be one of %v, got %q", logFormats, cfg.Format))
	}
	return errors.Join(errs...)
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Enabled && cfg.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}
	return nil
}

func verifyTracing(cfg *TracingSection) error {
	var errs []error
	if cfg.Enabled && cfg.Endpoint == "" {
		errs = append(errs, errors.New("tracing.endpoint is required when tracing is enabled"))
	}
	if r := cfg.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be in [0,1], got %v", r))
	}
	return errors.Join(errs...)
}
