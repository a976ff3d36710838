package config

import "time"

// Config is the root configuration.
type Config struct {
	Storage StorageSection `koanf:"storage" json:"storage" yaml:"storage"`
	Save    SaveSection    `koanf:"save" json:"save" yaml:"save"`
	Filter  FilterSection  `koanf:"filter" json:"filter" yaml:"filter"`
	Log     LogSection     `koanf:"log" json:"log" yaml:"log"`
	Metrics MetricsSection `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Tracing TracingSection `koanf:"tracing" json:"tracing" yaml:"tracing"`
}

// StorageSection configures where slots are kept.
type StorageSection struct {
	// Engine is "file", "badger" or "sqlite".
	Engine string `koanf:"engine" json:"engine" yaml:"engine"`
	Dir    string `koanf:"dir" json:"dir" yaml:"dir"`
	// Extension applies to the file engine only.
	Extension  string            `koanf:"extension" json:"extension" yaml:"extension"`
	Badger     BadgerSection     `koanf:"badger" json:"badger" yaml:"badger"`
	Encryption EncryptionSection `koanf:"encryption" json:"encryption" yaml:"encryption"`
}

// EncryptionSection seals slots at rest when Key is set.
type EncryptionSection struct {
	// Key is 32 bytes, base64url or hex encoded.
	Key string `koanf:"key" json:"key,omitempty" yaml:"key,omitempty"`
	// Cipher is aes-gcm or chacha20-poly1305. Empty picks by hardware.
	Cipher string `koanf:"cipher" json:"cipher,omitempty" yaml:"cipher,omitempty"`
}

// BadgerSection tunes the badger engine.
type BadgerSection struct {
	GCInterval  time.Duration `koanf:"gc_interval" json:"gc_interval" yaml:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold" json:"gc_threshold" yaml:"gc_threshold"`
	CacheSize   int64         `koanf:"cache_size" json:"cache_size" yaml:"cache_size"`
	SyncWrites  bool          `koanf:"sync_writes" json:"sync_writes" yaml:"sync_writes"`
}

// SaveSection configures save and load behavior.
type SaveSection struct {
	Workers      int `koanf:"workers" json:"workers" yaml:"workers"`
	MinShardSize int `koanf:"min_shard_size" json:"min_shard_size" yaml:"min_shard_size"`
	// MaxShards of zero means one shard per worker.
	MaxShards        int           `koanf:"max_shards" json:"max_shards" yaml:"max_shards"`
	AutosaveInterval time.Duration `koanf:"autosave_interval" json:"autosave_interval" yaml:"autosave_interval"`
	AutosaveSlots    int           `koanf:"autosave_slots" json:"autosave_slots" yaml:"autosave_slots"`
	SortByRecent     bool          `koanf:"sort_by_recent" json:"sort_by_recent" yaml:"sort_by_recent"`
}

// FilterSection configures what is captured.
type FilterSection struct {
	AllowedClasses    []string `koanf:"allowed_classes" json:"allowed_classes" yaml:"allowed_classes"`
	IgnoredClasses    []string `koanf:"ignored_classes" json:"ignored_classes" yaml:"ignored_classes"`
	AllowedComponents []string `koanf:"allowed_components" json:"allowed_components" yaml:"allowed_components"`
	IgnoredComponents []string `koanf:"ignored_components" json:"ignored_components" yaml:"ignored_components"`

	StoreComponents bool `koanf:"store_components" json:"store_components" yaml:"store_components"`
	StoreTransforms bool `koanf:"store_transforms" json:"store_transforms" yaml:"store_transforms"`
	StorePhysics    bool `koanf:"store_physics" json:"store_physics" yaml:"store_physics"`
	StoreTags       bool `koanf:"store_tags" json:"store_tags" yaml:"store_tags"`

	// KeepTags survive when store_tags is off, in addition to tags
	// carrying SaveTagPrefix.
	KeepTags      []string `koanf:"keep_tags" json:"keep_tags" yaml:"keep_tags"`
	SaveTagPrefix string   `koanf:"save_tag_prefix" json:"save_tag_prefix" yaml:"save_tag_prefix"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// MetricsSection configures the Prometheus endpoint of long-running
// commands.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `koanf:"addr" json:"addr" yaml:"addr"`
}

// TracingSection configures OpenTelemetry span export.
type TracingSection struct {
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
	// Endpoint is an OTLP/HTTP collector URL.
	Endpoint    string  `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	ServiceName string  `koanf:"service_name" json:"service_name" yaml:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio" json:"sample_ratio" yaml:"sample_ratio"`
}
