package config

import "time"

// Default configuration values.
const (
	DefaultEngine    = "file"
	DefaultDir       = "saves"
	DefaultExtension = ".wsav"

	DefaultBadgerGCInterval  = 10 * time.Minute
	DefaultBadgerGCThreshold = 0.5
	DefaultBadgerCacheSize   = 16 << 20

	DefaultWorkers          = 4
	DefaultMinShardSize     = 256
	DefaultAutosaveInterval = time.Minute
	DefaultAutosaveSlots    = 3

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultMetricsAddr = "127.0.0.1:9464"

	DefaultTracingService     = "worldsave"
	DefaultTracingSampleRatio = 1.0
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			Engine:    DefaultEngine,
			Dir:       DefaultDir,
			Extension: DefaultExtension,
			Badger: BadgerSection{
				GCInterval:  DefaultBadgerGCInterval,
				GCThreshold: DefaultBadgerGCThreshold,
				CacheSize:   DefaultBadgerCacheSize,
				SyncWrites:  true,
			},
		},
		Save: SaveSection{
			Workers:          DefaultWorkers,
			MinShardSize:     DefaultMinShardSize,
			AutosaveInterval: DefaultAutosaveInterval,
			AutosaveSlots:    DefaultAutosaveSlots,
			SortByRecent:     true,
		},
		Filter: FilterSection{
			StoreComponents: true,
			StoreTransforms: true,
			StorePhysics:    true,
			StoreTags:       true,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
		},
		Tracing: TracingSection{
			ServiceName: DefaultTracingService,
			SampleRatio: DefaultTracingSampleRatio,
		},
	}
}
