package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/worldsave/internal/cli/output"
	"github.com/yndnr/worldsave/internal/config"
	"github.com/yndnr/worldsave/internal/core/capture"
	"github.com/yndnr/worldsave/internal/core/service"
	"github.com/yndnr/worldsave/internal/infra/buildinfo"
	"github.com/yndnr/worldsave/internal/storage/slotstore"
	"github.com/yndnr/worldsave/internal/telemetry/logger"
	"github.com/yndnr/worldsave/internal/telemetry/metric"
	"github.com/yndnr/worldsave/internal/telemetry/tracer"
	"github.com/yndnr/worldsave/pkg/crypto/adaptive"
)

const envKey = "env"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "worldsave",
		Usage:   "Inspect and manage world save slots",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SlotsCommand(),
			DemoCommand(),
			ShellCommand(),
			KeygenCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			c.App.Metadata[envKey] = e
			return nil
		},
		After: func(c *cli.Context) error {
			if e, ok := c.App.Metadata[envKey].(*env); ok {
				return e.close()
			}
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (yaml)",
			EnvVars: []string{"WORLDSAVE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "Slot directory",
		},
		&cli.StringFlag{
			Name:  "engine",
			Usage: "Storage engine: file, badger, sqlite",
		},
		&cli.StringFlag{
			Name:    "encryption-key",
			Usage:   "Seal slots with this key (see keygen)",
			EnvVars: []string{"WORLDSAVE_ENCRYPTION_KEY"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, jsonl, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
	}
}

// overrides collects the global flags that were set explicitly, keyed by
// configuration path.
func overrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	for flag, key := range map[string]string{
		"dir":            "storage.dir",
		"engine":         "storage.engine",
		"encryption-key": "storage.encryption.key",
		"log-level":      "log.level",
	} {
		if c.IsSet(flag) {
			m[key] = c.String(flag)
		}
	}
	return m
}

// env is the state shared by the commands of one invocation. The slot
// store and manager are opened on first use.
type env struct {
	cfg       *config.Config
	cfgPath   string
	overrides map[string]any
	log       logger.Logger

	registry *prometheus.Registry
	metrics  *metric.Metrics
	tracing  *tracer.Provider

	store slotstore.Store
	mgr   *service.Manager
}

func newEnv(c *cli.Context) (*env, error) {
	path := c.String("config")
	ov := overrides(c)
	cfg, err := config.Load(path, ov)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	errOut := c.App.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: errOut,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)

	var tp *tracer.Provider
	if tc := cfg.Tracing; tc.Enabled {
		tp, err = tracer.New(c.Context, tracer.Config{
			ServiceName: tc.ServiceName,
			Endpoint:    tc.Endpoint,
			SampleRatio: tc.SampleRatio,
		})
		if err != nil {
			return nil, err
		}
		log.Debug("tracing enabled", "endpoint", tc.Endpoint)
	}

	reg := metric.NewRegistry()
	return &env{
		cfg:       cfg,
		cfgPath:   path,
		overrides: ov,
		log:       log,
		registry:  reg,
		metrics:   metric.New(reg),
		tracing:   tp,
	}, nil
}

// manager opens the slot store and the save manager.
func (e *env) manager() (*service.Manager, error) {
	if e.mgr != nil {
		return e.mgr, nil
	}
	st := e.cfg.Storage
	var key []byte
	if st.Encryption.Key != "" {
		k, err := adaptive.ParseKey(st.Encryption.Key)
		if err != nil {
			return nil, err
		}
		key = k
	}
	store, err := slotstore.New(slotstore.Options{
		Engine:    st.Engine,
		Dir:       st.Dir,
		Extension: st.Extension,
		Badger: slotstore.BadgerConfig{
			GCInterval:  st.Badger.GCInterval,
			GCThreshold: st.Badger.GCThreshold,
			CacheSize:   st.Badger.CacheSize,
			SyncWrites:  st.Badger.SyncWrites,
		},
		Key:      key,
		Cipher:   adaptive.CipherType(st.Encryption.Cipher),
		Logger:   e.log.Slog(),
		Registry: e.registry,
	})
	if err != nil {
		return nil, err
	}

	sv := e.cfg.Save
	mgr, err := service.NewManager(service.ManagerConfig{
		Store:            store,
		Policy:           capture.FilterFromConfig(e.cfg.Filter),
		Registry:         sampleRegistry(),
		Workers:          sv.Workers,
		MinShardSize:     sv.MinShardSize,
		MaxShards:        sv.MaxShards,
		AutosaveInterval: sv.AutosaveInterval,
		AutosaveSlots:    sv.AutosaveSlots,
		Logger:           e.log.Slog(),
		Metrics:          e.metrics,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	e.store, e.mgr = store, mgr
	return mgr, nil
}

func (e *env) close() error {
	var errs []error
	if e.mgr != nil {
		errs = append(errs, e.mgr.Close())
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	if e.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, e.tracing.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// getEnv retrieves the environment created by the Before hook.
func getEnv(c *cli.Context) (*env, error) {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		return e, nil
	}
	return nil, fmt.Errorf("command environment not initialized")
}

// openManager is the common prologue of commands that touch slots.
func openManager(c *cli.Context) (*env, *service.Manager, error) {
	e, err := getEnv(c)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := e.manager()
	if err != nil {
		return nil, nil, err
	}
	return e, mgr, nil
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// render writes data in the format selected by --output.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format, c.Bool("wide")).Format(stdout(c), data)
}

// isTable reports whether --output selects the table format.
func isTable(c *cli.Context) bool {
	format, err := output.ParseFormat(c.String("output"))
	return err == nil && format == output.FormatTable
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
