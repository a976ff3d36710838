package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/yndnr/worldsave/internal/core/capture"
	"github.com/yndnr/worldsave/internal/core/domain"
	"github.com/yndnr/worldsave/internal/core/world"
	"github.com/yndnr/worldsave/internal/storage/archive"
	"github.com/yndnr/worldsave/internal/storage/record"
	"github.com/yndnr/worldsave/internal/storage/slotstore"
	"github.com/yndnr/worldsave/internal/task"
	"github.com/yndnr/worldsave/internal/telemetry/logger"
	"github.com/yndnr/worldsave/internal/telemetry/metric"
	"github.com/yndnr/worldsave/internal/telemetry/tracer"
)

// AutosavePrefix prefixes the rotating autosave slot names.
const AutosavePrefix = "autosave-"

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Store is required.
	Store    slotstore.Store
	Policy   capture.Policy
	Registry *archive.Registry

	// Workers bounds concurrent background work.
	// Default: 4
	Workers int

	// MinShardSize is the smallest number of entities worth a shard.
	// Default: 256
	MinShardSize int

	// MaxShards caps the shards per save.
	// Default: Workers
	MaxShards int

	// AutosaveInterval is the minimum time between autosaves. Zero
	// disables throttling.
	AutosaveInterval time.Duration

	// AutosaveSlots is the number of rotating autosave slots.
	// Default: 3
	AutosaveSlots int

	Logger  *slog.Logger
	Metrics *metric.Metrics
	// Tracer defaults to the global worldsave tracer.
	Tracer trace.Tracer
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// SlotMeta is the caller-supplied part of a slot's info.
type SlotMeta struct {
	Subname    string
	PlayedTime time.Duration
	Custom     map[string]string
}

// Manager coordinates saving, loading and listing slots.
//
// SaveSlot, LoadSlot, DeleteSlot and Prune may be called from any
// goroutine. LoadSlotInfos callbacks are delivered by Tick, which must be
// called from a single owner goroutine.
type Manager struct {
	cfg        ManagerConfig
	store      slotstore.Store
	serializer *Serializer
	restorer   *Restorer
	pool       *task.Pool
	queue      task.Queue
	tracker    *Tracker
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metric.Metrics
	tracer     trace.Tracer

	mu       sync.Mutex
	closed   bool
	autosave int
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("service: store is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MinShardSize <= 0 {
		cfg.MinShardSize = 256
	}
	if cfg.MaxShards <= 0 {
		cfg.MaxShards = cfg.Workers
	}
	if cfg.AutosaveSlots <= 0 {
		cfg.AutosaveSlots = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metric.New(nil)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracer.Tracer()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	limit := rate.Inf
	if cfg.AutosaveInterval > 0 {
		limit = rate.Every(cfg.AutosaveInterval)
	}

	logger := cfg.Logger.With("component", "save_manager")
	return &Manager{
		cfg:        cfg,
		store:      cfg.Store,
		serializer: NewSerializer(cfg.Policy, logger, cfg.Metrics),
		restorer:   NewRestorer(cfg.Registry, cfg.Policy, logger),
		pool:       task.NewPool(cfg.Workers, logger),
		tracker:    NewTracker(),
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
	}, nil
}

func (m *Manager) checkOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.ErrClosed
	}
	return nil
}

// SaveSlot captures w and writes it to the named slot. Shards are
// serialized concurrently on the worker pool; only the first captures the
// session.
func (m *Manager) SaveSlot(ctx context.Context, name string, w *world.World, meta SlotMeta) (_ *record.SlotInfo, err error) {
	ctx, span := m.tracer.Start(ctx, "SaveSlot", trace.WithAttributes(attribute.String("slot", name)))
	defer func() { tracer.End(span, err) }()

	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if err := slotstore.ValidateName(name); err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("service: nil world")
	}

	start := time.Now()
	data, err := m.capture(ctx, w)
	if err != nil {
		return nil, err
	}

	at := m.cfg.Clock()
	id, err := newSlotID(at)
	if err != nil {
		return nil, err
	}
	info := &record.SlotInfo{
		ID:         id,
		Name:       name,
		Subname:    meta.Subname,
		SaveDate:   at,
		PlayedTime: meta.PlayedTime,
		Level:      w.Level,
		Custom:     maps.Clone(meta.Custom),
	}

	raw, err := record.Marshal(&record.SlotFile{Info: info, Data: data})
	if err != nil {
		return nil, err
	}
	if err := m.store.Write(ctx, name, raw); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	m.metrics.SaveDuration.Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.String("slot.id", id),
		attribute.Int("entities", len(data.Entities)),
		attribute.Int("bytes", len(raw)))
	m.logger.Info("slot saved",
		"slot", name,
		"id", id,
		"entities", len(data.Entities),
		"bytes", len(raw),
		"elapsed", elapsed)
	if len(info.Custom) > 0 {
		m.logger.Debug("slot metadata", "slot", name, "custom", logger.RedactMap(info.Custom))
	}
	return info, nil
}

func (m *Manager) capture(ctx context.Context, w *world.World) (record.SlotData, error) {
	shards := PlanShards(len(w.Entities), m.cfg.MinShardSize, m.cfg.MaxShards)
	if len(shards) == 0 {
		shards = []Shard{{}}
	}
	ctx, span := m.tracer.Start(ctx, "capture", trace.WithAttributes(attribute.Int("shards", len(shards))))
	defer span.End()

	units := make([]*SerializeTask, len(shards))
	tasks := make([]*task.Task, 0, len(shards))
	var startErr error
	for i, sh := range shards {
		units[i] = &SerializeTask{
			Serializer: m.serializer,
			Entities:   w.Entities,
			Shard:      sh,
		}
		if i == 0 {
			units[i].Session = w.Session
		}
		t := task.New(units[i])
		if startErr = t.Start(ctx, m.pool); startErr != nil {
			break
		}
		tasks = append(tasks, t)
	}

	// Started shards run to completion even when a later one failed to
	// start.
	var errs []error
	if startErr != nil {
		errs = append(errs, startErr)
		ctx = context.WithoutCancel(ctx)
	}
	for i, t := range tasks {
		if err := t.Wait(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		if units[i].Err != nil {
			errs = append(errs, units[i].Err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return record.SlotData{}, err
	}
	return MergeShards(units), nil
}

func newSlotID(at time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(at), entropy)
	if err != nil {
		return "", fmt.Errorf("service: generate slot id: %w", err)
	}
	return id.String(), nil
}

// LoadSlot reads the named slot and restores it into w. It returns the
// slot info together with any restore error; restore errors do not stop
// the rest of the slot from being applied.
func (m *Manager) LoadSlot(ctx context.Context, name string, w *world.World) (_ *record.SlotInfo, err error) {
	ctx, span := m.tracer.Start(ctx, "LoadSlot", trace.WithAttributes(attribute.String("slot", name)))
	defer func() { tracer.End(span, err) }()

	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	f, err := m.ReadSlot(ctx, name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = m.restorer.Restore(w, &f.Data)
	m.metrics.LoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.logger.Warn("slot restored with errors", "slot", name, "error", err)
	} else {
		m.logger.Info("slot loaded", "slot", name, "entities", len(f.Data.Entities))
	}
	return f.Info, err
}

// ReadSlot reads and decodes the named slot without applying it.
func (m *Manager) ReadSlot(ctx context.Context, name string) (*record.SlotFile, error) {
	rc, err := m.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	f, err := record.ReadFile(rc)
	if err != nil {
		return nil, domain.ErrSlotCorrupted.WithDetails("%s", name).Wrap(err)
	}
	if f.Info.Name == "" {
		f.Info.Name = name
	}
	return f, nil
}

// LoadSlotInfos starts loading slot infos in the background. An empty name
// loads every slot. cb is invoked by a later Tick.
func (m *Manager) LoadSlotInfos(ctx context.Context, name string, sortByRecent bool, cb SlotInfosCallback) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	lt := NewLoadSlotInfosTask(m.tracker, m.store, name, sortByRecent, cb,
		WithLoaderLogger(m.logger),
		WithLoaderMetrics(m.metrics))
	t := task.New(lt)
	if err := t.Start(ctx, m.pool); err != nil {
		return err
	}
	m.queue.Add(t)
	return nil
}

// LoadSlotInfosSync loads slot infos and waits for them. Like Tick, it must
// be called from the owner goroutine; pending callbacks of earlier loads
// are delivered as well.
func (m *Manager) LoadSlotInfosSync(ctx context.Context, name string, sortByRecent bool) ([]*record.SlotInfo, error) {
	var infos []*record.SlotInfo
	err := m.LoadSlotInfos(ctx, name, sortByRecent, func(loaded []*record.SlotInfo) {
		infos = loaded
	})
	if err != nil {
		return nil, err
	}
	if err := m.queue.Drain(ctx); err != nil {
		return nil, err
	}
	return infos, nil
}

// Tick delivers finished background loads. It returns the number of loads
// delivered.
func (m *Manager) Tick() int {
	return m.queue.Tick()
}

// Pending returns the number of background loads not yet delivered.
func (m *Manager) Pending() int {
	return m.queue.Len()
}

// DeleteSlot removes the named slot.
func (m *Manager) DeleteSlot(ctx context.Context, name string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, name); err != nil {
		return err
	}
	m.logger.Info("slot deleted", "slot", name)
	return nil
}

// Autosave saves w to the next rotating autosave slot and prunes older
// autosaves beyond the configured count. It returns ErrRateLimited when
// called again within the autosave interval.
func (m *Manager) Autosave(ctx context.Context, w *world.World, meta SlotMeta) (*record.SlotInfo, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	if !m.limiter.Allow() {
		return nil, domain.ErrRateLimited.WithDetails("autosave interval %s", m.cfg.AutosaveInterval)
	}

	m.mu.Lock()
	name := fmt.Sprintf("%s%d", AutosavePrefix, m.autosave%m.cfg.AutosaveSlots)
	m.autosave++
	m.mu.Unlock()

	info, err := m.SaveSlot(ctx, name, w, meta)
	if err != nil {
		return nil, err
	}
	if removed, err := slotstore.Prune(ctx, m.store, m.cfg.AutosaveSlots, IsAutosave); err != nil {
		m.logger.Warn("autosave prune failed", "error", err)
	} else if len(removed) > 0 {
		m.logger.Debug("autosaves pruned", "slots", removed)
	}
	return info, nil
}

// IsAutosave reports whether name is an autosave slot.
func IsAutosave(name string) bool {
	return strings.HasPrefix(name, AutosavePrefix)
}

// Prune keeps the keep most recent slots and removes the rest.
func (m *Manager) Prune(ctx context.Context, keep int) ([]string, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return slotstore.Prune(ctx, m.store, keep, nil)
}

// Close waits for background work and destroys slot infos that were never
// delivered, so a later Tick drops them. The store is not closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.pool.Close()
	if n := m.tracker.DestroyAll(); n > 0 {
		m.logger.Debug("undelivered slot infos destroyed", "count", n)
	}
	return nil
}
