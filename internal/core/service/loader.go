package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/yndnr/worldsave/internal/storage/record"
	"github.com/yndnr/worldsave/internal/storage/slotstore"
	"github.com/yndnr/worldsave/internal/task"
	"github.com/yndnr/worldsave/internal/telemetry/metric"
)

// SlotInfosCallback receives the loaded slot infos. Ownership of the infos
// passes to the callback.
type SlotInfosCallback func(infos []*record.SlotInfo)

// LoadSlotInfosTask reads the info header of one or every stored slot.
//
// DoWork runs on a worker: it reads every candidate header first and
// decodes them afterwards, skipping anything unreadable. AfterFinish runs
// on the owner goroutine and invokes the callback exactly once.
type LoadSlotInfosTask struct {
	owner        Owner
	store        slotstore.Store
	slotName     string
	sortByRecent bool
	callback     SlotInfosCallback
	logger       *slog.Logger
	metrics      *metric.Metrics

	loaded []*record.SlotInfo
}

var (
	_ task.Work     = (*LoadSlotInfosTask)(nil)
	_ task.Finisher = (*LoadSlotInfosTask)(nil)
)

// LoaderOption configures a LoadSlotInfosTask.
type LoaderOption func(*LoadSlotInfosTask)

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(t *LoadSlotInfosTask) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithLoaderMetrics sets the metrics.
func WithLoaderMetrics(m *metric.Metrics) LoaderOption {
	return func(t *LoadSlotInfosTask) {
		if m != nil {
			t.metrics = m
		}
	}
}

// NewLoadSlotInfosTask creates a loader. An empty slotName loads every
// slot in store. With a nil owner or store nothing is read and the
// callback receives an empty slice.
func NewLoadSlotInfosTask(owner Owner, store slotstore.Store, slotName string, sortByRecent bool, cb SlotInfosCallback, opts ...LoaderOption) *LoadSlotInfosTask {
	t := &LoadSlotInfosTask{
		owner:        owner,
		store:        store,
		slotName:     slotName,
		sortByRecent: sortByRecent,
		callback:     cb,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metrics == nil {
		t.metrics = metric.New(nil)
	}
	return t
}

func (t *LoadSlotInfosTask) single() bool {
	return t.slotName != ""
}

// DoWork implements task.Work.
func (t *LoadSlotInfosTask) DoWork(ctx context.Context) {
	if t.owner == nil || t.store == nil {
		return
	}

	names := []string{t.slotName}
	if !t.single() {
		var err error
		if names, err = t.store.List(ctx); err != nil {
			t.logger.Warn("listing slots failed", "error", err)
			return
		}
	}

	type header struct {
		slot string
		raw  []byte
	}
	headers := make([]header, 0, len(names))
	for _, name := range names {
		raw, err := t.readHeader(ctx, name)
		if err != nil {
			continue
		}
		headers = append(headers, header{slot: name, raw: raw})
	}

	// Decoding is kept out of the I/O loop above.
	t.loaded = make([]*record.SlotInfo, 0, len(headers))
	for _, h := range headers {
		info, err := record.DecodeInfo(h.raw)
		if err != nil {
			t.metrics.SlotFilesSkipped.WithLabelValues(metric.SkipDecode).Inc()
			t.logger.Debug("slot info decode failed", "slot", h.slot, "error", err)
			continue
		}
		if info.Name == "" {
			info.Name = h.slot
		}
		info.MarkAsync()
		t.owner.Track(&info.Lifetime)
		t.loaded = append(t.loaded, info)
	}

	if !t.single() && t.sortByRecent {
		slices.SortStableFunc(t.loaded, func(a, b *record.SlotInfo) int {
			return b.SaveDate.Compare(a.SaveDate)
		})
	}
}

func (t *LoadSlotInfosTask) readHeader(ctx context.Context, name string) ([]byte, error) {
	rc, err := t.store.Open(ctx, name)
	if err != nil {
		t.metrics.SlotFilesSkipped.WithLabelValues(metric.SkipOpen).Inc()
		t.logger.Debug("slot open failed", "slot", name, "error", err)
		return nil, err
	}
	defer rc.Close()

	raw, err := record.ReadHeader(rc)
	if err != nil {
		t.metrics.SlotFilesSkipped.WithLabelValues(metric.SkipHeader).Inc()
		t.logger.Debug("slot header invalid", "slot", name, "error", err)
		return nil, err
	}
	return raw, nil
}

// AfterFinish implements task.Finisher. It hands the infos over to the
// owner, dropping any destroyed while the task was running, and invokes
// the callback.
func (t *LoadSlotInfosTask) AfterFinish() {
	if t.owner == nil {
		t.loaded = nil
		if t.callback != nil {
			t.callback([]*record.SlotInfo{})
		}
		return
	}

	delivered := make([]*record.SlotInfo, 0, len(t.loaded))
	for _, info := range t.loaded {
		if info == nil {
			continue
		}
		info.ClearAsync()
		t.owner.Release(&info.Lifetime)
		if !info.IsValid() {
			continue
		}
		delivered = append(delivered, info)
	}
	t.loaded = nil

	t.metrics.SlotInfosLoaded.Add(float64(len(delivered)))
	if t.callback != nil {
		t.callback(delivered)
	}
}
