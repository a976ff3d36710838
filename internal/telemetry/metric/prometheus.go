package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "worldsave"

// Reasons a slot file is skipped by the slot info loader.
const (
	SkipOpen   = "open"
	SkipHeader = "header"
	SkipDecode = "decode"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	EntitiesSerialized prometheus.Counter
	PayloadErrors      prometheus.Counter
	SlotFilesSkipped   *prometheus.CounterVec
	SlotInfosLoaded    prometheus.Counter
	SaveDuration       prometheus.Histogram
	LoadDuration       prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is useful when metrics are disabled.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EntitiesSerialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_serialized_total",
			Help:      "Entity records produced by the serializer",
		}),
		PayloadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_errors_total",
			Help:      "Persisted-field payloads that failed to encode or decode",
		}),
		SlotFilesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_files_skipped_total",
			Help:      "Slot files skipped while loading slot infos",
		}, []string{"reason"}),
		SlotInfosLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_infos_loaded_total",
			Help:      "Slot infos delivered to callers",
		}),
		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Time to capture and write one slot",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time to read and restore one slot",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.EntitiesSerialized,
			m.PayloadErrors,
			m.SlotFilesSkipped,
			m.SlotInfosLoaded,
			m.SaveDuration,
			m.LoadDuration,
		)
	}
	return m
}

// NewRegistry returns a registry with the Go runtime and process
// collectors installed.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns an HTTP handler exposing reg in Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
