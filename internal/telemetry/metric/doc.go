// Package metric provides Prometheus metrics for worldsave.
//
// Metrics include:
//
//   - Entities serialized and payload encoding failures
//   - Slot files skipped while loading slot infos, by reason
//   - Save and load latency histograms
//
// Each process (and each test) owns its registry; nothing is registered
// with the Prometheus default registry.
package metric
