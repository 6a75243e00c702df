// Package metric provides Prometheus metrics for filekv.
//
// Metrics cover the persistence pipeline:
//
//   - scheduled persistence requests
//   - completed persistence cycles by result
//   - cycle latency histogram
//   - pending (not yet persisted) requests
//   - size of the last committed document
//
// Collectors are registered on a caller-supplied prometheus.Registerer so
// that several stores can live in one process without name clashes.
package metric
