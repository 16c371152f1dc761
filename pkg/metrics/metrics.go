// Package metrics exposes the Prometheus counters and gauges emitted by
// the snapshot writer and image server, following the factory-with-custom-
// registry idiom used throughout the corpus's metrics packages so tests
// can register against an isolated registry instead of the global
// prometheus.DefaultRegisterer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/gauge the core emits.
type Metrics struct {
	ChunksStored        prometheus.Counter
	ChunksDeduplicated  prometheus.Counter
	BytesAppended       prometheus.Counter
	BytesStoredOnDisk   prometheus.Counter
	ManifestCommits     prometheus.Counter
	ServerCommandsTotal *prometheus.CounterVec
	ServerErrorsTotal   *prometheus.CounterVec
	ActiveSnapshots     prometheus.Gauge
}

// New creates a Metrics instance registered against prometheus.DefaultRegisterer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against reg, so
// callers (including tests) can avoid collisions with the global registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapdisk_chunks_stored_total",
			Help: "Chunks written to the pool for the first time.",
		}),
		ChunksDeduplicated: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapdisk_chunks_deduplicated_total",
			Help: "Chunks skipped because an identical chunk was already in the pool.",
		}),
		BytesAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapdisk_bytes_appended_total",
			Help: "Image bytes walked by the snapshot writer, stored or deduplicated.",
		}),
		BytesStoredOnDisk: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapdisk_bytes_stored_on_disk_total",
			Help: "On-disk bytes written to the pool (post-compression).",
		}),
		ManifestCommits: factory.NewCounter(prometheus.CounterOpts{
			Name: "snapdisk_manifest_commits_total",
			Help: "Number of times a snapshot manifest was committed to disk.",
		}),
		ServerCommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snapdisk_server_commands_total",
			Help: "Image server commands processed, by command name.",
		}, []string{"command"}),
		ServerErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "snapdisk_server_errors_total",
			Help: "Image server commands that ended in a recovered error, by command name.",
		}, []string{"command"}),
		ActiveSnapshots: factory.NewGauge(prometheus.GaugeOpts{
			Name: "snapdisk_active_snapshots",
			Help: "Number of snapshot writers currently open.",
		}),
	}
}
