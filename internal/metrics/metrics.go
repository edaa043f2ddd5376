// Package metrics wires up the Prometheus collectors the server
// coordinator reports through, plus a gopsutil-driven sampler for
// process-level CPU and memory usage, following the pattern the pack
// uses throughout (promauto registration, a periodic goroutine pushing
// gopsutil readings into gauges).
package metrics

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// Registry holds every collector the server coordinator and resource
// sampler update.
type Registry struct {
	BatchDelay       prometheus.Gauge
	BatchSize        prometheus.Histogram
	ConnectedClients prometheus.Gauge
	OperationsDropped prometheus.Counter
	UnknownOperations prometheus.Counter
	SnapshotErrors   prometheus.Counter
	SnapshotsWritten prometheus.Counter
	CPUPercent       prometheus.Gauge
	MemoryBytes      prometheus.Gauge

	proc   *process.Process
	logger zerolog.Logger
}

// New builds and registers a fresh Registry against the default
// Prometheus registerer.
func New(logger zerolog.Logger) *Registry {
	return &Registry{
		BatchDelay: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "winfrey_batch_delay_seconds",
			Help: "Current adaptive batch delay.",
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "winfrey_batch_operations",
			Help:    "Number of operations applied per broadcast batch.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ConnectedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "winfrey_connected_clients",
			Help: "Number of live cursor subscriptions.",
		}),
		OperationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "winfrey_operations_dropped_total",
			Help: "Data-plane operations dropped for staleness.",
		}),
		UnknownOperations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "winfrey_unknown_operations_total",
			Help: "Requests naming an unrecognized operation.",
		}),
		SnapshotErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "winfrey_snapshot_errors_total",
			Help: "Failed attempts to persist the document snapshot.",
		}),
		SnapshotsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "winfrey_snapshots_written_total",
			Help: "Successful document snapshot writes.",
		}),
		CPUPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "winfrey_process_cpu_percent",
			Help: "Process CPU usage percent, sampled periodically.",
		}),
		MemoryBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "winfrey_process_memory_bytes",
			Help: "Process resident memory, sampled periodically.",
		}),
		logger: logger,
	}
}

// Handler returns the HTTP handler to mount the Prometheus scrape
// endpoint on.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// StartResourceSampler periodically samples process CPU and memory usage
// via gopsutil and updates the corresponding gauges, until ctx is
// cancelled.
func (r *Registry) StartResourceSampler(ctx context.Context, interval time.Duration) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		r.logger.Warn().Err(err).Msg("resource sampler: could not attach to self, skipping")
		return
	}
	r.proc = proc

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sample()
		}
	}
}

func (r *Registry) sample() {
	if pct, err := r.proc.CPUPercent(); err == nil {
		r.CPUPercent.Set(pct)
	} else {
		r.logger.Debug().Err(err).Msg("resource sampler: cpu percent unavailable")
	}
	if mem, err := r.proc.MemoryInfo(); err == nil && mem != nil {
		r.MemoryBytes.Set(float64(mem.RSS))
	} else if err != nil {
		r.logger.Debug().Err(err).Msg("resource sampler: memory info unavailable")
	}
	// cpu.Percent is sampled too; its host-wide reading is not stored in
	// any gauge, only a failure to read it is logged.
	if _, err := cpu.Percent(0, false); err != nil {
		r.logger.Debug().Err(err).Msg("resource sampler: host cpu percent unavailable")
	}
}
