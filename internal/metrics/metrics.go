// Package metrics exposes run counters to Prometheus.
//
// A nil *Recorder is valid and records nothing, so callers that do not want
// metrics never need to check.
package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder groups the counters of one process. Label cardinality is bounded
// by the binner names ("histogram", "heatmap").
type Recorder struct {
	files        *prometheus.CounterVec
	events       prometheus.Counter
	bytes        prometheus.Counter
	counted      *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	workerErrors prometheus.Counter
	fileSeconds  prometheus.Histogram
	workers      prometheus.Gauge
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evbin_files_total",
			Help: "Input files processed, by outcome (ok, truncated, failed)",
		}, []string{"outcome"}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evbin_events_total",
			Help: "Events decoded across all workers",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evbin_bytes_read_total",
			Help: "Bytes read from event streams",
		}),
		counted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evbin_events_counted_total",
			Help: "Events that landed in a counter, by binner",
		}, []string{"binner"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evbin_events_dropped_total",
			Help: "Events outside the binner range, by binner",
		}, []string{"binner"}),
		workerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evbin_worker_errors_total",
			Help: "Workers that stopped before the end of their range",
		}),
		fileSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evbin_file_seconds",
			Help:    "Wall time to process one input file",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evbin_workers",
			Help: "Workers used for the last file",
		}),
	}
	reg.MustRegister(r.files, r.events, r.bytes, r.counted, r.dropped, r.workerErrors, r.fileSeconds, r.workers)
	return r
}

// ObserveFile records the outcome of one input file.
func (r *Recorder) ObserveFile(outcome string, workers int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.files.WithLabelValues(outcome).Inc()
	r.workers.Set(float64(workers))
	r.fileSeconds.Observe(elapsed.Seconds())
}

// ObserveWorker records what one worker read and how its events were binned.
func (r *Recorder) ObserveWorker(bytes, events int64, failed bool) {
	if r == nil {
		return
	}
	r.bytes.Add(float64(bytes))
	r.events.Add(float64(events))
	if failed {
		r.workerErrors.Inc()
	}
}

// ObserveBinner records counted and dropped events for one binner.
func (r *Recorder) ObserveBinner(name string, counted, dropped int64) {
	if r == nil {
		return
	}
	r.counted.WithLabelValues(name).Add(float64(counted))
	r.dropped.WithLabelValues(name).Add(float64(dropped))
}

// Serve exposes /metrics for reg on addr in a background goroutine. The
// returned server is shut down by the caller.
func Serve(addr string, reg prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics endpoint stopped", "addr", addr, "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return server
}
