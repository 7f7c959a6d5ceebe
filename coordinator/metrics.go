package coordinator

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the coordinator's dispatcher and liveness-tracker
// activity as Prometheus collectors. They exist only on a Coordinator built
// with the WithMetrics option; otherwise the coordinator's metrics pointer is
// nil and the dispatcher and sweep loop check it before every update.
type Metrics struct {
	WorkersRegistered prometheus.Gauge
	ResultsProcessed  prometheus.Counter
	Timeouts          prometheus.Counter
	SweepDuration     prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		WorkersRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crunchgrid_coordinator_workers_registered",
			Help: "Number of workers currently registered with the coordinator.",
		}),
		ResultsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crunchgrid_coordinator_results_processed_total",
			Help: "Total number of results accepted from workers.",
		}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crunchgrid_coordinator_worker_timeouts_total",
			Help: "Total number of workers declared dead by the liveness sweep.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "crunchgrid_coordinator_sweep_duration_seconds",
			Help: "Wall-clock duration of each 10-second sweep tick.",
		}),
	}
}

// register adds every collector to reg. Called once by the WithMetrics
// option.
func (m *Metrics) register(reg *prometheus.Registry) {
	reg.MustRegister(m.WorkersRegistered, m.ResultsProcessed, m.Timeouts, m.SweepDuration)
}

// ServeMetrics starts a blocking HTTP server exposing /metrics (via reg) and
// /healthz on addr. Intended to be run in its own goroutine by the caller;
// it opens its own listener and returns only when ListenAndServe fails. It
// offers no way to shut the server down.
func ServeMetrics(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}
