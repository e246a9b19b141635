package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsEndpoint   = "/metrics"
	HealthEndpoint    = "/healthz"
	ReadHeaderTimeout = 2 * time.Second
)

var (
	// TaskRunTimeSummary observes how long each device task ran, by kind and final state.
	TaskRunTimeSummary *prometheus.SummaryVec

	// ResultsCounter counts per device results by kind and status.
	ResultsCounter *prometheus.CounterVec

	// StepRunTimeSummary observes individual pipeline steps.
	StepRunTimeSummary *prometheus.SummaryVec
)

func init() {
	TaskRunTimeSummary = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "goldencfg_task_runtime_seconds",
			Help: "A summary metric to measure the total time spent in completing each device task",
		},
		[]string{"kind", "state"},
	)

	ResultsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldencfg_device_results_total",
			Help: "A counter metric of per device results by kind and status",
		},
		[]string{"kind", "status"},
	)

	StepRunTimeSummary = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "goldencfg_step_runtime_seconds",
			Help: "A summary metric to measure the time spent in each task step",
		},
		[]string{"step", "state"},
	)

	prometheus.MustRegister(
		TaskRunTimeSummary,
		ResultsCounter,
		StepRunTimeSummary,
	)
}

// NewRouter returns the router serving the metrics and liveness endpoints.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Handle(MetricsEndpoint, promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc(HealthEndpoint, liveness).Methods(http.MethodGet)

	return r
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ListenAndServe exposes prometheus metrics in the background, an empty address disables it.
func ListenAndServe(address string) {
	if address == "" {
		return
	}

	go func() {
		server := &http.Server{
			Addr:              address,
			Handler:           NewRouter(),
			ReadHeaderTimeout: ReadHeaderTimeout,
		}

		if err := server.ListenAndServe(); err != nil {
			slog.Error("Failed to start metrics server", "error", err)
		}
	}()

	slog.Info("metrics enabled", "endpoint", address+MetricsEndpoint)
}
