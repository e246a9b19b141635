package profiling

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
)

const (
	Endpoint          = "localhost:9091"
	ReadHeaderTimeout = 2 * time.Second
)

// NewRouter returns a router serving the pprof handlers under /debug/pprof.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)

	return r
}

// Enable the profiling endpoint, it only listens on localhost.
func Enable() {
	go func() {
		server := &http.Server{
			Addr:              Endpoint,
			Handler:           NewRouter(),
			ReadHeaderTimeout: ReadHeaderTimeout,
		}

		if err := server.ListenAndServe(); err != nil {
			slog.Error("Failed to start profiling server", "error", err)
		}
	}()

	slog.Info("profiling enabled", "endpoint", Endpoint+"/debug/pprof")
}
