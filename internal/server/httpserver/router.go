package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yndnr/minikv/internal/infra/buildinfo"
)

// StoreStats reports store size for the status endpoint.
type StoreStats interface {
	Len() int
	ShardCount() int
}

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Metrics serves /metrics. Nil disables the endpoint.
	Metrics http.Handler

	// Store backs /status. Nil reports zero keys.
	Store StoreStats

	// Connections reports the number of active protocol connections.
	Connections func() int

	// Ready reports whether the server accepts protocol connections.
	// Nil means always ready.
	Ready func() bool

	// Logger for request logging.
	Logger *slog.Logger
}

// Status is the body of GET /status.
type Status struct {
	Keys        int            `json:"keys"`
	Shards      int            `json:"shards"`
	Connections int            `json:"connections"`
	Build       buildinfo.Info `json:"build"`
}

// NewRouter creates the admin router with its middleware chain.
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil && !cfg.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, buildinfo.Get())
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		st := Status{Build: buildinfo.Get()}
		if cfg.Store != nil {
			st.Keys = cfg.Store.Len()
			st.Shards = cfg.Store.ShardCount()
		}
		if cfg.Connections != nil {
			st.Connections = cfg.Connections()
		}
		writeJSON(w, http.StatusOK, st)
	})
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return Chain(mux,
		Recover(logger),
		RequestID(),
		AccessLog(logger),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
