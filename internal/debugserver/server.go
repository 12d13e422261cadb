package debugserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tunevault/metacache/internal/logger"
	"github.com/tunevault/metacache/internal/store"
)

// Provider is the read/admin surface the debug server exposes.
type Provider interface {
	TierNames() []string
	TierStats(name string) (store.Stats, bool)
	ClearTier(name string) bool
}

// Server is an optional local HTTP listener for observability: Prometheus
// metrics, per-tier stats and manual invalidation. It is disabled unless
// an address is configured.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// New builds a debug server listening on addr.
func New(addr string, p Provider) *Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/cache/stats", statsHandler(p)).Methods(http.MethodGet)
	r.HandleFunc("/cache/invalidate", invalidateHandler(p)).Methods(http.MethodPost)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger.WithComponent("debugserver"),
	}
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.Info("Debug server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Debug server failed", "error", err)
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// statsHandler returns current statistics for every tier.
// GET /cache/stats
func statsHandler(p Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]map[string]interface{})
		for _, name := range p.TierNames() {
			st, ok := p.TierStats(name)
			if !ok {
				continue
			}
			out[name] = map[string]interface{}{
				"hits":      st.Hits,
				"misses":    st.Misses,
				"evictions": st.Evictions,
				"size":      st.Size,
				"capacity":  st.Capacity,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(out)
	}
}

// invalidateHandler clears one tier, or all tiers when none is named.
// POST /cache/invalidate?tier=track
func invalidateHandler(p Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier := r.URL.Query().Get("tier")

		if tier != "" && !p.ClearTier(tier) {
			http.Error(w, "unknown tier", http.StatusNotFound)
			return
		}
		if tier == "" {
			for _, name := range p.TierNames() {
				p.ClearTier(name)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	}
}
