package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfnats "github.com/Strob0t/eventcore/internal/adapter/nats"
	ecotel "github.com/Strob0t/eventcore/internal/adapter/otel"
)

// connStatus is the connection state the health endpoint reports.
type connStatus interface {
	IsConnected() bool
	State() cfnats.State
}

// newHealthRouter serves /health (liveness, always 200) and /readyz (503
// while the broker link is down).
func newHealthRouter(conn connStatus, serviceName string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(ecotel.HTTPMiddleware(serviceName))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"nats":      conn.State().String(),
			"connected": conn.IsConnected(),
		})
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !conn.IsConnected() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "nats": conn.State().String()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
