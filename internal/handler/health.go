package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"fleetline/internal/docstore"
	"fleetline/internal/hub"
)

type HealthHandler struct {
	db  docstore.Store
	hub *hub.Hub
}

func NewHealthHandler(db docstore.Store, h *hub.Hub) *HealthHandler {
	return &HealthHandler{db: db, hub: h}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready       bool      `json:"ready"`
	ClientCount int       `json:"clientCount"`
	ServerTime  time.Time `json:"serverTime"`
}

// Readyz reports readiness as docstore reachability.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.db.Ping(r.Context()) == nil
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ReadyResponse{
		Ready:       ready,
		ClientCount: h.hub.ClientCount(),
		ServerTime:  time.Now(),
	})
}
