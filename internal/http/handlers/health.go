package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// HealthHandler reports liveness and uptime.
type HealthHandler struct {
	startedAt time.Time
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time) *HealthHandler {
	return &HealthHandler{startedAt: startedAt}
}

type healthStatus struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// Register wires the handler into a ServeMux.
func (h *HealthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	status := healthStatus{Status: "ok", Uptime: time.Since(h.startedAt).Truncate(time.Second).String()}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("health: encode: %v", err)
	}
}
