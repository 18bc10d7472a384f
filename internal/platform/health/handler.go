// Package health provides the HTTP health check endpoint.
package health

import (
	"net/http"
	"time"

	"authgateway/internal/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Handler serves health status.
type Handler struct {
	startTime time.Time
}

// New creates a new health handler.
func New() *Handler {
	return &Handler{startTime: time.Now()}
}

// StatusResponse is the health status payload.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// HandleStatus reports that the gateway is serving, with version and uptime.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}
