package server

import (
	"net/http"
	"time"

	"github.com/audss/oncall/internal/version"
)

var startTime = time.Now()

// HandleHealth serves GET /health for liveness probes.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	health := map[string]interface{}{
		"status":            "ok",
		"version":           version.Version,
		"uptime_seconds":    int(time.Since(startTime).Seconds()),
		"websocket_clients": s.hub.ClientCount(),
	}
	if s.dispatcher != nil {
		health["dispatcher"] = s.dispatcher.Stats()
	}

	writeJSON(w, http.StatusOK, health)
}
