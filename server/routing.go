package server

import (
	"net/http"
)

// setupRoutes configures all HTTP handlers
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/users", s.corsMiddleware(s.HandleUsers))       // List/create people (GET/POST)
	s.mux.HandleFunc("/api/users/", s.corsMiddleware(s.HandleUser))       // Individual person (PUT/DELETE /api/users/{id})
	s.mux.HandleFunc("/api/oncall", s.corsMiddleware(s.HandleStatus))     // Current gateway status (GET)
	s.mux.HandleFunc("/api/oncall/update", s.corsMiddleware(s.HandleUpdateNow)) // Immediate push (POST)
	s.mux.HandleFunc("/api/schedule", s.corsMiddleware(s.HandleSchedules))      // List/create schedules (GET/POST)
	s.mux.HandleFunc("/api/schedule/history", s.corsMiddleware(s.HandleScheduleHistory)) // Full job history (GET)
	s.mux.HandleFunc("/api/schedule/", s.corsMiddleware(s.HandleSchedule))      // Cancel schedule (DELETE /api/schedule/{id})
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
	s.mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))
}

// corsMiddleware adds CORS headers using the configured allowed origins.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// originAllowed matches the origin against configured prefixes, so
// "http://localhost" also allows "http://localhost:5173".
func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if origin == allowed || hasOriginPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

func hasOriginPrefix(origin, allowed string) bool {
	return len(origin) > len(allowed) && origin[:len(allowed)] == allowed && origin[len(allowed)] == ':'
}
