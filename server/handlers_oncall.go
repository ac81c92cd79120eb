package server

import (
	"net/http"

	"github.com/audss/oncall/sbc"
)

// updateRequest is the immediate-push payload.
type updateRequest struct {
	Mobile string `json:"mobile"`
}

// updateResponse reports per-host results for a push.
type updateResponse struct {
	Message string        `json:"message"`
	Results []sbc.Outcome `json:"results"`
}

// HandleStatus serves GET /api/oncall: the number each gateway host
// currently has configured, queried live.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	outcomes := s.svc.Status(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": outcomes,
	})
}

// HandleUpdateNow serves POST /api/oncall/update: push a number to all
// hosts immediately. Responds 200 when every host succeeded and 207
// with per-host results when some did not.
func (s *Server) HandleUpdateNow(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req updateRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	outcomes, err := s.svc.UpdateNow(r.Context(), req.Mobile)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if sbc.AllSuccessful(outcomes) {
		writeJSON(w, http.StatusOK, updateResponse{
			Message: "On-call number updated on all systems",
			Results: outcomes,
		})
		return
	}

	writeJSON(w, http.StatusMultiStatus, updateResponse{
		Message: "On-call number update completed with errors",
		Results: outcomes,
	})
}
