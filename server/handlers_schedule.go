package server

import (
	"net/http"
	"strings"

	"github.com/audss/oncall/schedule"
)

// scheduleRequest is the schedule-creation payload.
type scheduleRequest struct {
	UserID            string `json:"user_id"`
	ScheduledDatetime string `json:"scheduled_datetime"`
}

// HandleSchedules serves GET (pending list) and POST (create) on
// /api/schedule.
func (s *Server) HandleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs, err := s.svc.ListSchedules(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if jobs == nil {
			jobs = []*schedule.JobWithPerson{} // marshal [] rather than null
		}
		writeJSON(w, http.StatusOK, jobs)

	case http.MethodPost:
		var req scheduleRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		job, err := s.svc.CreateSchedule(r.Context(), req.UserID, req.ScheduledDatetime)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, job)

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleScheduleHistory serves GET /api/schedule/history: every job
// regardless of status, ordered by due time. Cancelled and terminal
// records stay visible here after the person is gone.
func (s *Server) HandleScheduleHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	jobs, err := s.svc.ListScheduleHistory(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*schedule.Job{} // marshal [] rather than null
	}
	writeJSON(w, http.StatusOK, jobs)
}

// HandleSchedule serves DELETE /api/schedule/{id}: cancel a pending job.
func (s *Server) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/schedule/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "scheduled job not found")
		return
	}

	if err := s.svc.CancelSchedule(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Schedule cancelled successfully"})
}
