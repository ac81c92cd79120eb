package server

import (
	"net/http"
	"strings"

	"github.com/audss/oncall/roster"
)

// personRequest carries create and update payloads for roster entries.
type personRequest struct {
	Name   *string `json:"name"`
	Mobile *string `json:"mobile"`
}

// HandleUsers serves GET (list) and POST (create) on /api/users.
func (s *Server) HandleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		people, err := s.svc.ListPeople(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if people == nil {
			people = []*roster.Person{} // marshal [] rather than null
		}
		writeJSON(w, http.StatusOK, people)

	case http.MethodPost:
		var req personRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		var name, mobile string
		if req.Name != nil {
			name = *req.Name
		}
		if req.Mobile != nil {
			mobile = *req.Mobile
		}
		person, err := s.svc.AddPerson(r.Context(), name, mobile)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, person)

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleUser serves PUT (update) and DELETE on /api/users/{id}.
func (s *Server) HandleUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "person not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req personRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		person, err := s.svc.UpdatePerson(r.Context(), id, req.Name, req.Mobile)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, person)

	case http.MethodDelete:
		if err := s.svc.DeletePerson(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
