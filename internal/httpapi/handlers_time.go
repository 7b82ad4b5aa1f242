package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/store"
	"caseflow/internal/timetrack"
)

type stopTimeRequest struct {
	TaskID string `json:"taskId"`
	UserID string `json:"userId"`
}

type stopTimeResponse struct {
	Entry           *store.TimeEntry `json:"entry"`
	DurationSeconds float64          `json:"durationSeconds"`
}

func (s *Server) handleStartTime(w http.ResponseWriter, r *http.Request) {
	var req timetrack.StartInput
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.UserID == "" {
		req.UserID = actor(r, "")
	}
	entry, err := s.engine.Time.Start(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, entry)
}

func (s *Server) handleStopTime(w http.ResponseWriter, r *http.Request) {
	var req stopTimeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.engine.Time.Stop(r.Context(), req.TaskID, actor(r, req.UserID))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, stopTimeResponse{Entry: entry, DurationSeconds: entry.Duration().Seconds()})
}

func (s *Server) handleTimeEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Time.Entries(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []*store.TimeEntry{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleTimeTotal(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.Time.Total(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, summary)
}
