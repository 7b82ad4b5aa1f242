package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/engine"
	"caseflow/internal/parallel"
	"caseflow/internal/store"
)

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req parallel.CreateInput
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Actor = actor(r, req.Actor)
	group, err := s.engine.Parallel.Create(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, group)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.engine.Parallel.List(r.Context(), r.URL.Query().Get("stageId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if groups == nil {
		groups = []*store.ParallelGroup{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.engine.Parallel.Get(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, group)
}

func (s *Server) handleGroupStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Parallel.Status(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, status)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	taskID := chi.URLParam(r, "taskID")
	group, err := engine.Do(r.Context(), s.engine, "remove group member", func(ctx context.Context) (*store.ParallelGroup, error) {
		return s.engine.Parallel.RemoveMember(ctx, groupID, taskID, actor(r, ""))
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, group)
}
