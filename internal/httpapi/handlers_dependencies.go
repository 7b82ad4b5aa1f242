package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/dependency"
	"caseflow/internal/engine"
	"caseflow/internal/store"
)

type setDependenciesRequest struct {
	TaskID    string   `json:"taskId"`
	DependsOn []string `json:"dependsOn"`
	Type      string   `json:"type"`
	Actor     string   `json:"actor,omitempty"`
}

func (s *Server) handleSetDependencies(w http.ResponseWriter, r *http.Request) {
	var req setDependenciesRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Type == "" {
		req.Type = string(store.DependencyBlocking)
	}
	set, err := engine.Do(r.Context(), s.engine, "set dependencies", func(ctx context.Context) (*dependency.Set, error) {
		return s.engine.Dependencies.SetDependencies(ctx, req.TaskID, req.DependsOn, store.DependencyType(req.Type), actor(r, req.Actor))
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, set)
}

func (s *Server) handleGetDependencies(w http.ResponseWriter, r *http.Request) {
	set, err := s.engine.Dependencies.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, set)
}

func (s *Server) handleCanStart(w http.ResponseWriter, r *http.Request) {
	check, err := s.engine.Dependencies.CanStart(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, check)
}

func (s *Server) handleDependents(w http.ResponseWriter, r *http.Request) {
	deps, err := s.engine.Dependencies.Dependents(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if deps == nil {
		deps = []store.Dependency{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"dependents": deps})
}
