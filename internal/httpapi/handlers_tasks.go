package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/engine"
	"caseflow/internal/errs"
	"caseflow/internal/store"
	"caseflow/internal/tasks"
)

type upsertTaskRequest struct {
	tasks.Input
	Actor string `json:"actor,omitempty"`
}

type upsertTaskResponse struct {
	Task    *store.Task `json:"task"`
	Created bool        `json:"created"`
}

type statusRequest struct {
	Status          string `json:"status"`
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
	Actor           string `json:"actor,omitempty"`
}

type actorRequest struct {
	Actor string `json:"actor,omitempty"`
}

func (s *Server) handleUpsertTask(w http.ResponseWriter, r *http.Request) {
	var req upsertTaskRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	who := actor(r, req.Actor)
	resp, err := engine.Do(r.Context(), s.engine, "upsert task", func(ctx context.Context) (upsertTaskResponse, error) {
		task, created, err := s.engine.Tasks.Upsert(ctx, req.Input, who)
		return upsertTaskResponse{Task: task, Created: created}, err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	s.writeJSON(w, r, status, resp)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TaskFilter{
		CaseID:          strings.TrimSpace(q.Get("caseId")),
		StageID:         strings.TrimSpace(q.Get("stageId")),
		OwnerID:         strings.TrimSpace(q.Get("ownerId")),
		IncludeArchived: q.Get("includeArchived") == "true",
	}
	for _, raw := range q["status"] {
		status, ok := store.ParseStatus(raw)
		if !ok {
			s.fail(w, r, errs.Validation("api", "list tasks", fmt.Sprintf("unknown status %q", raw)))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	list, err := s.engine.Tasks.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []*store.Task{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"tasks": list})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.engine.Tasks.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, task)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	change := tasks.StatusChange{
		TaskID:          chi.URLParam(r, "taskID"),
		Status:          req.Status,
		Actor:           actor(r, req.Actor),
		ExpectedVersion: req.ExpectedVersion,
	}
	run := func(ctx context.Context) (*store.Task, error) { return s.engine.Tasks.SetStatus(ctx, change) }
	var (
		task *store.Task
		err  error
	)
	// A caller-supplied version is a precondition; retrying would mask the conflict.
	if change.ExpectedVersion != nil {
		task, err = run(r.Context())
	} else {
		task, err = engine.Do(r.Context(), s.engine, "set status", run)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, task)
}

func (s *Server) handleArchiveTask(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	taskID := chi.URLParam(r, "taskID")
	task, err := engine.Do(r.Context(), s.engine, "archive task", func(ctx context.Context) (*store.Task, error) {
		return s.engine.Tasks.Archive(ctx, taskID, actor(r, req.Actor))
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, task)
}
