package httpapi

import (
	"context"
	"net/http"

	"caseflow/internal/engine"
	"caseflow/internal/store"
)

type reassignTaskRequest struct {
	TaskID      string `json:"taskId"`
	NewAssignee string `json:"newAssignee"`
	Actor       string `json:"actor,omitempty"`
}

type bulkReassignRequest struct {
	TaskIDs     []string `json:"taskIds"`
	NewAssignee string   `json:"newAssignee"`
	Actor       string   `json:"actor,omitempty"`
}

type reassignUserRequest struct {
	FromUser string `json:"fromUser"`
	ToUser   string `json:"toUser"`
	Scope    string `json:"scope,omitempty"`
	Actor    string `json:"actor,omitempty"`
}

func (s *Server) handleReassignTask(w http.ResponseWriter, r *http.Request) {
	var req reassignTaskRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	task, err := engine.Do(r.Context(), s.engine, "reassign task", func(ctx context.Context) (*store.Task, error) {
		return s.engine.Reassign.ReassignTask(ctx, req.TaskID, req.NewAssignee, actor(r, req.Actor))
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, task)
}

func (s *Server) handleBulkReassign(w http.ResponseWriter, r *http.Request) {
	var req bulkReassignRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := s.engine.Reassign.BulkReassign(r.Context(), req.TaskIDs, req.NewAssignee, actor(r, req.Actor))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, report)
}

func (s *Server) handleReassignUser(w http.ResponseWriter, r *http.Request) {
	var req reassignUserRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	report, err := s.engine.Reassign.ReassignAllFromUser(r.Context(), req.FromUser, req.ToUser, req.Scope, actor(r, req.Actor))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, report)
}
