package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/approval"
	"caseflow/internal/engine"
	"caseflow/internal/store"
)

func (s *Server) handleCreateChain(w http.ResponseWriter, r *http.Request) {
	var req approval.CreateInput
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.Actor = actor(r, req.Actor)
	chain, err := engine.Do(r.Context(), s.engine, "create approval chain", func(ctx context.Context) (*store.ApprovalChain, error) {
		return s.engine.Approvals.Create(ctx, req)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, chain)
}

// handleProcessApproval does not retry on conflict: the decision was made
// against a chain state the approver saw, and a changed chain must be re-read.
func (s *Server) handleProcessApproval(w http.ResponseWriter, r *http.Request) {
	var req approval.ProcessInput
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.ApproverID == "" {
		req.ApproverID = actor(r, "")
	}
	chain, err := s.engine.Approvals.Process(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, chain)
}

func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	chain, err := s.engine.Approvals.Get(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, chain)
}

func (s *Server) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	approverID := r.URL.Query().Get("approverId")
	if approverID == "" {
		approverID = actor(r, "")
	}
	chains, err := s.engine.Approvals.PendingFor(r.Context(), approverID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"chains": chains})
}
