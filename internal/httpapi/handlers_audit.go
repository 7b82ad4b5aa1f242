package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/store"
)

type recordAuditRequest struct {
	EntityType    string            `json:"entityType"`
	EntityID      string            `json:"entityId"`
	CaseID        string            `json:"caseId,omitempty"`
	Action        string            `json:"action"`
	UserID        string            `json:"userId,omitempty"`
	PreviousValue *string           `json:"previousValue,omitempty"`
	NewValue      *string           `json:"newValue,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// handleRecordAudit lets collaborators append their own events to the trail.
// Ids and timestamps are always assigned by the server.
func (s *Server) handleRecordAudit(w http.ResponseWriter, r *http.Request) {
	var req recordAuditRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.engine.Audit.Record(r.Context(), store.AuditEntry{
		EntityType:    req.EntityType,
		EntityID:      req.EntityID,
		CaseID:        req.CaseID,
		Action:        req.Action,
		UserID:        actor(r, req.UserID),
		PreviousValue: req.PreviousValue,
		NewValue:      req.NewValue,
		Metadata:      req.Metadata,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusCreated, entry)
}

func (s *Server) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	entries, err := s.engine.Audit.Query(r.Context(), q.Get("entityType"), q.Get("entityId"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeEntries(w, r, entries)
}

func (s *Server) handleAuditByCase(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries, err := s.engine.Audit.QueryByCase(r.Context(), chi.URLParam(r, "caseID"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeEntries(w, r, entries)
}

func (s *Server) writeEntries(w http.ResponseWriter, r *http.Request, entries []*store.AuditEntry) {
	if entries == nil {
		entries = []*store.AuditEntry{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"entries": entries})
}
