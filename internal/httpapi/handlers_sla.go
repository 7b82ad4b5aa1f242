package httpapi

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/engine"
	"caseflow/internal/sla"
	"caseflow/internal/store"
)

type setRuleRequest struct {
	sla.RuleInput
	Actor string `json:"actor,omitempty"`
}

type checkBreachesRequest struct {
	Scope  string `json:"scope,omitempty"`
	Notify bool   `json:"notify"`
}

func (s *Server) handleSetRule(w http.ResponseWriter, r *http.Request) {
	var req setRuleRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rule, err := engine.Do(r.Context(), s.engine, "set sla rule", func(ctx context.Context) (*store.SLARule, error) {
		return s.engine.SLA.SetRule(ctx, req.RuleInput, actor(r, req.Actor))
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, rule)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.engine.SLA.Rules(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if rules == nil {
		rules = []*store.SLARule{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"rules": rules})
}

// handleImportRules accepts a YAML rule document as the request body.
func (s *Server) handleImportRules(w http.ResponseWriter, r *http.Request) {
	body := io.LimitReader(r.Body, maxBodyBytes)
	rules, err := s.engine.SLA.LoadRules(r.Context(), body, actor(r, ""))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"imported": len(rules), "rules": rules})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	priority := chi.URLParam(r, "priority")
	scope := strings.TrimSpace(r.URL.Query().Get("scope"))
	err := s.engine.Retry(r.Context(), "delete sla rule", func(ctx context.Context) error {
		return s.engine.SLA.DeleteRule(ctx, priority, scope, actor(r, ""))
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSLAStatus(w http.ResponseWriter, r *http.Request) {
	useDefault, err := queryBool(r, "useDefault")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status, err := s.engine.SLA.GetStatus(r.Context(), chi.URLParam(r, "taskID"), sla.Options{UseDefault: useDefault})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, status)
}

func (s *Server) handleCheckBreaches(w http.ResponseWriter, r *http.Request) {
	var req checkBreachesRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	report, err := s.engine.SLA.CheckBreaches(r.Context(), strings.TrimSpace(req.Scope), req.Notify)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, report)
}
