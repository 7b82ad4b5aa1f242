package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/errs"
	"caseflow/internal/store"
)

type userRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) userParam(r *http.Request) (string, error) {
	user := actor(r, r.URL.Query().Get("userId"))
	if user == "" {
		return "", errs.Validation("api", "notifications", "userId is required")
	}
	return user, nil
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user, err := s.userParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	unread, err := queryBool(r, "unreadOnly")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	notes, err := s.engine.Notify.List(r.Context(), user, unread != nil && *unread, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if notes == nil {
		notes = []*store.Notification{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"notifications": notes})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	user, err := s.userParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	count, err := s.engine.Notify.UnreadCount(r.Context(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"userId": user, "unread": count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	user := actor(r, req.UserID)
	if user == "" {
		s.fail(w, r, errs.Validation("api", "mark read", "userId is required"))
		return
	}
	if err := s.engine.Notify.MarkRead(r.Context(), chi.URLParam(r, "notificationID"), user); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	user := actor(r, req.UserID)
	if user == "" {
		s.fail(w, r, errs.Validation("api", "mark all read", "userId is required"))
		return
	}
	updated, err := s.engine.Notify.MarkAllRead(r.Context(), user)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"updated": updated})
}
