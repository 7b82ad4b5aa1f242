package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/engine"
	"caseflow/internal/logging"
)

// BasePath prefixes every engine route.
const BasePath = "/workflow/engine"

// Server serves the engine API.
type Server struct {
	engine  *engine.Engine
	logger  *slog.Logger
	router  chi.Router
	bind    string
	timeout time.Duration

	listener net.Listener
	server   *http.Server
}

// New builds the router for e.
func New(e *engine.Engine, logger *slog.Logger) (*Server, error) {
	if e == nil {
		return nil, errors.New("engine is required")
	}
	s := &Server{
		engine:  e,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		bind:    strings.TrimSpace(e.Config.Server.Bind),
		timeout: e.Config.RequestTimeout(),
	}
	s.router = s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr reports the bound address once Start has run.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Start listens on the configured bind address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Get("/healthz", s.handleHealth)

	r.Route(BasePath, func(r chi.Router) {
		r.Use(authMiddleware(s.engine.Config.Server.APIToken))
		r.Use(s.requestContext)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleUpsertTask)
			r.Get("/{taskID}", s.handleGetTask)
			r.Post("/{taskID}/status", s.handleSetStatus)
			r.Post("/{taskID}/archive", s.handleArchiveTask)
		})
		r.Route("/dependencies", func(r chi.Router) {
			r.Post("/set", s.handleSetDependencies)
			r.Get("/{taskID}", s.handleGetDependencies)
			r.Get("/{taskID}/can-start", s.handleCanStart)
			r.Get("/{taskID}/dependents", s.handleDependents)
		})
		r.Route("/sla", func(r chi.Router) {
			r.Get("/rules", s.handleListRules)
			r.Post("/rules", s.handleSetRule)
			r.Post("/rules/import", s.handleImportRules)
			r.Delete("/rules/{priority}", s.handleDeleteRule)
			r.Get("/status/{taskID}", s.handleSLAStatus)
			r.Post("/check-breaches", s.handleCheckBreaches)
		})
		r.Route("/approvals", func(r chi.Router) {
			r.Post("/", s.handleCreateChain)
			r.Post("/process", s.handleProcessApproval)
			r.Get("/pending", s.handlePendingApprovals)
			r.Get("/{taskID}", s.handleGetChain)
		})
		r.Route("/time", func(r chi.Router) {
			r.Post("/start", s.handleStartTime)
			r.Post("/stop", s.handleStopTime)
			r.Get("/{taskID}/entries", s.handleTimeEntries)
			r.Get("/{taskID}/total", s.handleTimeTotal)
		})
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleListNotifications)
			r.Get("/unread-count", s.handleUnreadCount)
			r.Post("/read-all", s.handleMarkAllRead)
			r.Post("/{notificationID}/read", s.handleMarkRead)
		})
		r.Route("/audit", func(r chi.Router) {
			r.Get("/", s.handleQueryAudit)
			r.Post("/record", s.handleRecordAudit)
			r.Get("/case/{caseID}", s.handleAuditByCase)
		})
		r.Route("/parallel", func(r chi.Router) {
			r.Get("/", s.handleListGroups)
			r.Post("/", s.handleCreateGroup)
			r.Get("/{groupID}", s.handleGetGroup)
			r.Get("/{groupID}/status", s.handleGroupStatus)
			r.Delete("/{groupID}/members/{taskID}", s.handleRemoveMember)
		})
		r.Route("/reassign", func(r chi.Router) {
			r.Post("/task", s.handleReassignTask)
			r.Post("/bulk", s.handleBulkReassign)
			r.Post("/user", s.handleReassignUser)
		})
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/metrics", s.handleMetrics)
			r.Get("/velocity", s.handleVelocity)
			r.Get("/bottlenecks", s.handleBottlenecks)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Store.Ping(r.Context()); err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
