// Package engine assembles the workflow components over one store and
// provides the bounded retry loop callers use when a write loses a race.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"caseflow/internal/analytics"
	"caseflow/internal/approval"
	"caseflow/internal/audit"
	"caseflow/internal/config"
	"caseflow/internal/dependency"
	"caseflow/internal/errs"
	"caseflow/internal/logging"
	"caseflow/internal/notify"
	"caseflow/internal/parallel"
	"caseflow/internal/reassign"
	"caseflow/internal/sla"
	"caseflow/internal/store"
	"caseflow/internal/tasks"
	"caseflow/internal/timetrack"
)

// Engine holds every workflow component.
type Engine struct {
	Config       *config.Config
	Store        *store.Store
	Audit        *audit.Recorder
	Notify       *notify.Dispatcher
	Tasks        *tasks.Service
	Dependencies *dependency.Service
	SLA          *sla.Service
	Approvals    *approval.Service
	Parallel     *parallel.Service
	Reassign     *reassign.Service
	Time         *timetrack.Service
	Analytics    *analytics.Service

	logger  *slog.Logger
	backoff time.Duration
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPusher replaces the outbound notification pusher built from config.
func WithPusher(p notify.Pusher) Option {
	return func(e *Engine) {
		e.Notify = notify.New(e.Store, p, e.logger)
	}
}

// WithRetryBackoff sets the base delay between conflict retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *Engine) { e.backoff = d }
}

// New wires the components around st.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		Config:  cfg,
		Store:   st,
		logger:  logger,
		backoff: 20 * time.Millisecond,
	}
	e.Notify = notify.New(st, notify.NewPusher(cfg), logger)
	for _, opt := range opts {
		opt(e)
	}

	e.Audit = audit.New(st, logger)
	e.Tasks = tasks.New(st, e.Audit, e.Notify, logger)
	e.Dependencies = dependency.New(st, e.Audit, logger)
	e.SLA = sla.New(cfg, st, e.Audit, e.Notify, logger)
	e.Approvals = approval.New(st, e.Audit, e.Notify, logger)
	e.Parallel = parallel.New(st, e.Audit, logger)
	e.Reassign = reassign.New(st, e.Audit, e.Notify, logger)
	e.Time = timetrack.New(st, e.Audit, logger)
	e.Analytics = analytics.New(cfg, st, e.SLA, logger)
	return e, nil
}

// Retry runs fn until it succeeds, fails with anything other than
// errs.ErrConflictRetry, or exhausts server.max_conflict_retries extra attempts.
// A successful write drops cached analytics.
func (e *Engine) Retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := e.Config.Server.MaxConflictRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil && e.Analytics != nil {
			e.Analytics.Invalidate()
		}
		if err == nil || !errs.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		logging.WithContext(ctx, e.logger).DebugContext(ctx, "retrying after write conflict",
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
		delay := e.backoff * time.Duration(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", op, attempts, err)
}

// Do runs fn under Retry and returns its value.
func Do[T any](ctx context.Context, e *Engine, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Retry(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
