package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrCycleDetected      = errors.New("dependency cycle detected")
	ErrNotCurrentApprover = errors.New("not current approver")
	ErrChainNotPending    = errors.New("approval chain not pending")
	ErrNoRuleConfigured   = errors.New("no sla rule configured")
	ErrConflictRetry      = errors.New("concurrent modification")
	ErrNotFound           = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		if err == nil {
			return errors.New(detail)
		}
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Validation is shorthand for Wrap(ErrValidation, ...) without a cause.
func Validation(component, operation, message string) error {
	return Wrap(ErrValidation, component, operation, message, nil)
}

// NotFound is shorthand for a missing entity of the given kind.
func NotFound(component, operation, entity, id string) error {
	return Wrap(ErrNotFound, component, operation, fmt.Sprintf("%s %q", entity, id), nil)
}

// Conflict reports a lost optimistic concurrency race on an entity.
func Conflict(component, operation, entity, id string) error {
	return Wrap(ErrConflictRetry, component, operation, fmt.Sprintf("%s %q changed concurrently; re-read and retry", entity, id), nil)
}

// Kind returns the wire classification of err. Unclassified errors are "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrCycleDetected):
		return "cycle_detected"
	case errors.Is(err, ErrNotCurrentApprover):
		return "not_current_approver"
	case errors.Is(err, ErrChainNotPending):
		return "chain_not_pending"
	case errors.Is(err, ErrNoRuleConfigured):
		return "no_rule_configured"
	case errors.Is(err, ErrConflictRetry):
		return "conflict_retry"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// Retryable reports whether the caller should re-read state and try again.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflictRetry)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "engine failure"
	}
	return strings.Join(parts, ": ")
}
