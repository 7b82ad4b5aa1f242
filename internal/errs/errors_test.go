package errs_test

import (
	"errors"
	"strings"
	"testing"

	"caseflow/internal/errs"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := errs.Wrap(errs.ErrConflictRetry, "approval", "process", "stale chain", base)
	if !errors.Is(err, errs.ErrConflictRetry) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"approval", "process", "stale chain"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarker(t *testing.T) {
	err := errs.Wrap(nil, "", "", "", nil)
	if err == nil || err.Error() != "engine failure" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errs.Validation("parallel", "create", "need two tasks"), "validation"},
		{errs.Wrap(errs.ErrCycleDetected, "dependency", "set", "a -> b -> a", nil), "cycle_detected"},
		{errs.Wrap(errs.ErrNotCurrentApprover, "approval", "process", "", nil), "not_current_approver"},
		{errs.Wrap(errs.ErrChainNotPending, "approval", "process", "", nil), "chain_not_pending"},
		{errs.Wrap(errs.ErrNoRuleConfigured, "sla", "status", "", nil), "no_rule_configured"},
		{errs.Conflict("tasks", "status", "task", "t1"), "conflict_retry"},
		{errs.NotFound("tasks", "get", "task", "t1"), "not_found"},
		{errors.New("disk full"), "internal"},
	}
	for _, tc := range cases {
		if got := errs.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestRetryableOnlyForConflicts(t *testing.T) {
	if !errs.Retryable(errs.Conflict("approval", "process", "chain", "c1")) {
		t.Fatal("expected conflict to be retryable")
	}
	if errs.Retryable(errs.Validation("approval", "create", "no approvers")) {
		t.Fatal("validation errors must not be retryable")
	}
}

func TestValidateStructCollectsFields(t *testing.T) {
	type input struct {
		TaskID   string `validate:"required"`
		Priority string `validate:"oneof=low medium high critical"`
		Count    int    `validate:"min=2"`
	}
	err := errs.ValidateStruct("parallel", "create", input{Priority: "urgent", Count: 1})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, fragment := range []string{"TaskID is required", "Priority must be one of", "Count must be at least 2"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
	if err := errs.ValidateStruct("parallel", "create", input{TaskID: "x", Priority: "low", Count: 2}); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}
