package approval

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"pgregory.net/rapid"

	"caseflow/internal/errs"
	"caseflow/internal/store"
)

func approvers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("user-%d", i)
	}
	return out
}

// TestPropertyChainNeedsExactlyNApprovals verifies that an N-step chain is
// approved by the Nth in-order approval and not before.
func TestPropertyChainNeedsExactlyNApprovals(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(rt, "approvers")
		chain, err := NewChain("c", "T", approvers(n), "creator")
		if err != nil {
			rt.Fatalf("NewChain: %v", err)
		}
		for i := 0; i < n; i++ {
			if chain.Status != store.ApprovalPending {
				rt.Fatalf("chain %s after %d of %d approvals", chain.Status, i, n)
			}
			outcome, err := Decide(chain, chain.Steps[i].ApproverID, ActionApprove, "", time.Now())
			if err != nil {
				rt.Fatalf("approve step %d: %v", i, err)
			}
			if (outcome == Approved) != (i == n-1) {
				rt.Fatalf("step %d of %d produced outcome %d", i, n, outcome)
			}
		}
		if chain.Status != store.ApprovalApproved {
			rt.Fatalf("chain %s after %d approvals", chain.Status, n)
		}
		if _, err := Decide(chain, chain.Steps[n-1].ApproverID, ActionApprove, "", time.Now()); !errors.Is(err, errs.ErrChainNotPending) {
			rt.Fatalf("decision on approved chain returned %v", err)
		}
	})
}

// TestPropertyAnyRejectionIsTerminal verifies that a rejection at any step
// closes the chain as rejected and later decisions fail with ChainNotPending.
func TestPropertyAnyRejectionIsTerminal(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(rt, "approvers")
		rejectAt := rapid.IntRange(0, n-1).Draw(rt, "reject_at")
		chain, err := NewChain("c", "T", approvers(n), "creator")
		if err != nil {
			rt.Fatalf("NewChain: %v", err)
		}
		for i := 0; i < rejectAt; i++ {
			if _, err := Decide(chain, chain.Steps[i].ApproverID, ActionApprove, "", time.Now()); err != nil {
				rt.Fatalf("approve step %d: %v", i, err)
			}
		}
		outcome, err := Decide(chain, chain.Steps[rejectAt].ApproverID, ActionReject, "no", time.Now())
		if err != nil || outcome != Rejected {
			rt.Fatalf("reject at %d: outcome %d err %v", rejectAt, outcome, err)
		}
		if chain.Status != store.ApprovalRejected {
			rt.Fatalf("chain status %s after rejection", chain.Status)
		}
		for i := rejectAt + 1; i < n; i++ {
			if chain.Steps[i].Status != store.ApprovalPending {
				rt.Fatalf("step %d mutated after rejection: %s", i, chain.Steps[i].Status)
			}
		}
		next := chain.Steps[rapid.IntRange(0, n-1).Draw(rt, "next")].ApproverID
		action := rapid.SampledFrom([]Action{ActionApprove, ActionReject}).Draw(rt, "action")
		if _, err := Decide(chain, next, action, "", time.Now()); !errors.Is(err, errs.ErrChainNotPending) {
			rt.Fatalf("decision after rejection returned %v", err)
		}
	})
}

func TestDecideRejectsWrongApprover(t *testing.T) {
	chain, err := NewChain("c", "T", []string{"a", "b"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decide(chain, "b", ActionApprove, "", time.Now()); !errors.Is(err, errs.ErrNotCurrentApprover) {
		t.Fatalf("expected NotCurrentApprover, got %v", err)
	}
	if chain.Steps[0].Status != store.ApprovalPending || chain.CurrentStep != 0 {
		t.Fatalf("chain mutated by rejected decision: %+v", chain)
	}
}

func TestNewChainValidation(t *testing.T) {
	for _, ids := range [][]string{nil, {""}, {"a", " "}} {
		if _, err := NewChain("c", "T", ids, ""); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("NewChain(%v) = %v, want validation error", ids, err)
		}
	}
	for _, ids := range [][]string{{"a", "b", "a"}, {"a", "a"}} {
		if _, err := NewChain("c", "T", ids, ""); err != nil {
			t.Fatalf("NewChain(%v) should allow repeated approvers: %v", ids, err)
		}
	}
}

func TestRepeatedApproverDecidesEachStep(t *testing.T) {
	chain, err := NewChain("c", "T", []string{"a", "a"}, "")
	if err != nil {
		t.Fatal(err)
	}
	outcome, err := Decide(chain, "a", ActionApprove, "", time.Now())
	if err != nil || outcome != Advanced {
		t.Fatalf("first decision = %v, %v; want Advanced", outcome, err)
	}
	outcome, err = Decide(chain, "a", ActionApprove, "", time.Now())
	if err != nil || outcome != Approved {
		t.Fatalf("second decision = %v, %v; want Approved", outcome, err)
	}
}
