package sla

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"caseflow/internal/audit"
	"caseflow/internal/errs"
	"caseflow/internal/store"
)

// RuleInput is a request to upsert a rule.
type RuleInput struct {
	Priority              string  `json:"priority" yaml:"priority" validate:"required,oneof=low medium high critical"`
	Scope                 string  `json:"scope,omitempty" yaml:"scope,omitempty" validate:"max=128"`
	WarningThresholdHours float64 `json:"warningThresholdHours" yaml:"warning_hours" validate:"gte=0"`
	BreachThresholdHours  float64 `json:"breachThresholdHours" yaml:"breach_hours" validate:"gtfield=WarningThresholdHours"`
}

// ruleFile is the YAML layout accepted by LoadRules.
type ruleFile struct {
	Rules []RuleInput `yaml:"rules"`
}

func (in RuleInput) normalize() (RuleInput, error) {
	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	in.Scope = strings.TrimSpace(in.Scope)
	if err := errs.ValidateStruct("sla", "set rule", in); err != nil {
		return in, err
	}
	return in, nil
}

func ruleKey(priority store.Priority, scope string) string {
	if scope == "" {
		return string(priority)
	}
	return string(priority) + "/" + scope
}

// SetRule upserts the rule keyed by (priority, scope).
func (s *Service) SetRule(ctx context.Context, in RuleInput, actor string) (*store.SLARule, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	var rule *store.SLARule
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		rule, err = s.setRuleTx(ctx, tx, in, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *Service) setRuleTx(ctx context.Context, tx *store.Tx, in RuleInput, actor string) (*store.SLARule, error) {
	priority := store.Priority(in.Priority)
	previous, err := tx.GetSLARule(ctx, priority, in.Scope)
	if err != nil {
		return nil, err
	}
	rule := &store.SLARule{
		Priority:              priority,
		Scope:                 in.Scope,
		WarningThresholdHours: in.WarningThresholdHours,
		BreachThresholdHours:  in.BreachThresholdHours,
	}
	if err := tx.UpsertSLARule(ctx, rule); err != nil {
		return nil, err
	}
	entry := store.AuditEntry{
		EntityType: audit.EntitySLARule,
		EntityID:   ruleKey(priority, in.Scope),
		CaseID:     in.Scope,
		Action:     audit.ActionSLARuleSet,
		UserID:     actor,
		NewValue:   audit.Value(describeRule(rule)),
	}
	if previous != nil {
		entry.PreviousValue = audit.Value(describeRule(previous))
	}
	if _, err := s.audit.RecordWith(ctx, tx, entry); err != nil {
		return nil, err
	}
	return rule, nil
}

// Rules lists every stored rule.
func (s *Service) Rules(ctx context.Context) ([]*store.SLARule, error) {
	return s.store.ListSLARules(ctx)
}

// DeleteRule removes the rule keyed by (priority, scope).
func (s *Service) DeleteRule(ctx context.Context, priority, scope, actor string) error {
	p, ok := store.ParsePriority(priority)
	if !ok {
		return errs.Validation("sla", "delete rule", fmt.Sprintf("unknown priority %q", priority))
	}
	scope = strings.TrimSpace(scope)
	return s.store.InTx(ctx, func(tx *store.Tx) error {
		previous, err := tx.GetSLARule(ctx, p, scope)
		if err != nil {
			return err
		}
		if previous == nil {
			return errs.NotFound("sla", "delete rule", "sla rule", ruleKey(p, scope))
		}
		if _, err := tx.DeleteSLARule(ctx, p, scope); err != nil {
			return err
		}
		_, err = s.audit.RecordWith(ctx, tx, store.AuditEntry{
			EntityType:    audit.EntitySLARule,
			EntityID:      ruleKey(p, scope),
			CaseID:        scope,
			Action:        audit.ActionSLARuleDeleted,
			UserID:        actor,
			PreviousValue: audit.Value(describeRule(previous)),
		})
		return err
	})
}

// LoadRules imports a YAML rule file. Every rule is validated before any is
// written, and the import commits as one unit.
func (s *Service) LoadRules(ctx context.Context, r io.Reader, actor string) ([]*store.SLARule, error) {
	var file ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, errs.Validation("sla", "load rules", "rule file is empty")
		}
		return nil, errs.Wrap(errs.ErrValidation, "sla", "load rules", "decode yaml", err)
	}
	if len(file.Rules) == 0 {
		return nil, errs.Validation("sla", "load rules", "rule file has no rules")
	}

	normalized := make([]RuleInput, 0, len(file.Rules))
	seen := make(map[string]int, len(file.Rules))
	for idx, in := range file.Rules {
		in, err := in.normalize()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", idx+1, err)
		}
		key := ruleKey(store.Priority(in.Priority), in.Scope)
		if first, dup := seen[key]; dup {
			return nil, errs.Validation("sla", "load rules", fmt.Sprintf("rule %d duplicates rule %d (%s)", idx+1, first, key))
		}
		seen[key] = idx + 1
		normalized = append(normalized, in)
	}

	rules := make([]*store.SLARule, 0, len(normalized))
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		for _, in := range normalized {
			rule, err := s.setRuleTx(ctx, tx, in, actor)
			if err != nil {
				return err
			}
			rules = append(rules, rule)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func describeRule(rule *store.SLARule) string {
	return fmt.Sprintf("warning=%gh breach=%gh", rule.WarningThresholdHours, rule.BreachThresholdHours)
}
