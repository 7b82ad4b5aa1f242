package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertSLARule inserts or replaces the rule keyed by (priority, scope).
func (q queries) UpsertSLARule(ctx context.Context, rule *SLARule) error {
	if rule == nil {
		return errors.New("rule is nil")
	}
	rule.UpdatedAt = time.Now().UTC()
	if _, err := q.execWrite(ctx, "sla rule",
		`INSERT INTO sla_rules (priority, scope, warning_hours, breach_hours, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(priority, scope) DO UPDATE SET
             warning_hours = excluded.warning_hours,
             breach_hours = excluded.breach_hours,
             updated_at = excluded.updated_at`,
		rule.Priority, rule.Scope, rule.WarningThresholdHours, rule.BreachThresholdHours, formatTime(rule.UpdatedAt),
	); err != nil {
		return fmt.Errorf("upsert sla rule: %w", err)
	}
	return nil
}

// GetSLARule fetches an exact (priority, scope) rule. A missing rule returns nil.
func (q queries) GetSLARule(ctx context.Context, priority Priority, scope string) (*SLARule, error) {
	row := q.exec.QueryRowContext(ensureContext(ctx),
		`SELECT priority, scope, warning_hours, breach_hours, updated_at FROM sla_rules
         WHERE priority = ? AND scope = ?`, priority, scope)
	rule, err := scanSLARule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sla rule: %w", err)
	}
	return rule, nil
}

// ListSLARules returns all rules ordered by priority then scope.
func (q queries) ListSLARules(ctx context.Context) ([]*SLARule, error) {
	rows, err := q.exec.QueryContext(ensureContext(ctx),
		`SELECT priority, scope, warning_hours, breach_hours, updated_at FROM sla_rules
         ORDER BY CASE priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, scope`)
	if err != nil {
		return nil, fmt.Errorf("list sla rules: %w", err)
	}
	defer rows.Close()

	var rules []*SLARule
	for rows.Next() {
		rule, err := scanSLARule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sla rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// DeleteSLARule removes a rule and reports whether it existed.
func (q queries) DeleteSLARule(ctx context.Context, priority Priority, scope string) (bool, error) {
	res, err := q.execWrite(ctx, "sla rule",
		`DELETE FROM sla_rules WHERE priority = ? AND scope = ?`, priority, scope)
	if err != nil {
		return false, fmt.Errorf("delete sla rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanSLARule(row scanner) (*SLARule, error) {
	var (
		rule      SLARule
		updatedAt string
	)
	if err := row.Scan(&rule.Priority, &rule.Scope, &rule.WarningThresholdHours, &rule.BreachThresholdHours, &updatedAt); err != nil {
		return nil, err
	}
	if t, err := parseTimeString(updatedAt); err == nil {
		rule.UpdatedAt = t
	}
	return &rule, nil
}
