package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const chainColumns = `id, task_id, current_step, status, created_by, created_at, updated_at, version`

// InsertApprovalChain stores a new chain and its steps at version 1.
func (q queries) InsertApprovalChain(ctx context.Context, chain *ApprovalChain) error {
	if chain == nil {
		return errors.New("chain is nil")
	}
	now := time.Now().UTC()
	chain.CreatedAt = now
	chain.UpdatedAt = now
	chain.Version = 1
	if _, err := q.execWrite(ctx, "approval chain",
		`INSERT INTO approval_chains (`+chainColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		chain.ID, chain.TaskID, chain.CurrentStep, chain.Status, chain.CreatedBy,
		formatTime(chain.CreatedAt), formatTime(chain.UpdatedAt), chain.Version,
	); err != nil {
		return fmt.Errorf("insert approval chain: %w", err)
	}
	for _, step := range chain.Steps {
		if _, err := q.execWrite(ctx, "approval step",
			`INSERT INTO approval_steps (chain_id, step_order, approver_id, status, comments, decided_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			chain.ID, step.Order, step.ApproverID, step.Status, step.Comments, nullableTime(step.DecidedAt),
		); err != nil {
			return fmt.Errorf("insert approval step: %w", err)
		}
	}
	return nil
}

// UpdateApprovalChain persists chain progress when the stored version still
// matches chain.Version. On success chain.Version is advanced.
func (q queries) UpdateApprovalChain(ctx context.Context, chain *ApprovalChain) error {
	if chain == nil {
		return errors.New("chain is nil")
	}
	chain.UpdatedAt = time.Now().UTC()
	res, err := q.execWrite(ctx, "approval chain",
		`UPDATE approval_chains
         SET current_step = ?, status = ?, updated_at = ?, version = version + 1
         WHERE id = ? AND version = ?`,
		chain.CurrentStep, chain.Status, formatTime(chain.UpdatedAt), chain.ID, chain.Version,
	)
	if err != nil {
		return fmt.Errorf("update approval chain: %w", err)
	}
	if err := expectOneRow(res, "update approval chain", "approval chain", chain.ID); err != nil {
		return err
	}
	for _, step := range chain.Steps {
		if _, err := q.execWrite(ctx, "approval step",
			`UPDATE approval_steps SET status = ?, comments = ?, decided_at = ?
             WHERE chain_id = ? AND step_order = ?`,
			step.Status, step.Comments, nullableTime(step.DecidedAt), chain.ID, step.Order,
		); err != nil {
			return fmt.Errorf("update approval step: %w", err)
		}
	}
	chain.Version++
	return nil
}

// DeleteApprovalChain removes a chain and its steps. Only terminal chains are
// replaced this way; their history stays in the audit log.
func (q queries) DeleteApprovalChain(ctx context.Context, chainID string) error {
	if _, err := q.execWrite(ctx, "approval chain",
		`DELETE FROM approval_chains WHERE id = ?`, chainID); err != nil {
		return fmt.Errorf("delete approval chain: %w", err)
	}
	return nil
}

// GetApprovalChainByTask fetches the chain attached to a task. A missing chain returns nil.
func (q queries) GetApprovalChainByTask(ctx context.Context, taskID string) (*ApprovalChain, error) {
	return q.getApprovalChain(ctx, `SELECT `+chainColumns+` FROM approval_chains WHERE task_id = ?`, taskID)
}

// GetApprovalChain fetches a chain by id. A missing chain returns nil.
func (q queries) GetApprovalChain(ctx context.Context, id string) (*ApprovalChain, error) {
	return q.getApprovalChain(ctx, `SELECT `+chainColumns+` FROM approval_chains WHERE id = ?`, id)
}

// ListApprovalChains returns chains in the given status, or all chains when status is empty.
func (q queries) ListApprovalChains(ctx context.Context, status ApprovalStatus) ([]*ApprovalChain, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + chainColumns + ` FROM approval_chains`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approval chains: %w", err)
	}
	var chains []*ApprovalChain
	for rows.Next() {
		chain, err := scanChain(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan approval chain: %w", err)
		}
		chains = append(chains, chain)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, chain := range chains {
		if chain.Steps, err = q.approvalSteps(ctx, chain.ID); err != nil {
			return nil, err
		}
	}
	return chains, nil
}

func (q queries) getApprovalChain(ctx context.Context, query string, arg any) (*ApprovalChain, error) {
	ctx = ensureContext(ctx)
	chain, err := scanChain(q.exec.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get approval chain: %w", err)
	}
	if chain.Steps, err = q.approvalSteps(ctx, chain.ID); err != nil {
		return nil, err
	}
	return chain, nil
}

func (q queries) approvalSteps(ctx context.Context, chainID string) ([]ApprovalStep, error) {
	rows, err := q.exec.QueryContext(ctx,
		`SELECT step_order, approver_id, status, comments, decided_at FROM approval_steps
         WHERE chain_id = ? ORDER BY step_order`, chainID)
	if err != nil {
		return nil, fmt.Errorf("query approval steps: %w", err)
	}
	defer rows.Close()

	var steps []ApprovalStep
	for rows.Next() {
		var (
			step      ApprovalStep
			decidedAt sql.NullString
		)
		if err := rows.Scan(&step.Order, &step.ApproverID, &step.Status, &step.Comments, &decidedAt); err != nil {
			return nil, fmt.Errorf("scan approval step: %w", err)
		}
		step.DecidedAt = parseNullTime(decidedAt)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func scanChain(row scanner) (*ApprovalChain, error) {
	var (
		chain     ApprovalChain
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&chain.ID, &chain.TaskID, &chain.CurrentStep, &chain.Status, &chain.CreatedBy,
		&createdAt, &updatedAt, &chain.Version,
	); err != nil {
		return nil, err
	}
	if t, err := parseTimeString(createdAt); err == nil {
		chain.CreatedAt = t
	}
	if t, err := parseTimeString(updatedAt); err == nil {
		chain.UpdatedAt = t
	}
	return &chain, nil
}
