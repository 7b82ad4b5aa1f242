package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const groupColumns = `id, stage_id, completion_rule, completion_threshold, created_by, created_at, updated_at, version`

// InsertParallelGroup stores a new group and its members at version 1.
func (q queries) InsertParallelGroup(ctx context.Context, group *ParallelGroup) error {
	if group == nil {
		return errors.New("group is nil")
	}
	now := time.Now().UTC()
	group.CreatedAt = now
	group.UpdatedAt = now
	group.Version = 1

	var threshold any
	if group.CompletionThreshold != nil {
		threshold = *group.CompletionThreshold
	}
	if _, err := q.execWrite(ctx, "parallel group",
		`INSERT INTO parallel_groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID, group.StageID, group.CompletionRule, threshold, group.CreatedBy,
		formatTime(group.CreatedAt), formatTime(group.UpdatedAt), group.Version,
	); err != nil {
		return fmt.Errorf("insert parallel group: %w", err)
	}
	for idx, taskID := range group.TaskIDs {
		if _, err := q.execWrite(ctx, "parallel group member",
			`INSERT INTO parallel_group_members (group_id, task_id, position) VALUES (?, ?, ?)`,
			group.ID, taskID, idx,
		); err != nil {
			return fmt.Errorf("insert parallel group member: %w", err)
		}
	}
	return nil
}

// RemoveParallelGroupMember drops one member when the stored group version
// still matches. On success group.Version is advanced and TaskIDs updated.
func (q queries) RemoveParallelGroupMember(ctx context.Context, group *ParallelGroup, taskID string) error {
	if group == nil {
		return errors.New("group is nil")
	}
	group.UpdatedAt = time.Now().UTC()
	res, err := q.execWrite(ctx, "parallel group",
		`UPDATE parallel_groups SET updated_at = ?, version = version + 1 WHERE id = ? AND version = ?`,
		formatTime(group.UpdatedAt), group.ID, group.Version,
	)
	if err != nil {
		return fmt.Errorf("update parallel group: %w", err)
	}
	if err := expectOneRow(res, "remove parallel group member", "parallel group", group.ID); err != nil {
		return err
	}
	if _, err := q.execWrite(ctx, "parallel group member",
		`DELETE FROM parallel_group_members WHERE group_id = ? AND task_id = ?`, group.ID, taskID,
	); err != nil {
		return fmt.Errorf("delete parallel group member: %w", err)
	}
	remaining := group.TaskIDs[:0:0]
	for _, id := range group.TaskIDs {
		if id != taskID {
			remaining = append(remaining, id)
		}
	}
	group.TaskIDs = remaining
	group.Version++
	return nil
}

// GetParallelGroup fetches a group with its members. A missing group returns nil.
func (q queries) GetParallelGroup(ctx context.Context, id string) (*ParallelGroup, error) {
	ctx = ensureContext(ctx)
	group, err := scanGroup(q.exec.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM parallel_groups WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get parallel group: %w", err)
	}
	if group.TaskIDs, err = q.groupMembers(ctx, group.ID); err != nil {
		return nil, err
	}
	return group, nil
}

// ListParallelGroups returns the groups of a stage, or all groups when stageID is empty.
func (q queries) ListParallelGroups(ctx context.Context, stageID string) ([]*ParallelGroup, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + groupColumns + ` FROM parallel_groups`
	var args []any
	if stageID != "" {
		query += ` WHERE stage_id = ?`
		args = append(args, stageID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list parallel groups: %w", err)
	}
	var groups []*ParallelGroup
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan parallel group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, group := range groups {
		if group.TaskIDs, err = q.groupMembers(ctx, group.ID); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (q queries) groupMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := q.exec.QueryContext(ctx,
		`SELECT task_id FROM parallel_group_members WHERE group_id = ? ORDER BY position`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query parallel group members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan parallel group member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanGroup(row scanner) (*ParallelGroup, error) {
	var (
		group     ParallelGroup
		threshold sql.NullInt64
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&group.ID, &group.StageID, &group.CompletionRule, &threshold, &group.CreatedBy,
		&createdAt, &updatedAt, &group.Version,
	); err != nil {
		return nil, err
	}
	if threshold.Valid {
		value := int(threshold.Int64)
		group.CompletionThreshold = &value
	}
	if t, err := parseTimeString(createdAt); err == nil {
		group.CreatedAt = t
	}
	if t, err := parseTimeString(updatedAt); err == nil {
		group.UpdatedAt = t
	}
	return &group, nil
}
