package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"caseflow/internal/errs"
)

const taskColumns = `id, case_id, stage_id, title, status, priority, owner_id, created_at,
started_at, due_at, completed_at, archived, sla_state, version, updated_at`

// InsertTask stores a new task at version 1.
func (q queries) InsertTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.Status == "" {
		task.Status = StatusPending
	}
	if task.SLAState == "" {
		task.SLAState = SLAOnTrack
	}
	task.Version = 1
	task.UpdatedAt = now

	_, err := q.execWrite(ctx, "task",
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.CaseID,
		task.StageID,
		task.Title,
		task.Status,
		task.Priority,
		task.OwnerID,
		formatTime(task.CreatedAt),
		nullableTime(task.StartedAt),
		nullableTime(task.DueAt),
		nullableTime(task.CompletedAt),
		boolToInt(task.Archived),
		task.SLAState,
		task.Version,
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Wrap(errs.ErrValidation, "store", "insert task", fmt.Sprintf("task %q already exists", task.ID), err)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTask persists task fields when the stored version still matches
// task.Version. On success task.Version is advanced.
func (q queries) UpdateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	res, err := q.execWrite(ctx, "task",
		`UPDATE tasks
         SET case_id = ?, stage_id = ?, title = ?, status = ?, priority = ?, owner_id = ?,
             started_at = ?, due_at = ?, completed_at = ?, archived = ?,
             version = version + 1, updated_at = ?
         WHERE id = ? AND version = ?`,
		task.CaseID,
		task.StageID,
		task.Title,
		task.Status,
		task.Priority,
		task.OwnerID,
		nullableTime(task.StartedAt),
		nullableTime(task.DueAt),
		nullableTime(task.CompletedAt),
		boolToInt(task.Archived),
		formatTime(task.UpdatedAt),
		task.ID,
		task.Version,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if err := expectOneRow(res, "update task", "task", task.ID); err != nil {
		return err
	}
	task.Version++
	return nil
}

// SwapTaskSLAState moves the recorded SLA state from one value to another and
// reports whether this caller performed the move. The version is untouched;
// the recorded state is bookkeeping for breach notifications.
func (q queries) SwapTaskSLAState(ctx context.Context, taskID string, from, to SLAState) (bool, error) {
	res, err := q.execWrite(ctx, "task",
		`UPDATE tasks SET sla_state = ? WHERE id = ? AND sla_state = ?`,
		to, taskID, from,
	)
	if err != nil {
		return false, fmt.Errorf("swap sla state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// GetTask fetches a task by id, including archived tasks. A missing task
// returns nil without error.
func (q queries) GetTask(ctx context.Context, id string) (*Task, error) {
	row := q.exec.QueryRowContext(ensureContext(ctx), `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// GetTasks fetches several tasks keyed by id. Unknown ids are absent from the map.
func (q queries) GetTasks(ctx context.Context, ids []string) (map[string]*Task, error) {
	out := make(map[string]*Task, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.exec.QueryContext(ensureContext(ctx),
		`SELECT `+taskColumns+` FROM tasks WHERE id IN (`+makePlaceholders(len(ids))+`)`,
		stringArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("get tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out[task.ID] = task
	}
	return out, rows.Err()
}

// ListTasks enumerates tasks matching filter ordered by creation time.
func (q queries) ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeArchived {
		clauses = append(clauses, "archived = 0")
	}
	if filter.CaseID != "" {
		clauses = append(clauses, "case_id = ?")
		args = append(args, filter.CaseID)
	}
	if filter.StageID != "" {
		clauses = append(clauses, "stage_id = ?")
		args = append(args, filter.StageID)
	}
	if filter.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.ExcludeDone {
		clauses = append(clauses, "status != ?")
		args = append(args, StatusDone)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := q.exec.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row scanner) (*Task, error) {
	var (
		task        Task
		createdAt   string
		startedAt   sql.NullString
		dueAt       sql.NullString
		completedAt sql.NullString
		archived    int
		updatedAt   string
	)
	if err := row.Scan(
		&task.ID,
		&task.CaseID,
		&task.StageID,
		&task.Title,
		&task.Status,
		&task.Priority,
		&task.OwnerID,
		&createdAt,
		&startedAt,
		&dueAt,
		&completedAt,
		&archived,
		&task.SLAState,
		&task.Version,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	if t, err := parseTimeString(createdAt); err == nil {
		task.CreatedAt = t
	}
	if t, err := parseTimeString(updatedAt); err == nil {
		task.UpdatedAt = t
	}
	task.StartedAt = parseNullTime(startedAt)
	task.DueAt = parseNullTime(dueAt)
	task.CompletedAt = parseNullTime(completedAt)
	task.Archived = archived != 0
	return &task, nil
}

func expectOneRow(res sql.Result, operation, entity, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return errs.Conflict("store", operation, entity, id)
	}
	return nil
}

// TouchTask advances a task's version without changing its fields. Operations
// that mutate task-scoped rows (edges, chains) use it to claim the task.
func (q queries) TouchTask(ctx context.Context, taskID string, version int64) error {
	res, err := q.execWrite(ctx, "task",
		`UPDATE tasks SET version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		formatTime(time.Now()), taskID, version,
	)
	if err != nil {
		return fmt.Errorf("touch task: %w", err)
	}
	return expectOneRow(res, "touch task", "task", taskID)
}
