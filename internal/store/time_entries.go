package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"caseflow/internal/errs"
)

const timeEntryColumns = `id, task_id, user_id, start_time, end_time, description`

// InsertTimeEntry opens a new entry. A second open entry for the same task and
// user violates the partial unique index and is reported as a validation error.
func (q queries) InsertTimeEntry(ctx context.Context, entry *TimeEntry) error {
	if entry == nil {
		return errors.New("time entry is nil")
	}
	_, err := q.execWrite(ctx, "time entry",
		`INSERT INTO time_entries (`+timeEntryColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TaskID, entry.UserID, formatTime(entry.StartTime), nullableTime(entry.EndTime), entry.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Wrap(errs.ErrValidation, "store", "insert time entry",
				fmt.Sprintf("user %q already has an open entry on task %q", entry.UserID, entry.TaskID), err)
		}
		return fmt.Errorf("insert time entry: %w", err)
	}
	return nil
}

// CloseTimeEntry sets the end time of an open entry and reports whether it was still open.
func (q queries) CloseTimeEntry(ctx context.Context, entry *TimeEntry) (bool, error) {
	if entry == nil || entry.EndTime == nil {
		return false, errors.New("time entry end time is required")
	}
	res, err := q.execWrite(ctx, "time entry",
		`UPDATE time_entries SET end_time = ? WHERE id = ? AND end_time IS NULL`,
		formatTime(*entry.EndTime), entry.ID,
	)
	if err != nil {
		return false, fmt.Errorf("close time entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// OpenTimeEntry returns the open entry for a task and user. None returns nil.
func (q queries) OpenTimeEntry(ctx context.Context, taskID, userID string) (*TimeEntry, error) {
	row := q.exec.QueryRowContext(ensureContext(ctx),
		`SELECT `+timeEntryColumns+` FROM time_entries
         WHERE task_id = ? AND user_id = ? AND end_time IS NULL`, taskID, userID)
	entry, err := scanTimeEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open time entry: %w", err)
	}
	return entry, nil
}

// TimeEntries returns a task's entries ordered by start time. An empty taskID
// returns entries for every task.
func (q queries) TimeEntries(ctx context.Context, taskID string) ([]*TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries`
	var args []any
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY start_time, id`

	rows, err := q.exec.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	var entries []*TimeEntry
	for rows.Next() {
		entry, err := scanTimeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanTimeEntry(row scanner) (*TimeEntry, error) {
	var (
		entry     TimeEntry
		startTime string
		endTime   sql.NullString
	)
	if err := row.Scan(&entry.ID, &entry.TaskID, &entry.UserID, &startTime, &endTime, &entry.Description); err != nil {
		return nil, err
	}
	if t, err := parseTimeString(startTime); err == nil {
		entry.StartTime = t
	}
	entry.EndTime = parseNullTime(endTime)
	return &entry, nil
}
