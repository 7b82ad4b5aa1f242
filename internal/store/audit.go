package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const auditColumns = `id, entity_type, entity_id, case_id, action, user_id, timestamp, previous_value, new_value, metadata_json`

// InsertAuditEntry appends an entry. The table rejects updates and deletes.
func (q queries) InsertAuditEntry(ctx context.Context, entry *AuditEntry) error {
	if entry == nil {
		return errors.New("audit entry is nil")
	}
	var metadata any
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadata = string(encoded)
	}
	if _, err := q.execWrite(ctx, "audit entry",
		`INSERT INTO audit_log (`+auditColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.EntityType,
		entry.EntityID,
		entry.CaseID,
		entry.Action,
		entry.UserID,
		formatTime(entry.Timestamp),
		optionalString(entry.PreviousValue),
		optionalString(entry.NewValue),
		metadata,
	); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns entries matching filter newest first. Insertion order
// breaks timestamp ties.
func (q queries) QueryAudit(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.EntityType != "" {
		clauses = append(clauses, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		clauses = append(clauses, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.CaseID != "" {
		clauses = append(clauses, "case_id = ?")
		args = append(args, filter.CaseID)
	}
	query := `SELECT ` + auditColumns + ` FROM audit_log`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.exec.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var (
			entry     AuditEntry
			timestamp string
			prev      sql.NullString
			next      sql.NullString
			metadata  sql.NullString
		)
		if err := rows.Scan(
			&entry.ID, &entry.EntityType, &entry.EntityID, &entry.CaseID, &entry.Action,
			&entry.UserID, &timestamp, &prev, &next, &metadata,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if t, err := parseTimeString(timestamp); err == nil {
			entry.Timestamp = t
		}
		if prev.Valid {
			entry.PreviousValue = &prev.String
		}
		if next.Valid {
			entry.NewValue = &next.String
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func optionalString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
