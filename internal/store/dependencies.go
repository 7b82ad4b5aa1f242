package store

import (
	"context"
	"fmt"
	"time"
)

// Dependencies returns the outgoing edges of taskID ordered by target.
func (q queries) Dependencies(ctx context.Context, taskID string) ([]Dependency, error) {
	return q.queryDependencies(ctx,
		`SELECT task_id, depends_on, dep_type, created_at FROM task_dependencies
         WHERE task_id = ? ORDER BY depends_on`, taskID)
}

// Dependents returns the edges pointing at taskID ordered by source.
func (q queries) Dependents(ctx context.Context, taskID string) ([]Dependency, error) {
	return q.queryDependencies(ctx,
		`SELECT task_id, depends_on, dep_type, created_at FROM task_dependencies
         WHERE depends_on = ? ORDER BY task_id`, taskID)
}

// AllDependencies returns every edge of the given type. An empty type returns all edges.
func (q queries) AllDependencies(ctx context.Context, depType DependencyType) ([]Dependency, error) {
	if depType == "" {
		return q.queryDependencies(ctx,
			`SELECT task_id, depends_on, dep_type, created_at FROM task_dependencies ORDER BY task_id, depends_on`)
	}
	return q.queryDependencies(ctx,
		`SELECT task_id, depends_on, dep_type, created_at FROM task_dependencies
         WHERE dep_type = ? ORDER BY task_id, depends_on`, depType)
}

// ReplaceDependencies swaps the edge set of one type for taskID. An edge that
// already exists with the other type is moved to depType.
func (q queries) ReplaceDependencies(ctx context.Context, taskID string, depType DependencyType, dependsOn []string) error {
	if _, err := q.execWrite(ctx, "dependency",
		`DELETE FROM task_dependencies WHERE task_id = ? AND dep_type = ?`,
		taskID, depType,
	); err != nil {
		return fmt.Errorf("clear dependencies: %w", err)
	}
	now := formatTime(time.Now())
	for _, target := range dependsOn {
		if _, err := q.execWrite(ctx, "dependency",
			`INSERT INTO task_dependencies (task_id, depends_on, dep_type, created_at)
             VALUES (?, ?, ?, ?)
             ON CONFLICT(task_id, depends_on) DO UPDATE SET dep_type = excluded.dep_type`,
			taskID, target, depType, now,
		); err != nil {
			return fmt.Errorf("insert dependency: %w", err)
		}
	}
	return nil
}

func (q queries) queryDependencies(ctx context.Context, query string, args ...any) ([]Dependency, error) {
	rows, err := q.exec.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []Dependency
	for rows.Next() {
		var (
			dep       Dependency
			createdAt string
		)
		if err := rows.Scan(&dep.TaskID, &dep.DependsOn, &dep.Type, &createdAt); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		if t, err := parseTimeString(createdAt); err == nil {
			dep.CreatedAt = t
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}
