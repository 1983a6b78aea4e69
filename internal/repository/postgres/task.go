package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/repository"
)

const taskColumns = `id, project_id, description, completed, priority, assignee, version, created_at, updated_at`

// CreateTask inserts a task under its project.
func (r *Repository) CreateTask(ctx context.Context, task *domain.Task) error {
	const query = `INSERT INTO tasks (id, project_id, description, completed, priority, assignee, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, NOW(), NOW())
		RETURNING version, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.ProjectID,
		task.Description,
		task.Completed,
		task.Priority,
		emptyToNil(task.Assignee),
	).Scan(&task.Version, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

// GetTaskByID fetches a task.
func (r *Repository) GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, taskID))
}

// ListTasksByProject returns tasks for the project, newest first.
func (r *Repository) ListTasksByProject(ctx context.Context, projectID string) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		var t domain.Task
		if err := scanTaskFields(rows, &t); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask rewrites mutable columns with the same compare-and-swap contract
// as UpdateProject.
func (r *Repository) UpdateTask(ctx context.Context, task *domain.Task, expectedVersion int64) error {
	const query = `UPDATE tasks
		SET description = $2,
			completed = $3,
			priority = $4,
			assignee = $5,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND ($6 = 0 OR version = $6)
		RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Description,
		task.Completed,
		task.Priority,
		emptyToNil(task.Assignee),
		expectedVersion,
	).Scan(&task.Version, &task.UpdatedAt)
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		probe := r.pool.QueryRow(ctx, `SELECT TRUE FROM tasks WHERE id = $1`, task.ID)
		if probeErr := probe.Scan(&exists); probeErr != nil {
			if errors.Is(probeErr, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return probeErr
		}
		return repository.ErrConflict
	}
	return mapPgError(err)
}

// DeleteTask removes a task.
func (r *Repository) DeleteTask(ctx context.Context, taskID string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	if err := scanTaskFields(row, &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapPgError(err)
	}
	return &t, nil
}

func scanTaskFields(row pgx.Row, t *domain.Task) error {
	var assignee *string
	if err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Description,
		&t.Completed,
		&t.Priority,
		&assignee,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return err
	}
	if assignee != nil {
		t.Assignee = *assignee
	}
	return nil
}
