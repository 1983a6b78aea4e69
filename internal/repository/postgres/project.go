package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/repository"
)

const projectColumns = `id, owner_id, name, description, status, progress, investment, revenue, team_size, version, created_at, updated_at`

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (id, owner_id, name, description, status, progress, investment, revenue, team_size, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NOW(), NOW())
		RETURNING version, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		project.ID,
		project.OwnerID,
		project.Name,
		project.Description,
		project.Status,
		project.Progress,
		project.Investment,
		project.Revenue,
		project.TeamSize,
	).Scan(&project.Version, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

// GetProjectByID fetches project details.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(r.pool.QueryRow(ctx, query, projectID))
}

// ListProjectsVisibleTo returns projects the user owns or holds a membership on.
func (r *Repository) ListProjectsVisibleTo(ctx context.Context, userID string) ([]domain.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects p
		WHERE p.owner_id = $1
			OR EXISTS (SELECT 1 FROM memberships m WHERE m.project_id = p.id AND m.user_id = $1)
		ORDER BY p.created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		var p domain.Project
		if err := scanProjectFields(rows, &p); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject rewrites mutable columns and bumps the version. With a non-zero
// expectedVersion the write is a compare-and-swap; a stale version yields
// ErrConflict so the caller can re-read and retry.
func (r *Repository) UpdateProject(ctx context.Context, project *domain.Project, expectedVersion int64) error {
	const query = `UPDATE projects
		SET name = $2,
			description = $3,
			status = $4,
			progress = $5,
			investment = $6,
			revenue = $7,
			team_size = $8,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND ($9 = 0 OR version = $9)
		RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.Status,
		project.Progress,
		project.Investment,
		project.Revenue,
		project.TeamSize,
		expectedVersion,
	).Scan(&project.Version, &project.UpdatedAt)
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		// Row missing or version mismatch; probe to tell the two apart.
		var exists bool
		probe := r.pool.QueryRow(ctx, `SELECT TRUE FROM projects WHERE id = $1`, project.ID)
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

// DeleteProject removes the project and everything attached to it in a single
// transaction: tasks, observations, connections in both directions, memberships.
func (r *Repository) DeleteProject(ctx context.Context, projectID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cleanups := []string{
		`DELETE FROM connections WHERE source_project_id = $1 OR target_project_id = $1`,
		`DELETE FROM observations WHERE project_id = $1`,
		`DELETE FROM tasks WHERE project_id = $1`,
		`DELETE FROM memberships WHERE project_id = $1`,
	}
	for _, query := range cleanups {
		if _, err := tx.Exec(ctx, query, projectID); err != nil {
			return mapPgError(err)
		}
	}
	cmdTag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return mapPgError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return tx.Commit(ctx)
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	if err := scanProjectFields(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapPgError(err)
	}
	return &p, nil
}

func scanProjectFields(row pgx.Row, p *domain.Project) error {
	return row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Description,
		&p.Status,
		&p.Progress,
		&p.Investment,
		&p.Revenue,
		&p.TeamSize,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}
