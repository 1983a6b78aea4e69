package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/repository"
)

// UpsertMembership grants access or replaces the role of an existing grant.
func (r *Repository) UpsertMembership(ctx context.Context, membership *domain.Membership) error {
	const query = `INSERT INTO memberships (id, project_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		membership.ID,
		membership.ProjectID,
		membership.UserID,
		membership.Role,
	).Scan(&membership.ID, &membership.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

// GetMembership fetches the grant for a (project, user) pair.
func (r *Repository) GetMembership(ctx context.Context, projectID, userID string) (*domain.Membership, error) {
	const query = `SELECT id, project_id, user_id, role, created_at
		FROM memberships WHERE project_id = $1 AND user_id = $2`
	row := r.pool.QueryRow(ctx, query, projectID, userID)
	var m domain.Membership
	if err := row.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapPgError(err)
	}
	return &m, nil
}

// ListMembershipsByProject returns all grants for a project.
func (r *Repository) ListMembershipsByProject(ctx context.Context, projectID string) ([]domain.Membership, error) {
	const query = `SELECT id, project_id, user_id, role, created_at
		FROM memberships WHERE project_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	memberships := make([]domain.Membership, 0)
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// DeleteMembership revokes a grant. Missing rows are not an error so revocation
// stays idempotent.
func (r *Repository) DeleteMembership(ctx context.Context, projectID, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM memberships WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	return err
}
