package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/repository"
)

const connectionColumns = `id, source_project_id, target_project_id, type, description, created_at`

// CreateConnection inserts a directed edge, deduplicating on
// (source, target, type): when the edge already exists the stored row is
// loaded into the argument instead of writing a duplicate.
func (r *Repository) CreateConnection(ctx context.Context, connection *domain.Connection) error {
	const query = `INSERT INTO connections (id, source_project_id, target_project_id, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (source_project_id, target_project_id, type) DO NOTHING
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		connection.ID,
		connection.SourceProjectID,
		connection.TargetProjectID,
		connection.Type,
		emptyToNil(connection.Description),
	).Scan(&connection.ID, &connection.CreatedAt)
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		const existing = `SELECT ` + connectionColumns + ` FROM connections
			WHERE source_project_id = $1 AND target_project_id = $2 AND type = $3`
		row := r.pool.QueryRow(ctx, existing, connection.SourceProjectID, connection.TargetProjectID, connection.Type)
		return scanConnectionFields(row, connection)
	}
	return mapPgError(err)
}

// GetConnectionByID fetches an edge.
func (r *Repository) GetConnectionByID(ctx context.Context, connectionID string) (*domain.Connection, error) {
	const query = `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	var c domain.Connection
	if err := scanConnectionFields(r.pool.QueryRow(ctx, query, connectionID), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapPgError(err)
	}
	return &c, nil
}

// ListConnectionsVisibleTo returns edges where both endpoint projects are
// visible to the user.
func (r *Repository) ListConnectionsVisibleTo(ctx context.Context, userID string) ([]domain.Connection, error) {
	const query = `SELECT c.id, c.source_project_id, c.target_project_id, c.type, c.description, c.created_at
		FROM connections c
		WHERE EXISTS (
				SELECT 1 FROM projects p
				WHERE p.id = c.source_project_id
					AND (p.owner_id = $1 OR EXISTS (SELECT 1 FROM memberships m WHERE m.project_id = p.id AND m.user_id = $1)))
			AND EXISTS (
				SELECT 1 FROM projects p
				WHERE p.id = c.target_project_id
					AND (p.owner_id = $1 OR EXISTS (SELECT 1 FROM memberships m WHERE m.project_id = p.id AND m.user_id = $1)))
		ORDER BY c.created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	connections := make([]domain.Connection, 0)
	for rows.Next() {
		var c domain.Connection
		if err := scanConnectionFields(rows, &c); err != nil {
			return nil, err
		}
		connections = append(connections, c)
	}
	return connections, rows.Err()
}

// DeleteConnection removes an edge.
func (r *Repository) DeleteConnection(ctx context.Context, connectionID string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM connections WHERE id = $1`, connectionID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanConnectionFields(row pgx.Row, c *domain.Connection) error {
	var description *string
	if err := row.Scan(
		&c.ID,
		&c.SourceProjectID,
		&c.TargetProjectID,
		&c.Type,
		&description,
		&c.CreatedAt,
	); err != nil {
		return err
	}
	if description != nil {
		c.Description = *description
	}
	return nil
}
