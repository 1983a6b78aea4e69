package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/repository"
)

const observationColumns = `id, project_id, author_id, author_name, text, created_at`

// CreateObservation inserts a note.
func (r *Repository) CreateObservation(ctx context.Context, observation *domain.Observation) error {
	const query = `INSERT INTO observations (id, project_id, author_id, author_name, text, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		observation.ID,
		observation.ProjectID,
		observation.AuthorID,
		observation.AuthorName,
		observation.Text,
	).Scan(&observation.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

// GetObservationByID fetches a note.
func (r *Repository) GetObservationByID(ctx context.Context, observationID string) (*domain.Observation, error) {
	const query = `SELECT ` + observationColumns + ` FROM observations WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, observationID)
	var o domain.Observation
	if err := row.Scan(&o.ID, &o.ProjectID, &o.AuthorID, &o.AuthorName, &o.Text, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapPgError(err)
	}
	return &o, nil
}

// ListObservationsByProject returns notes for the project, newest first.
func (r *Repository) ListObservationsByProject(ctx context.Context, projectID string) ([]domain.Observation, error) {
	const query = `SELECT ` + observationColumns + ` FROM observations WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	observations := make([]domain.Observation, 0)
	for rows.Next() {
		var o domain.Observation
		if err := rows.Scan(&o.ID, &o.ProjectID, &o.AuthorID, &o.AuthorName, &o.Text, &o.CreatedAt); err != nil {
			return nil, err
		}
		observations = append(observations, o)
	}
	return observations, rows.Err()
}

// DeleteObservation removes a note.
func (r *Repository) DeleteObservation(ctx context.Context, observationID string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM observations WHERE id = $1`, observationID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
