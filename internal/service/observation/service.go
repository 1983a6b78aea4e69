package observation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/syncmymind/api/internal/access"
	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/feed"
	"github.com/syncmymind/api/internal/repository"
)

// Service manages free-text notes on projects.
type Service struct {
	observations repository.ObservationRepository
	users        repository.UserRepository
	access       access.Resolver
	feed         feed.Publisher
	logger       *slog.Logger
}

// New returns an observation service.
func New(observations repository.ObservationRepository, users repository.UserRepository, resolver access.Resolver, publisher feed.Publisher, logger *slog.Logger) Service {
	return Service{observations: observations, users: users, access: resolver, feed: publisher, logger: logger}
}

var errTextRequired = fmt.Errorf("%w: observation text is required", repository.ErrInvalidArgument)

// Create adds a note authored by authorID. Any member may create one; the
// author's display name is snapshotted so later renames do not rewrite
// history.
func (s Service) Create(ctx context.Context, projectID, authorID, text string) (*domain.Observation, error) {
	if _, err := s.access.Require(ctx, projectID, authorID, access.LevelView); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errTextRequired
	}
	author, err := s.users.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, err
	}
	observation := &domain.Observation{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		AuthorID:   authorID,
		AuthorName: author.DisplayName(),
		Text:       text,
	}
	if err := s.observations.CreateObservation(ctx, observation); err != nil {
		return nil, err
	}
	s.logger.Info("observation created", "observation_id", observation.ID, "project_id", projectID, "author_id", authorID)
	s.feed.Publish(feed.NewEvent(domain.TableObservations, domain.OpInsert, projectID, nil, Row(observation)))
	return observation, nil
}

// List returns the project's notes for an actor with view access.
func (s Service) List(ctx context.Context, projectID, actorID string) ([]domain.Observation, error) {
	if _, err := s.access.Require(ctx, projectID, actorID, access.LevelView); err != nil {
		return nil, err
	}
	return s.observations.ListObservationsByProject(ctx, projectID)
}

// Delete removes a note. Only the original author may delete it; neither the
// project owner nor admin members override that.
func (s Service) Delete(ctx context.Context, observationID, actorID string) error {
	observation, err := s.observations.GetObservationByID(ctx, observationID)
	if err != nil {
		return err
	}
	if _, err := s.access.Require(ctx, observation.ProjectID, actorID, access.LevelView); err != nil {
		return err
	}
	if observation.AuthorID != actorID {
		return access.ErrPermissionDenied
	}
	if err := s.observations.DeleteObservation(ctx, observationID); err != nil {
		return err
	}
	s.logger.Info("observation deleted", "observation_id", observationID, "project_id", observation.ProjectID)
	s.feed.Publish(feed.NewEvent(domain.TableObservations, domain.OpDelete, observation.ProjectID, Row(observation), nil))
	return nil
}

// Row formats an observation for API responses and feed snapshots.
func Row(o *domain.Observation) map[string]any {
	return map[string]any{
		"id":          o.ID,
		"project_id":  o.ProjectID,
		"author_id":   o.AuthorID,
		"author_name": o.AuthorName,
		"text":        o.Text,
		"created_at":  o.CreatedAt.Format(time.RFC3339Nano),
	}
}

// Rows formats an observation list.
func Rows(observations []domain.Observation) []map[string]any {
	rows := make([]map[string]any, 0, len(observations))
	for i := range observations {
		rows = append(rows, Row(&observations[i]))
	}
	return rows
}
