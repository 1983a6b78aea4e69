package connection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/syncmymind/api/internal/access"
	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/repository"
)

// CreateInput describes a directed edge between two projects.
type CreateInput struct {
	SourceProjectID string `json:"source_project_id"`
	TargetProjectID string `json:"target_project_id"`
	Type            string `json:"type"`
	Description     string `json:"description"`
}

// Service manages relationship edges between projects.
type Service struct {
	connections repository.ConnectionRepository
	access      access.Resolver
	logger      *slog.Logger
}

// New returns a connection service.
func New(connections repository.ConnectionRepository, resolver access.Resolver, logger *slog.Logger) Service {
	return Service{connections: connections, access: resolver, logger: logger}
}

var (
	errSelfLoop    = fmt.Errorf("%w: a project cannot connect to itself", repository.ErrInvalidArgument)
	errInvalidType = fmt.Errorf("%w: unknown connection type", repository.ErrInvalidArgument)
)

// Create links two projects. The actor must be able to see both endpoints;
// an edge that already exists for (source, target, type) is returned as-is
// instead of being duplicated.
func (s Service) Create(ctx context.Context, actorID string, input CreateInput) (*domain.Connection, error) {
	if input.SourceProjectID == input.TargetProjectID {
		return nil, errSelfLoop
	}
	if !domain.ValidConnectionType(input.Type) {
		return nil, errInvalidType
	}
	if _, err := s.access.Require(ctx, input.SourceProjectID, actorID, access.LevelView); err != nil {
		return nil, err
	}
	if _, err := s.access.Require(ctx, input.TargetProjectID, actorID, access.LevelView); err != nil {
		return nil, err
	}
	connection := &domain.Connection{
		ID:              uuid.NewString(),
		SourceProjectID: input.SourceProjectID,
		TargetProjectID: input.TargetProjectID,
		Type:            input.Type,
		Description:     strings.TrimSpace(input.Description),
	}
	if err := s.connections.CreateConnection(ctx, connection); err != nil {
		return nil, err
	}
	s.logger.Info("connection created",
		"connection_id", connection.ID,
		"source_project_id", connection.SourceProjectID,
		"target_project_id", connection.TargetProjectID,
		"type", connection.Type)
	return connection, nil
}

// List returns every edge whose both endpoints are visible to the actor.
func (s Service) List(ctx context.Context, actorID string) ([]domain.Connection, error) {
	return s.connections.ListConnectionsVisibleTo(ctx, actorID)
}

// Delete removes an edge. The actor needs edit access on the source project;
// an invisible endpoint surfaces as not found.
func (s Service) Delete(ctx context.Context, connectionID, actorID string) error {
	connection, err := s.connections.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if _, err := s.access.Require(ctx, connection.SourceProjectID, actorID, access.LevelEdit); err != nil {
		return err
	}
	if err := s.connections.DeleteConnection(ctx, connectionID); err != nil {
		return err
	}
	s.logger.Info("connection deleted", "connection_id", connectionID, "actor_id", actorID)
	return nil
}

// Row formats a connection for API responses.
func Row(c *domain.Connection) map[string]any {
	return map[string]any{
		"id":                c.ID,
		"source_project_id": c.SourceProjectID,
		"target_project_id": c.TargetProjectID,
		"type":              c.Type,
		"description":       c.Description,
		"created_at":        c.CreatedAt.Format(time.RFC3339Nano),
	}
}

// Rows formats a connection list.
func Rows(connections []domain.Connection) []map[string]any {
	rows := make([]map[string]any, 0, len(connections))
	for i := range connections {
		rows = append(rows, Row(&connections[i]))
	}
	return rows
}
