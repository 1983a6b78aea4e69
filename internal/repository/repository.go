package repository

import (
	"context"

	"github.com/syncmymind/api/internal/domain"
)

// UserRepository persists accounts and serves directory lookups.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]domain.User, error)
}

// ProjectRepository persists projects. Updates are compare-and-swap on the
// version column; expectedVersion 0 skips the check (last-write-wins).
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	ListProjectsVisibleTo(ctx context.Context, userID string) ([]domain.Project, error)
	UpdateProject(ctx context.Context, project *domain.Project, expectedVersion int64) error
	DeleteProject(ctx context.Context, projectID string) error
}

// TaskRepository persists tasks under their parent project.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error)
	ListTasksByProject(ctx context.Context, projectID string) ([]domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task, expectedVersion int64) error
	DeleteTask(ctx context.Context, taskID string) error
}

// ObservationRepository persists project notes.
type ObservationRepository interface {
	CreateObservation(ctx context.Context, observation *domain.Observation) error
	GetObservationByID(ctx context.Context, observationID string) (*domain.Observation, error)
	ListObservationsByProject(ctx context.Context, projectID string) ([]domain.Observation, error)
	DeleteObservation(ctx context.Context, observationID string) error
}

// ConnectionRepository persists directed project-to-project edges.
// CreateConnection deduplicates on (source, target, type): when the edge already
// exists the stored row is loaded into the argument and no new row is written.
type ConnectionRepository interface {
	CreateConnection(ctx context.Context, connection *domain.Connection) error
	GetConnectionByID(ctx context.Context, connectionID string) (*domain.Connection, error)
	ListConnectionsVisibleTo(ctx context.Context, userID string) ([]domain.Connection, error)
	DeleteConnection(ctx context.Context, connectionID string) error
}

// MembershipRepository persists share grants. Upserts replace the role for an
// existing (project, user) pair rather than appending a second row.
type MembershipRepository interface {
	UpsertMembership(ctx context.Context, membership *domain.Membership) error
	GetMembership(ctx context.Context, projectID, userID string) (*domain.Membership, error)
	ListMembershipsByProject(ctx context.Context, projectID string) ([]domain.Membership, error)
	DeleteMembership(ctx context.Context, projectID, userID string) error
}
