package access

import (
	"context"
	"errors"

	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/repository"
)

// ErrPermissionDenied indicates the actor can see the project but lacks the
// required level for the attempted operation. Invisible projects surface
// repository.ErrNotFound instead, so existence never leaks.
var ErrPermissionDenied = errors.New("access: permission denied")

// Level is the effective access a user holds on a project.
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelEdit
	LevelAdmin
)

// ParseLevel maps a stored role to a Level.
func ParseLevel(role string) (Level, bool) {
	switch role {
	case domain.RoleView:
		return LevelView, true
	case domain.RoleEdit:
		return LevelEdit, true
	case domain.RoleAdmin:
		return LevelAdmin, true
	}
	return LevelNone, false
}

func (l Level) String() string {
	switch l {
	case LevelView:
		return domain.RoleView
	case LevelEdit:
		return domain.RoleEdit
	case LevelAdmin:
		return domain.RoleAdmin
	}
	return "none"
}

// AtLeast reports whether l grants everything min does.
func (l Level) AtLeast(min Level) bool {
	return l >= min
}

// Resolver computes effective permissions from ownership and membership rows.
type Resolver struct {
	projects repository.ProjectRepository
	members  repository.MembershipRepository
}

// NewResolver constructs a Resolver.
func NewResolver(projects repository.ProjectRepository, members repository.MembershipRepository) Resolver {
	return Resolver{projects: projects, members: members}
}

// Effective resolves the access level for userID on projectID. The owner is
// always admin regardless of membership rows; absent membership is none.
// A missing project returns repository.ErrNotFound.
func (r Resolver) Effective(ctx context.Context, projectID, userID string) (Level, error) {
	project, err := r.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return LevelNone, err
	}
	return r.effectiveOn(ctx, project, userID)
}

// Require loads the project and enforces a minimum level for the actor,
// returning the project so callers avoid a second read. Actors with no access
// get repository.ErrNotFound; actors with some access but below min get
// ErrPermissionDenied.
func (r Resolver) Require(ctx context.Context, projectID, actorID string, min Level) (*domain.Project, error) {
	project, err := r.projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	level, err := r.effectiveOn(ctx, project, actorID)
	if err != nil {
		return nil, err
	}
	if level == LevelNone {
		return nil, repository.ErrNotFound
	}
	if !level.AtLeast(min) {
		return nil, ErrPermissionDenied
	}
	return project, nil
}

func (r Resolver) effectiveOn(ctx context.Context, project *domain.Project, userID string) (Level, error) {
	if project.OwnerID == userID {
		return LevelAdmin, nil
	}
	membership, err := r.members.GetMembership(ctx, project.ID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LevelNone, nil
		}
		return LevelNone, err
	}
	level, ok := ParseLevel(membership.Role)
	if !ok {
		return LevelNone, nil
	}
	return level, nil
}
