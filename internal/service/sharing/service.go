package sharing

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/syncmymind/api/internal/access"
	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/repository"
)

// Member pairs a membership row with the user's directory fields.
type Member struct {
	Membership domain.Membership
	User       domain.User
}

// Service manages share grants on projects.
type Service struct {
	members repository.MembershipRepository
	users   repository.UserRepository
	access  access.Resolver
	logger  *slog.Logger
}

// New returns a sharing service.
func New(members repository.MembershipRepository, users repository.UserRepository, resolver access.Resolver, logger *slog.Logger) Service {
	return Service{members: members, users: users, access: resolver, logger: logger}
}

var (
	errInvalidRole = fmt.Errorf("%w: unknown role", repository.ErrInvalidArgument)
	errSelfGrant   = fmt.Errorf("%w: cannot grant a role to yourself", repository.ErrInvalidArgument)
)

// Grant shares a project with userID at the given role. The granter must hold
// admin access; granting again replaces the previous role. Granting to
// yourself is rejected so admins cannot rewrite their own effective level.
func (s Service) Grant(ctx context.Context, projectID, granterID, userID, role string) (*domain.Membership, error) {
	if _, err := s.access.Require(ctx, projectID, granterID, access.LevelAdmin); err != nil {
		return nil, err
	}
	if userID == granterID {
		return nil, errSelfGrant
	}
	if !domain.ValidRole(role) {
		return nil, errInvalidRole
	}
	grantee, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	membership := &domain.Membership{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    grantee.ID,
		Role:      role,
	}
	if err := s.members.UpsertMembership(ctx, membership); err != nil {
		return nil, err
	}
	s.logger.Info("membership granted", "project_id", projectID, "user_id", userID, "role", role, "granter_id", granterID)
	return membership, nil
}

// Revoke removes a user's membership. The actor must hold admin access, except
// that any member may revoke their own membership to leave the project.
// Revoking an absent membership succeeds.
func (s Service) Revoke(ctx context.Context, projectID, actorID, userID string) error {
	if actorID == userID {
		if _, err := s.access.Require(ctx, projectID, actorID, access.LevelView); err != nil {
			return err
		}
	} else {
		if _, err := s.access.Require(ctx, projectID, actorID, access.LevelAdmin); err != nil {
			return err
		}
	}
	if err := s.members.DeleteMembership(ctx, projectID, userID); err != nil {
		return err
	}
	s.logger.Info("membership revoked", "project_id", projectID, "user_id", userID, "actor_id", actorID)
	return nil
}

// Members lists a project's grants with user details, for actors with view
// access. Users that disappeared between reads are skipped.
func (s Service) Members(ctx context.Context, projectID, actorID string) ([]Member, error) {
	if _, err := s.access.Require(ctx, projectID, actorID, access.LevelView); err != nil {
		return nil, err
	}
	memberships, err := s.members.ListMembershipsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(memberships))
	for _, m := range memberships {
		user, err := s.users.GetUserByID(ctx, m.UserID)
		if err != nil {
			continue
		}
		members = append(members, Member{Membership: m, User: *user})
	}
	return members, nil
}

// Row formats a member entry for API responses.
func Row(m *Member) map[string]any {
	return map[string]any{
		"id":         m.Membership.ID,
		"project_id": m.Membership.ProjectID,
		"user_id":    m.Membership.UserID,
		"role":       m.Membership.Role,
		"email":      m.User.Email,
		"name":       m.User.DisplayName(),
		"created_at": m.Membership.CreatedAt.Format(time.RFC3339Nano),
	}
}

// Rows formats a member list.
func Rows(members []Member) []map[string]any {
	rows := make([]map[string]any, 0, len(members))
	for i := range members {
		rows = append(rows, Row(&members[i]))
	}
	return rows
}
