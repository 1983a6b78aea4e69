package project

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

// CreateInput encapsulates project creation attributes. Zero values fall back
// to defaults: status active, progress 0, investment/revenue 0, team size 1.
type CreateInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Progress    int     `json:"progress"`
	Investment  float64 `json:"investment"`
	Revenue     float64 `json:"revenue"`
	TeamSize    int     `json:"team_size"`
}

// UpdateInput is a partial patch; nil fields are left unchanged.
// ExpectedVersion 0 skips the compare-and-swap check.
type UpdateInput struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Status          *string  `json:"status"`
	Progress        *int     `json:"progress"`
	Investment      *float64 `json:"investment"`
	Revenue         *float64 `json:"revenue"`
	TeamSize        *int     `json:"team_size"`
	ExpectedVersion int64    `json:"expected_version"`
}

// Service orchestrates project lifecycle and visibility.
type Service struct {
	projects repository.ProjectRepository
	members  repository.MembershipRepository
	access   access.Resolver
	feed     feed.Publisher
	logger   *slog.Logger
}

// New returns a project service.
func New(projects repository.ProjectRepository, members repository.MembershipRepository, resolver access.Resolver, publisher feed.Publisher, logger *slog.Logger) Service {
	return Service{projects: projects, members: members, access: resolver, feed: publisher, logger: logger}
}

var (
	errNameRequired    = fmt.Errorf("%w: project name is required", repository.ErrInvalidArgument)
	errInvalidStatus   = fmt.Errorf("%w: unknown project status", repository.ErrInvalidArgument)
	errInvalidProgress = fmt.Errorf("%w: progress must be between 0 and 100", repository.ErrInvalidArgument)
	errNegativeMoney   = fmt.Errorf("%w: investment and revenue must be non-negative", repository.ErrInvalidArgument)
	errInvalidTeamSize = fmt.Errorf("%w: team size must be positive", repository.ErrInvalidArgument)
)

// Create registers a new project owned by ownerID.
func (s Service) Create(ctx context.Context, ownerID string, input CreateInput) (*domain.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errNameRequired
	}
	status := input.Status
	if status == "" {
		status = domain.StatusActive
	}
	teamSize := input.TeamSize
	if teamSize == 0 {
		teamSize = 1
	}
	project := &domain.Project{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: input.Description,
		Status:      status,
		Progress:    input.Progress,
		Investment:  input.Investment,
		Revenue:     input.Revenue,
		TeamSize:    teamSize,
	}
	if err := validate(project); err != nil {
		return nil, err
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", project.ID, "owner_id", ownerID)
	s.feed.Publish(feed.NewEvent(domain.TableProjects, domain.OpInsert, project.ID, nil, Row(project)))
	return project, nil
}

// Get returns a project visible to the actor.
func (s Service) Get(ctx context.Context, projectID, actorID string) (*domain.Project, error) {
	return s.access.Require(ctx, projectID, actorID, access.LevelView)
}

// List returns every project the actor owns or is a member of.
func (s Service) List(ctx context.Context, actorID string) ([]domain.Project, error) {
	return s.projects.ListProjectsVisibleTo(ctx, actorID)
}

// Update applies a partial patch on behalf of actorID, which must hold at
// least edit access. Profit is never written; it is derived from the patched
// investment and revenue on read.
func (s Service) Update(ctx context.Context, projectID string, input UpdateInput, actorID string) (*domain.Project, error) {
	project, err := s.access.Require(ctx, projectID, actorID, access.LevelEdit)
	if err != nil {
		return nil, err
	}
	before := *project

	updated := *project
	if input.Name != nil {
		updated.Name = strings.TrimSpace(*input.Name)
		if updated.Name == "" {
			return nil, errNameRequired
		}
	}
	if input.Description != nil {
		updated.Description = *input.Description
	}
	if input.Status != nil {
		updated.Status = *input.Status
	}
	if input.Progress != nil {
		updated.Progress = *input.Progress
	}
	if input.Investment != nil {
		updated.Investment = *input.Investment
	}
	if input.Revenue != nil {
		updated.Revenue = *input.Revenue
	}
	if input.TeamSize != nil {
		updated.TeamSize = *input.TeamSize
	}
	if err := validate(&updated); err != nil {
		return nil, err
	}
	if err := s.projects.UpdateProject(ctx, &updated, input.ExpectedVersion); err != nil {
		return nil, err
	}
	s.logger.Info("project updated", "project_id", projectID, "actor_id", actorID, "version", updated.Version)
	s.feed.Publish(feed.NewEvent(domain.TableProjects, domain.OpUpdate, projectID, Row(&before), Row(&updated)))
	return &updated, nil
}

// Delete removes a project and cascades to its tasks, observations,
// connections and memberships. Only the owner may delete.
func (s Service) Delete(ctx context.Context, projectID, actorID string) error {
	project, err := s.access.Require(ctx, projectID, actorID, access.LevelView)
	if err != nil {
		return err
	}
	if project.OwnerID != actorID {
		return access.ErrPermissionDenied
	}
	// The cascade removes the membership rows the feed filter would consult,
	// so capture who may see the delete event before touching storage.
	audience := []string{project.OwnerID}
	memberships, err := s.members.ListMembershipsByProject(ctx, projectID)
	if err != nil {
		s.logger.Warn("membership snapshot failed, delete event limited to owner", "project_id", projectID, "error", err)
	} else {
		for _, membership := range memberships {
			audience = append(audience, membership.UserID)
		}
	}
	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", projectID, "owner_id", actorID)
	event := feed.NewEvent(domain.TableProjects, domain.OpDelete, projectID, Row(project), nil)
	event.Audience = audience
	s.feed.Publish(event)
	return nil
}

func validate(p *domain.Project) error {
	if !domain.ValidStatus(p.Status) {
		return errInvalidStatus
	}
	if p.Progress < 0 || p.Progress > 100 {
		return errInvalidProgress
	}
	if p.Investment < 0 || p.Revenue < 0 {
		return errNegativeMoney
	}
	if p.TeamSize < 1 {
		return errInvalidTeamSize
	}
	return nil
}

// Row formats a project for API responses and feed snapshots, including the
// derived profit field.
func Row(p *domain.Project) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"owner_id":    p.OwnerID,
		"name":        p.Name,
		"description": p.Description,
		"status":      p.Status,
		"progress":    p.Progress,
		"investment":  p.Investment,
		"revenue":     p.Revenue,
		"profit":      p.Profit(),
		"team_size":   p.TeamSize,
		"version":     p.Version,
		"created_at":  p.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  p.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// Rows formats a project list.
func Rows(projects []domain.Project) []map[string]any {
	rows := make([]map[string]any, 0, len(projects))
	for i := range projects {
		rows = append(rows, Row(&projects[i]))
	}
	return rows
}
