package task

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

// CreateInput holds new-task attributes. Priority defaults to medium.
type CreateInput struct {
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Assignee    string `json:"assignee"`
}

// UpdateInput is a partial patch; nil fields are left unchanged.
type UpdateInput struct {
	Description     *string `json:"description"`
	Completed       *bool   `json:"completed"`
	Priority        *string `json:"priority"`
	Assignee        *string `json:"assignee"`
	ExpectedVersion int64   `json:"expected_version"`
}

// Service manages tasks under a project.
type Service struct {
	tasks  repository.TaskRepository
	access access.Resolver
	feed   feed.Publisher
	logger *slog.Logger
}

// New returns a task service.
func New(tasks repository.TaskRepository, resolver access.Resolver, publisher feed.Publisher, logger *slog.Logger) Service {
	return Service{tasks: tasks, access: resolver, feed: publisher, logger: logger}
}

var (
	errDescriptionRequired = fmt.Errorf("%w: task description is required", repository.ErrInvalidArgument)
	errInvalidPriority     = fmt.Errorf("%w: unknown task priority", repository.ErrInvalidArgument)
)

// Create adds a task to the project. The actor needs edit access.
func (s Service) Create(ctx context.Context, projectID, actorID string, input CreateInput) (*domain.Task, error) {
	if _, err := s.access.Require(ctx, projectID, actorID, access.LevelEdit); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, errDescriptionRequired
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, errInvalidPriority
	}
	task := &domain.Task{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Description: description,
		Priority:    priority,
		Assignee:    strings.TrimSpace(input.Assignee),
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("task created", "task_id", task.ID, "project_id", projectID, "actor_id", actorID)
	s.feed.Publish(feed.NewEvent(domain.TableTasks, domain.OpInsert, projectID, nil, Row(task)))
	return task, nil
}

// List returns the project's tasks for an actor with view access.
func (s Service) List(ctx context.Context, projectID, actorID string) ([]domain.Task, error) {
	if _, err := s.access.Require(ctx, projectID, actorID, access.LevelView); err != nil {
		return nil, err
	}
	return s.tasks.ListTasksByProject(ctx, projectID)
}

// Update applies a partial patch. The actor needs edit access on the parent
// project.
func (s Service) Update(ctx context.Context, taskID, actorID string, input UpdateInput) (*domain.Task, error) {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Require(ctx, task.ProjectID, actorID, access.LevelEdit); err != nil {
		return nil, err
	}
	before := *task

	updated := *task
	if input.Description != nil {
		updated.Description = strings.TrimSpace(*input.Description)
		if updated.Description == "" {
			return nil, errDescriptionRequired
		}
	}
	if input.Completed != nil {
		updated.Completed = *input.Completed
	}
	if input.Priority != nil {
		if !domain.ValidPriority(*input.Priority) {
			return nil, errInvalidPriority
		}
		updated.Priority = *input.Priority
	}
	if input.Assignee != nil {
		updated.Assignee = strings.TrimSpace(*input.Assignee)
	}
	if err := s.tasks.UpdateTask(ctx, &updated, input.ExpectedVersion); err != nil {
		return nil, err
	}
	s.logger.Info("task updated", "task_id", taskID, "project_id", task.ProjectID, "actor_id", actorID)
	s.feed.Publish(feed.NewEvent(domain.TableTasks, domain.OpUpdate, task.ProjectID, Row(&before), Row(&updated)))
	return &updated, nil
}

// Toggle sets the completed flag. Setting the current value is a no-op that
// still succeeds and leaves every other field, including version, unchanged.
func (s Service) Toggle(ctx context.Context, taskID, actorID string, completed bool) (*domain.Task, error) {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.Require(ctx, task.ProjectID, actorID, access.LevelEdit); err != nil {
		return nil, err
	}
	if task.Completed == completed {
		return task, nil
	}
	before := *task
	updated := *task
	updated.Completed = completed
	if err := s.tasks.UpdateTask(ctx, &updated, 0); err != nil {
		return nil, err
	}
	s.feed.Publish(feed.NewEvent(domain.TableTasks, domain.OpUpdate, task.ProjectID, Row(&before), Row(&updated)))
	return &updated, nil
}

// Delete removes a task. The actor needs edit access on the parent project.
func (s Service) Delete(ctx context.Context, taskID, actorID string) error {
	task, err := s.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return err
	}
	if _, err := s.access.Require(ctx, task.ProjectID, actorID, access.LevelEdit); err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	s.logger.Info("task deleted", "task_id", taskID, "project_id", task.ProjectID, "actor_id", actorID)
	s.feed.Publish(feed.NewEvent(domain.TableTasks, domain.OpDelete, task.ProjectID, Row(task), nil))
	return nil
}

// Row formats a task for API responses and feed snapshots.
func Row(t *domain.Task) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"project_id":  t.ProjectID,
		"description": t.Description,
		"completed":   t.Completed,
		"priority":    t.Priority,
		"assignee":    t.Assignee,
		"version":     t.Version,
		"created_at":  t.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  t.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// Rows formats a task list.
func Rows(tasks []domain.Task) []map[string]any {
	rows := make([]map[string]any, 0, len(tasks))
	for i := range tasks {
		rows = append(rows, Row(&tasks[i]))
	}
	return rows
}
