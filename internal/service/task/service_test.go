package task

import (
	"context"
	"errors"
	"io"
	"testing"

	"log/slog"

	"github.com/google/uuid"

	"github.com/syncmymind/api/internal/access"
	"github.com/syncmymind/api/internal/domain"
	"github.com/syncmymind/api/internal/repository"
)

func TestCreateDefaultsPriorityToMedium(t *testing.T) {
	env := newTestEnv()
	created, err := env.svc.Create(context.Background(), env.project.ID, env.ownerID, CreateInput{Description: "ship it"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Priority != domain.PriorityMedium {
		t.Fatalf("expected medium priority, got %q", created.Priority)
	}
	if created.Completed {
		t.Fatal("expected new task to be incomplete")
	}
	if len(env.pub.events) != 1 {
		t.Fatalf("expected one insert event, got %d", len(env.pub.events))
	}
	if env.pub.events[0].Table != domain.TableTasks || env.pub.events[0].Op != domain.OpInsert {
		t.Fatalf("unexpected event %s/%s", env.pub.events[0].Table, env.pub.events[0].Op)
	}
}

func TestCreateRejectsEmptyDescription(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Create(context.Background(), env.project.ID, env.ownerID, CreateInput{Description: "  "})
	if !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCreateRequiresEditAccess(t *testing.T) {
	env := newTestEnv()
	viewerID := uuid.NewString()
	env.store.grant(env.project.ID, viewerID, domain.RoleView)

	_, err := env.svc.Create(context.Background(), env.project.ID, viewerID, CreateInput{Description: "nope"})
	if !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for viewer, got %v", err)
	}

	_, err = env.svc.Create(context.Background(), env.project.ID, uuid.NewString(), CreateInput{Description: "nope"})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stranger, got %v", err)
	}
}

func TestToggleIsIdempotent(t *testing.T) {
	env := newTestEnv()
	created, err := env.svc.Create(context.Background(), env.project.ID, env.ownerID, CreateInput{Description: "ship it"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	toggled, err := env.svc.Toggle(context.Background(), created.ID, env.ownerID, true)
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if !toggled.Completed {
		t.Fatal("expected task completed")
	}
	versionAfterToggle := toggled.Version
	eventsAfterToggle := len(env.pub.events)

	again, err := env.svc.Toggle(context.Background(), created.ID, env.ownerID, true)
	if err != nil {
		t.Fatalf("repeat Toggle returned error: %v", err)
	}
	if again.Version != versionAfterToggle {
		t.Fatalf("expected version unchanged on no-op toggle, got %d -> %d", versionAfterToggle, again.Version)
	}
	if len(env.pub.events) != eventsAfterToggle {
		t.Fatalf("expected no event on no-op toggle, got %d new", len(env.pub.events)-eventsAfterToggle)
	}
	if env.store.updateCalls != 1 {
		t.Fatalf("expected exactly one store update, got %d", env.store.updateCalls)
	}
}

func TestUpdateVersionConflict(t *testing.T) {
	env := newTestEnv()
	created, err := env.svc.Create(context.Background(), env.project.ID, env.ownerID, CreateInput{Description: "ship it"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	priority := domain.PriorityHigh
	if _, err := env.svc.Update(context.Background(), created.ID, env.ownerID, UpdateInput{Priority: &priority, ExpectedVersion: created.Version}); err != nil {
		t.Fatalf("first update returned error: %v", err)
	}

	low := domain.PriorityLow
	_, err = env.svc.Update(context.Background(), created.ID, env.ownerID, UpdateInput{Priority: &low, ExpectedVersion: created.Version})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict on stale version, got %v", err)
	}
}

func TestDeletePublishesPriorRow(t *testing.T) {
	env := newTestEnv()
	created, err := env.svc.Create(context.Background(), env.project.ID, env.ownerID, CreateInput{Description: "ship it"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := env.svc.Delete(context.Background(), created.ID, env.ownerID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	last := env.pub.events[len(env.pub.events)-1]
	if last.Op != domain.OpDelete {
		t.Fatalf("expected delete event, got %s", last.Op)
	}
	if len(last.Before) == 0 || len(last.After) != 0 {
		t.Fatal("expected delete event to carry only the prior row")
	}
	if _, err := env.svc.List(context.Background(), env.project.ID, env.ownerID); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
}

type testEnv struct {
	svc     Service
	store   *memStore
	pub     *capturePublisher
	ownerID string
	project domain.Project
}

func newTestEnv() *testEnv {
	ownerID := uuid.NewString()
	project := domain.Project{ID: uuid.NewString(), OwnerID: ownerID, Name: "Atlas", Version: 1}
	store := newMemStore(project)
	pub := &capturePublisher{}
	resolver := access.NewResolver(store, store)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		svc:     New(store, resolver, pub, log),
		store:   store,
		pub:     pub,
		ownerID: ownerID,
		project: project,
	}
}

type capturePublisher struct {
	events []domain.ChangeEvent
}

func (p *capturePublisher) Publish(event domain.ChangeEvent) {
	p.events = append(p.events, event)
}

type memStore struct {
	project     domain.Project
	tasks       map[string]domain.Task
	memberships map[string]map[string]domain.Membership
	updateCalls int
}

func newMemStore(project domain.Project) *memStore {
	return &memStore{
		project:     project,
		tasks:       make(map[string]domain.Task),
		memberships: make(map[string]map[string]domain.Membership),
	}
}

func (m *memStore) grant(projectID, userID, role string) {
	if m.memberships[projectID] == nil {
		m.memberships[projectID] = make(map[string]domain.Membership)
	}
	m.memberships[projectID][userID] = domain.Membership{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
	}
}

func (m *memStore) CreateTask(_ context.Context, task *domain.Task) error {
	task.Version = 1
	m.tasks[task.ID] = *task
	return nil
}

func (m *memStore) GetTaskByID(_ context.Context, taskID string) (*domain.Task, error) {
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &task, nil
}

func (m *memStore) ListTasksByProject(_ context.Context, projectID string) ([]domain.Task, error) {
	var tasks []domain.Task
	for _, task := range m.tasks {
		if task.ProjectID == projectID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (m *memStore) UpdateTask(_ context.Context, task *domain.Task, expectedVersion int64) error {
	m.updateCalls++
	stored, ok := m.tasks[task.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if expectedVersion != 0 && stored.Version != expectedVersion {
		return repository.ErrConflict
	}
	task.Version = stored.Version + 1
	m.tasks[task.ID] = *task
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, taskID string) error {
	if _, ok := m.tasks[taskID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

func (m *memStore) CreateProject(context.Context, *domain.Project) error { return nil }

func (m *memStore) GetProjectByID(_ context.Context, projectID string) (*domain.Project, error) {
	if m.project.ID != projectID {
		return nil, repository.ErrNotFound
	}
	projectCopy := m.project
	return &projectCopy, nil
}

func (m *memStore) ListProjectsVisibleTo(context.Context, string) ([]domain.Project, error) {
	return nil, nil
}

func (m *memStore) UpdateProject(context.Context, *domain.Project, int64) error { return nil }

func (m *memStore) DeleteProject(context.Context, string) error { return nil }

func (m *memStore) UpsertMembership(_ context.Context, membership *domain.Membership) error {
	m.grant(membership.ProjectID, membership.UserID, membership.Role)
	return nil
}

func (m *memStore) GetMembership(_ context.Context, projectID, userID string) (*domain.Membership, error) {
	membership, ok := m.memberships[projectID][userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &membership, nil
}

func (m *memStore) ListMembershipsByProject(context.Context, string) ([]domain.Membership, error) {
	return nil, nil
}

func (m *memStore) DeleteMembership(context.Context, string, string) error { return nil }
