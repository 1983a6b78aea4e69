package connection

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

func TestCreateRejectsSelfLoop(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Create(context.Background(), env.ownerID, CreateInput{
		SourceProjectID: env.source.ID,
		TargetProjectID: env.source.ID,
		Type:            domain.ConnectionRelated,
	})
	if !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for self-loop, got %v", err)
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Create(context.Background(), env.ownerID, CreateInput{
		SourceProjectID: env.source.ID,
		TargetProjectID: env.target.ID,
		Type:            "friendship",
	})
	if !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown type, got %v", err)
	}
}

func TestCreateHidesInvisibleEndpoints(t *testing.T) {
	env := newTestEnv()
	strangerID := uuid.NewString()

	_, err := env.svc.Create(context.Background(), strangerID, CreateInput{
		SourceProjectID: env.source.ID,
		TargetProjectID: env.target.ID,
		Type:            domain.ConnectionDependency,
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for invisible endpoint, got %v", err)
	}
}

func TestCreateDeduplicatesEdges(t *testing.T) {
	env := newTestEnv()
	input := CreateInput{
		SourceProjectID: env.source.ID,
		TargetProjectID: env.target.ID,
		Type:            domain.ConnectionIntegration,
		Description:     "first",
	}
	first, err := env.svc.Create(context.Background(), env.ownerID, input)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	input.Description = "second"
	second, err := env.svc.Create(context.Background(), env.ownerID, input)
	if err != nil {
		t.Fatalf("repeat Create returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing edge %s returned, got %s", first.ID, second.ID)
	}
	if second.Description != "first" {
		t.Fatalf("expected original description preserved, got %q", second.Description)
	}
	if len(env.store.connections) != 1 {
		t.Fatalf("expected one stored edge, got %d", len(env.store.connections))
	}

	// Same endpoints under a different type is a distinct edge.
	input.Type = domain.ConnectionRelated
	third, err := env.svc.Create(context.Background(), env.ownerID, input)
	if err != nil {
		t.Fatalf("Create with new type returned error: %v", err)
	}
	if third.ID == first.ID {
		t.Fatal("expected a distinct edge for a different type")
	}
}

func TestDeleteRequiresEditOnSource(t *testing.T) {
	env := newTestEnv()
	created, err := env.svc.Create(context.Background(), env.ownerID, CreateInput{
		SourceProjectID: env.source.ID,
		TargetProjectID: env.target.ID,
		Type:            domain.ConnectionPrerequisite,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	viewerID := uuid.NewString()
	env.store.grant(env.source.ID, viewerID, domain.RoleView)
	env.store.grant(env.target.ID, viewerID, domain.RoleView)
	if err := env.svc.Delete(context.Background(), created.ID, viewerID); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for viewer, got %v", err)
	}

	if err := env.svc.Delete(context.Background(), created.ID, env.ownerID); err != nil {
		t.Fatalf("Delete as owner returned error: %v", err)
	}
	if err := env.svc.Delete(context.Background(), created.ID, env.ownerID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

type testEnv struct {
	svc     Service
	store   *memStore
	ownerID string
	source  domain.Project
	target  domain.Project
}

func newTestEnv() *testEnv {
	ownerID := uuid.NewString()
	source := domain.Project{ID: uuid.NewString(), OwnerID: ownerID, Name: "Source"}
	target := domain.Project{ID: uuid.NewString(), OwnerID: ownerID, Name: "Target"}
	store := newMemStore(source, target)
	resolver := access.NewResolver(store, store)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		svc:     New(store, resolver, log),
		store:   store,
		ownerID: ownerID,
		source:  source,
		target:  target,
	}
}

type memStore struct {
	projects    map[string]domain.Project
	connections map[string]domain.Connection
	memberships map[string]map[string]domain.Membership
}

func newMemStore(projects ...domain.Project) *memStore {
	m := &memStore{
		projects:    make(map[string]domain.Project),
		connections: make(map[string]domain.Connection),
		memberships: make(map[string]map[string]domain.Membership),
	}
	for _, project := range projects {
		m.projects[project.ID] = project
	}
	return m
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

func (m *memStore) CreateConnection(_ context.Context, connection *domain.Connection) error {
	for _, existing := range m.connections {
		if existing.SourceProjectID == connection.SourceProjectID &&
			existing.TargetProjectID == connection.TargetProjectID &&
			existing.Type == connection.Type {
			*connection = existing
			return nil
		}
	}
	m.connections[connection.ID] = *connection
	return nil
}

func (m *memStore) GetConnectionByID(_ context.Context, connectionID string) (*domain.Connection, error) {
	connection, ok := m.connections[connectionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &connection, nil
}

func (m *memStore) ListConnectionsVisibleTo(context.Context, string) ([]domain.Connection, error) {
	return nil, nil
}

func (m *memStore) DeleteConnection(_ context.Context, connectionID string) error {
	if _, ok := m.connections[connectionID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.connections, connectionID)
	return nil
}

func (m *memStore) CreateProject(context.Context, *domain.Project) error { return nil }

func (m *memStore) GetProjectByID(_ context.Context, projectID string) (*domain.Project, error) {
	project, ok := m.projects[projectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &project, nil
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
