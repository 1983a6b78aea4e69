package project

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

func TestCreateAppliesDefaults(t *testing.T) {
	store := newMemStore()
	svc, pub := newTestService(store)
	ownerID := uuid.NewString()

	created, err := svc.Create(context.Background(), ownerID, CreateInput{Name: "  Atlas  "})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.Name != "Atlas" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}
	if created.Status != domain.StatusActive {
		t.Fatalf("expected default status active, got %q", created.Status)
	}
	if created.TeamSize != 1 {
		t.Fatalf("expected default team size 1, got %d", created.TeamSize)
	}
	if created.OwnerID != ownerID {
		t.Fatalf("expected owner %s, got %s", ownerID, created.OwnerID)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected exactly one feed event, got %d", len(pub.events))
	}
	event := pub.events[0]
	if event.Table != domain.TableProjects || event.Op != domain.OpInsert {
		t.Fatalf("unexpected event %s/%s", event.Table, event.Op)
	}
	if event.ProjectID != created.ID {
		t.Fatalf("event project %s does not match created %s", event.ProjectID, created.ID)
	}
}

func TestCreateRejectsEmptyName(t *testing.T) {
	store := newMemStore()
	svc, pub := newTestService(store)

	_, err := svc.Create(context.Background(), uuid.NewString(), CreateInput{Name: "   "})
	if !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no events on validation failure, got %d", len(pub.events))
	}
}

func TestCreateRejectsBadValues(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ownerID := uuid.NewString()

	cases := []CreateInput{
		{Name: "x", Status: "archived"},
		{Name: "x", Progress: 101},
		{Name: "x", Investment: -1},
		{Name: "x", TeamSize: -3},
	}
	for i, input := range cases {
		if _, err := svc.Create(context.Background(), ownerID, input); !errors.Is(err, repository.ErrInvalidArgument) {
			t.Fatalf("case %d: expected ErrInvalidArgument, got %v", i, err)
		}
	}
}

func TestUpdateRequiresEditAccess(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ownerID := uuid.NewString()
	viewerID := uuid.NewString()

	created, err := svc.Create(context.Background(), ownerID, CreateInput{Name: "Atlas"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	store.grant(created.ID, viewerID, domain.RoleView)

	name := "Renamed"
	_, err = svc.Update(context.Background(), created.ID, UpdateInput{Name: &name}, viewerID)
	if !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for viewer, got %v", err)
	}

	store.grant(created.ID, viewerID, domain.RoleEdit)
	updated, err := svc.Update(context.Background(), created.ID, UpdateInput{Name: &name}, viewerID)
	if err != nil {
		t.Fatalf("Update as editor returned error: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("expected renamed project, got %q", updated.Name)
	}
}

func TestUpdateStrangerSeesNotFound(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)

	created, err := svc.Create(context.Background(), uuid.NewString(), CreateInput{Name: "Atlas"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	name := "Sneaky"
	_, err = svc.Update(context.Background(), created.ID, UpdateInput{Name: &name}, uuid.NewString())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stranger, got %v", err)
	}
}

func TestUpdateVersionConflict(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ownerID := uuid.NewString()

	created, err := svc.Create(context.Background(), ownerID, CreateInput{Name: "Atlas"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	progress := 40
	if _, err := svc.Update(context.Background(), created.ID, UpdateInput{Progress: &progress, ExpectedVersion: created.Version}, ownerID); err != nil {
		t.Fatalf("first update returned error: %v", err)
	}

	stale := 60
	_, err = svc.Update(context.Background(), created.ID, UpdateInput{Progress: &stale, ExpectedVersion: created.Version}, ownerID)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict on stale version, got %v", err)
	}

	// Zero skips the check entirely.
	if _, err := svc.Update(context.Background(), created.ID, UpdateInput{Progress: &stale}, ownerID); err != nil {
		t.Fatalf("last-write-wins update returned error: %v", err)
	}
}

func TestRowDerivesProfit(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ownerID := uuid.NewString()

	created, err := svc.Create(context.Background(), ownerID, CreateInput{Name: "Atlas", Investment: 1000, Revenue: 2500})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	row := Row(created)
	if row["profit"] != 1500.0 {
		t.Fatalf("expected profit 1500, got %v", row["profit"])
	}

	revenue := 500.0
	updated, err := svc.Update(context.Background(), created.ID, UpdateInput{Revenue: &revenue}, ownerID)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if Row(updated)["profit"] != -500.0 {
		t.Fatalf("expected profit -500 after update, got %v", Row(updated)["profit"])
	}
}

func TestDeleteOwnerOnly(t *testing.T) {
	store := newMemStore()
	svc, pub := newTestService(store)
	ownerID := uuid.NewString()
	adminID := uuid.NewString()

	created, err := svc.Create(context.Background(), ownerID, CreateInput{Name: "Atlas"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	store.grant(created.ID, adminID, domain.RoleAdmin)

	if err := svc.Delete(context.Background(), created.ID, adminID); !errors.Is(err, access.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for admin member, got %v", err)
	}

	if err := svc.Delete(context.Background(), created.ID, ownerID); err != nil {
		t.Fatalf("Delete as owner returned error: %v", err)
	}
	if _, err := store.GetProjectByID(context.Background(), created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected project gone, got %v", err)
	}

	last := pub.events[len(pub.events)-1]
	if last.Op != domain.OpDelete || last.Table != domain.TableProjects {
		t.Fatalf("expected projects delete event, got %s/%s", last.Table, last.Op)
	}
	if len(last.Before) == 0 {
		t.Fatal("expected delete event to carry the prior row")
	}
}

func TestDeleteEventCarriesPriorAudience(t *testing.T) {
	store := newMemStore()
	svc, pub := newTestService(store)
	ownerID := uuid.NewString()
	memberID := uuid.NewString()

	created, err := svc.Create(context.Background(), ownerID, CreateInput{Name: "Atlas"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	store.grant(created.ID, memberID, domain.RoleView)

	if err := svc.Delete(context.Background(), created.ID, ownerID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	// The cascade wipes the membership rows, so the event must name its
	// recipients itself or no global subscriber would ever see the delete.
	last := pub.events[len(pub.events)-1]
	if last.Op != domain.OpDelete {
		t.Fatalf("expected delete event, got %s", last.Op)
	}
	seen := map[string]bool{}
	for _, id := range last.Audience {
		seen[id] = true
	}
	if !seen[ownerID] || !seen[memberID] {
		t.Fatalf("expected audience to include owner and member, got %v", last.Audience)
	}
	if _, err := store.GetMembership(context.Background(), created.ID, memberID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected membership removed by cascade, got %v", err)
	}
}

func TestListReturnsOwnedAndShared(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	aliceID := uuid.NewString()
	bobID := uuid.NewString()

	mine, err := svc.Create(context.Background(), aliceID, CreateInput{Name: "Mine"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	shared, err := svc.Create(context.Background(), bobID, CreateInput{Name: "Shared"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.Create(context.Background(), bobID, CreateInput{Name: "Hidden"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	store.grant(shared.ID, aliceID, domain.RoleView)

	projects, err := svc.List(context.Background(), aliceID)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 visible projects, got %d", len(projects))
	}
	seen := map[string]bool{}
	for _, p := range projects {
		seen[p.ID] = true
	}
	if !seen[mine.ID] || !seen[shared.ID] {
		t.Fatalf("expected %s and %s, got %v", mine.ID, shared.ID, seen)
	}
}

func newTestService(store *memStore) (Service, *capturePublisher) {
	resolver := access.NewResolver(store, store)
	pub := &capturePublisher{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, store, resolver, pub, log), pub
}

type capturePublisher struct {
	events []domain.ChangeEvent
}

func (p *capturePublisher) Publish(event domain.ChangeEvent) {
	p.events = append(p.events, event)
}

// memStore implements the project and membership repositories with
// compare-and-swap semantics matching the SQL layer.
type memStore struct {
	projects    map[string]domain.Project
	memberships map[string]map[string]domain.Membership
}

func newMemStore() *memStore {
	return &memStore{
		projects:    make(map[string]domain.Project),
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

func (m *memStore) CreateProject(_ context.Context, project *domain.Project) error {
	project.Version = 1
	m.projects[project.ID] = *project
	return nil
}

func (m *memStore) GetProjectByID(_ context.Context, projectID string) (*domain.Project, error) {
	project, ok := m.projects[projectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &project, nil
}

func (m *memStore) ListProjectsVisibleTo(_ context.Context, userID string) ([]domain.Project, error) {
	var visible []domain.Project
	for _, project := range m.projects {
		if project.OwnerID == userID {
			visible = append(visible, project)
			continue
		}
		if _, ok := m.memberships[project.ID][userID]; ok {
			visible = append(visible, project)
		}
	}
	return visible, nil
}

func (m *memStore) UpdateProject(_ context.Context, project *domain.Project, expectedVersion int64) error {
	stored, ok := m.projects[project.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if expectedVersion != 0 && stored.Version != expectedVersion {
		return repository.ErrConflict
	}
	project.Version = stored.Version + 1
	m.projects[project.ID] = *project
	return nil
}

func (m *memStore) DeleteProject(_ context.Context, projectID string) error {
	if _, ok := m.projects[projectID]; !ok {
		return repository.ErrNotFound
	}
	delete(m.projects, projectID)
	delete(m.memberships, projectID)
	return nil
}

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

func (m *memStore) ListMembershipsByProject(_ context.Context, projectID string) ([]domain.Membership, error) {
	var memberships []domain.Membership
	for _, membership := range m.memberships[projectID] {
		memberships = append(memberships, membership)
	}
	return memberships, nil
}

func (m *memStore) DeleteMembership(_ context.Context, projectID, userID string) error {
	delete(m.memberships[projectID], userID)
	return nil
}
