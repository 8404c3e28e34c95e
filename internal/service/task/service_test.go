package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/perrindl/taskhive/internal/apperr"
	"github.com/perrindl/taskhive/internal/domain"
	"github.com/perrindl/taskhive/internal/repository"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type providerStub struct {
	identities map[string]*domain.Identity
}

func (p providerStub) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	return nil, apperr.Auth("not implemented", nil)
}

func (p providerStub) SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, string, error) {
	return nil, "", apperr.Unauthenticated("wrong password or email")
}

func (p providerStub) CurrentUser(ctx context.Context, token string) (*domain.Identity, error) {
	if ident, ok := p.identities[token]; ok {
		return ident, nil
	}
	return nil, apperr.Unauthenticated("no user logged in")
}

func (p providerStub) Remove(ctx context.Context, id string) error { return nil }

// taskRepoStub mirrors the owner-guarded semantics of the Postgres
// implementation and counts store accesses so tests can assert validation
// runs before any I/O.
type taskRepoStub struct {
	mu    sync.Mutex
	seq   int
	tasks map[string]domain.Task
	calls int
}

func newTaskRepoStub() *taskRepoStub {
	return &taskRepoStub{tasks: make(map[string]domain.Task)}
}

func (s *taskRepoStub) CreateTask(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if task.ID == "" {
		s.seq++
		task.ID = fmt.Sprintf("task-%d", s.seq)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	s.tasks[task.ID] = *task
	return nil
}

func (s *taskRepoStub) ListTasksByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := make([]domain.Task, 0)
	for _, task := range s.tasks {
		if task.OwnerID == ownerID {
			out = append(out, task)
		}
	}
	return out, nil
}

func (s *taskRepoStub) GetTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if task, ok := s.tasks[id]; ok {
		return &task, nil
	}
	return nil, repository.ErrNotFound
}

func (s *taskRepoStub) UpdateTaskStatus(ctx context.Context, id, ownerID string, status bool) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	task.Status = status
	s.tasks[id] = task
	return &task, nil
}

func (s *taskRepoStub) DeleteTask(ctx context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *taskRepoStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func boolPtr(b bool) *bool { return &b }

func newTestService(repo *taskRepoStub) Service {
	provider := providerStub{identities: map[string]*domain.Identity{
		"token-alice": {ID: "user-alice", Email: "alice@example.com"},
		"token-bob":   {ID: "user-bob", Email: "bob@example.com"},
	}}
	return New(provider, repo, nil, newLogger())
}

func TestCreateSetsPendingStatusAndOwner(t *testing.T) {
	repo := newTaskRepoStub()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), "token-alice", CreateInput{
		Title:       "write report",
		Description: "quarterly numbers",
		Deadline:    "2025-01-01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status {
		t.Fatalf("new task must be pending")
	}
	if created.OwnerID != "user-alice" {
		t.Fatalf("owner must be the caller, got %q", created.OwnerID)
	}
	if created.ID == "" {
		t.Fatalf("expected store-assigned id")
	}
	if created.Deadline.IsZero() {
		t.Fatalf("expected parsed deadline")
	}
}

func TestCreateAcceptsRFC3339Deadline(t *testing.T) {
	repo := newTaskRepoStub()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), "token-alice", CreateInput{
		Title:       "call supplier",
		Description: "renew contract",
		Deadline:    "2025-06-30T17:00:00Z",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, time.June, 30, 17, 0, 0, 0, time.UTC)
	if !created.Deadline.Equal(want) {
		t.Fatalf("unexpected deadline: %v", created.Deadline)
	}
}

func TestCreateValidatesBeforeStoreAccess(t *testing.T) {
	cases := []struct {
		name  string
		input CreateInput
	}{
		{"missing title", CreateInput{Description: "d", Deadline: "2025-01-01"}},
		{"missing description", CreateInput{Title: "t", Deadline: "2025-01-01"}},
		{"missing deadline", CreateInput{Title: "t", Description: "d"}},
		{"unparseable deadline", CreateInput{Title: "t", Description: "d", Deadline: "tomorrow"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newTaskRepoStub()
			svc := newTestService(repo)
			_, err := svc.Create(context.Background(), "token-alice", tc.input)
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if repo.callCount() != 0 {
				t.Fatalf("store must not be touched on validation failure")
			}
		})
	}
}

func TestOperationsRequireCaller(t *testing.T) {
	repo := newTaskRepoStub()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.List(ctx, ""); apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("list: expected unauthenticated, got %v", err)
	}
	if _, err := svc.Create(ctx, "bad-token", CreateInput{Title: "t", Description: "d", Deadline: "2025-01-01"}); apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("create: expected unauthenticated, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "", "task-1", boolPtr(true)); apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("update: expected unauthenticated, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "", "task-1", nil); apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("update without status: caller resolution must come first, got %v", err)
	}
	if _, err := svc.Delete(ctx, "", "task-1"); apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("delete: expected unauthenticated, got %v", err)
	}
	if repo.callCount() != 0 {
		t.Fatalf("store must not be touched without a caller")
	}
}

func TestUpdateStatusRoundTrip(t *testing.T) {
	repo := newTaskRepoStub()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, "token-alice", CreateInput{Title: "t", Description: "d", Deadline: "2025-01-01"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, "token-alice", created.ID, boolPtr(true))
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if !updated.Status {
		t.Fatalf("expected completed after first toggle")
	}

	reverted, err := svc.UpdateStatus(ctx, "token-alice", created.ID, boolPtr(false))
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if reverted.Status {
		t.Fatalf("expected pending after round trip")
	}
}

func TestUpdateStatusUnknownIDNotFound(t *testing.T) {
	svc := newTestService(newTaskRepoStub())
	_, err := svc.UpdateStatus(context.Background(), "token-alice", "missing", boolPtr(true))
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStatusForeignTaskForbidden(t *testing.T) {
	repo := newTaskRepoStub()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, "token-alice", CreateInput{Title: "t", Description: "d", Deadline: "2025-01-01"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.UpdateStatus(ctx, "token-bob", created.ID, boolPtr(true))
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	current, err := repo.GetTaskByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("task must still exist: %v", err)
	}
	if current.Status {
		t.Fatalf("status must be unchanged after forbidden attempt")
	}
}

func TestUpdateStatusRequiresIDAndStatus(t *testing.T) {
	repo := newTaskRepoStub()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.UpdateStatus(ctx, "token-alice", "  ", boolPtr(true)); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("blank id: expected validation error, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "token-alice", "task-1", nil); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("absent status: expected validation error, got %v", err)
	}
	if repo.callCount() != 0 {
		t.Fatalf("store must not be touched on validation failure")
	}
}

func TestDeleteUnknownIDNotFound(t *testing.T) {
	svc := newTestService(newTaskRepoStub())
	_, err := svc.Delete(context.Background(), "token-alice", "missing")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteForeignTaskForbiddenRowRemains(t *testing.T) {
	repo := newTaskRepoStub()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, "token-alice", CreateInput{Title: "t", Description: "d", Deadline: "2025-01-01"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Delete(ctx, "token-bob", created.ID)
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := repo.GetTaskByID(ctx, created.ID); err != nil {
		t.Fatalf("row must remain after forbidden delete: %v", err)
	}
}

func TestDeleteThenMutateNotFound(t *testing.T) {
	repo := newTaskRepoStub()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, "token-alice", CreateInput{Title: "t", Description: "d", Deadline: "2025-01-01"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deletedID, err := svc.Delete(ctx, "token-alice", created.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deletedID != created.ID {
		t.Fatalf("expected deleted id %q, got %q", created.ID, deletedID)
	}

	if _, err := svc.UpdateStatus(ctx, "token-alice", created.ID, boolPtr(true)); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := svc.Delete(ctx, "token-alice", created.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestListReturnsOnlyCallerTasks(t *testing.T) {
	repo := newTaskRepoStub()
	svc := newTestService(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, "token-alice", CreateInput{Title: "a", Description: "d", Deadline: "2025-01-01"}); err != nil {
			t.Fatalf("create alice: %v", err)
		}
	}
	if _, err := svc.Create(ctx, "token-bob", CreateInput{Title: "b", Description: "d", Deadline: "2025-01-01"}); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	tasks, err := svc.List(ctx, "token-alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.OwnerID != "user-alice" {
			t.Fatalf("foreign task leaked into listing: %+v", task)
		}
	}
}
