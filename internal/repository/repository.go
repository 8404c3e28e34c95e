package repository

import (
	"context"

	"github.com/perrindl/taskhive/internal/domain"
)

// CredentialRepository persists provider-side identities. DeleteIdentity
// exists so registration can compensate when the user row write fails.
type CredentialRepository interface {
	CreateIdentity(ctx context.Context, identity *domain.Identity) error
	GetIdentityByEmail(ctx context.Context, email string) (*domain.Identity, error)
	GetIdentityByID(ctx context.Context, id string) (*domain.Identity, error)
	DeleteIdentity(ctx context.Context, id string) error
}

// UserRepository persists application user rows.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// TaskRepository persists tasks. CreateTask assigns the id when the task
// carries none. UpdateTaskStatus and DeleteTask are single conditional
// statements guarded by the owner predicate; both return ErrNotFound when
// no row matches, so a concurrent removal between the existence check and
// the mutation surfaces cleanly instead of succeeding against nothing.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	ListTasksByOwner(ctx context.Context, ownerID string) ([]domain.Task, error)
	GetTaskByID(ctx context.Context, id string) (*domain.Task, error)
	UpdateTaskStatus(ctx context.Context, id, ownerID string, status bool) (*domain.Task, error)
	DeleteTask(ctx context.Context, id, ownerID string) error
}
