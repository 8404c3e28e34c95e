package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/perrindl/taskhive/internal/domain"
	"github.com/perrindl/taskhive/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.CredentialRepository = (*Repository)(nil)
	_ repository.UserRepository       = (*Repository)(nil)
	_ repository.TaskRepository       = (*Repository)(nil)
)

const pgUniqueViolation = "23505"

// CreateIdentity inserts a provider-side identity.
func (r *Repository) CreateIdentity(ctx context.Context, identity *domain.Identity) error {
	const query = `INSERT INTO identities (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, identity.ID, identity.Email, identity.PasswordHash, identity.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

// GetIdentityByEmail fetches an identity by email.
func (r *Repository) GetIdentityByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	const query = `SELECT id, email, password_hash, created_at FROM identities WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, email)
	var ident domain.Identity
	if err := row.Scan(&ident.ID, &ident.Email, &ident.PasswordHash, &ident.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &ident, nil
}

// GetIdentityByID fetches an identity by identifier.
func (r *Repository) GetIdentityByID(ctx context.Context, id string) (*domain.Identity, error) {
	const query = `SELECT id, email, password_hash, created_at FROM identities WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var ident domain.Identity
	if err := row.Scan(&ident.ID, &ident.Email, &ident.PasswordHash, &ident.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &ident, nil
}

// DeleteIdentity removes an identity. Used by registration compensation.
func (r *Repository) DeleteIdentity(ctx context.Context, id string) error {
	const query = `DELETE FROM identities WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateUser inserts an application user row.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, username, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.Username, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, username, password_hash, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
