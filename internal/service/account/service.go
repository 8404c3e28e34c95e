// Package account orchestrates registration, login, and caller lookup
// across the identity provider and the user record store.
package account

import (
	"context"
	"time"

	"log/slog"

	"github.com/perrindl/taskhive/internal/apperr"
	"github.com/perrindl/taskhive/internal/domain"
	"github.com/perrindl/taskhive/internal/repository"
	"github.com/perrindl/taskhive/internal/service/identity"
	"github.com/perrindl/taskhive/pkg/crypto"
)

// Service handles account workflows.
type Service struct {
	provider identity.Provider
	users    repository.UserRepository
	logger   *slog.Logger
}

// New constructs a Service.
func New(provider identity.Provider, users repository.UserRepository, logger *slog.Logger) Service {
	return Service{provider: provider, users: users, logger: logger}
}

// Registration is the success payload of Register. It deliberately carries
// no credential material.
type Registration struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Session is the success payload of Login.
type Session struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// Profile is the caller record returned by CurrentUser.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Register creates a provider identity, then writes the application user
// row keyed by the provider-issued id. If the row write fails the identity
// is removed again so no orphaned account remains.
func (s Service) Register(ctx context.Context, email, username, password string) (*Registration, error) {
	if email == "" || username == "" || password == "" {
		return nil, apperr.Validation("please fill in all fields")
	}
	ident, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal("could not hash password", err)
	}
	user := &domain.User{
		ID:           ident.ID,
		Email:        ident.Email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if removeErr := s.provider.Remove(ctx, ident.ID); removeErr != nil {
			s.logger.Error("registration compensation failed", "identity_id", ident.ID, "error", removeErr)
		}
		return nil, apperr.Store("error when adding user to database", err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return &Registration{Email: user.Email, Username: user.Username}, nil
}

// Login verifies credentials through the provider. Any failure collapses
// to one generic outcome so callers cannot probe which field was wrong.
func (s Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("please fill in all fields")
	}
	ident, token, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.logger.Debug("login rejected", "error", err)
		return nil, apperr.Unauthenticated("wrong password or email")
	}
	s.logger.Info("user logged in", "user_id", ident.ID)
	return &Session{Email: ident.Email, Token: token}, nil
}

// CurrentUser resolves the caller's session and loads the matching user
// row. An identity without a user row is unusable and reported the same
// way as a missing session.
func (s Service) CurrentUser(ctx context.Context, token string) (*Profile, error) {
	ident, err := s.provider.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, ident.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, "no user logged in", err)
	}
	return &Profile{ID: user.ID, Email: user.Email, Username: user.Username}, nil
}
