// Package identity implements the identity provider: credential issuance,
// password sign-in, and session token verification. Consumers depend on
// the Provider interface so tests can substitute doubles.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/perrindl/taskhive/internal/apperr"
	"github.com/perrindl/taskhive/internal/domain"
	"github.com/perrindl/taskhive/internal/repository"
	"github.com/perrindl/taskhive/pkg/config"
	"github.com/perrindl/taskhive/pkg/crypto"
	jwtpkg "github.com/perrindl/taskhive/pkg/jwt"
)

// Provider is the identity collaborator consumed by the account and task
// services. Remove exists solely for registration compensation.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*domain.Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, string, error)
	CurrentUser(ctx context.Context, token string) (*domain.Identity, error)
	Remove(ctx context.Context, id string) error
}

// Service implements Provider on top of a credential store and HS256
// session tokens.
type Service struct {
	credentials repository.CredentialRepository
	logger      *slog.Logger
	cfg         config.APIConfig
}

// New constructs a Service.
func New(credentials repository.CredentialRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{credentials: credentials, logger: logger, cfg: cfg}
}

var _ Provider = Service{}

// SignUp creates a new identity and returns it with its provider-issued id.
func (s Service) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Auth("a valid email is required", nil)
	}
	minLength := s.cfg.MinPasswordLength
	if minLength <= 0 {
		minLength = 6
	}
	if len(password) < minLength {
		return nil, apperr.Auth("password is too weak", nil)
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal("could not hash password", err)
	}
	ident := &domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.credentials.CreateIdentity(ctx, ident); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Auth("email is already registered", err)
		}
		return nil, apperr.Auth("identity provider rejected the registration", err)
	}
	s.logger.Info("identity created", "identity_id", ident.ID)
	return ident, nil
}

// SignInWithPassword verifies credentials and issues a session token. Every
// failure collapses to the same error so callers cannot tell a wrong
// password from an unknown email.
func (s Service) SignInWithPassword(ctx context.Context, email, password string) (*domain.Identity, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	ident, err := s.credentials.GetIdentityByEmail(ctx, email)
	if err != nil {
		return nil, "", s.invalidCredentials(err)
	}
	if err := crypto.ComparePassword(ident.PasswordHash, password); err != nil {
		return nil, "", s.invalidCredentials(err)
	}
	token, err := jwtpkg.GenerateToken(ident.ID, s.cfg.JWTSecret, s.cfg.SessionTTL)
	if err != nil {
		return nil, "", apperr.Internal("could not issue session token", err)
	}
	s.logger.Info("identity signed in", "identity_id", ident.ID)
	return ident, token, nil
}

// CurrentUser resolves the identity behind a session token.
func (s Service) CurrentUser(ctx context.Context, token string) (*domain.Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, apperr.Unauthenticated("no user logged in")
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, "no user logged in", err)
	}
	ident, err := s.credentials.GetIdentityByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, "no user logged in", err)
	}
	return ident, nil
}

// Remove deletes an identity. Registration calls this to compensate when
// the user row write fails after the identity was already created.
func (s Service) Remove(ctx context.Context, id string) error {
	if err := s.credentials.DeleteIdentity(ctx, id); err != nil {
		return apperr.Auth("could not remove identity", err)
	}
	s.logger.Info("identity removed", "identity_id", id)
	return nil
}

func (s Service) invalidCredentials(cause error) error {
	s.logger.Debug("sign-in rejected", "error", cause)
	return apperr.Wrap(apperr.KindUnauthenticated, "wrong password or email", cause)
}
