// Package identity abstracts the identity provider behind the onboarding
// pipeline. The pipeline only ever sees the Provider interface; the local
// implementation keeps credentials in the users table.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jkimaru/registrar-api/internal/models"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
)

// Metadata carries the profile fields attached to a new identity.
type Metadata struct {
	FullName           string
	Role               models.UserRole
	MustChangePassword bool
}

// Provider is the external identity capability consumed by the pipeline.
type Provider interface {
	CreateIdentity(ctx context.Context, email, initialPassword string, meta Metadata) (string, error)
	DeleteIdentity(ctx context.Context, id string) error
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// LocalProvider implements Provider against the application's users table.
type LocalProvider struct {
	users  userStore
	logger *zap.Logger
}

// NewLocalProvider constructs a LocalProvider.
func NewLocalProvider(users userStore, logger *zap.Logger) *LocalProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalProvider{users: users, logger: logger}
}

// CreateIdentity registers a credential + profile pair and returns its id.
func (p *LocalProvider) CreateIdentity(ctx context.Context, email, initialPassword string, meta Metadata) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := p.users.FindByEmail(ctx, email); err == nil {
		return "", appErrors.Clone(appErrors.ErrAlreadyExists, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(initialPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:              email,
		FullName:           meta.FullName,
		Role:               meta.Role,
		Active:             true,
		MustChangePassword: meta.MustChangePassword,
		PasswordHash:       string(passwordHash),
	}
	if err := p.users.Create(ctx, user); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create identity")
	}
	return user.ID, nil
}

// DeleteIdentity removes an identity record.
func (p *LocalProvider) DeleteIdentity(ctx context.Context, id string) error {
	if err := p.users.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete identity")
	}
	return nil
}

// Authenticate verifies credentials and returns the matching user.
func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := p.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "account is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	return user, nil
}
