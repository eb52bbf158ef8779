package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jkimaru/registrar-api/internal/identity"
	"github.com/jkimaru/registrar-api/internal/models"
	"github.com/jkimaru/registrar-api/pkg/config"
	appErrors "github.com/jkimaru/registrar-api/pkg/errors"
)

type mockUserTable struct {
	byEmail map[string]*models.User
}

func (m *mockUserTable) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-" + user.Email
	m.byEmail[user.Email] = user
	return nil
}

func (m *mockUserTable) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserTable) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserTable) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	u, err := m.FindByID(ctx, id)
	if err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *mockUserTable) Delete(ctx context.Context, id string) error {
	for email, u := range m.byEmail {
		if u.ID == id {
			delete(m.byEmail, email)
			return nil
		}
	}
	return sql.ErrNoRows
}

func authFixture(t *testing.T) (*AuthService, *mockUserTable) {
	t.Helper()
	users := &mockUserTable{byEmail: map[string]*models.User{}}
	provider := identity.NewLocalProvider(users, zap.NewNop())
	_, err := provider.CreateIdentity(context.Background(), "registrar@school.ac", "correct horse", identity.Metadata{
		FullName: "Jane Registrar",
		Role:     models.RoleAdmin,
	})
	require.NoError(t, err)

	cfg := config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}
	return NewAuthService(provider, users, cfg, nil, zap.NewNop()), users
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, _ := authFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "Registrar@School.ac",
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "registrar@school.ac", claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "registrar@school.ac",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, users := authFixture(t)
	users.byEmail["registrar@school.ac"].Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "registrar@school.ac",
		Password: "correct horse",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestLoginRejectsMalformedPayload(t *testing.T) {
	svc, _ := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestValidateTokenRejectsForgedToken(t *testing.T) {
	svc, _ := authFixture(t)
	forger := NewAuthService(nil, nil, config.JWTConfig{Secret: "other-secret", Expiration: time.Hour}, nil, zap.NewNop())

	forged, err := forger.issueToken(&models.User{ID: "user-x", Email: "x@school.ac", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	issuer := NewAuthService(nil, nil, config.JWTConfig{Secret: "test-secret", Expiration: -time.Minute}, nil, zap.NewNop())
	expired, err := issuer.issueToken(&models.User{ID: "user-x", Email: "x@school.ac", Role: models.RoleAdmin})
	require.NoError(t, err)

	svc, _ := authFixture(t)
	_, err = svc.ValidateToken(expired)
	require.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	svc, users := authFixture(t)
	userID := users.byEmail["registrar@school.ac"].ID

	err := svc.ChangePassword(context.Background(), userID, "correct horse", "short")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	err = svc.ChangePassword(context.Background(), userID, "not the password", "long enough now")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))

	err = svc.ChangePassword(context.Background(), userID, "correct horse", "long enough now")
	require.NoError(t, err)
	hash := users.byEmail["registrar@school.ac"].PasswordHash
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("long enough now")))
}

func TestChangePasswordUnknownUser(t *testing.T) {
	svc, _ := authFixture(t)

	err := svc.ChangePassword(context.Background(), "nobody", "a", "long enough now")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
