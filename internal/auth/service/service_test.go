package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/lokera/lokera/internal/auth/domain"
	"github.com/lokera/lokera/internal/auth/repository"
	"github.com/lokera/lokera/internal/clock"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, clk clock.Clock) authdomain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repo, sessionRepo := repository.New(dbConn)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return New(zap.NewNop(), config.Config{SessionTTL: 7 * 24 * time.Hour}, repo, sessionRepo, node, clk)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc := newTestService(t, nil)

	user, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:       "bob@example.com",
		Password:    "strong-password",
		DisplayName: "Bob",
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "Bob@Example.com",
		Password: "strong-password",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.RawToken)
	assert.Equal(t, user.ID, result.User.ID)

	session, err := svc.Authenticate(context.Background(), result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
}

func TestAuthenticateExpiredSession(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "carol@example.com",
		Password: "strong-password",
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "carol@example.com",
		Password: "strong-password",
	})
	require.NoError(t, err)

	fake.Advance(8 * 24 * time.Hour)

	_, err = svc.Authenticate(context.Background(), result.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionExpired)
}

func TestLogoutRevokesSession(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "dave@example.com",
		Password: "strong-password",
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "dave@example.com",
		Password: "strong-password",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), result.RawToken))

	_, err = svc.Authenticate(context.Background(), result.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionRevoked)
}

func TestSetActiveOrg(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:        "root@example.com",
		Password:     "strong-password",
		IsSuperAdmin: true,
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), authdomain.LoginRequest{
		Email:    "root@example.com",
		Password: "strong-password",
	})
	require.NoError(t, err)

	orgID := int64(42)
	require.NoError(t, svc.SetActiveOrg(context.Background(), result.SessionID, &orgID))

	session, err := svc.Authenticate(context.Background(), result.RawToken)
	require.NoError(t, err)
	require.NotNil(t, session.ActiveOrgID)
	assert.Equal(t, orgID, *session.ActiveOrgID)

	require.NoError(t, svc.SetActiveOrg(context.Background(), result.SessionID, nil))
	session, err = svc.Authenticate(context.Background(), result.RawToken)
	require.NoError(t, err)
	assert.Nil(t, session.ActiveOrgID)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "eve@example.com",
		Password: "strong-password",
	})
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), authdomain.CreateUserRequest{
		Email:    "eve@example.com",
		Password: "another-password",
	})
	assert.ErrorIs(t, err, authdomain.ErrUserExists)
}
