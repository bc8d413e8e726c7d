package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/animelist/internal/config"
	"github.com/jonathan/animelist/internal/db"
	"github.com/jonathan/animelist/internal/types"
)

func newTestUserService(t *testing.T) (*UserService, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewUserService(store, &config.PasswordConfig{BcryptCost: 4}), store
}

func TestUserService_Register(t *testing.T) {
	svc, store := newTestUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &types.RegisterRequest{Username: "spike", Password: "swordfish", Email: "spike@bebop.test"})
	require.NoError(t, err)
	assert.Equal(t, "spike@bebop.test", user.Email)
	assert.NotEqual(t, "swordfish", store.users[user.ID].PasswordHash)

	_, err = svc.Register(ctx, &types.RegisterRequest{Username: "spike", Password: "swordfish"})
	var taken *ErrUsernameTaken
	require.ErrorAs(t, err, &taken)
	assert.Equal(t, "spike", taken.Username)
}

func TestUserService_Login(t *testing.T) {
	svc, store := newTestUserService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, &types.RegisterRequest{Username: "faye", Password: "valentine"})
	require.NoError(t, err)
	_, _, err = store.FindOrCreateUser(ctx, "proxyuser", "")
	require.NoError(t, err)

	user, err := svc.Login(ctx, &types.LoginRequest{Username: "faye", Password: "valentine"})
	require.NoError(t, err)
	assert.Equal(t, "faye", user.Username)

	tests := []struct {
		name string
		req  types.LoginRequest
	}{
		{"wrong password", types.LoginRequest{Username: "faye", Password: "nope"}},
		{"unknown user", types.LoginRequest{Username: "ghost", Password: "valentine"}},
		{"header-only account", types.LoginRequest{Username: "proxyuser", Password: ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, &tt.req)
			var creds *ErrInvalidCredentials
			assert.ErrorAs(t, err, &creds)
		})
	}
}

func TestUserService_UpdatePassword(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, &types.RegisterRequest{Username: "jet", Password: "bonsai123"})
	require.NoError(t, err)

	var mismatch *ErrPasswordMismatch
	assert.ErrorAs(t, svc.UpdatePassword(ctx, user.ID, "wrong", "newpassword"), &mismatch)

	require.NoError(t, svc.UpdatePassword(ctx, user.ID, "bonsai123", "newpassword"))
	_, err = svc.Login(ctx, &types.LoginRequest{Username: "jet", Password: "newpassword"})
	assert.NoError(t, err)

	var notFound *ErrNotFound
	assert.ErrorAs(t, svc.UpdatePassword(ctx, 999, "x", "y"), &notFound)
}

func TestUserService_EnsureUser(t *testing.T) {
	svc, store := newTestUserService(t)
	ctx := context.Background()

	user, created, err := svc.EnsureUser(ctx, "admin", "", "admin")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := svc.EnsureUser(ctx, "admin", "", "different")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)
	assert.Len(t, store.users, 1)
}

type failingUserStore struct {
	*memStore
	err error
}

func (f failingUserStore) CreateUser(context.Context, string, string, string) (*db.User, error) {
	return nil, f.err
}

func TestUserService_RegisterStoreError(t *testing.T) {
	boom := errors.New("connection reset")
	svc := NewUserService(failingUserStore{memStore: newMemStore(), err: boom}, &config.PasswordConfig{BcryptCost: 4})

	_, err := svc.Register(context.Background(), &types.RegisterRequest{Username: "ed", Password: "radical-ed"})
	assert.ErrorIs(t, err, boom)
}
