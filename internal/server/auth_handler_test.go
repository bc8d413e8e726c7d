package server

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/animelist/internal/config"
	"github.com/jonathan/animelist/internal/types"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/register", map[string]string{"username": "spike", "password": "swordfish"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[types.LoginResponse](t, rec)
	assert.Equal(t, "spike", resp.User.Username)
	assert.NotContains(t, rec.Body.String(), "password")

	u, _ := env.store.GetUserByUsername(t.Context(), "spike")
	require.NotNil(t, u)
	assert.NotNil(t, env.store.watchlists[u.ID], "registration creates the watchlist")

	rec = env.do(http.MethodPost, "/auth/register", map[string]string{"username": "spike", "password": "swordfish"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodPost, "/auth/register", map[string]string{"username": "jet", "password": "short"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/auth/register", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.user("faye")

	rec := env.do(http.MethodPost, "/auth/login", map[string]string{"username": "faye", "password": "password123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[types.LoginResponse](t, rec)
	assert.Equal(t, "User logged in successfully", resp.Message)
	assert.NotEmpty(t, resp.Token)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "access_token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, resp.Token, cookies[0].Value)

	rec = env.do(http.MethodPost, "/auth/login", map[string]string{"username": "faye", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(http.MethodPost, "/auth/login", map[string]string{"username": "nobody", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid username or password"}`, rec.Body.String())
}

func TestLogin_Form(t *testing.T) {
	env := newTestEnv(t)
	env.user("faye")

	formType := header{"Content-Type": "application/x-www-form-urlencoded"}
	form := url.Values{"username": {"faye"}, "password": {"password123"}}
	rec := env.do(http.MethodPost, "/auth/login", form.Encode(), formType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[types.LoginResponse](t, rec).Token)

	rec = env.do(http.MethodPost, "/auth/login", url.Values{"username": {"faye"}}.Encode(), formType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthSources(t *testing.T) {
	env := newTestEnv(t)
	id, bearer := env.user("ed")
	token := strings.TrimPrefix(bearer["Authorization"], "Bearer ")

	rec := env.do(http.MethodGet, "/auth/me", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode[types.User](t, rec).ID)

	rec = env.do(http.MethodGet, "/auth/me", nil, header{"Cookie": "access_token=" + token})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/auth/me", nil, header{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPut, "/auth/api-key", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	key := decode[types.APIKeyResponse](t, rec).APIKey
	assert.Len(t, key, 32)

	rec = env.do(http.MethodGet, "/auth/me", nil, header{"X-API-Key": key})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/auth/me", nil, header{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, auth := env.user("ein")

	rec := env.do(http.MethodGet, "/auth/api-key", nil, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPut, "/auth/api-key", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	created := decode[types.APIKeyResponse](t, rec)

	rec = env.do(http.MethodGet, "/auth/api-key", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.APIKey, decode[types.APIKeyResponse](t, rec).APIKey)

	rec = env.do(http.MethodDelete, "/auth/api-key", nil, auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodDelete, "/auth/api-key", nil, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestEnv(t)
	_, auth := env.user("vicious")

	rec := env.do(http.MethodPost, "/auth/logout", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"User logged out successfully"}`, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)

	rec = env.do(http.MethodGet, "/auth/me", nil, auth)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_ExpiredTokenSucceeds(t *testing.T) {
	env := newTestEnv(t)
	u, _, err := env.srv.userService.EnsureUser(t.Context(), "julia", "", "password123")
	require.NoError(t, err)

	env.srv.jwtService.now = func() time.Time { return time.Now().Add(-24 * time.Hour) }
	token, _, err := env.srv.jwtService.GenerateToken(u.ID, u.Username)
	require.NoError(t, err)
	env.srv.jwtService.now = time.Now

	rec := env.do(http.MethodPost, "/auth/logout", nil, header{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.store.revoked)

	rec = env.do(http.MethodPost, "/auth/logout", nil, header{"Authorization": "Bearer not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	_, auth := env.user("gren")

	rec := env.do(http.MethodPut, "/auth/password", map[string]string{"current_password": "nope", "new_password": "newpassword"}, auth)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPut, "/auth/password", map[string]string{"current_password": "password123", "new_password": "newpassword"}, auth)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/auth/login", map[string]string{"username": "gren", "password": "newpassword"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func headerMode(c *config.Config) {
	c.Auth.HeaderAuthEnabled = true
	c.Auth.HeaderLogoutURL = "https://sso.example.test/end-session/"
}

func TestHeaderAuth(t *testing.T) {
	env := newTestEnv(t, headerMode)
	proxy := header{"X-Authentik-Username": "proxyuser", "X-Authentik-Email": "proxyuser@example.test"}

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodPost, "/auth/header-login", nil, proxy)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "User logged in via header-auth", decode[types.LoginResponse](t, rec).Message)
		require.Len(t, rec.Result().Cookies(), 1)
	}
	assert.Len(t, env.store.users, 1, "header user is provisioned once")

	rec := env.do(http.MethodGet, "/auth/me", nil, proxy)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "proxyuser@example.test", decode[types.User](t, rec).Email)

	rec = env.do(http.MethodPost, "/auth/header-login", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/auth/logout", nil, proxy)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://sso.example.test/end-session/", decode[types.LogoutResponse](t, rec).LogoutURL)
}

func TestHeaderAuth_DisablesPasswordEndpoints(t *testing.T) {
	env := newTestEnv(t, headerMode)

	rec := env.do(http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "admin"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(http.MethodPost, "/auth/register", map[string]string{"username": "newuser", "password": "password"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHeaderLogin_DisabledWithoutHeaderMode(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/auth/header-login", nil, header{"X-Authentik-Username": "proxyuser"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, env.store.users)
}
