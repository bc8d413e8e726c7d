package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/jonathan/animelist/internal/db"
	"github.com/jonathan/animelist/internal/logging"
	"github.com/jonathan/animelist/internal/server/middleware"
	"github.com/jonathan/animelist/internal/types"
)

const maxJSONBody = 1 << 20

// authenticator resolves callers from proxy headers, JWTs or API keys, in
// that order.
type authenticator struct {
	s *Server
}

func (s *Server) authenticator() middleware.Authenticator {
	return authenticator{s: s}
}

func (a authenticator) Authenticate(r *http.Request) (*middleware.Principal, error) {
	ctx := r.Context()
	cfg := a.s.cfg.Auth

	if cfg.HeaderAuthEnabled {
		if username := strings.TrimSpace(r.Header.Get(cfg.HeaderUsername)); username != "" {
			email := strings.TrimSpace(r.Header.Get(cfg.HeaderEmail))
			user, created, err := a.s.store.FindOrCreateUser(ctx, username, email)
			if err != nil {
				return nil, fmt.Errorf("failed to provision header user: %w", err)
			}
			if created {
				logging.Ctx(ctx).Info().Str("username", username).Msg("provisioned header-auth user")
			}
			return &middleware.Principal{UserID: user.ID, Username: user.Username, Method: middleware.MethodHeader}, nil
		}
	}

	if token := middleware.BearerToken(r); token != "" {
		return a.fromToken(ctx, token, middleware.MethodBearer)
	}
	if c, err := r.Cookie(cfg.CookieName); err == nil && c.Value != "" {
		return a.fromToken(ctx, c.Value, middleware.MethodCookie)
	}
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		user, err := a.s.store.GetUserByAPIKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, fmt.Errorf("%w: unknown API key", middleware.ErrUnauthenticated)
		}
		return &middleware.Principal{UserID: user.ID, Username: user.Username, Method: middleware.MethodAPIKey}, nil
	}
	return nil, middleware.ErrUnauthenticated
}

func (a authenticator) fromToken(ctx context.Context, token, method string) (*middleware.Principal, error) {
	claims, err := a.s.jwtService.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", middleware.ErrUnauthenticated, err)
	}
	revoked, err := a.s.store.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", middleware.ErrUnauthenticated)
	}
	return &middleware.Principal{
		UserID:    claims.UserID,
		Username:  claims.Username,
		Method:    method,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// decodeJSON reads and validates a request body.
func (s *Server) decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &ErrValidation{Message: "request body is empty"}
		}
		return &ErrValidation{Message: "invalid request body"}
	}
	return s.validate(v)
}

func (s *Server) validate(v any) error {
	if err := s.validator.Struct(v); err != nil {
		return extractValidationErrors(err)
	}
	return nil
}

// extractValidationErrors converts the first validator failure.
func extractValidationErrors(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return &ErrValidation{Field: ve[0].Field(), Message: ve[0].Tag()}
	}
	return &ErrValidation{Message: err.Error()}
}

func (s *Server) passwordAuthDisabled() error {
	if s.cfg.Auth.HeaderAuthEnabled {
		return &ErrForbidden{Reason: "password authentication is disabled; sign in through the proxy"}
	}
	return nil
}

// handleRegister creates an account and its watchlist.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := s.passwordAuthDisabled(); err != nil {
		s.fail(w, r, err)
		return
	}
	var req types.RegisterRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := s.userService.Register(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().Int64("user_id", user.ID).Msg("user registered")
	s.jsonResponse(w, http.StatusCreated, types.LoginResponse{Message: "User registered successfully", User: types.NewUser(user)})
}

// readLogin accepts a JSON body or an OAuth2-style form.
func (s *Server) readLogin(r *http.Request) (*types.LoginRequest, error) {
	var req types.LoginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		r.Body = http.MaxBytesReader(nil, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			return nil, &ErrValidation{Message: "invalid form body"}
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
		return &req, s.validate(&req)
	}
	return &req, s.decodeJSON(r, &req)
}

// handleLogin verifies a password and starts a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := s.passwordAuthDisabled(); err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := s.readLogin(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := s.userService.Login(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.startSession(w, r, user, "User logged in successfully")
}

// handleHeaderLogin exchanges proxy identity headers for a session cookie.
func (s *Server) handleHeaderLogin(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Auth.HeaderAuthEnabled {
		s.fail(w, r, &ErrForbidden{Reason: "header authentication is disabled"})
		return
	}
	p := middleware.PrincipalFrom(r.Context())
	if p == nil || p.Method != middleware.MethodHeader {
		s.errorResponse(w, http.StatusUnauthorized, "missing proxy identity headers")
		return
	}
	user, err := s.store.GetUser(r.Context(), p.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user == nil {
		s.fail(w, r, &ErrNotFound{Resource: "user"})
		return
	}
	s.startSession(w, r, user, "User logged in via header-auth")
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user *db.User, message string) {
	token, claims, err := s.jwtService.GenerateToken(user.ID, user.Username)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	s.jsonResponse(w, http.StatusOK, types.LoginResponse{Message: message, User: types.NewUser(user), Token: token})
}

// handleLogout revokes the presented token and clears the cookie. Expired
// tokens still log out successfully.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		if c, err := r.Cookie(s.cfg.Auth.CookieName); err == nil {
			token = c.Value
		}
	}

	if token != "" {
		claims, err := s.jwtService.ParseExpired(token)
		if err != nil {
			s.errorResponse(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if exp := claims.ExpiresAt; exp != nil && exp.After(time.Now()) {
			if err := s.store.RevokeToken(r.Context(), claims.ID, exp.Time); err != nil {
				s.fail(w, r, err)
				return
			}
		}
	} else if middleware.PrincipalFrom(r.Context()) == nil {
		s.errorResponse(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
	})
	resp := types.LogoutResponse{Message: "User logged out successfully"}
	if s.cfg.Auth.HeaderAuthEnabled {
		resp.LogoutURL = s.cfg.Auth.HeaderLogoutURL
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleMe returns the caller.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user == nil {
		s.fail(w, r, &ErrNotFound{Resource: "user"})
		return
	}
	s.jsonResponse(w, http.StatusOK, types.NewUser(user))
}

// handleUpdatePassword changes the caller's password.
func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	if err := s.passwordAuthDisabled(); err != nil {
		s.fail(w, r, err)
		return
	}
	var req types.UpdatePasswordRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	userID, _ := middleware.GetUserID(r)
	if err := s.userService.UpdatePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.MessageResponse{Message: "Password updated successfully"})
}

// handleCreateAPIKey issues a new API key, replacing any previous one.
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	key, err := s.store.SetAPIKey(r.Context(), userID, strings.ReplaceAll(uuid.NewString(), "-", ""))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.APIKeyResponse{Message: "API key created successfully", APIKey: key.Key})
}

func (s *Server) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	key, err := s.store.GetAPIKey(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if key == nil {
		s.fail(w, r, &ErrNotFound{Resource: "API key"})
		return
	}
	s.jsonResponse(w, http.StatusOK, types.APIKeyResponse{Message: "API key retrieved successfully", APIKey: key.Key})
}

func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	deleted, err := s.store.DeleteAPIKey(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !deleted {
		s.fail(w, r, &ErrNotFound{Resource: "API key"})
		return
	}
	s.jsonResponse(w, http.StatusOK, types.MessageResponse{Message: "API key deleted successfully"})
}
