package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/animelist/internal/config"
	"github.com/jonathan/animelist/internal/db"
	"github.com/jonathan/animelist/internal/types"
)

// UserStore is the account storage used by UserService.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*db.User, error)
	GetUser(ctx context.Context, id int64) (*db.User, error)
	GetUserByUsername(ctx context.Context, username string) (*db.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// UserService provides business logic for user authentication operations
type UserService struct {
	db             UserStore
	passwordConfig *config.PasswordConfig
}

// NewUserService creates a new UserService with the given dependencies
func NewUserService(store UserStore, passwordConfig *config.PasswordConfig) *UserService {
	return &UserService{db: store, passwordConfig: passwordConfig}
}

// Register creates a user and its empty watchlist.
func (s *UserService) Register(ctx context.Context, req *types.RegisterRequest) (*db.User, error) {
	passwordHash, err := s.passwordConfig.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.db.CreateUser(ctx, req.Username, req.Email, passwordHash)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, &ErrUsernameTaken{Username: req.Username}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login authenticates a user and returns user data
func (s *UserService) Login(ctx context.Context, req *types.LoginRequest) (*db.User, error) {
	user, err := s.db.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	// Same error for unknown users, wrong passwords and header-only accounts.
	if user == nil || user.PasswordHash == "" {
		return nil, &ErrInvalidCredentials{}
	}
	if !s.passwordConfig.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}
	return user, nil
}

// UpdatePassword updates a user's password
func (s *UserService) UpdatePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.db.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return &ErrNotFound{Resource: "user"}
	}

	if !s.passwordConfig.VerifyPassword(currentPassword, user.PasswordHash) {
		return &ErrPasswordMismatch{}
	}

	hash, err := s.passwordConfig.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.db.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// EnsureUser creates the account if the username is free and returns it.
// It is used to bootstrap the admin user at startup.
func (s *UserService) EnsureUser(ctx context.Context, username, email, password string) (*db.User, bool, error) {
	existing, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	user, err := s.Register(ctx, &types.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
