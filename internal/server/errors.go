package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/animelist/internal/db"
	"github.com/jonathan/animelist/internal/watchlist"
)

// ErrUsernameTaken indicates the username is already registered
type ErrUsernameTaken struct {
	Username string
}

func (e *ErrUsernameTaken) Error() string {
	return fmt.Sprintf("username already registered: %s", e.Username)
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid username or password"
}

// ErrNotFound indicates a missing resource
type ErrNotFound struct {
	Resource string
}

func (e *ErrNotFound) Error() string {
	return e.Resource + " not found"
}

// ErrPasswordMismatch indicates current password is incorrect
type ErrPasswordMismatch struct{}

func (e *ErrPasswordMismatch) Error() string {
	return "current password is incorrect"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrForbidden indicates the operation is disabled for this deployment
type ErrForbidden struct {
	Reason string
}

func (e *ErrForbidden) Error() string {
	return e.Reason
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		taken     *ErrUsernameTaken
		creds     *ErrInvalidCredentials
		mismatch  *ErrPasswordMismatch
		notFound  *ErrNotFound
		invalid   *ErrValidation
		forbidden *ErrForbidden
	)
	switch {
	case errors.As(err, &taken), errors.Is(err, db.ErrDuplicate):
		return http.StatusConflict
	case errors.As(err, &creds), errors.As(err, &mismatch):
		return http.StatusUnauthorized
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &notFound), errors.Is(err, db.ErrUnknownAnime):
		return http.StatusNotFound
	case errors.As(err, &invalid), errors.Is(err, watchlist.ErrEmptyExport):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
