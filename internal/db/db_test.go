package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "Action", escapeLike("Action"))
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `slice\_of\_life`, escapeLike("slice_of_life"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}

func TestNonNil(t *testing.T) {
	assert.NotNil(t, nonNil(nil))
	assert.Empty(t, nonNil(nil))
	assert.Equal(t, []string{"x"}, nonNil([]string{"x"}))
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505"}
	assert.True(t, isUniqueViolation(dup))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", dup)))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("other")))
	assert.True(t, isForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isForeignKeyViolation(dup))
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"users", "api_keys", "revoked_tokens", "anime", "watchlists", "watchlist_entries"} {
		assert.True(t, strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
}
