package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, password_hash, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser creates a user together with their empty watchlist. It returns
// ErrDuplicate when the username is taken.
func (db *DB) CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	u, err := scanUser(tx.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		username, email, passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO watchlists (user_id) VALUES ($1)`, u.ID); err != nil {
		return nil, fmt.Errorf("failed to create watchlist: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by id
func (db *DB) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

// FindOrCreateUser returns the user with username, creating it and its
// watchlist when missing. The email of an existing user is left untouched.
func (db *DB) FindOrCreateUser(ctx context.Context, username, email string) (*User, bool, error) {
	u, err := db.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		return u, false, nil
	}

	u, err = db.CreateUser(ctx, username, email, "")
	if errors.Is(err, ErrDuplicate) {
		// Lost a race with a concurrent first login.
		u, err = db.GetUserByUsername(ctx, username)
		return u, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// UpdatePassword replaces a user's password hash.
func (db *DB) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %d", userID)
	}
	return nil
}

// SetAPIKey stores key as the user's API key, replacing any previous one.
func (db *DB) SetAPIKey(ctx context.Context, userID int64, key string) (*APIKey, error) {
	var k APIKey
	err := db.pool.QueryRow(ctx,
		`INSERT INTO api_keys (user_id, api_key)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET api_key = EXCLUDED.api_key, created_at = NOW()
		 RETURNING id, user_id, api_key, created_at`,
		userID, key,
	).Scan(&k.ID, &k.UserID, &k.Key, &k.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to set api key: %w", err)
	}
	return &k, nil
}

// GetAPIKey returns the user's API key, or nil if none exists.
func (db *DB) GetAPIKey(ctx context.Context, userID int64) (*APIKey, error) {
	var k APIKey
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, api_key, created_at FROM api_keys WHERE user_id = $1`, userID,
	).Scan(&k.ID, &k.UserID, &k.Key, &k.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &k, nil
}

// GetUserByAPIKey resolves the owner of key.
func (db *DB) GetUserByAPIKey(ctx context.Context, key string) (*User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`SELECT u.id, u.username, u.email, u.password_hash, u.created_at
		 FROM users u JOIN api_keys k ON k.user_id = u.id
		 WHERE k.api_key = $1`, key))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by api key: %w", err)
	}
	return u, nil
}

// DeleteAPIKey removes the user's API key and reports whether one existed.
func (db *DB) DeleteAPIKey(ctx context.Context, userID int64) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM api_keys WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeToken records a token id as revoked until it expires.
func (db *DB) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		 ON CONFLICT (jti) DO NOTHING`,
		jti, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether jti was revoked.
func (db *DB) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return revoked, nil
}

// PurgeExpiredTokens deletes revocations of tokens that have expired anyway.
func (db *DB) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge revoked tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
