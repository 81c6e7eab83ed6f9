// Package authtoken validates and mints the bearer tokens accepted on
// protected console routes.
package authtoken

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Store validates and mints tokens, backed by the tokens table.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

func New(db *sql.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl}
}

// Validate reports whether token exists and is unexpired, and the
// username it was minted for.
func (s *Store) Validate(ctx context.Context, token string) (username string, valid bool, err error) {
	var expiresAt int64
	err = s.db.QueryRowContext(ctx, `SELECT username, expires_at FROM tokens WHERE token = ?`, token).Scan(&username, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("validate token: %w", err)
	}
	if time.Now().Unix() >= expiresAt {
		return "", false, nil
	}
	return username, true, nil
}

// Issue mints a fresh token for username with the store's configured TTL.
func (s *Store) Issue(ctx context.Context, username string) (token string, expiresAt int64, err error) {
	token, err = randomToken()
	if err != nil {
		return "", 0, err
	}
	now := time.Now()
	expiresAt = now.Add(s.ttl).Unix()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tokens (token, username, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, username, now.Unix(), expiresAt)
	if err != nil {
		return "", 0, fmt.Errorf("issue token: %w", err)
	}
	return token, expiresAt, nil
}

// Refresh invalidates an unexpired token and issues a new one for the
// same username. Refreshing an expired or unknown token fails.
func (s *Store) Refresh(ctx context.Context, oldToken string) (token string, expiresAt int64, err error) {
	username, valid, err := s.Validate(ctx, oldToken)
	if err != nil {
		return "", 0, err
	}
	if !valid {
		return "", 0, ErrInvalidToken
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("begin refresh: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, oldToken); err != nil {
		return "", 0, fmt.Errorf("invalidate old token: %w", err)
	}

	newToken, err := randomToken()
	if err != nil {
		return "", 0, err
	}
	now := time.Now()
	expiresAt = now.Add(s.ttl).Unix()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tokens (token, username, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		newToken, username, now.Unix(), expiresAt); err != nil {
		return "", 0, fmt.Errorf("insert refreshed token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("commit refresh: %w", err)
	}
	return newToken, expiresAt, nil
}

// CleanupExpired deletes every token whose expires_at has passed. Called
// lazily on process start and may be scheduled periodically.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired tokens: %w", err)
	}
	count, _ := res.RowsAffected()
	return count, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
