package authtoken

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nacos-mini/nacos-go/internal/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db, nil))
	return db
}

func TestIssueAndValidate(t *testing.T) {
	db := newTestDB(t)
	s := New(db, time.Hour)
	ctx := context.Background()

	token, expiresAt, err := s.Issue(ctx, "nacos")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Greater(t, expiresAt, time.Now().Unix())

	username, valid, err := s.Validate(ctx, token)
	require.NoError(t, err)
	require.True(t, valid)
	require.Equal(t, "nacos", username)
}

func TestValidateExpiredToken(t *testing.T) {
	db := newTestDB(t)
	s := New(db, -time.Hour)
	ctx := context.Background()

	token, _, err := s.Issue(ctx, "nacos")
	require.NoError(t, err)

	_, valid, err := s.Validate(ctx, token)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestValidateUnknownToken(t *testing.T) {
	db := newTestDB(t)
	s := New(db, time.Hour)
	ctx := context.Background()

	_, valid, err := s.Validate(ctx, "nope")
	require.NoError(t, err)
	require.False(t, valid)
}

func TestRefreshIssuesNewTokenAndInvalidatesOld(t *testing.T) {
	db := newTestDB(t)
	s := New(db, time.Hour)
	ctx := context.Background()

	token, _, err := s.Issue(ctx, "nacos")
	require.NoError(t, err)

	newToken, _, err := s.Refresh(ctx, token)
	require.NoError(t, err)
	require.NotEqual(t, token, newToken)

	_, valid, err := s.Validate(ctx, token)
	require.NoError(t, err)
	require.False(t, valid)

	_, valid, err = s.Validate(ctx, newToken)
	require.NoError(t, err)
	require.True(t, valid)
}

func TestRefreshExpiredTokenFails(t *testing.T) {
	db := newTestDB(t)
	s := New(db, -time.Hour)
	ctx := context.Background()

	token, _, err := s.Issue(ctx, "nacos")
	require.NoError(t, err)

	_, _, err = s.Refresh(ctx, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCleanupExpired(t *testing.T) {
	db := newTestDB(t)
	s := New(db, -time.Hour)
	ctx := context.Background()

	_, err := s.Issue(ctx, "nacos")
	require.NoError(t, err)

	count, err := s.CleanupExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
