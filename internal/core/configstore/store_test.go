package configstore

import (
	"context"
	"database/sql"
	"testing"

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

func TestPublishGetRoundTrip(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 64)
	ctx := context.Background()

	tr := Triple{DataID: "app.yaml", Group: "DEFAULT_GROUP", Tenant: ""}
	require.NoError(t, s.Publish(ctx, tr, PublishRequest{Content: "a: 1", Type: "yaml"}))

	got, err := s.Get(ctx, tr)
	require.NoError(t, err)
	require.Equal(t, "a: 1", got.Content)
	require.Equal(t, "public", got.Tenant)
	require.NotEmpty(t, got.MD5)
}

func TestPublishCacheInvalidatedOnUpdate(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 64)
	ctx := context.Background()
	tr := Triple{DataID: "app.yaml", Group: "DEFAULT_GROUP"}

	require.NoError(t, s.Publish(ctx, tr, PublishRequest{Content: "v1"}))
	first, err := s.Get(ctx, tr)
	require.NoError(t, err)
	require.Equal(t, "v1", first.Content)

	require.NoError(t, s.Publish(ctx, tr, PublishRequest{Content: "v2"}))
	second, err := s.Get(ctx, tr)
	require.NoError(t, err)
	require.Equal(t, "v2", second.Content)
}

func TestDeleteIsIdempotentAndAppendsHistory(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 64)
	ctx := context.Background()
	tr := Triple{DataID: "x.json", Group: "GRP"}

	require.NoError(t, s.Publish(ctx, tr, PublishRequest{Content: "{}"}))
	require.NoError(t, s.Delete(ctx, tr, "tester", "127.0.0.1"))

	_, err := s.Get(ctx, tr)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, tr, "tester", "127.0.0.1"))

	hist, total, err := s.HistoryList(ctx, tr, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "D", string(hist[0].OpType))
	require.Equal(t, "I", string(hist[1].OpType))
}

func TestRollbackUpdateRestoresContent(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 64)
	ctx := context.Background()
	tr := Triple{DataID: "app.yaml", Group: "DEFAULT_GROUP"}

	require.NoError(t, s.Publish(ctx, tr, PublishRequest{Content: "v0"}))
	require.NoError(t, s.Publish(ctx, tr, PublishRequest{Content: "v1", Desc: "first"}))
	hist, _, err := s.HistoryList(ctx, tr, 1, 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	firstNid := hist[0].ID

	require.NoError(t, s.Publish(ctx, tr, PublishRequest{Content: "v2", Desc: "second"}))

	require.NoError(t, s.Rollback(ctx, tr, firstNid, "tester", "127.0.0.1"))

	got, err := s.Get(ctx, tr)
	require.NoError(t, err)
	require.Equal(t, "v1", got.Content)
	require.Equal(t, "first", got.Desc)
}

func TestRollbackInsertDeletesConfig(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 64)
	ctx := context.Background()
	tr := Triple{DataID: "only.json", Group: "GRP"}

	require.NoError(t, s.Publish(ctx, tr, PublishRequest{Content: "{}"}))
	hist, _, err := s.HistoryList(ctx, tr, 1, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)

	require.NoError(t, s.Rollback(ctx, tr, hist[0].ID, "tester", "127.0.0.1"))
	_, err = s.Get(ctx, tr)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSearchAccurateAndBlur(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 64)
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, Triple{DataID: "order-service.yaml", Group: "DEFAULT_GROUP"}, PublishRequest{Content: "a"}))
	require.NoError(t, s.Publish(ctx, Triple{DataID: "user-service.yaml", Group: "DEFAULT_GROUP"}, PublishRequest{Content: "b"}))

	exact, total, err := s.Search(ctx, SearchFilter{DataID: "order-service.yaml", Mode: SearchAccurate, PageNo: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, exact, 1)

	blur, total, err := s.Search(ctx, SearchFilter{DataID: "service", Mode: SearchBlur, PageNo: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, blur, 2)
}

func TestBetaGetAndDelete(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 64)
	ctx := context.Background()
	tr := Triple{DataID: "beta.yaml", Group: "DEFAULT_GROUP"}

	_, err := s.BetaGet(ctx, tr)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.BetaDelete(ctx, tr))
}

func TestGetMD5BypassesCache(t *testing.T) {
	db := newTestDB(t)
	s := New(db, 64)
	ctx := context.Background()
	tr := Triple{DataID: "app.yaml", Group: "DEFAULT_GROUP"}

	_, ok, err := s.GetMD5(ctx, tr)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Publish(ctx, tr, PublishRequest{Content: "hello"}))
	md5sum, ok, err := s.GetMD5(ctx, tr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, computeMD5("hello"), md5sum)
}
