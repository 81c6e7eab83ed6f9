package notifier

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nacos-mini/nacos-go/internal/core/configstore"
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

func TestParseListeningConfigsTolerantOfMissingTrailingSeparator(t *testing.T) {
	payload := "app.yaml\x02DEFAULT_GROUP\x02\x01M1\x01order.yaml\x02DEFAULT_GROUP\x02\x01M2"
	recs, err := ParseListeningConfigs(payload)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "app.yaml", recs[0].DataID)
	require.Equal(t, "public", recs[0].Tenant)
	require.Equal(t, "M1", recs[0].MD5)
	require.Equal(t, "M2", recs[1].MD5)
}

func TestClampTimeout(t *testing.T) {
	require.Equal(t, MaxTimeout, ClampTimeout(time.Hour))
	require.Equal(t, 5*time.Second, ClampTimeout(5*time.Second))
	require.Equal(t, time.Duration(0), ClampTimeout(0), "zero/negative is rejected by the caller, not rewritten here")
}

func TestPollReturnsImmediatelyOnMismatch(t *testing.T) {
	db := newTestDB(t)
	store := configstore.New(db, 64)
	n := New(db, store)
	ctx := context.Background()

	tr := configstore.Triple{DataID: "app.yaml", Group: "DEFAULT_GROUP"}
	require.NoError(t, store.Publish(ctx, tr, configstore.PublishRequest{Content: "v1"}))

	changed, err := n.Poll(ctx, "127.0.0.1", 12345, "nacos-sdk", []Record{
		{DataID: "app.yaml", Group: "DEFAULT_GROUP", Tenant: "public", MD5: "stale"},
	}, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, changed, 1)
}

func TestPollTimesOutWithEmptyResultWhenUnchanged(t *testing.T) {
	db := newTestDB(t)
	store := configstore.New(db, 64)
	n := New(db, store)
	ctx := context.Background()

	tr := configstore.Triple{DataID: "app.yaml", Group: "DEFAULT_GROUP"}
	require.NoError(t, store.Publish(ctx, tr, configstore.PublishRequest{Content: "v1"}))
	md5sum, ok, err := store.GetMD5(ctx, tr)
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now()
	changed, err := n.Poll(ctx, "127.0.0.1", 12345, "nacos-sdk", []Record{
		{DataID: "app.yaml", Group: "DEFAULT_GROUP", Tenant: "public", MD5: md5sum},
	}, 600*time.Millisecond)
	require.NoError(t, err)
	require.Empty(t, changed)
	require.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond)
}

func TestSubscriberRecordedAndProjected(t *testing.T) {
	db := newTestDB(t)
	store := configstore.New(db, 64)
	n := New(db, store)
	ctx := context.Background()

	tr := configstore.Triple{DataID: "app.yaml", Group: "DEFAULT_GROUP"}
	require.NoError(t, store.Publish(ctx, tr, configstore.PublishRequest{Content: "v1"}))
	md5sum, _, _ := store.GetMD5(ctx, tr)

	_, err := n.Poll(ctx, "127.0.0.1", 12345, "nacos-sdk", []Record{
		{DataID: "app.yaml", Group: "DEFAULT_GROUP", Tenant: "public", MD5: md5sum},
	}, 100*time.Millisecond)
	require.NoError(t, err)

	byData, err := n.ListenersByDataID(ctx, "app.yaml", "DEFAULT_GROUP", "public")
	require.NoError(t, err)
	require.Equal(t, md5sum, byData["127.0.0.1"])

	byIP, err := n.ListenersByIP(ctx, "127.0.0.1", "public")
	require.NoError(t, err)
	require.Equal(t, md5sum, byIP["app.yaml+DEFAULT_GROUP"])
}

func TestPruneStaleRemovesOldSubscribers(t *testing.T) {
	db := newTestDB(t)
	store := configstore.New(db, 64)
	n := New(db, store)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO subscribers (data_id, group_id, tenant_id, client_ip, client_port, md5, last_poll_time, created_at)
		VALUES ('a', 'DEFAULT_GROUP', 'public', '10.0.0.1', 1, 'x', 1, 1)`)
	require.NoError(t, err)

	count, err := n.PruneStale(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
