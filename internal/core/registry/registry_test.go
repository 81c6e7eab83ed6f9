package registry

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nacos-mini/nacos-go/internal/database"
	"github.com/nacos-mini/nacos-go/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db, nil))
	return db
}

func TestCreateServiceAndRegisterInstance(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	k := Key{Service: "order-service"}

	require.NoError(t, s.CreateService(ctx, k, CreateServiceRequest{ProtectThreshold: 0.5}))

	svc, err := s.GetService(ctx, k)
	require.NoError(t, err)
	require.Equal(t, "public", svc.NamespaceID)
	require.Equal(t, "DEFAULT_GROUP", svc.GroupName)

	require.NoError(t, s.RegisterInstance(ctx, k, RegisterRequest{IP: "10.0.0.1", Port: 8080, Healthy: true, Enabled: true}))

	got, err := s.GetInstance(ctx, k, "10.0.0.1", 8080, "")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1#8080#DEFAULT#DEFAULT_GROUP", got.InstanceID)
	require.True(t, got.Healthy)
}

func TestRegisterInstanceWithoutServiceFails(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()

	err := s.RegisterInstance(ctx, Key{Service: "ghost"}, RegisterRequest{IP: "10.0.0.1", Port: 80})
	require.ErrorIs(t, err, ErrServiceNotFound)
}

func TestDeregisterIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	k := Key{Service: "svc"}
	require.NoError(t, s.CreateService(ctx, k, CreateServiceRequest{}))

	require.NoError(t, s.DeregisterInstance(ctx, k, "10.0.0.1", 80, ""))
}

func TestHeartbeatUnknownInstanceReportsNotFoundButNoError(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	k := Key{Service: "svc"}
	require.NoError(t, s.CreateService(ctx, k, CreateServiceRequest{}))

	found, err := s.Heartbeat(ctx, k, "10.0.0.9", 1234, "")
	require.NoError(t, err)
	require.False(t, found)
}

func TestPatchMissingInstanceIsNotFound(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	k := Key{Service: "svc"}
	require.NoError(t, s.CreateService(ctx, k, CreateServiceRequest{}))

	err := s.PatchInstance(ctx, k, "10.0.0.9", 1234, "", PatchRequest{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPatchMergesMetadata(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	k := Key{Service: "svc"}
	require.NoError(t, s.CreateService(ctx, k, CreateServiceRequest{}))
	require.NoError(t, s.RegisterInstance(ctx, k, RegisterRequest{
		IP: "10.0.0.1", Port: 80, Healthy: true, Enabled: true,
		Metadata: map[string]string{"zone": "a"},
	}))

	require.NoError(t, s.PatchInstance(ctx, k, "10.0.0.1", 80, "", PatchRequest{
		Metadata: map[string]string{"version": "2"},
	}))

	got, err := s.GetInstance(ctx, k, "10.0.0.1", 80, "")
	require.NoError(t, err)
	meta := unmarshalMetadata(got.Metadata)
	require.Equal(t, "a", meta["zone"])
	require.Equal(t, "2", meta["version"])
}

func TestDeleteServiceCascadesInstances(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	k := Key{Service: "svc"}
	require.NoError(t, s.CreateService(ctx, k, CreateServiceRequest{}))
	require.NoError(t, s.RegisterInstance(ctx, k, RegisterRequest{IP: "10.0.0.1", Port: 80, Healthy: true, Enabled: true}))

	require.NoError(t, s.DeleteService(ctx, k))

	instances, err := s.ListInstances(ctx, k, nil, false)
	require.NoError(t, err)
	require.Empty(t, instances)
}

func TestBatchUpdateAndDeleteMetadata(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	k := Key{Service: "svc"}
	require.NoError(t, s.CreateService(ctx, k, CreateServiceRequest{}))
	require.NoError(t, s.RegisterInstance(ctx, k, RegisterRequest{IP: "10.0.0.1", Port: 80, Healthy: true, Enabled: true}))
	id := "10.0.0.1#80#DEFAULT#DEFAULT_GROUP"

	updated, err := s.BatchUpdateMetadata(ctx, k, []string{id}, map[string]string{"region": "us"})
	require.NoError(t, err)
	require.Equal(t, []string{id}, updated)

	deleted, err := s.BatchDeleteMetadata(ctx, k, []string{id}, []string{"region"})
	require.NoError(t, err)
	require.Equal(t, []string{id}, deleted)

	got, err := s.GetInstance(ctx, k, "10.0.0.1", 80, "")
	require.NoError(t, err)
	require.NotContains(t, unmarshalMetadata(got.Metadata), "region")
}

func TestRecordAndListSubscribers(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	k := Key{Service: "orders"}
	require.NoError(t, s.CreateService(ctx, k, CreateServiceRequest{}))

	s.RecordSubscriber(ctx, k, "10.0.0.5:54321", "Nacos-Java-Client:2.2.0", "order-app", "DEFAULT")
	s.RecordSubscriber(ctx, k, "10.0.0.5:54321", "Nacos-Java-Client:2.3.0", "order-app", "DEFAULT")

	subs, total, err := s.ListSubscribers(ctx, k, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total, "re-recording the same addr updates the row instead of duplicating it")
	require.Len(t, subs, 1)
	require.Equal(t, "10.0.0.5:54321", subs[0].Addr)
	require.Equal(t, "Nacos-Java-Client:2.3.0", subs[0].Agent)
}

func TestListSubscribersEmptyWhenNoneRecorded(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	k := Key{Service: "ghost"}

	subs, total, err := s.ListSubscribers(ctx, k, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 0, total)
	require.Empty(t, subs)
}

func TestReachProtectionThreshold(t *testing.T) {
	instances := []model.Instance{
		{Healthy: true}, {Healthy: true}, {Healthy: false}, {Healthy: false},
	}
	require.True(t, ReachProtectionThreshold(instances, 0.75))
	require.False(t, ReachProtectionThreshold(instances, 0.25))
	require.False(t, ReachProtectionThreshold(nil, 0.5))
}
