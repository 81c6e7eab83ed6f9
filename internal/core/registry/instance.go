package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nacos-mini/nacos-go/internal/model"
)

// RegisterRequest carries the fields accepted on instance register/update.
type RegisterRequest struct {
	IP          string
	Port        int
	Weight      float64
	Healthy     bool
	Enabled     bool
	Ephemeral   bool
	ClusterName string
	Metadata    map[string]string
}

func (r RegisterRequest) normalized() RegisterRequest {
	r.ClusterName = model.NormalizeCluster(r.ClusterName)
	if r.Weight == 0 {
		r.Weight = 1
	}
	return r
}

// RegisterInstance upserts an instance keyed by its canonical instance id.
// Registering against a service that does not exist is a failure per the
// Nacos client convention (the caller surfaces this as a 500).
func (s *Store) RegisterInstance(ctx context.Context, k Key, req RegisterRequest) error {
	k = k.Normalize()
	req = req.normalized()

	if _, err := s.GetService(ctx, k); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrServiceNotFound
		}
		return err
	}

	instanceID := model.InstanceID(req.IP, req.Port, req.ClusterName, k.Group)
	now := time.Now().Unix()
	metaJSON, err := marshalMetadata(req.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO instance_info (namespace_id, group_name, service_name, instance_id, ip, port, weight,
		                            healthy, enabled, ephemeral, cluster_name, metadata, gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace_id, group_name, service_name, instance_id) DO UPDATE SET
			weight = excluded.weight,
			healthy = excluded.healthy,
			enabled = excluded.enabled,
			ephemeral = excluded.ephemeral,
			metadata = excluded.metadata,
			gmt_modified = excluded.gmt_modified`,
		k.Namespace, k.Group, k.Service, instanceID, req.IP, req.Port, req.Weight,
		boolToInt(req.Healthy), boolToInt(req.Enabled), boolToInt(req.Ephemeral), req.ClusterName, metaJSON, now, now)
	if err != nil {
		return fmt.Errorf("register instance: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DeregisterInstance removes an instance. Idempotent: deregistering a
// missing instance succeeds.
func (s *Store) DeregisterInstance(ctx context.Context, k Key, ip string, port int, cluster string) error {
	k = k.Normalize()
	cluster = model.NormalizeCluster(cluster)
	instanceID := model.InstanceID(ip, port, cluster, k.Group)
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM instance_info WHERE namespace_id = ? AND group_name = ? AND service_name = ? AND instance_id = ?`,
		k.Namespace, k.Group, k.Service, instanceID)
	if err != nil {
		return fmt.Errorf("deregister instance: %w", err)
	}
	return nil
}

func (s *Store) getInstanceRow(ctx context.Context, k Key, instanceID string) (*model.Instance, error) {
	var inst model.Instance
	var healthy, enabled, ephemeral int
	err := s.db.QueryRowContext(ctx, `
		SELECT namespace_id, group_name, service_name, instance_id, ip, port, weight,
		       healthy, enabled, ephemeral, cluster_name, metadata, gmt_create, gmt_modified
		FROM instance_info WHERE namespace_id = ? AND group_name = ? AND service_name = ? AND instance_id = ?`,
		k.Namespace, k.Group, k.Service, instanceID).Scan(
		&inst.NamespaceID, &inst.GroupName, &inst.ServiceName, &inst.InstanceID, &inst.IP, &inst.Port, &inst.Weight,
		&healthy, &enabled, &ephemeral, &inst.ClusterName, &inst.Metadata, &inst.GmtCreate, &inst.GmtModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	inst.Healthy = healthy != 0
	inst.Enabled = enabled != 0
	inst.Ephemeral = ephemeral != 0
	return &inst, nil
}

// GetInstance fetches one instance by ip/port/cluster.
func (s *Store) GetInstance(ctx context.Context, k Key, ip string, port int, cluster string) (*model.Instance, error) {
	k = k.Normalize()
	cluster = model.NormalizeCluster(cluster)
	return s.getInstanceRow(ctx, k, model.InstanceID(ip, port, cluster, k.Group))
}

// PatchRequest carries the optional fields a PATCH may supply; nil means
// "leave unchanged".
type PatchRequest struct {
	Weight   *float64
	Healthy  *bool
	Enabled  *bool
	Metadata map[string]string
}

// PatchInstance merges the supplied fields into the existing row.
// Patching a missing instance is a NotFound.
func (s *Store) PatchInstance(ctx context.Context, k Key, ip string, port int, cluster string, req PatchRequest) error {
	k = k.Normalize()
	cluster = model.NormalizeCluster(cluster)
	instanceID := model.InstanceID(ip, port, cluster, k.Group)

	existing, err := s.getInstanceRow(ctx, k, instanceID)
	if err != nil {
		return err
	}

	weight := existing.Weight
	if req.Weight != nil {
		weight = *req.Weight
	}
	healthy := existing.Healthy
	if req.Healthy != nil {
		healthy = *req.Healthy
	}
	enabled := existing.Enabled
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	merged := unmarshalMetadata(existing.Metadata)
	for key, val := range req.Metadata {
		merged[key] = val
	}
	metaJSON, err := marshalMetadata(merged)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE instance_info SET weight = ?, healthy = ?, enabled = ?, metadata = ?, gmt_modified = ?
		WHERE namespace_id = ? AND group_name = ? AND service_name = ? AND instance_id = ?`,
		weight, boolToInt(healthy), boolToInt(enabled), metaJSON, time.Now().Unix(),
		k.Namespace, k.Group, k.Service, instanceID)
	if err != nil {
		return fmt.Errorf("patch instance: %w", err)
	}
	return nil
}

// ListInstances returns every instance registered for a service+cluster
// filter (empty cluster list means all clusters).
func (s *Store) ListInstances(ctx context.Context, k Key, clusters []string, healthyOnly bool) ([]model.Instance, error) {
	k = k.Normalize()
	q := `
		SELECT namespace_id, group_name, service_name, instance_id, ip, port, weight,
		       healthy, enabled, ephemeral, cluster_name, metadata, gmt_create, gmt_modified
		FROM instance_info WHERE namespace_id = ? AND group_name = ? AND service_name = ?`
	args := []any{k.Namespace, k.Group, k.Service}

	if len(clusters) > 0 {
		placeholders := make([]string, len(clusters))
		for i, c := range clusters {
			placeholders[i] = "?"
			args = append(args, c)
		}
		q += " AND cluster_name IN (" + strings.Join(placeholders, ",") + ")"
	}
	if healthyOnly {
		q += " AND healthy = 1"
	}
	q += " ORDER BY instance_id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []model.Instance
	for rows.Next() {
		var inst model.Instance
		var healthy, enabled, ephemeral int
		if err := rows.Scan(&inst.NamespaceID, &inst.GroupName, &inst.ServiceName, &inst.InstanceID, &inst.IP, &inst.Port,
			&inst.Weight, &healthy, &enabled, &ephemeral, &inst.ClusterName, &inst.Metadata, &inst.GmtCreate, &inst.GmtModified); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		inst.Healthy = healthy != 0
		inst.Enabled = enabled != 0
		inst.Ephemeral = ephemeral != 0
		out = append(out, inst)
	}
	return out, rows.Err()
}

// HeartbeatResult is the fixed response shape for PUT .../instance/beat.
type HeartbeatResult struct {
	ClientBeatInterval int64 `json:"clientBeatInterval"`
	Code               int   `json:"code"`
	LightBeatEnabled    bool  `json:"lightBeatEnabled"`
}

// Heartbeat marks the addressed instance healthy and stamps gmt_modified.
// If the instance does not exist the server still returns code 10200 so
// the client re-registers; this method reports that outcome via the
// bool return rather than an error since it is not a failure.
func (s *Store) Heartbeat(ctx context.Context, k Key, ip string, port int, cluster string) (found bool, err error) {
	k = k.Normalize()
	cluster = model.NormalizeCluster(cluster)
	instanceID := model.InstanceID(ip, port, cluster, k.Group)

	res, err := s.db.ExecContext(ctx, `
		UPDATE instance_info SET healthy = 1, gmt_modified = ?
		WHERE namespace_id = ? AND group_name = ? AND service_name = ? AND instance_id = ?`,
		time.Now().Unix(), k.Namespace, k.Group, k.Service, instanceID)
	if err != nil {
		return false, fmt.Errorf("heartbeat: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdateHealth sets the healthy flag directly (console/manual override).
func (s *Store) UpdateHealth(ctx context.Context, k Key, ip string, port int, cluster string, healthy bool) error {
	k = k.Normalize()
	cluster = model.NormalizeCluster(cluster)
	instanceID := model.InstanceID(ip, port, cluster, k.Group)
	res, err := s.db.ExecContext(ctx, `
		UPDATE instance_info SET healthy = ?, gmt_modified = ?
		WHERE namespace_id = ? AND group_name = ? AND service_name = ? AND instance_id = ?`,
		boolToInt(healthy), time.Now().Unix(), k.Namespace, k.Group, k.Service, instanceID)
	if err != nil {
		return fmt.Errorf("update health: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BatchUpdateMetadata merges metadata into every instance named by
// instanceIDs that exists, and returns the ids actually updated.
func (s *Store) BatchUpdateMetadata(ctx context.Context, k Key, instanceIDs []string, metadata map[string]string) ([]string, error) {
	k = k.Normalize()
	var updated []string
	for _, id := range instanceIDs {
		existing, err := s.getInstanceRow(ctx, k, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return updated, err
		}
		merged := unmarshalMetadata(existing.Metadata)
		for key, val := range metadata {
			merged[key] = val
		}
		metaJSON, err := marshalMetadata(merged)
		if err != nil {
			return updated, err
		}
		if _, err := s.db.ExecContext(ctx, `
			UPDATE instance_info SET metadata = ?, gmt_modified = ?
			WHERE namespace_id = ? AND group_name = ? AND service_name = ? AND instance_id = ?`,
			metaJSON, time.Now().Unix(), k.Namespace, k.Group, k.Service, id); err != nil {
			return updated, fmt.Errorf("batch update metadata: %w", err)
		}
		updated = append(updated, id)
	}
	return updated, nil
}

// BatchDeleteMetadata removes the named keys from every instance's
// metadata that exists, returning the ids actually touched.
func (s *Store) BatchDeleteMetadata(ctx context.Context, k Key, instanceIDs []string, keys []string) ([]string, error) {
	k = k.Normalize()
	var deleted []string
	for _, id := range instanceIDs {
		existing, err := s.getInstanceRow(ctx, k, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, err
		}
		merged := unmarshalMetadata(existing.Metadata)
		for _, key := range keys {
			delete(merged, key)
		}
		metaJSON, err := marshalMetadata(merged)
		if err != nil {
			return deleted, err
		}
		if _, err := s.db.ExecContext(ctx, `
			UPDATE instance_info SET metadata = ?, gmt_modified = ?
			WHERE namespace_id = ? AND group_name = ? AND service_name = ? AND instance_id = ?`,
			metaJSON, time.Now().Unix(), k.Namespace, k.Group, k.Service, id); err != nil {
			return deleted, fmt.Errorf("batch delete metadata: %w", err)
		}
		deleted = append(deleted, id)
	}
	return deleted, nil
}

// ReachProtectionThreshold reports whether the fraction of healthy
// instances among all instances for the service would fall below its
// configured protect_threshold. A standalone server may always return
// false; this implementation computes it for real since the data is
// already in hand from ListInstances.
func ReachProtectionThreshold(all []model.Instance, threshold float64) bool {
	if threshold <= 0 || len(all) == 0 {
		return false
	}
	var healthy int
	for _, inst := range all {
		if inst.Healthy {
			healthy++
		}
	}
	return float64(healthy)/float64(len(all)) < threshold
}
