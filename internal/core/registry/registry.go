// Package registry owns service metadata and instance lifecycle:
// registration, heartbeats, soft health, and the list/statuses
// projections the naming SDKs poll.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nacos-mini/nacos-go/internal/model"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrServiceNotFound = errors.New("service not found")
)

// Key identifies a service by its full triple.
type Key struct {
	Namespace string
	Group     string
	Service   string
}

func (k Key) Normalize() Key {
	return Key{
		Namespace: model.NormalizeTenant(k.Namespace),
		Group:     model.NormalizeGroup(k.Group),
		Service:   k.Service,
	}
}

// Store is the service + instance registry.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateServiceRequest carries the optional fields accepted on service
// creation.
type CreateServiceRequest struct {
	ProtectThreshold float64
	Metadata         map[string]string
	SelectorType     string
	Selector         string
}

// CreateService inserts a service row, upserting if one already exists
// for the triple (the naming SDKs call create idempotently on startup).
func (s *Store) CreateService(ctx context.Context, k Key, req CreateServiceRequest) error {
	k = k.Normalize()
	now := time.Now().Unix()
	metaJSON, err := marshalMetadata(req.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO service_info (namespace_id, group_name, service_name, metadata, protect_threshold,
		                           selector_type, selector, gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace_id, group_name, service_name) DO UPDATE SET
			metadata = excluded.metadata,
			protect_threshold = excluded.protect_threshold,
			selector_type = excluded.selector_type,
			selector = excluded.selector,
			gmt_modified = excluded.gmt_modified`,
		k.Namespace, k.Group, k.Service, metaJSON, req.ProtectThreshold, defaultSelectorType(req.SelectorType), req.Selector, now, now)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return s.appendServiceHistory(ctx, s.db, k, "CREATE", req.Metadata)
}

func defaultSelectorType(t string) string {
	if t == "" {
		return "none"
	}
	return t
}

func marshalMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(s string) map[string]string {
	if s == "" {
		return map[string]string{}
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return map[string]string{}
	}
	return m
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) appendServiceHistory(ctx context.Context, ex execer, k Key, opType string, metadata map[string]string) error {
	detail, _ := json.Marshal(metadata)
	_, err := ex.ExecContext(ctx, `
		INSERT INTO service_history_info (namespace_id, group_name, service_name, op_type, detail, gmt_create)
		VALUES (?, ?, ?, ?, ?, ?)`, k.Namespace, k.Group, k.Service, opType, string(detail), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("append service history: %w", err)
	}
	return nil
}

// GetService fetches one service row.
func (s *Store) GetService(ctx context.Context, k Key) (*model.Service, error) {
	k = k.Normalize()
	var svc model.Service
	err := s.db.QueryRowContext(ctx, `
		SELECT id, namespace_id, group_name, service_name, metadata, protect_threshold, selector_type, selector, gmt_create, gmt_modified
		FROM service_info WHERE namespace_id = ? AND group_name = ? AND service_name = ?`,
		k.Namespace, k.Group, k.Service).Scan(
		&svc.ID, &svc.NamespaceID, &svc.GroupName, &svc.ServiceName, &svc.Metadata, &svc.ProtectThreshold,
		&svc.SelectorType, &svc.Selector, &svc.GmtCreate, &svc.GmtModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &svc, nil
}

// UpdateService merges the given metadata into the existing row (new keys
// take precedence) and overwrites protect_threshold/selector if supplied.
func (s *Store) UpdateService(ctx context.Context, k Key, req CreateServiceRequest) error {
	k = k.Normalize()
	existing, err := s.GetService(ctx, k)
	if err != nil {
		return err
	}

	merged := unmarshalMetadata(existing.Metadata)
	for key, val := range req.Metadata {
		merged[key] = val
	}
	metaJSON, err := marshalMetadata(merged)
	if err != nil {
		return err
	}

	threshold := existing.ProtectThreshold
	if req.ProtectThreshold != 0 {
		threshold = req.ProtectThreshold
	}
	selectorType := existing.SelectorType
	if req.SelectorType != "" {
		selectorType = req.SelectorType
	}
	selector := existing.Selector
	if req.Selector != "" {
		selector = req.Selector
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE service_info SET metadata = ?, protect_threshold = ?, selector_type = ?, selector = ?, gmt_modified = ?
		WHERE id = ?`, metaJSON, threshold, selectorType, selector, time.Now().Unix(), existing.ID)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return s.appendServiceHistory(ctx, s.db, k, "UPDATE", merged)
}

// DeleteService removes a service and every instance registered under it,
// in one transaction, and appends a DELETE service-history row.
func (s *Store) DeleteService(ctx context.Context, k Key) error {
	k = k.Normalize()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete service: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM instance_info WHERE namespace_id = ? AND group_name = ? AND service_name = ?`,
		k.Namespace, k.Group, k.Service); err != nil {
		return fmt.Errorf("delete instances: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM service_info WHERE namespace_id = ? AND group_name = ? AND service_name = ?`,
		k.Namespace, k.Group, k.Service); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	if err := s.appendServiceHistory(ctx, tx, k, "DELETE", nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ListServiceNames returns the distinct service names in a namespace+group.
func (s *Store) ListServiceNames(ctx context.Context, namespace, group string, pageNo, pageSize int) ([]string, int, error) {
	namespace = model.NormalizeTenant(namespace)
	group = model.NormalizeGroup(group)
	pageNo, pageSize = clampPage(pageNo, pageSize)

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM service_info WHERE namespace_id = ? AND group_name = ?`,
		namespace, group).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count services: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT service_name FROM service_info WHERE namespace_id = ? AND group_name = ?
		ORDER BY service_name LIMIT ? OFFSET ?`, namespace, group, pageSize, (pageNo-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, 0, fmt.Errorf("scan service name: %w", err)
		}
		names = append(names, n)
	}
	return names, total, rows.Err()
}

// RecordSubscriber upserts a naming_subscribers row for the client that
// just asked for a service's instance list, the naming-protocol analogue
// of the config listener's subscriber recording. Best-effort: a failure
// here must never fail the instance-list request it rides along with.
func (s *Store) RecordSubscriber(ctx context.Context, k Key, addr, agent, app, clusterName string) {
	k = k.Normalize()
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO naming_subscribers (namespace_id, group_name, service_name, addr, agent, app, cluster_name, last_refresh_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace_id, group_name, service_name, addr) DO UPDATE SET
			agent = excluded.agent,
			app = excluded.app,
			cluster_name = excluded.cluster_name,
			last_refresh_time = excluded.last_refresh_time`,
		k.Namespace, k.Group, k.Service, addr, agent, app, clusterName, time.Now().Unix())
}

// ListSubscribers returns the clients currently subscribed to a service,
// for /v1/ns/service/subscribers.
func (s *Store) ListSubscribers(ctx context.Context, k Key, pageNo, pageSize int) ([]model.NamingSubscriber, int, error) {
	k = k.Normalize()
	pageNo, pageSize = clampPage(pageNo, pageSize)

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM naming_subscribers WHERE namespace_id = ? AND group_name = ? AND service_name = ?`,
		k.Namespace, k.Group, k.Service).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count naming subscribers: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT addr, agent, app, cluster_name FROM naming_subscribers
		WHERE namespace_id = ? AND group_name = ? AND service_name = ?
		ORDER BY addr LIMIT ? OFFSET ?`, k.Namespace, k.Group, k.Service, pageSize, (pageNo-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list naming subscribers: %w", err)
	}
	defer rows.Close()

	var out []model.NamingSubscriber
	for rows.Next() {
		var sub model.NamingSubscriber
		if err := rows.Scan(&sub.Addr, &sub.Agent, &sub.App, &sub.ClusterName); err != nil {
			return nil, 0, fmt.Errorf("scan naming subscriber: %w", err)
		}
		out = append(out, sub)
	}
	return out, total, rows.Err()
}

func clampPage(pageNo, pageSize int) (int, int) {
	if pageNo < 1 {
		pageNo = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return pageNo, pageSize
}
