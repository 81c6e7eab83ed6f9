// Package tenant owns namespace rows and cascades their deletion into
// configs, services and instances.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nacos-mini/nacos-go/internal/model"
)

// ErrReservedNamespace is returned when the caller tries to delete the
// reserved "public" namespace.
var ErrReservedNamespace = errors.New("namespace \"public\" is reserved and cannot be deleted")

// ErrNotFound is returned when a namespace id has no matching row.
var ErrNotFound = errors.New("namespace not found")

const reservedID = model.DefaultTenant

// Store is the namespace manager.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// List returns every namespace, "public" first.
func (s *Store) List(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kp, tenant_id, tenant_name, tenant_desc, create_source, gmt_create, gmt_modified
		FROM tenant_info
		ORDER BY (tenant_id = ?) DESC, tenant_id ASC`, reservedID)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	// Synthetic "public" entry stands in until a row is ever written for it;
	// public is valid even before any config/service touches it.
	out := []model.Tenant{{TenantID: reservedID, TenantName: "public", TenantDesc: "public namespace"}}
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.ID, &t.Kp, &t.TenantID, &t.TenantName, &t.TenantDesc, &t.CreateSource, &t.GmtCreate, &t.GmtModified); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		if t.TenantID == reservedID {
			out[0] = t
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get fetches a single namespace by id.
func (s *Store) Get(ctx context.Context, id string) (*model.Tenant, error) {
	id = model.NormalizeTenant(id)
	if id == reservedID {
		t, err := s.getRow(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return &model.Tenant{TenantID: reservedID, TenantName: "public", TenantDesc: "public namespace"}, nil
		}
		return t, err
	}
	return s.getRow(ctx, id)
}

func (s *Store) getRow(ctx context.Context, id string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kp, tenant_id, tenant_name, tenant_desc, create_source, gmt_create, gmt_modified
		FROM tenant_info WHERE tenant_id = ?`, id).
		Scan(&t.ID, &t.Kp, &t.TenantID, &t.TenantName, &t.TenantDesc, &t.CreateSource, &t.GmtCreate, &t.GmtModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get namespace: %w", err)
	}
	return &t, nil
}

// Create inserts a new namespace row.
func (s *Store) Create(ctx context.Context, id, name, desc string) error {
	id = model.NormalizeTenant(id)
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_info (kp, tenant_id, tenant_name, tenant_desc, create_source, gmt_create, gmt_modified)
		VALUES ('1', ?, ?, ?, 'nacos-go', ?, ?)`, id, name, desc, now, now)
	if err != nil {
		return fmt.Errorf("create namespace: %w", err)
	}
	return nil
}

// Update updates a namespace's display name and description.
func (s *Store) Update(ctx context.Context, id, name, desc string) error {
	id = model.NormalizeTenant(id)
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
		UPDATE tenant_info SET tenant_name = ?, tenant_desc = ?, gmt_modified = ?
		WHERE tenant_id = ?`, name, desc, now, id)
	if err != nil {
		return fmt.Errorf("update namespace: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a namespace and cascades to every config, service and
// instance row in it, all inside one transaction.
func (s *Store) Delete(ctx context.Context, id string) error {
	id = model.NormalizeTenant(id)
	if id == reservedID {
		return ErrReservedNamespace
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cascade delete: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM instance_info WHERE namespace_id = ?`,
		`DELETE FROM service_info WHERE namespace_id = ?`,
		`DELETE FROM config_info WHERE tenant_id = ?`,
		`DELETE FROM config_info_beta WHERE tenant_id = ?`,
		`DELETE FROM config_history_info WHERE tenant_id = ?`,
		`DELETE FROM subscribers WHERE tenant_id = ?`,
		`DELETE FROM tenant_info WHERE tenant_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("cascade delete namespace %s: %w", id, err)
		}
	}

	return tx.Commit()
}
