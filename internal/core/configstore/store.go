// Package configstore implements the durable key→content map with per-key
// history, beta overlay, search, catalog, import, export and rollback.
package configstore

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nacos-mini/nacos-go/internal/model"
)

var ErrNotFound = errors.New("config not found")

// Triple identifies a config by its three-part key.
type Triple struct {
	DataID string
	Group  string
	Tenant string
}

// Normalize rewrites the empty-string sentinels for group/tenant.
func (t Triple) Normalize() Triple {
	return Triple{DataID: t.DataID, Group: model.NormalizeGroup(t.Group), Tenant: model.NormalizeTenant(t.Tenant)}
}

type cacheEntry struct {
	cfg *model.Config
}

// Store is the config store. Get/Catalog reads go through a bounded
// in-process LRU cache; every mutation invalidates the triple it touched.
type Store struct {
	db    *sql.DB
	cache *lru.Cache[string, cacheEntry]
}

// New constructs a Store. cacheSize <= 0 disables the LRU cache.
func New(db *sql.DB, cacheSize int) *Store {
	s := &Store{db: db}
	if cacheSize > 0 {
		c, err := lru.New[string, cacheEntry](cacheSize)
		if err == nil {
			s.cache = c
		}
	}
	return s
}

func cacheKey(t Triple) string {
	return t.Tenant + "\x00" + t.Group + "\x00" + t.DataID
}

func computeMD5(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Get returns the live config for a triple, or ErrNotFound.
func (s *Store) Get(ctx context.Context, t Triple) (*model.Config, error) {
	t = t.Normalize()
	if s.cache != nil {
		if e, ok := s.cache.Get(cacheKey(t)); ok {
			return e.cfg, nil
		}
	}

	cfg, err := s.getFromDB(ctx, t)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(cacheKey(t), cacheEntry{cfg: cfg})
	}
	return cfg, nil
}

// GetMD5 reads the live MD5 directly from the database, bypassing the
// cache. The long-poll notifier's COMPARE loop must always observe a
// commit at the granularity of one database read.
func (s *Store) GetMD5(ctx context.Context, t Triple) (string, bool, error) {
	t = t.Normalize()
	var md5sum string
	err := s.db.QueryRowContext(ctx, `
		SELECT md5 FROM config_info WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		t.DataID, t.Group, t.Tenant).Scan(&md5sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read config md5: %w", err)
	}
	return md5sum, true, nil
}

func (s *Store) getFromDB(ctx context.Context, t Triple) (*model.Config, error) {
	var c model.Config
	err := s.db.QueryRowContext(ctx, `
		SELECT id, data_id, group_id, tenant_id, content, md5, type, app_name,
		       c_desc, c_use, effect, c_schema, encrypted_data_key,
		       src_user, src_ip, gmt_create, gmt_modified
		FROM config_info WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		t.DataID, t.Group, t.Tenant).Scan(
		&c.ID, &c.DataID, &c.Group, &c.Tenant, &c.Content, &c.MD5, &c.Type, &c.AppName,
		&c.Desc, &c.Use, &c.Effect, &c.Schema, &c.EncryptedDataKey,
		&c.SrcUser, &c.SrcIP, &c.GmtCreate, &c.GmtModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	return &c, nil
}

func (s *Store) invalidate(t Triple) {
	if s.cache != nil {
		s.cache.Remove(cacheKey(t))
	}
}

// PublishRequest carries everything Publish needs beyond the triple.
type PublishRequest struct {
	Content string
	Type    string
	AppName string
	Desc    string
	Use     string
	Effect  string
	Schema  string
	SrcUser string
	SrcIP   string
}

// Publish is an atomic upsert: MD5 is recomputed from content, and a
// history row is appended with op_type I on create or U on update.
func (s *Store) Publish(ctx context.Context, t Triple, req PublishRequest) error {
	t = t.Normalize()
	now := time.Now().Unix()
	md5sum := computeMD5(req.Content)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM config_info WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		t.DataID, t.Group, t.Tenant).Scan(&existingID)

	opType := model.OpInsert
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO config_info (data_id, group_id, tenant_id, content, md5, type, app_name,
			                          c_desc, c_use, effect, c_schema, encrypted_data_key,
			                          src_user, src_ip, gmt_create, gmt_modified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?, ?)`,
			t.DataID, t.Group, t.Tenant, req.Content, md5sum, defaultType(req.Type), req.AppName,
			req.Desc, req.Use, req.Effect, req.Schema, req.SrcUser, req.SrcIP, now, now)
		if err != nil {
			return fmt.Errorf("insert config: %w", err)
		}
		existingID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert config id: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lookup config: %w", err)
	default:
		opType = model.OpUpdate
		_, err = tx.ExecContext(ctx, `
			UPDATE config_info SET content = ?, md5 = ?, type = ?, app_name = ?,
			       c_desc = ?, c_use = ?, effect = ?, c_schema = ?, src_user = ?, src_ip = ?,
			       gmt_modified = ?
			WHERE id = ?`,
			req.Content, md5sum, defaultType(req.Type), req.AppName,
			req.Desc, req.Use, req.Effect, req.Schema, req.SrcUser, req.SrcIP, now, existingID)
		if err != nil {
			return fmt.Errorf("update config: %w", err)
		}
	}

	if err := appendHistory(ctx, tx, t, existingID, req.Content, md5sum, defaultType(req.Type), req.AppName,
		ExtInfo{Desc: req.Desc, Use: req.Use, Effect: req.Effect, Type: defaultType(req.Type), Schema: req.Schema},
		opType, req.SrcUser, req.SrcIP, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	s.invalidate(t)
	return nil
}

func defaultType(t string) string {
	if t == "" {
		return "text"
	}
	return t
}

// ExtInfo mirrors model.ExtInfo; kept as a local alias so this file reads
// standalone.
type ExtInfo = model.ExtInfo

func appendHistory(ctx context.Context, tx *sql.Tx, t Triple, nid int64, content, md5sum, typ, appName string, ext ExtInfo, op model.OpType, srcUser, srcIP string, now int64) error {
	extJSON, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("marshal ext_info: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO config_history_info (nid, data_id, group_id, tenant_id, content, md5, type, app_name,
		                                   c_desc, c_use, effect, c_schema, ext_info, op_type,
		                                   src_user, src_ip, gmt_create, gmt_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nid, t.DataID, t.Group, t.Tenant, content, md5sum, typ, appName,
		ext.Desc, ext.Use, ext.Effect, ext.Schema, string(extJSON), string(op),
		srcUser, srcIP, now, now)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Delete appends a D history row carrying the content/md5 as they were at
// deletion time, then removes the live row, in one transaction. Deleting a
// missing config is a no-op returning nil (idempotent).
func (s *Store) Delete(ctx context.Context, t Triple, srcUser, srcIP string) error {
	t = t.Normalize()
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	var c model.Config
	err = tx.QueryRowContext(ctx, `
		SELECT id, content, md5, type, app_name, c_desc, c_use, effect, c_schema
		FROM config_info WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		t.DataID, t.Group, t.Tenant).Scan(&c.ID, &c.Content, &c.MD5, &c.Type, &c.AppName, &c.Desc, &c.Use, &c.Effect, &c.Schema)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup config for delete: %w", err)
	}

	if err := appendHistory(ctx, tx, t, c.ID, c.Content, c.MD5, c.Type, c.AppName,
		ExtInfo{Desc: c.Desc, Use: c.Use, Effect: c.Effect, Type: c.Type, Schema: c.Schema},
		model.OpDelete, srcUser, srcIP, now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM config_info WHERE id = ?`, c.ID); err != nil {
		return fmt.Errorf("delete config: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	s.invalidate(t)
	return nil
}

// HistoryList returns the newest-first page of history rows for a triple.
func (s *Store) HistoryList(ctx context.Context, t Triple, pageNo, pageSize int) ([]model.ConfigHistory, int, error) {
	t = t.Normalize()
	pageNo, pageSize = clampPage(pageNo, pageSize)

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM config_history_info WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		t.DataID, t.Group, t.Tenant).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nid, data_id, group_id, tenant_id, content, md5, type, app_name,
		       c_desc, c_use, effect, c_schema, op_type, publish_type, gray_name,
		       src_user, src_ip, gmt_create, gmt_modified
		FROM config_history_info
		WHERE data_id = ? AND group_id = ? AND tenant_id = ?
		ORDER BY id DESC LIMIT ? OFFSET ?`,
		t.DataID, t.Group, t.Tenant, pageSize, (pageNo-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []model.ConfigHistory
	for rows.Next() {
		var h model.ConfigHistory
		if err := rows.Scan(&h.ID, &h.Nid, &h.DataID, &h.Group, &h.Tenant, &h.Content, &h.MD5, &h.Type, &h.AppName,
			&h.Desc, &h.Use, &h.Effect, &h.Schema, &h.OpType, &h.PublishType, &h.GrayName,
			&h.SrcUser, &h.SrcIP, &h.GmtCreate, &h.GmtModified); err != nil {
			return nil, 0, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}

// HistoryPrevious returns the history row whose id is the largest strictly
// less than currentNid for the same triple.
func (s *Store) HistoryPrevious(ctx context.Context, t Triple, currentNid int64) (*model.ConfigHistory, error) {
	t = t.Normalize()
	var h model.ConfigHistory
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nid, data_id, group_id, tenant_id, content, md5, type, app_name,
		       c_desc, c_use, effect, c_schema, op_type, publish_type, gray_name,
		       src_user, src_ip, gmt_create, gmt_modified
		FROM config_history_info
		WHERE data_id = ? AND group_id = ? AND tenant_id = ? AND id < ?
		ORDER BY id DESC LIMIT 1`,
		t.DataID, t.Group, t.Tenant, currentNid).Scan(
		&h.ID, &h.Nid, &h.DataID, &h.Group, &h.Tenant, &h.Content, &h.MD5, &h.Type, &h.AppName,
		&h.Desc, &h.Use, &h.Effect, &h.Schema, &h.OpType, &h.PublishType, &h.GrayName,
		&h.SrcUser, &h.SrcIP, &h.GmtCreate, &h.GmtModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get previous history: %w", err)
	}
	return &h, nil
}

// historyRowByID fetches one history row by its primary key, scoped to the
// given triple.
func (s *Store) historyRowByID(ctx context.Context, t Triple, id int64) (*model.ConfigHistory, error) {
	var h model.ConfigHistory
	err := s.db.QueryRowContext(ctx, `
		SELECT id, nid, data_id, group_id, tenant_id, content, md5, type, app_name,
		       c_desc, c_use, effect, c_schema, ext_info, op_type, publish_type, gray_name,
		       src_user, src_ip, gmt_create, gmt_modified
		FROM config_history_info WHERE id = ? AND data_id = ? AND group_id = ? AND tenant_id = ?`,
		id, t.DataID, t.Group, t.Tenant).Scan(
		&h.ID, &h.Nid, &h.DataID, &h.Group, &h.Tenant, &h.Content, &h.MD5, &h.Type, &h.AppName,
		&h.Desc, &h.Use, &h.Effect, &h.Schema, &h.ExtInfo, &h.OpType, &h.PublishType, &h.GrayName,
		&h.SrcUser, &h.SrcIP, &h.GmtCreate, &h.GmtModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history row: %w", err)
	}
	return &h, nil
}

// Rollback loads the named history row: if it was an insert (I), rollback
// is equivalent to Delete; for U/D it is equivalent to Publish with the
// historical content, restoring the descriptive fields from ext_info.
func (s *Store) Rollback(ctx context.Context, t Triple, nid int64, srcUser, srcIP string) error {
	t = t.Normalize()
	h, err := s.historyRowByID(ctx, t, nid)
	if err != nil {
		return err
	}

	if h.OpType == model.OpInsert {
		return s.Delete(ctx, t, srcUser, srcIP)
	}

	var ext ExtInfo
	if h.ExtInfo != "" {
		_ = json.Unmarshal([]byte(h.ExtInfo), &ext)
	}
	if ext.Type == "" {
		ext.Type = h.Type
	}

	return s.Publish(ctx, t, PublishRequest{
		Content: h.Content,
		Type:    ext.Type,
		AppName: h.AppName,
		Desc:    ext.Desc,
		Use:     ext.Use,
		Effect:  ext.Effect,
		Schema:  ext.Schema,
		SrcUser: srcUser,
		SrcIP:   srcIP,
	})
}

// ListConfigsEverHistorized returns the distinct (dataId, group) pairs that
// have at least one history row for tenant — a supplemented console
// feature (powers the "configs with history" picker) not present in the
// N+1-query original.
func (s *Store) ListConfigsEverHistorized(ctx context.Context, tenant string) ([]Triple, error) {
	tenant = model.NormalizeTenant(tenant)
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT data_id, group_id FROM config_history_info WHERE tenant_id = ?
		ORDER BY data_id, group_id`, tenant)
	if err != nil {
		return nil, fmt.Errorf("list historized configs: %w", err)
	}
	defer rows.Close()

	var out []Triple
	for rows.Next() {
		var tr Triple
		tr.Tenant = tenant
		if err := rows.Scan(&tr.DataID, &tr.Group); err != nil {
			return nil, fmt.Errorf("scan historized config: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// BetaGet returns the beta overlay for a triple.
func (s *Store) BetaGet(ctx context.Context, t Triple) (*model.BetaConfig, error) {
	t = t.Normalize()
	var b model.BetaConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT id, data_id, group_id, tenant_id, content, md5, beta_ips, src_user, src_ip, gmt_create, gmt_modified
		FROM config_info_beta WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		t.DataID, t.Group, t.Tenant).Scan(
		&b.ID, &b.DataID, &b.Group, &b.Tenant, &b.Content, &b.MD5, &b.BetaIps, &b.SrcUser, &b.SrcIP, &b.GmtCreate, &b.GmtModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get beta config: %w", err)
	}
	return &b, nil
}

// BetaDelete removes the beta overlay for a triple. Idempotent.
func (s *Store) BetaDelete(ctx context.Context, t Triple) error {
	t = t.Normalize()
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM config_info_beta WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		t.DataID, t.Group, t.Tenant)
	if err != nil {
		return fmt.Errorf("delete beta config: %w", err)
	}
	return nil
}

// SearchMode selects accurate (exact equality) vs blur (substring) search.
type SearchMode string

const (
	SearchAccurate SearchMode = "accurate"
	SearchBlur     SearchMode = "blur"
)

// SearchFilter carries the optional filter keys for Search/Catalog listing.
type SearchFilter struct {
	DataID   string
	Group    string
	Tenant   string
	AppName  string
	Mode     SearchMode
	PageNo   int
	PageSize int
}

// Search returns a paged, filtered list of configs. An empty DataID, Group
// or AppName adds no filter in either mode; a non-empty one is an exact
// match in accurate mode and a SQL LIKE substring match in blur mode.
func (s *Store) Search(ctx context.Context, f SearchFilter) ([]model.Config, int, error) {
	f.Tenant = model.NormalizeTenant(f.Tenant)
	f.PageNo, f.PageSize = clampPage(f.PageNo, f.PageSize)

	var where []string
	var args []any
	where = append(where, "tenant_id = ?")
	args = append(args, f.Tenant)

	addFilter := func(col, val string) {
		if val == "" {
			return
		}
		if f.Mode == SearchBlur {
			where = append(where, col+" LIKE ?")
			args = append(args, "%"+strings.ReplaceAll(val, "%", "")+"%")
		} else {
			where = append(where, col+" = ?")
			args = append(args, val)
		}
	}
	addFilter("data_id", f.DataID)
	addFilter("group_id", f.Group)
	addFilter("app_name", f.AppName)

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM config_info WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search: %w", err)
	}

	q := fmt.Sprintf(`
		SELECT id, data_id, group_id, tenant_id, content, md5, type, app_name,
		       c_desc, c_use, effect, c_schema, encrypted_data_key, src_user, src_ip, gmt_create, gmt_modified
		FROM config_info WHERE %s ORDER BY id LIMIT ? OFFSET ?`, whereClause)
	args = append(args, f.PageSize, (f.PageNo-1)*f.PageSize)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search configs: %w", err)
	}
	defer rows.Close()

	var out []model.Config
	for rows.Next() {
		var c model.Config
		if err := rows.Scan(&c.ID, &c.DataID, &c.Group, &c.Tenant, &c.Content, &c.MD5, &c.Type, &c.AppName,
			&c.Desc, &c.Use, &c.Effect, &c.Schema, &c.EncryptedDataKey, &c.SrcUser, &c.SrcIP, &c.GmtCreate, &c.GmtModified); err != nil {
			return nil, 0, fmt.Errorf("scan search row: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Catalog returns the same projection as Get (the show=all view), used by the
// console to render a single config's detail view.
func (s *Store) Catalog(ctx context.Context, t Triple) (*model.Config, error) {
	return s.Get(ctx, t)
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

// byID loads a live config by its primary key, used by Clone to resolve
// source configs addressed by cfgId.
func (s *Store) byID(ctx context.Context, id int64) (*model.Config, error) {
	var c model.Config
	err := s.db.QueryRowContext(ctx, `
		SELECT id, data_id, group_id, tenant_id, content, md5, type, app_name,
		       c_desc, c_use, effect, c_schema, encrypted_data_key, src_user, src_ip, gmt_create, gmt_modified
		FROM config_info WHERE id = ?`, id).Scan(
		&c.ID, &c.DataID, &c.Group, &c.Tenant, &c.Content, &c.MD5, &c.Type, &c.AppName,
		&c.Desc, &c.Use, &c.Effect, &c.Schema, &c.EncryptedDataKey, &c.SrcUser, &c.SrcIP, &c.GmtCreate, &c.GmtModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get config by id: %w", err)
	}
	return &c, nil
}
