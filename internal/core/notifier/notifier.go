// Package notifier implements the Nacos long-polling "Listener" protocol:
// a client submits the MD5 it currently holds for a set of configs and
// the server holds the request open until one changes or the deadline
// passes.
package notifier

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nacos-mini/nacos-go/internal/core/configstore"
	"github.com/nacos-mini/nacos-go/internal/model"
)

const (
	fieldSep  = "\x02"
	recordSep = "\x01"

	// compareInterval bounds the latency between a commit and the next
	// COMPARE tick noticing it.
	compareInterval = 500 * time.Millisecond

	DefaultTimeout = 30000 * time.Millisecond
	MaxTimeout     = 30000 * time.Millisecond
	MinTimeout     = 1 * time.Millisecond
)

// Record is one decoded (dataId, group, tenant, md5) entry from a
// Listening-Configs payload.
type Record struct {
	DataID string
	Group  string
	Tenant string
	MD5    string
}

// ParseListeningConfigs decodes the Listening-Configs wire payload. A
// record is either "dataId^2group^2tenant^1md5^1", with the md5 in its own
// ^1-terminated chunk after the key, or a single chunk
// "dataId^2group^2md5^1" / "dataId^2group^2tenant^2md5^1". The client
// sometimes omits the trailing record separator, so a final record
// missing its trailing ^1 is still accepted.
func ParseListeningConfigs(raw string) ([]Record, error) {
	raw = strings.TrimSuffix(raw, recordSep)
	if raw == "" {
		return nil, nil
	}

	var out []Record
	keyOnly := false // the last record came from a 3-field chunk
	for _, chunk := range strings.Split(raw, recordSep) {
		if chunk == "" {
			continue
		}
		fields := strings.Split(chunk, fieldSep)
		if len(fields) == 1 && keyOnly {
			// md5 chunk of "dataId^2group^2tenant^1md5^1": the third
			// field of the preceding chunk was the tenant.
			last := &out[len(out)-1]
			last.Tenant = model.NormalizeTenant(last.MD5)
			last.MD5 = fields[0]
			keyOnly = false
			continue
		}
		if len(fields) != 3 && len(fields) != 4 {
			return nil, fmt.Errorf("malformed listening-configs record: %q", chunk)
		}
		rec := Record{DataID: fields[0], Group: fields[1]}
		switch len(fields) {
		case 3:
			// dataId ^2 group ^2 md5 — tenant omitted, defaults to public.
			rec.MD5 = fields[2]
		case 4:
			rec.Tenant = fields[2]
			rec.MD5 = fields[3]
		}
		rec.Tenant = model.NormalizeTenant(rec.Tenant)
		rec.Group = model.NormalizeGroup(rec.Group)
		keyOnly = len(fields) == 3
		out = append(out, rec)
	}
	return out, nil
}

// ClampTimeout caps a requested long-poll timeout at MaxTimeout. A
// zero/negative value is not valid input — callers must reject it before
// ever reaching here, not have it silently rewritten to a default.
func ClampTimeout(requested time.Duration) time.Duration {
	if requested > MaxTimeout {
		return MaxTimeout
	}
	return requested
}

// Notifier runs the ENTER→COMPARE→sleep loop against a config store and
// records subscriber soft state in the database.
type Notifier struct {
	db    *sql.DB
	store *configstore.Store
}

func New(db *sql.DB, store *configstore.Store) *Notifier {
	return &Notifier{db: db, store: store}
}

// ChangedRecord is one entry of the listener response body.
type ChangedRecord struct {
	DataID string
	Group  string
	Tenant string
}

// Encode renders changed records back into the wire shape the SDK expects:
// "dataId^2group^2tenant^1" repeated, one per changed triple.
func Encode(changed []ChangedRecord) string {
	var b strings.Builder
	for _, c := range changed {
		b.WriteString(c.DataID)
		b.WriteString(fieldSep)
		b.WriteString(c.Group)
		b.WriteString(fieldSep)
		b.WriteString(c.Tenant)
		b.WriteString(recordSep)
	}
	return b.String()
}

// Poll runs one ENTER→COMPARE→sleep cycle to completion: it upserts a
// subscriber row per listened triple (best-effort; failures never block
// comparison), then loops COMPARE/sleep until either a change is found or
// timeout (capped by ClampTimeout) has elapsed. Cancelling ctx ends the
// wait early with ctx's error.
func (n *Notifier) Poll(ctx context.Context, clientIP string, clientPort int, userAgent string, records []Record, timeout time.Duration) ([]ChangedRecord, error) {
	timeout = ClampTimeout(timeout)
	deadline := time.Now().Add(timeout)

	n.recordSubscribers(ctx, clientIP, clientPort, userAgent, records)

	for {
		changed, err := n.compare(ctx, records)
		if err != nil {
			return nil, err
		}
		if len(changed) > 0 {
			return changed, nil
		}

		if time.Now().After(deadline) {
			return nil, nil
		}

		sleepFor := compareInterval
		if remaining := time.Until(deadline); remaining < sleepFor {
			sleepFor = remaining
		}
		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (n *Notifier) compare(ctx context.Context, records []Record) ([]ChangedRecord, error) {
	var changed []ChangedRecord
	for _, r := range records {
		tr := configstore.Triple{DataID: r.DataID, Group: r.Group, Tenant: r.Tenant}
		serverMD5, ok, err := n.store.GetMD5(ctx, tr)
		if err != nil {
			return nil, fmt.Errorf("compare: %w", err)
		}
		if !ok || serverMD5 != r.MD5 {
			changed = append(changed, ChangedRecord{DataID: r.DataID, Group: r.Group, Tenant: r.Tenant})
		}
	}
	return changed, nil
}

// recordSubscribers upserts one subscribers row per listened triple. A
// failure here is ignored and never prevents or delays comparison.
func (n *Notifier) recordSubscribers(ctx context.Context, clientIP string, clientPort int, userAgent string, records []Record) {
	now := time.Now().Unix()
	for _, r := range records {
		_, _ = n.db.ExecContext(ctx, `
			INSERT INTO subscribers (data_id, group_id, tenant_id, client_ip, client_port, user_agent, md5, last_poll_time, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(data_id, group_id, tenant_id, client_ip, client_port) DO UPDATE SET
				md5 = excluded.md5,
				user_agent = excluded.user_agent,
				last_poll_time = excluded.last_poll_time`,
			r.DataID, r.Group, r.Tenant, clientIP, clientPort, userAgent, r.MD5, now, now)
	}
}

// ListenersByDataID projects subscribers for one triple as {ip: md5}, for
// /v3/console/cs/config/listener.
func (n *Notifier) ListenersByDataID(ctx context.Context, dataID, group, tenant string) (map[string]string, error) {
	tenant = model.NormalizeTenant(tenant)
	group = model.NormalizeGroup(group)
	rows, err := n.db.QueryContext(ctx, `
		SELECT client_ip, md5 FROM subscribers WHERE data_id = ? AND group_id = ? AND tenant_id = ?`,
		dataID, group, tenant)
	if err != nil {
		return nil, fmt.Errorf("list listeners by dataId: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var ip, md5sum string
		if err := rows.Scan(&ip, &md5sum); err != nil {
			return nil, fmt.Errorf("scan listener: %w", err)
		}
		out[ip] = md5sum
	}
	return out, rows.Err()
}

// ListenersByIP projects subscribers for one client ip as
// {"dataId+group": md5}, for /v3/console/cs/config/listener/ip.
func (n *Notifier) ListenersByIP(ctx context.Context, ip, tenant string) (map[string]string, error) {
	tenant = model.NormalizeTenant(tenant)
	rows, err := n.db.QueryContext(ctx, `
		SELECT data_id, group_id, md5 FROM subscribers WHERE client_ip = ? AND tenant_id = ?`, ip, tenant)
	if err != nil {
		return nil, fmt.Errorf("list listeners by ip: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var dataID, group, md5sum string
		if err := rows.Scan(&dataID, &group, &md5sum); err != nil {
			return nil, fmt.Errorf("scan listener: %w", err)
		}
		out[dataID+"+"+group] = md5sum
	}
	return out, rows.Err()
}

// PruneStale deletes subscriber rows whose last_poll_time is older than
// maxAge, keeping the subscribers table from growing unboundedly.
func (n *Notifier) PruneStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := n.db.ExecContext(ctx, `DELETE FROM subscribers WHERE last_poll_time < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune subscribers: %w", err)
	}
	count, _ := res.RowsAffected()
	return count, nil
}

// RunPruner starts a background ticker that calls PruneStale every
// interval until ctx is cancelled. Intended to run as one goroutine for
// the lifetime of the process.
func (n *Notifier) RunPruner(ctx context.Context, interval, maxAge time.Duration, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := n.PruneStale(ctx, maxAge); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
