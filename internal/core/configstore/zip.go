package configstore

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// zipEntry is one (group, dataId, content) tuple extracted from or bound
// for a ZIP artifact.
type zipEntry struct {
	DataID  string
	Group   string
	Content string
	AppName string
	Desc    string
	Type    string
}

// ExportFilter selects which live configs go into the artifact; an empty
// DataID/Group means "all".
type ExportFilter struct {
	Tenant  string
	DataID  string
	Group   string
	AppName string
}

// v2Metadata mirrors the top-level "metadata:" document of metadata.yml.
type v2Metadata struct {
	Metadata []v2MetadataEntry `yaml:"metadata"`
}

type v2MetadataEntry struct {
	DataID  string `yaml:"dataId"`
	Group   string `yaml:"group"`
	AppName string `yaml:"appName,omitempty"`
	Desc    string `yaml:"desc,omitempty"`
	Type    string `yaml:"type,omitempty"`
}

// Export builds a ZIP artifact of every config matching f. v2 selects the
// metadata.yml layout; otherwise the legacy "metadata" text layout is used.
func (s *Store) Export(ctx context.Context, f ExportFilter, v2 bool) ([]byte, error) {
	configs, _, err := s.Search(ctx, SearchFilter{
		Tenant: f.Tenant, DataID: f.DataID, Group: f.Group, AppName: f.AppName,
		Mode: SearchAccurate, PageNo: 1, PageSize: 1 << 30,
	})
	if err != nil {
		return nil, fmt.Errorf("export: list configs: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, c := range configs {
		w, err := zw.Create(c.Group + "+" + c.DataID)
		if err != nil {
			return nil, fmt.Errorf("export: create entry: %w", err)
		}
		if _, err := io.WriteString(w, c.Content); err != nil {
			return nil, fmt.Errorf("export: write entry: %w", err)
		}
	}

	if v2 {
		meta := v2Metadata{}
		for _, c := range configs {
			meta.Metadata = append(meta.Metadata, v2MetadataEntry{
				DataID: c.DataID, Group: c.Group, AppName: c.AppName, Desc: c.Desc, Type: c.Type,
			})
		}
		b, err := yaml.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("export: marshal metadata.yml: %w", err)
		}
		w, err := zw.Create("metadata.yml")
		if err != nil {
			return nil, fmt.Errorf("export: create metadata.yml: %w", err)
		}
		if _, err := w.Write(b); err != nil {
			return nil, fmt.Errorf("export: write metadata.yml: %w", err)
		}
	} else {
		w, err := zw.Create("metadata")
		if err != nil {
			return nil, fmt.Errorf("export: create metadata: %w", err)
		}
		for _, c := range configs {
			// "." in dataId is rewritten to "~" in the legacy metadata line
			// format so it does not collide with the "group.dataId.app="
			// field separator.
			line := fmt.Sprintf("%s.%s.app=%s\n", c.Group, strings.ReplaceAll(c.DataID, ".", "~"), c.AppName)
			if _, err := io.WriteString(w, line); err != nil {
				return nil, fmt.Errorf("export: write metadata line: %w", err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("export: close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// parseImportZip extracts (group, dataId, content) tuples and their
// per-entry appName/desc/type, detecting V2 by the presence of
// metadata.yml.
func parseImportZip(data []byte) ([]zipEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("unreadable zip: %w", err)
	}

	content := map[string]string{} // "{group}+{dataId}" -> content
	var order []string
	var metaV2 *v2Metadata
	metaV1Lines := map[string]string{} // "{group}.{dataId-with-tilde}" -> appName

	for _, f := range zr.File {
		if f.Name == "metadata.yml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open metadata.yml: %w", err)
			}
			b, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read metadata.yml: %w", err)
			}
			var m v2Metadata
			if err := yaml.Unmarshal(b, &m); err != nil {
				return nil, fmt.Errorf("parse metadata.yml: %w", err)
			}
			metaV2 = &m
			continue
		}
		if f.Name == "metadata" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open metadata: %w", err)
			}
			b, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read metadata: %w", err)
			}
			for _, line := range strings.Split(string(b), "\n") {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				key, appName, ok := strings.Cut(line, "=")
				if !ok {
					continue
				}
				metaV1Lines[key] = appName
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
		}
		content[f.Name] = string(b)
		order = append(order, f.Name)
	}

	entries := make([]zipEntry, 0, len(order))

	if metaV2 != nil {
		for _, m := range metaV2.Metadata {
			name := m.Group + "+" + m.DataID
			c, ok := content[name]
			if !ok {
				continue
			}
			entries = append(entries, zipEntry{DataID: m.DataID, Group: m.Group, Content: c, AppName: m.AppName, Desc: m.Desc, Type: m.Type})
		}
		return entries, nil
	}

	for _, name := range order {
		group, dataID, ok := strings.Cut(name, "+")
		if !ok {
			continue
		}
		appName := metaV1Lines[group+"."+strings.ReplaceAll(dataID, ".", "~")+".app"]
		entries = append(entries, zipEntry{DataID: dataID, Group: group, Content: content[name], AppName: appName})
	}
	return entries, nil
}

// ImportPolicy governs how Import/Clone resolve a conflicting
// (dataId, group) that already exists at the destination.
type ImportPolicy string

const (
	PolicyAbort     ImportPolicy = "ABORT"
	PolicySkip      ImportPolicy = "SKIP"
	PolicyOverwrite ImportPolicy = "OVERWRITE"
)

// ImportResult is the shape shared by Import and Clone.
type ImportResult struct {
	SuccCount int            `json:"succCount"`
	SkipCount int            `json:"skipCount"`
	FailCount int            `json:"failCount"`
	FailData  []FailedConfig `json:"failData,omitempty"`
}

// FailedConfig names one entry that was not imported: the conflicting
// entry that stopped an ABORT run, or an entry whose publish failed.
// Entries skipped under SKIP are only counted.
type FailedConfig struct {
	DataID string `json:"dataId"`
	Group  string `json:"group"`
}

// applyPolicy walks entries in order, publishing or skipping each one
// according to policy, and is shared by Import and Clone.
func (s *Store) applyPolicy(ctx context.Context, tenant string, policy ImportPolicy, srcUser, srcIP string, entries []zipEntry) (*ImportResult, error) {
	if policy == "" {
		policy = PolicyAbort
	}
	res := &ImportResult{}

	for _, e := range entries {
		tr := Triple{DataID: e.DataID, Group: e.Group, Tenant: tenant}.Normalize()
		_, err := s.getFromDB(ctx, tr)
		exists := err == nil
		if err != nil && err != ErrNotFound {
			return nil, err
		}

		if exists {
			switch policy {
			case PolicyAbort:
				res.FailCount++
				res.FailData = append(res.FailData, FailedConfig{DataID: e.DataID, Group: e.Group})
				return res, nil
			case PolicySkip:
				res.SkipCount++
				continue
			case PolicyOverwrite:
				// fall through to publish
			}
		}

		if err := s.Publish(ctx, tr, PublishRequest{
			Content: e.Content, Type: defaultType(e.Type), AppName: e.AppName, Desc: e.Desc,
			SrcUser: srcUser, SrcIP: srcIP,
		}); err != nil {
			res.FailCount++
			res.FailData = append(res.FailData, FailedConfig{DataID: e.DataID, Group: e.Group})
			continue
		}
		res.SuccCount++
	}
	return res, nil
}

// Import unpacks a ZIP artifact (V1 or V2, auto-detected) into tenant
// under the given conflict policy.
func (s *Store) Import(ctx context.Context, tenant string, policy ImportPolicy, zipData []byte, srcUser, srcIP string) (*ImportResult, error) {
	entries, err := parseImportZip(zipData)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	return s.applyPolicy(ctx, tenant, policy, srcUser, srcIP, entries)
}

// CloneItem names one source config by id, with an optional target
// dataId/group rewrite.
type CloneItem struct {
	CfgID      int64
	TargetData string
	TargetGrp  string
}

// Clone copies a set of configs, addressed by source id, into tenant
// under the same conflict-policy semantics as Import.
func (s *Store) Clone(ctx context.Context, tenant string, policy ImportPolicy, items []CloneItem, srcUser, srcIP string) (*ImportResult, error) {
	entries := make([]zipEntry, 0, len(items))
	for _, it := range items {
		src, err := s.byID(ctx, it.CfgID)
		if err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, fmt.Errorf("clone: load source %d: %w", it.CfgID, err)
		}
		dataID := src.DataID
		if it.TargetData != "" {
			dataID = it.TargetData
		}
		group := src.Group
		if it.TargetGrp != "" {
			group = it.TargetGrp
		}
		entries = append(entries, zipEntry{DataID: dataID, Group: group, Content: src.Content, AppName: src.AppName, Desc: src.Desc, Type: src.Type})
	}
	return s.applyPolicy(ctx, tenant, policy, srcUser, srcIP, entries)
}
