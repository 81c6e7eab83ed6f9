// Package model holds the domain entities shared across the core stores.
package model

import "strconv"

// Default normalization values applied to ingress requests before they
// touch storage or dedup-key computation.
const (
	DefaultTenant = "public"
	DefaultGroup  = "DEFAULT_GROUP"
	DefaultCluster = "DEFAULT"
)

// NormalizeTenant rewrites the empty-string sentinel to the reserved
// "public" namespace.
func NormalizeTenant(tenant string) string {
	if tenant == "" {
		return DefaultTenant
	}
	return tenant
}

// NormalizeGroup rewrites the empty-string sentinel to "DEFAULT_GROUP".
func NormalizeGroup(group string) string {
	if group == "" {
		return DefaultGroup
	}
	return group
}

// NormalizeCluster rewrites the empty-string sentinel to "DEFAULT".
func NormalizeCluster(cluster string) string {
	if cluster == "" {
		return DefaultCluster
	}
	return cluster
}

// Tenant is a namespace row.
type Tenant struct {
	ID           int64  `json:"-"`
	Kp           string `json:"kp"`
	TenantID     string `json:"namespace"`
	TenantName   string `json:"namespaceShowName"`
	TenantDesc   string `json:"namespaceDesc"`
	CreateSource string `json:"-"`
	GmtCreate    int64  `json:"-"`
	GmtModified  int64  `json:"-"`
}

// Config is a live config_info row.
type Config struct {
	ID               int64  `json:"id"`
	DataID           string `json:"dataId"`
	Group            string `json:"group"`
	Tenant           string `json:"tenant"`
	Content          string `json:"content"`
	MD5              string `json:"md5"`
	Type             string `json:"type"`
	AppName          string `json:"appName"`
	Desc             string `json:"desc"`
	Use              string `json:"use"`
	Effect           string `json:"effect"`
	Schema           string `json:"schema"`
	EncryptedDataKey string `json:"encryptedDataKey"`
	SrcUser          string `json:"createUser"`
	SrcIP            string `json:"createIp"`
	GmtCreate        int64  `json:"createTime"`
	GmtModified      int64  `json:"modifyTime"`
}

// OpType enumerates the config_history_info operation kinds.
type OpType string

const (
	OpInsert OpType = "I"
	OpUpdate OpType = "U"
	OpDelete OpType = "D"
)

// ConfigHistory is an append-only config_history_info row.
type ConfigHistory struct {
	ID          int64  `json:"id"`
	Nid         int64  `json:"lastId"`
	DataID      string `json:"dataId"`
	Group       string `json:"group"`
	Tenant      string `json:"tenant"`
	Content     string `json:"content"`
	MD5         string `json:"md5"`
	Type        string `json:"type"`
	AppName     string `json:"appName"`
	Desc        string `json:"desc"`
	Use         string `json:"use"`
	Effect      string `json:"effect"`
	Schema      string `json:"schema"`
	ExtInfo     string `json:"-"`
	OpType      OpType `json:"opType"`
	PublishType string `json:"publishType"`
	GrayName    string `json:"grayName"`
	SrcUser     string `json:"createUser"`
	SrcIP       string `json:"createIp"`
	GmtCreate   int64  `json:"createTime"`
	GmtModified int64  `json:"lastModifiedTime"`
}

// ExtInfo is the JSON blob stashed in ConfigHistory.ExtInfo so Rollback can
// restore the descriptive fields exactly as they were at that history
// point, not just content.
type ExtInfo struct {
	Desc   string `json:"desc"`
	Use    string `json:"use"`
	Effect string `json:"effect"`
	Type   string `json:"type"`
	Schema string `json:"schema"`
}

// BetaConfig is a config_info_beta row: a gray-release overlay that
// coexists with the canonical Config.
type BetaConfig struct {
	ID          int64  `json:"id"`
	DataID      string `json:"dataId"`
	Group       string `json:"group"`
	Tenant      string `json:"tenant"`
	Content     string `json:"content"`
	MD5         string `json:"md5"`
	BetaIps     string `json:"betaIps"`
	SrcUser     string `json:"createUser"`
	SrcIP       string `json:"createIp"`
	GmtCreate   int64  `json:"createTime"`
	GmtModified int64  `json:"modifyTime"`
}

// Subscriber is a subscribers row: soft state recording which client is
// listening on which config triple.
type Subscriber struct {
	ID           int64  `json:"-"`
	DataID       string `json:"dataId"`
	Group        string `json:"group"`
	Tenant       string `json:"tenant"`
	ClientIP     string `json:"ip"`
	ClientPort   int    `json:"-"`
	UserAgent    string `json:"-"`
	AppName      string `json:"-"`
	MD5          string `json:"md5"`
	LastPollTime int64  `json:"-"`
	CreatedAt    int64  `json:"-"`
}

// Service is a service_info row.
type Service struct {
	ID               int64   `json:"-"`
	NamespaceID      string  `json:"namespace"`
	GroupName        string  `json:"groupName"`
	ServiceName      string  `json:"name"`
	Metadata         string  `json:"-"`
	ProtectThreshold float64 `json:"protectThreshold"`
	SelectorType     string  `json:"-"`
	Selector         string  `json:"-"`
	GmtCreate        int64   `json:"-"`
	GmtModified      int64   `json:"-"`
}

// Instance is an instance_info row, child of Service.
type Instance struct {
	ID          int64   `json:"-"`
	NamespaceID string  `json:"-"`
	GroupName   string  `json:"-"`
	ServiceName string  `json:"serviceName"`
	InstanceID  string  `json:"instanceId"`
	IP          string  `json:"ip"`
	Port        int     `json:"port"`
	Weight      float64 `json:"weight"`
	Healthy     bool    `json:"healthy"`
	Enabled     bool    `json:"enabled"`
	Ephemeral   bool    `json:"ephemeral"`
	ClusterName string  `json:"clusterName"`
	Metadata    string  `json:"-"`
	GmtCreate   int64   `json:"-"`
	GmtModified int64   `json:"-"`
}

// InstanceID computes the canonical "{ip}#{port}#{cluster}#{group}" form.
func InstanceID(ip string, port int, cluster, group string) string {
	return ip + "#" + strconv.Itoa(port) + "#" + cluster + "#" + group
}

// NamingSubscriber is a naming_subscribers row: soft state recording which
// remote client last asked for a service's instance list, the naming
// equivalent of the config listener's Subscriber.
type NamingSubscriber struct {
	Addr            string `json:"addr"`
	Agent           string `json:"agent"`
	App             string `json:"app"`
	ClusterName     string `json:"clusterName"`
	NamespaceID     string `json:"-"`
	GroupName       string `json:"-"`
	ServiceName     string `json:"-"`
	LastRefreshTime int64  `json:"-"`
}

// ServiceHistory is an append-only service_history_info row.
type ServiceHistory struct {
	ID          int64  `json:"-"`
	NamespaceID string `json:"-"`
	GroupName   string `json:"-"`
	ServiceName string `json:"-"`
	OpType      string `json:"-"`
	Detail      string `json:"-"`
	GmtCreate   int64  `json:"-"`
}

// Token is a tokens row.
type Token struct {
	Token     string
	Username  string
	CreatedAt int64
	ExpiresAt int64
}
