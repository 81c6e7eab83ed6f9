package handlers

import (
	"net/http"

	apierrors "github.com/nacos-mini/nacos-go/internal/api/errors"
)

// OperatorHandler serves the fixed-shape operator/health stub endpoints
// that real Nacos clusters expose for cluster introspection. A
// single-node server answers them with static, always-healthy values.
type OperatorHandler struct {
	version string
}

func NewOperatorHandler(version string) *OperatorHandler {
	return &OperatorHandler{version: version}
}

// ConfigHealth handles GET /v1/cs/health.
func (h *OperatorHandler) ConfigHealth(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteRaw(w, http.StatusOK, "UP")
}

// NamingHealth handles GET /v1/ns/health.
func (h *OperatorHandler) NamingHealth(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "UP",
		"server":  "standalone",
		"version": h.version,
	})
}

// Switches handles GET /v1/ns/operator/switches: the distributed-health
// switches a cluster could toggle, always reporting single-node defaults.
func (h *OperatorHandler) Switches(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"healthCheckEnabled":     true,
		"distroEnabled":          false,
		"enableStandalone":       true,
		"checkStatusCode":        "",
		"defaultPushCacheMillis": 10000,
	})
}

// Servers handles GET /v1/ns/operator/servers: cluster member list, which
// on a standalone server is always the one local node.
func (h *OperatorHandler) Servers(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"count": 1,
		"servers": []map[string]any{
			{"ip": "127.0.0.1", "state": "UP"},
		},
	})
}

// RaftLeader handles GET /v1/ns/raft/leader: a standalone node is always
// its own leader.
func (h *OperatorHandler) RaftLeader(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"leader": "127.0.0.1:8848",
	})
}

// Metrics handles GET /v1/ns/operator/metrics: the legacy naming metrics
// summary endpoint, distinct from the Prometheus /metrics scrape target.
func (h *OperatorHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "UP",
	})
}
