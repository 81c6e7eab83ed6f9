package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/nacos-mini/nacos-go/internal/api/errors"
	"github.com/nacos-mini/nacos-go/internal/api/middleware"
	"github.com/nacos-mini/nacos-go/internal/core/registry"
)

// InstanceHandler serves /v1/ns/instance and its siblings.
type InstanceHandler struct {
	store *registry.Store
}

func NewInstanceHandler(store *registry.Store) *InstanceHandler {
	return &InstanceHandler{store: store}
}

func registerRequestFromForm(r *http.Request) registry.RegisterRequest {
	port, _ := strconv.Atoi(r.FormValue("port"))
	weight, _ := strconv.ParseFloat(r.FormValue("weight"), 64)
	healthy := r.FormValue("healthy") != "false"
	enabled := r.FormValue("enabled") != "false"
	ephemeral := r.FormValue("ephemeral") != "false"

	return registry.RegisterRequest{
		IP:          r.FormValue("ip"),
		Port:        port,
		Weight:      weight,
		Healthy:     healthy,
		Enabled:     enabled,
		Ephemeral:   ephemeral,
		ClusterName: r.FormValue("clusterName"),
		Metadata:    parseMetadataParam(r.FormValue("metadata")),
	}
}

// Register handles POST /v1/ns/instance.
func (h *InstanceHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "")
		return
	}
	k := registry.Key{
		Namespace: r.FormValue("namespaceId"),
		Group:     r.FormValue("groupName"),
		Service:   r.FormValue("serviceName"),
	}.Normalize()

	err := h.store.RegisterInstance(r.Context(), k, registerRequestFromForm(r))
	if errors.Is(err, registry.ErrServiceNotFound) {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "false")
		return
	}
	if err != nil {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "false")
		return
	}
	apierrors.WriteRaw(w, http.StatusOK, "ok")
}

// Deregister handles DELETE /v1/ns/instance.
func (h *InstanceHandler) Deregister(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	k := keyFromQuery(r)
	port, _ := strconv.Atoi(q.Get("port"))

	if err := h.store.DeregisterInstance(r.Context(), k, q.Get("ip"), port, q.Get("clusterName")); err != nil {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "false")
		return
	}
	apierrors.WriteRaw(w, http.StatusOK, "ok")
}

// Patch handles PUT /v1/ns/instance (partial, matching the console's
// edit-instance flow which only supplies changed fields).
func (h *InstanceHandler) Patch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "")
		return
	}
	k := registry.Key{
		Namespace: r.FormValue("namespaceId"),
		Group:     r.FormValue("groupName"),
		Service:   r.FormValue("serviceName"),
	}.Normalize()
	port, _ := strconv.Atoi(r.FormValue("port"))

	req := registry.PatchRequest{Metadata: parseMetadataParam(r.FormValue("metadata"))}
	if raw := r.FormValue("weight"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			req.Weight = &v
		}
	}
	if raw := r.FormValue("healthy"); raw != "" {
		v := raw == "true"
		req.Healthy = &v
	}
	if raw := r.FormValue("enabled"); raw != "" {
		v := raw == "true"
		req.Enabled = &v
	}

	err := h.store.PatchInstance(r.Context(), k, r.FormValue("ip"), port, r.FormValue("clusterName"), req)
	if errors.Is(err, registry.ErrNotFound) {
		apierrors.WriteRaw(w, http.StatusNotFound, "false")
		return
	}
	if err != nil {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "false")
		return
	}
	apierrors.WriteRaw(w, http.StatusOK, "ok")
}

// Get handles GET /v1/ns/instance.
func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	k := keyFromQuery(r)
	port, _ := strconv.Atoi(q.Get("port"))

	inst, err := h.store.GetInstance(r.Context(), k, q.Get("ip"), port, q.Get("clusterName"))
	if errors.Is(err, registry.ErrNotFound) {
		apierrors.WriteJSON(w, http.StatusNotFound, map[string]any{"message": "instance not found"})
		return
	}
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, inst)
}

// List handles GET /v1/ns/instance/list.
func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	k := keyFromQuery(r)

	var clusters []string
	if raw := q.Get("clusters"); raw != "" {
		clusters = strings.Split(raw, ",")
	}
	healthyOnly := q.Get("healthyOnly") == "true"

	instances, err := h.store.ListInstances(r.Context(), k, clusters, healthyOnly)
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}

	svc, err := h.store.GetService(r.Context(), k)
	reachedThreshold := false
	if err == nil {
		reachedThreshold = registry.ReachProtectionThreshold(instances, svc.ProtectThreshold)
	}

	// A naming client asking for the instance list is, in real Nacos, also
	// subscribing to future pushes for that service; record it the same
	// way the config listener records its subscribers on every poll.
	h.store.RecordSubscriber(r.Context(), k, r.RemoteAddr, r.Header.Get("User-Agent"), q.Get("app"), q.Get("clusters"))

	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"name":                     k.Service,
		"groupName":                k.Group,
		"hosts":                    instances,
		"reachProtectionThreshold": reachedThreshold,
	})
}

// Beat handles PUT /v1/ns/instance/beat.
func (h *InstanceHandler) Beat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.WriteJSON(w, http.StatusBadRequest, registry.HeartbeatResult{Code: 400})
		return
	}
	k := registry.Key{
		Namespace: r.FormValue("namespaceId"),
		Group:     r.FormValue("groupName"),
		Service:   r.FormValue("serviceName"),
	}.Normalize()
	port, _ := strconv.Atoi(r.FormValue("port"))

	_, err := h.store.Heartbeat(r.Context(), k, r.FormValue("ip"), port, r.FormValue("clusterName"))
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	// Nacos SDKs treat code 10200 as "ok, keep beating". The same answer
	// is sent when the addressed instance is not registered, so
	// found==false is not surfaced as an error here.
	apierrors.WriteJSON(w, http.StatusOK, registry.HeartbeatResult{
		ClientBeatInterval: 5000,
		Code:               10200,
		LightBeatEnabled:   true,
	})
}

type batchMetadataRequestBody struct {
	Instances   []string          `json:"instances" validate:"required,min=1"`
	Metadata    map[string]string `json:"metadata"`
	Keys        []string          `json:"keys"`
	NamespaceID string            `json:"namespaceId"`
	GroupName   string            `json:"groupName"`
	ServiceName string            `json:"serviceName" validate:"required"`
}

// BatchUpdateMetadata handles PUT /v1/ns/instance/metadata/batch.
func (h *InstanceHandler) BatchUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var body batchMetadataRequestBody
	if err := decodeJSONBody(r, &body); err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("unreadable JSON body"))
		return
	}
	if err := middleware.ValidateStruct(body); err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("invalid batch metadata request").WithDetails(middleware.FormatValidationErrors(err)))
		return
	}
	k := registry.Key{Namespace: body.NamespaceID, Group: body.GroupName, Service: body.ServiceName}.Normalize()

	updated, err := h.store.BatchUpdateMetadata(r.Context(), k, body.Instances, body.Metadata)
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

// BatchDeleteMetadata handles DELETE /v1/ns/instance/metadata/batch.
func (h *InstanceHandler) BatchDeleteMetadata(w http.ResponseWriter, r *http.Request) {
	var body batchMetadataRequestBody
	if err := decodeJSONBody(r, &body); err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("unreadable JSON body"))
		return
	}
	if err := middleware.ValidateStruct(body); err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("invalid batch metadata request").WithDetails(middleware.FormatValidationErrors(err)))
		return
	}
	k := registry.Key{Namespace: body.NamespaceID, Group: body.GroupName, Service: body.ServiceName}.Normalize()

	deleted, err := h.store.BatchDeleteMetadata(r.Context(), k, body.Instances, body.Keys)
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// StatusReport handles GET /v1/ns/instance/statuses, reporting every
// instance of a service as an "ip:port_healthy" string — distinct from
// the PUT variant on this same path, which toggles one instance's health.
func (h *InstanceHandler) StatusReport(w http.ResponseWriter, r *http.Request) {
	k := keyFromQuery(r)
	instances, err := h.store.ListInstances(r.Context(), k, nil, false)
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}

	ips := make([]string, 0, len(instances))
	for _, inst := range instances {
		ips = append(ips, fmt.Sprintf("%s:%d_%t", inst.IP, inst.Port, inst.Healthy))
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"ips": ips})
}

// Statuses handles PUT /v1/ns/health/instance, toggling the healthy flag
// directly rather than through a heartbeat.
func (h *InstanceHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "")
		return
	}
	k := registry.Key{
		Namespace: r.FormValue("namespaceId"),
		Group:     r.FormValue("groupName"),
		Service:   r.FormValue("serviceName"),
	}.Normalize()
	port, _ := strconv.Atoi(r.FormValue("port"))
	healthy := r.FormValue("healthy") == "true"

	err := h.store.UpdateHealth(r.Context(), k, r.FormValue("ip"), port, r.FormValue("clusterName"), healthy)
	if errors.Is(err, registry.ErrNotFound) {
		apierrors.WriteRaw(w, http.StatusNotFound, "false")
		return
	}
	if err != nil {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "false")
		return
	}
	apierrors.WriteRaw(w, http.StatusOK, "ok")
}
