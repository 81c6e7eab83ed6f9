package handlers

import (
	"errors"
	"net/http"
	"strconv"

	apierrors "github.com/nacos-mini/nacos-go/internal/api/errors"
	"github.com/nacos-mini/nacos-go/internal/core/registry"
)

// ServiceHandler serves /v1/ns/service and its siblings.
type ServiceHandler struct {
	store *registry.Store
}

func NewServiceHandler(store *registry.Store) *ServiceHandler {
	return &ServiceHandler{store: store}
}

func keyFromQuery(r *http.Request) registry.Key {
	q := r.URL.Query()
	return registry.Key{
		Namespace: q.Get("namespaceId"),
		Group:     q.Get("groupName"),
		Service:   q.Get("serviceName"),
	}.Normalize()
}

func parseMetadataParam(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var m map[string]string
	if err := decodeJSONString(raw, &m); err != nil {
		return nil
	}
	return m
}

// Create handles POST /v1/ns/service.
func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "")
		return
	}
	k := registry.Key{
		Namespace: r.FormValue("namespaceId"),
		Group:     r.FormValue("groupName"),
		Service:   r.FormValue("serviceName"),
	}.Normalize()
	if k.Service == "" {
		apierrors.WriteRaw(w, http.StatusBadRequest, "serviceName is required")
		return
	}

	threshold, _ := strconv.ParseFloat(r.FormValue("protectThreshold"), 64)
	err := h.store.CreateService(r.Context(), k, registry.CreateServiceRequest{
		ProtectThreshold: threshold,
		Metadata:         parseMetadataParam(r.FormValue("metadata")),
		SelectorType:     r.FormValue("selector"),
	})
	if err != nil {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "false")
		return
	}
	apierrors.WriteRaw(w, http.StatusOK, "ok")
}

// Get handles GET /v1/ns/service.
func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	k := keyFromQuery(r)
	svc, err := h.store.GetService(r.Context(), k)
	if errors.Is(err, registry.ErrNotFound) {
		apierrors.WriteJSON(w, http.StatusNotFound, map[string]any{"message": "service not found"})
		return
	}
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, svc)
}

// Update handles PUT /v1/ns/service.
func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "")
		return
	}
	k := registry.Key{
		Namespace: r.FormValue("namespaceId"),
		Group:     r.FormValue("groupName"),
		Service:   r.FormValue("serviceName"),
	}.Normalize()

	threshold, _ := strconv.ParseFloat(r.FormValue("protectThreshold"), 64)
	err := h.store.UpdateService(r.Context(), k, registry.CreateServiceRequest{
		ProtectThreshold: threshold,
		Metadata:         parseMetadataParam(r.FormValue("metadata")),
		SelectorType:     r.FormValue("selector"),
	})
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

// Delete handles DELETE /v1/ns/service.
func (h *ServiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	k := keyFromQuery(r)
	if err := h.store.DeleteService(r.Context(), k); err != nil {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "false")
		return
	}
	apierrors.WriteRaw(w, http.StatusOK, "ok")
}

// List handles GET /v1/ns/service/list.
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageNo, _ := strconv.Atoi(q.Get("pageNo"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	names, total, err := h.store.ListServiceNames(r.Context(), q.Get("namespaceId"), q.Get("groupName"), pageNo, pageSize)
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"count": total,
		"doms":  names,
	})
}

// Names handles GET /v1/ns/service/names. Same underlying listing as List,
// but the key the legacy naming console expects is "META-INF/services",
// not "doms".
func (h *ServiceHandler) Names(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageNo, _ := strconv.Atoi(q.Get("pageNo"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	names, total, err := h.store.ListServiceNames(r.Context(), q.Get("namespaceId"), q.Get("groupName"), pageNo, pageSize)
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"count":             total,
		"META-INF/services": names,
	})
}

// Subscribers handles GET /v1/ns/service/subscribers — the clients
// currently subscribed to a service, recorded as a side effect of
// instance-list calls, not the config listener's subscriber table.
func (h *ServiceHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	k := keyFromQuery(r)
	pageNo, _ := strconv.Atoi(q.Get("pageNo"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	subs, total, err := h.store.ListSubscribers(r.Context(), k, pageNo, pageSize)
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"count":       total,
		"subscribers": subs,
	})
}
