package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/nacos-mini/nacos-go/internal/api/errors"
	"github.com/nacos-mini/nacos-go/internal/core/tenant"
)

// NamespaceHandler serves /v1/console/namespaces.
type NamespaceHandler struct {
	store *tenant.Store
}

func NewNamespaceHandler(store *tenant.Store) *NamespaceHandler {
	return &NamespaceHandler{store: store}
}

// List handles GET /v1/console/namespaces with no "show" parameter, or
// GET with "namespaceId" set to fetch one.
func (h *NamespaceHandler) List(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("namespaceId"); id != "" {
		ns, err := h.store.Get(r.Context(), id)
		if errors.Is(err, tenant.ErrNotFound) {
			apierrors.WriteRestError(w, apierrors.NotFound("namespace"))
			return
		}
		if err != nil {
			apierrors.WriteRestError(w, apierrors.Internal(err.Error()))
			return
		}
		apierrors.WriteRestResult(w, ns)
		return
	}

	list, err := h.store.List(r.Context())
	if err != nil {
		apierrors.WriteRestError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteRestResult(w, list)
}

// Create handles POST /v1/console/namespaces. Unlike List, this returns a
// bare boolean — the RestResult envelope is reserved for List.
func (h *NamespaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "false")
		return
	}
	id := r.FormValue("customNamespaceId")
	if id == "" {
		id = r.FormValue("namespaceId")
	}

	err := h.store.Create(r.Context(), id, r.FormValue("namespaceName"), r.FormValue("namespaceDesc"))
	if err != nil {
		apierrors.WriteJSON(w, http.StatusInternalServerError, false)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, true)
}

// Update handles PUT /v1/console/namespaces. The form fields are named
// "namespace" and "namespaceShowName" on the wire, not "namespaceId"/
// "namespaceName" — using the wrong names means every real client call
// silently no-ops.
func (h *NamespaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "false")
		return
	}

	err := h.store.Update(r.Context(), r.FormValue("namespace"), r.FormValue("namespaceShowName"), r.FormValue("namespaceDesc"))
	if errors.Is(err, tenant.ErrNotFound) {
		apierrors.WriteJSON(w, http.StatusNotFound, false)
		return
	}
	if err != nil {
		apierrors.WriteJSON(w, http.StatusInternalServerError, false)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, true)
}

// Delete handles DELETE /v1/console/namespaces.
func (h *NamespaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("namespaceId")
	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, tenant.ErrReservedNamespace) {
		apierrors.WriteJSON(w, http.StatusBadRequest, false)
		return
	}
	if err != nil {
		apierrors.WriteJSON(w, http.StatusInternalServerError, false)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, true)
}
