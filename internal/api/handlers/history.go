package handlers

import (
	"errors"
	"net/http"
	"strconv"

	apierrors "github.com/nacos-mini/nacos-go/internal/api/errors"
	"github.com/nacos-mini/nacos-go/internal/core/configstore"
)

// HistoryHandler serves /v1/cs/history and its previous/rollback siblings.
type HistoryHandler struct {
	store *configstore.Store
}

func NewHistoryHandler(store *configstore.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// List handles GET /v1/cs/history.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	tr := tripleFromQuery(r)
	if tr.DataID == "" {
		apierrors.WriteError(w, apierrors.BadRequest("dataId is required"))
		return
	}

	q := r.URL.Query()
	pageNo, _ := strconv.Atoi(q.Get("pageNo"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	rows, total, err := h.store.HistoryList(r.Context(), tr, pageNo, pageSize)
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"totalCount": total,
		"pageItems":  rows,
	})
}

// Previous handles GET /v1/cs/history/previous.
func (h *HistoryHandler) Previous(w http.ResponseWriter, r *http.Request) {
	tr := tripleFromQuery(r)
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("id must be numeric"))
		return
	}

	row, err := h.store.HistoryPrevious(r.Context(), tr, id)
	if errors.Is(err, configstore.ErrNotFound) {
		apierrors.WriteError(w, apierrors.NotFound("history record"))
		return
	}
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, row)
}

// Rollback handles POST /v3/console/cs/config/rollback. Its distinguishing
// params (dataId, groupName, nid, namespaceId) are query parameters like
// every other route in this table, not a JSON body, and it answers with
// its own {code, message} shape rather than the namespace-style RestResult.
func (h *HistoryHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	nid, err := strconv.ParseInt(q.Get("nid"), 10, 64)
	if err != nil {
		apierrors.WriteJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "message": "nid must be numeric"})
		return
	}
	tr := configstore.Triple{DataID: q.Get("dataId"), Group: q.Get("groupName"), Tenant: q.Get("namespaceId")}.Normalize()
	username := ""
	if user, ok := authenticatedUser(r); ok {
		username = user
	}

	if err := h.store.Rollback(r.Context(), tr, nid, username, clientIP(r)); err != nil {
		if errors.Is(err, configstore.ErrNotFound) {
			apierrors.WriteJSON(w, http.StatusNotFound, map[string]any{"code": 404, "message": "history record not found"})
			return
		}
		apierrors.WriteJSON(w, http.StatusInternalServerError, map[string]any{"code": 500, "message": err.Error()})
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"code": 0, "message": "Rollback successful"})
}
