// Package handlers implements the Nacos wire handlers: config, listener,
// history, naming, namespace, auth and operator endpoints, each shaping
// its response into the exact envelope the route requires.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	apierrors "github.com/nacos-mini/nacos-go/internal/api/errors"
	"github.com/nacos-mini/nacos-go/internal/api/middleware"
	"github.com/nacos-mini/nacos-go/internal/core/configstore"
)

// ConfigHandler serves /v1/cs/configs and its siblings.
type ConfigHandler struct {
	store *configstore.Store
}

func NewConfigHandler(store *configstore.Store) *ConfigHandler {
	return &ConfigHandler{store: store}
}

func tripleFromQuery(r *http.Request) configstore.Triple {
	q := r.URL.Query()
	return configstore.Triple{
		DataID: q.Get("dataId"),
		Group:  q.Get("group"),
		Tenant: q.Get("tenant"),
	}.Normalize()
}

// Get handles GET /v1/cs/configs, multiplexing on show/search/beta/export
// query flags.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Get("export") == "true" || q.Get("exportV2") == "true":
		h.export(w, r, q.Get("exportV2") == "true")
		return
	case q.Get("beta") == "true":
		h.getBeta(w, r)
		return
	case q.Get("search") != "":
		h.search(w, r, q.Get("search"))
		return
	case q.Get("show") == "all":
		h.getShowAll(w, r)
		return
	}

	tr := tripleFromQuery(r)
	if tr.DataID == "" {
		apierrors.WriteRaw(w, http.StatusBadRequest, "dataId is required")
		return
	}

	cfg, err := h.store.Get(r.Context(), tr)
	if errors.Is(err, configstore.ErrNotFound) {
		apierrors.WriteRaw(w, http.StatusNotFound, "config data not exist")
		return
	}
	if err != nil {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "")
		return
	}
	apierrors.WriteRaw(w, http.StatusOK, cfg.Content)
}

func (h *ConfigHandler) getShowAll(w http.ResponseWriter, r *http.Request) {
	tr := tripleFromQuery(r)
	cfg, err := h.store.Get(r.Context(), tr)
	if errors.Is(err, configstore.ErrNotFound) {
		apierrors.WriteJSON(w, http.StatusNotFound, map[string]any{"message": "config data not exist"})
		return
	}
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, cfg)
}

// Catalog handles GET /v1/cs/configs/catalog — same projection as showAll.
func (h *ConfigHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	tr := tripleFromQuery(r)
	cfg, err := h.store.Catalog(r.Context(), tr)
	if errors.Is(err, configstore.ErrNotFound) {
		apierrors.WriteJSON(w, http.StatusNotFound, map[string]any{"message": "config data not exist"})
		return
	}
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, cfg)
}

func (h *ConfigHandler) getBeta(w http.ResponseWriter, r *http.Request) {
	tr := tripleFromQuery(r)
	beta, err := h.store.BetaGet(r.Context(), tr)
	if errors.Is(err, configstore.ErrNotFound) {
		apierrors.WriteJSON(w, http.StatusNotFound, map[string]any{"message": "beta config not exist"})
		return
	}
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, beta)
}

func (h *ConfigHandler) search(w http.ResponseWriter, r *http.Request, mode string) {
	q := r.URL.Query()
	searchMode := configstore.SearchAccurate
	if mode == "blur" {
		searchMode = configstore.SearchBlur
	}
	pageNo, _ := strconv.Atoi(q.Get("pageNo"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	configs, total, err := h.store.Search(r.Context(), configstore.SearchFilter{
		DataID: q.Get("dataId"), Group: q.Get("group"), Tenant: q.Get("tenant"), AppName: q.Get("appName"),
		Mode: searchMode, PageNo: pageNo, PageSize: pageSize,
	})
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"totalCount": total,
		"pageItems":  configs,
	})
}

func (h *ConfigHandler) export(w http.ResponseWriter, r *http.Request, v2 bool) {
	q := r.URL.Query()
	zipData, err := h.store.Export(r.Context(), configstore.ExportFilter{
		Tenant: q.Get("tenant"), DataID: q.Get("dataId"), Group: q.Get("group"), AppName: q.Get("appName"),
	}, v2)
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment;filename="nacos_config_export.zip"`)
	w.WriteHeader(http.StatusOK)
	w.Write(zipData)
}

// Publish handles POST /v1/cs/configs (form body), import (multipart) and
// clone (JSON body), multiplexed on query flags.
func (h *ConfigHandler) Publish(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("import") == "true":
		h.doImport(w, r)
		return
	case q.Get("clone") == "true":
		h.doClone(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "false")
		return
	}
	tr := configstore.Triple{
		DataID: r.FormValue("dataId"), Group: r.FormValue("group"), Tenant: r.FormValue("tenant"),
	}.Normalize()
	if tr.DataID == "" {
		apierrors.WriteRaw(w, http.StatusBadRequest, "false")
		return
	}

	err := h.store.Publish(r.Context(), tr, configstore.PublishRequest{
		Content: r.FormValue("content"),
		Type:    r.FormValue("type"),
		AppName: r.FormValue("appName"),
		Desc:    r.FormValue("desc"),
		Use:     r.FormValue("use"),
		Effect:  r.FormValue("effect"),
		Schema:  r.FormValue("schema"),
		SrcUser: r.FormValue("srcUser"),
		SrcIP:   clientIP(r),
	})
	if err != nil {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "false")
		return
	}
	apierrors.WriteRaw(w, http.StatusOK, "true")
}

func (h *ConfigHandler) doImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("unreadable multipart body"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("missing file part"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("unreadable zip"))
		return
	}

	policy := configstore.ImportPolicy(r.FormValue("policy"))
	tenant := r.FormValue("namespace")
	res, err := h.store.Import(r.Context(), tenant, policy, data, r.FormValue("srcUser"), clientIP(r))
	if err != nil {
		apierrors.WriteError(w, apierrors.BadRequest(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, res)
}

type cloneRequestBody struct {
	Policy  string `json:"policy"`
	Tenant  string `json:"tenant"`
	Configs []struct {
		CfgID      int64  `json:"cfgId" validate:"required"`
		TargetData string `json:"dataId" validate:"required"`
		TargetGrp  string `json:"group" validate:"required"`
	} `json:"configs" validate:"required,min=1,dive"`
}

func (h *ConfigHandler) doClone(w http.ResponseWriter, r *http.Request) {
	var body cloneRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("unreadable JSON body"))
		return
	}
	if err := middleware.ValidateStruct(body); err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("invalid clone request").WithDetails(middleware.FormatValidationErrors(err)))
		return
	}

	items := make([]configstore.CloneItem, 0, len(body.Configs))
	for _, c := range body.Configs {
		items = append(items, configstore.CloneItem{CfgID: c.CfgID, TargetData: c.TargetData, TargetGrp: c.TargetGrp})
	}

	res, err := h.store.Clone(r.Context(), body.Tenant, configstore.ImportPolicy(body.Policy), items, "", clientIP(r))
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, res)
}

// Delete handles DELETE /v1/cs/configs and its beta=true variant.
func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tr := tripleFromQuery(r)
	if r.URL.Query().Get("beta") == "true" {
		if err := h.store.BetaDelete(r.Context(), tr); err != nil {
			apierrors.WriteRaw(w, http.StatusInternalServerError, "false")
			return
		}
		apierrors.WriteRaw(w, http.StatusOK, "true")
		return
	}

	if err := h.store.Delete(r.Context(), tr, "", clientIP(r)); err != nil {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "false")
		return
	}
	apierrors.WriteRaw(w, http.StatusOK, "true")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
