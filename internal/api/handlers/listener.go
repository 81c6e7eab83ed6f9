package handlers

import (
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/nacos-mini/nacos-go/internal/api/errors"
	"github.com/nacos-mini/nacos-go/internal/core/notifier"
)

// ListenerHandler serves the long-polling listener endpoints and their
// console-facing projections.
type ListenerHandler struct {
	notifier *notifier.Notifier
}

func NewListenerHandler(n *notifier.Notifier) *ListenerHandler {
	return &ListenerHandler{notifier: n}
}

// Poll handles POST /v1/cs/configs/listener: a long-held request carrying
// the client's current MD5s in the Listening-Configs form field.
func (h *ListenerHandler) Poll(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "")
		return
	}

	records, err := notifier.ParseListeningConfigs(r.FormValue("Listening-Configs"))
	if err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "")
		return
	}
	if len(records) == 0 {
		apierrors.WriteRaw(w, http.StatusOK, "")
		return
	}

	timeout := notifier.DefaultTimeout
	if raw := r.Header.Get("Long-Pulling-Timeout"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			apierrors.WriteRaw(w, http.StatusBadRequest, "Long-Pulling-Timeout must be a positive integer")
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	host, port := requestHostPort(r)
	changed, err := h.notifier.Poll(r.Context(), host, port, r.Header.Get("User-Agent"), records, timeout)
	if err != nil {
		apierrors.WriteRaw(w, http.StatusInternalServerError, "")
		return
	}
	apierrors.WriteRaw(w, http.StatusOK, notifier.Encode(changed))
}

// Get handles GET /v1/cs/configs/listener, a non-blocking variant. It
// parses Listening-Configs and answers 400 if the payload is malformed;
// otherwise it answers 200 with an empty body. It does not look up the
// listed configs or report which of them exist or have listeners.
func (h *ListenerHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("Listening-Configs")
	records, err := notifier.ParseListeningConfigs(raw)
	if err != nil {
		apierrors.WriteRaw(w, http.StatusBadRequest, "")
		return
	}
	_ = records
	apierrors.WriteRaw(w, http.StatusOK, notifier.Encode(nil))
}

// ListByDataID handles GET /v3/console/cs/config/listener.
func (h *ListenerHandler) ListByDataID(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listeners, err := h.notifier.ListenersByDataID(r.Context(), q.Get("dataId"), q.Get("group"), q.Get("tenant"))
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteRestResult(w, map[string]any{"listenersStatus": listeners})
}

// ListByIP handles GET /v3/console/cs/config/listener/ip.
func (h *ListenerHandler) ListByIP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listeners, err := h.notifier.ListenersByIP(r.Context(), q.Get("ip"), q.Get("tenant"))
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteRestResult(w, map[string]any{"listenersStatus": listeners})
}

func requestHostPort(r *http.Request) (string, int) {
	host := clientIP(r)
	port := 0
	if p := r.Header.Get("Client-Port"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	return host, port
}
