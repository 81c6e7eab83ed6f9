package handlers

import (
	"net/http"

	apierrors "github.com/nacos-mini/nacos-go/internal/api/errors"
	"github.com/nacos-mini/nacos-go/internal/core/authtoken"
)

// AuthHandler serves /v1/auth/users/login.
type AuthHandler struct {
	tokens *authtoken.Store
}

func NewAuthHandler(tokens *authtoken.Store) *AuthHandler {
	return &AuthHandler{tokens: tokens}
}

// Login issues a fresh bearer token for the given username. There is no
// credential check beyond a non-empty username: the protocol's
// authentication boundary is the token itself, not login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		apierrors.WriteError(w, apierrors.BadRequest("unreadable form body"))
		return
	}
	username := r.FormValue("username")
	if username == "" {
		apierrors.WriteError(w, apierrors.BadRequest("username is required"))
		return
	}

	token, expiresAt, err := h.tokens.Issue(r.Context(), username)
	if err != nil {
		apierrors.WriteError(w, apierrors.Internal(err.Error()))
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken": token,
		"tokenTtl":    expiresAt,
		"globalAdmin": true,
		"username":    username,
	})
}
