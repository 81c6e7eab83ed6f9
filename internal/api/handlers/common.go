package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nacos-mini/nacos-go/internal/api/middleware"
)

func decodeJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func decodeJSONString(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}

func authenticatedUser(r *http.Request) (string, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		return "", false
	}
	return user.Username, true
}
