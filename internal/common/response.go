package common

import (
	"encoding/json"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError sends {"error": {"code": ..., "message": ...}}.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, HTTPStatus(err), map[string]any{
		"error": map[string]string{
			"code":    string(CodeOf(err)),
			"message": PublicMessage(err),
		},
	})
}
