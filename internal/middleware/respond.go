package middleware

import (
	"encoding/json"
	"net/http"

	"go-clinic-api/internal/model"
)

// writeFailure writes the error envelope. Extra headers must already be set.
func writeFailure(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.Failure(code, message, ""))
}
