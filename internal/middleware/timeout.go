package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"go-clinic-api/internal/model"
)

const defaultRequestTimeout = 30 * time.Second

// Timeout bounds API handlers. The deadline reaches repositories through the
// request context and the client gets a 503 envelope when it passes.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	body, _ := json.Marshal(model.Failure("REQUEST_TIMEOUT", "request timed out", ""))

	return func(next http.Handler) http.Handler {
		bounded := http.TimeoutHandler(next, timeout, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handlers overwrite this; it only survives on the timeout path.
			w.Header().Set("Content-Type", "application/json")
			bounded.ServeHTTP(w, r)
		})
	}
}
