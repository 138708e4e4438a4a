package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"go-clinic-api/internal/model"
)

const requestIDHeader = "X-Request-ID"

// errorBody extracts the error section of an envelope written by a handler.
type errorBody struct {
	Error *model.APIError `json:"error"`
}

// requestTrace carries what inner middleware learn about the caller back out
// to the access log. It is only touched from the request goroutine.
type requestTrace struct {
	requestID string
	auth      string
	subject   string
	role      model.Role
}

type traceContextKey struct{}

func traceFromContext(ctx context.Context) *requestTrace {
	trace, _ := ctx.Value(traceContextKey{}).(*requestTrace)
	return trace
}

// RequestIDFromContext returns the id assigned by Logging, if any.
func RequestIDFromContext(ctx context.Context) string {
	if trace := traceFromContext(ctx); trace != nil {
		return trace.requestID
	}
	return ""
}

func noteAuth(ctx context.Context, outcome string, identity *model.Identity) {
	trace := traceFromContext(ctx)
	if trace == nil {
		return
	}
	trace.auth = outcome
	if identity != nil {
		trace.subject = identity.Subject
		trace.role = identity.Role
	}
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		trace := &requestTrace{requestID: requestID, auth: "anonymous"}
		started := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), traceContextKey{}, trace)))

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"route", routePattern(r),
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"client_ip", ClientIPFrom(r),
			"auth", trace.auth,
		}
		if trace.subject != "" {
			attrs = append(attrs, "subject", trace.subject, "role", string(trace.role))
		}

		if wrapped.status >= 400 && wrapped.body.Len() > 0 {
			var parsed errorBody
			if err := json.Unmarshal(wrapped.body.Bytes(), &parsed); err == nil && parsed.Error != nil {
				attrs = append(attrs, "error_code", parsed.Error.Code, "error_message", parsed.Error.Message)
				if parsed.Error.Details != "" {
					attrs = append(attrs, "error_details", parsed.Error.Details)
				}
			}
		}

		switch {
		case wrapped.status >= 500:
			slog.Error("request", attrs...)
		case wrapped.status >= 400:
			slog.Warn("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unmatched"
}

// responseWriter keeps the status and, for failures, the body so the error
// code can be logged. Bodies of successful responses are never buffered.
type responseWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.status >= 400 && rw.body.Len() < 4096 {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
