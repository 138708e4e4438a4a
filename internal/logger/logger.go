package logger

import (
	"io"
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveKeys are matched as substrings of the lowercased attribute key.
var sensitiveKeys = []string{"password", "token", "authorization", "secret", "private_key"}

// Redact masks attributes whose key names a credential. It has the
// slog.HandlerOptions.ReplaceAttr signature.
func Redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, redacted)
		}
	}
	a.Value = a.Value.Resolve()
	return a
}

// New builds the process logger. "json" selects structured output for log
// shippers; anything else writes colored lines.
func New(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: Redact,
		}))
	}
	return slog.New(NewPrettyHandler(w, &slog.HandlerOptions{Level: level}))
}
