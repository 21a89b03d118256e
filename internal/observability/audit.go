package observability

import (
	"log/slog"
	"net"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Audit logs a security relevant event. Failures log at warn so they stand
// out from routine successes. Callers must never pass secrets or bearer
// tokens in attrs.
func Audit(r *http.Request, event, outcome string, attrs ...any) {
	level := slog.LevelInfo
	if outcome != "success" {
		level = slog.LevelWarn
	}
	client := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		client = host
	}
	base := []any{
		"event", event,
		"outcome", outcome,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"client_ip", client,
	}
	slog.Log(r.Context(), level, "audit", append(base, attrs...)...)
}
