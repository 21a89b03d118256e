package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sandeepkv93/credential-session-core/internal/http/response"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/service"
)

type contextKey string

const (
	credentialIDContextKey contextKey = "credential_id"
	sessionTokenContextKey contextKey = "session_token"
	credentialSinkKey      contextKey = "credential_sink"
)

const (
	SourceCookie = "cookie"
	SourceBearer = "bearer"
)

// SessionValidator is the slice of the session manager the middleware needs.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

// SessionToken reads the bearer value from the session cookie, falling back
// to an Authorization: Bearer header.
func SessionToken(r *http.Request, cookieName string) (token, source string) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, SourceCookie
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:]), SourceBearer
	}
	return "", ""
}

func AuthMiddleware(sessions SessionValidator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, source := SessionToken(r, cookieName)
			if raw == "" {
				observability.RecordSessionAuthentication(r.Context(), "missing", "none")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session token", nil)
				return
			}
			credentialID, err := sessions.Validate(r.Context(), raw)
			if err != nil {
				observability.RecordSessionAuthentication(r.Context(), service.ErrorKind(err), source)
				if errors.Is(err, service.ErrNotFound) {
					response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid session token", nil)
					return
				}
				response.ServiceError(w, r, err)
				return
			}
			observability.RecordSessionAuthentication(r.Context(), "valid", source)
			if sink, ok := r.Context().Value(credentialSinkKey).(*string); ok {
				*sink = credentialID
			}
			ctx := context.WithValue(r.Context(), credentialIDContextKey, credentialID)
			ctx = context.WithValue(ctx, sessionTokenContextKey, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CredentialIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(credentialIDContextKey).(string)
	return id, ok && id != ""
}

func SessionTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenContextKey).(string)
	return token
}

// withCredentialSink lets an outer middleware learn which credential an inner
// AuthMiddleware resolved.
func withCredentialSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, credentialSinkKey, sink)
}
