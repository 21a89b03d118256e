package response

import (
	"encoding/json"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sandeepkv93/credential-session-core/internal/service"
)

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
	Meta    meta      `json:"meta"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, status, envelope{Success: true, Data: data, Meta: buildMeta(r)})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	write(w, status, envelope{Success: false, Error: &apiError{Code: code, Message: message, Details: details}, Meta: buildMeta(r)})
}

type errorMapping struct {
	status  int
	code    string
	message string
}

// Messages are fixed per kind so storage causes never reach a client.
var serviceErrors = map[string]errorMapping{
	"duplicate_email":     {http.StatusConflict, "EMAIL_TAKEN", "email already registered"},
	"invalid_email":       {http.StatusBadRequest, "INVALID_EMAIL", "invalid email address"},
	"weak_password":       {http.StatusBadRequest, "WEAK_PASSWORD", ""},
	"invalid_credentials": {http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"},
	"not_found":           {http.StatusNotFound, "NOT_FOUND", "resource not found"},
	"expired":             {http.StatusUnauthorized, "SESSION_EXPIRED", "session expired"},
	"revoked":             {http.StatusUnauthorized, "SESSION_REVOKED", "session revoked"},
	"credential_inactive": {http.StatusUnauthorized, "CREDENTIAL_INACTIVE", "credential inactive"},
	"login_throttled":     {http.StatusTooManyRequests, "LOGIN_THROTTLED", "too many failed login attempts"},
	"storage_unavailable": {http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage temporarily unavailable"},
	"deadline_exceeded":   {http.StatusServiceUnavailable, "TIMEOUT", "request timed out"},
}

// ServiceError writes the envelope for an error returned by the service
// layer. Weak password errors keep their policy detail.
func ServiceError(w http.ResponseWriter, r *http.Request, err error) {
	m, ok := serviceErrors[service.ErrorKind(err)]
	if !ok {
		Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	msg := m.message
	if msg == "" {
		msg = err.Error()
	}
	Error(w, r, m.status, m.code, msg, nil)
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func buildMeta(r *http.Request) meta {
	id := chimiddleware.GetReqID(r.Context())
	if id == "" {
		id = r.Header.Get("X-Request-Id")
	}
	if id == "" {
		id = "req-unknown"
	}
	return meta{RequestID: id, Timestamp: time.Now().UTC()}
}
