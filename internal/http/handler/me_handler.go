package handler

import (
	"net/http"

	"github.com/sandeepkv93/credential-session-core/internal/http/middleware"
	"github.com/sandeepkv93/credential-session-core/internal/http/response"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/service"
)

// MeHandler serves the authenticated caller's own credential and sessions.
// Every route sits behind AuthMiddleware.
type MeHandler struct {
	auth        service.AuthServiceInterface
	credentials service.CredentialStore
	sessions    service.SessionManager
	cookies     CookieSettings
}

func NewMeHandler(auth service.AuthServiceInterface, credentials service.CredentialStore, sessions service.SessionManager, cookies CookieSettings) *MeHandler {
	return &MeHandler{auth: auth, credentials: credentials, sessions: sessions, cookies: cookies}
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.CredentialIDFromContext(r.Context())
	c, err := h.credentials.Get(r.Context(), id)
	if err != nil {
		response.ServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, c)
}

func (h *MeHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.CredentialIDFromContext(r.Context())
	views, err := h.sessions.ListActive(r.Context(), id, middleware.SessionTokenFromContext(r.Context()))
	if err != nil {
		response.ServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"sessions": views})
}

func (h *MeHandler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.CredentialIDFromContext(r.Context())
	n, err := h.sessions.RevokeAll(r.Context(), id)
	if err != nil {
		response.ServiceError(w, r, err)
		return
	}
	clearSessionCookies(w, h.cookies)
	observability.Audit(r, "session.revoke_all", "success", "credential_id", id, "count", n)
	response.JSON(w, r, http.StatusOK, map[string]int64{"revoked": n})
}

func (h *MeHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, _ := middleware.CredentialIDFromContext(r.Context())
	if err := h.auth.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		observability.Audit(r, "credential.change_password", service.ErrorKind(err), "credential_id", id)
		response.ServiceError(w, r, err)
		return
	}
	clearSessionCookies(w, h.cookies)
	observability.Audit(r, "credential.change_password", "success", "credential_id", id)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_changed"})
}

func (h *MeHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.CredentialIDFromContext(r.Context())
	if err := h.credentials.Deactivate(r.Context(), id); err != nil {
		response.ServiceError(w, r, err)
		return
	}
	clearSessionCookies(w, h.cookies)
	observability.Audit(r, "credential.deactivate", "success", "credential_id", id)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *MeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.CredentialIDFromContext(r.Context())
	if err := h.credentials.Delete(r.Context(), id); err != nil {
		response.ServiceError(w, r, err)
		return
	}
	clearSessionCookies(w, h.cookies)
	observability.Audit(r, "credential.delete", "success", "credential_id", id)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}
