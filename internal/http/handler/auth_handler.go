package handler

import (
	"net/http"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/http/middleware"
	"github.com/sandeepkv93/credential-session-core/internal/http/response"
	"github.com/sandeepkv93/credential-session-core/internal/observability"
	"github.com/sandeepkv93/credential-session-core/internal/service"
)

type AuthHandler struct {
	auth        service.AuthServiceInterface
	credentials service.CredentialStore
	sessions    service.SessionManager
	cookies     CookieSettings
}

func NewAuthHandler(auth service.AuthServiceInterface, credentials service.CredentialStore, sessions service.SessionManager, cookies CookieSettings) *AuthHandler {
	return &AuthHandler{auth: auth, credentials: credentials, sessions: sessions, cookies: cookies}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	CredentialID string    `json:"credential_id"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	CSRFToken    string    `json:"csrf_token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, err := h.credentials.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		observability.Audit(r, "credential.register", service.ErrorKind(err))
		response.ServiceError(w, r, err)
		return
	}
	observability.Audit(r, "credential.register", "success", "credential_id", id)
	response.JSON(w, r, http.StatusCreated, map[string]string{"id": id, "email": domain.NormalizeEmail(req.Email)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		observability.Audit(r, "session.login", service.ErrorKind(err))
		response.ServiceError(w, r, err)
		return
	}
	csrf, err := setSessionCookies(w, h.cookies, res.Session.Token, res.Session.ExpiresAt)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	observability.Audit(r, "session.login", "success", "credential_id", res.CredentialID)
	response.JSON(w, r, http.StatusOK, loginResponse{
		CredentialID: res.CredentialID,
		Token:        res.Session.Token,
		ExpiresAt:    res.Session.ExpiresAt,
		CSRFToken:    csrf,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Revoke(r.Context(), middleware.SessionTokenFromContext(r.Context())); err != nil {
		response.ServiceError(w, r, err)
		return
	}
	clearSessionCookies(w, h.cookies)
	id, _ := middleware.CredentialIDFromContext(r.Context())
	observability.Audit(r, "session.logout", "success", "credential_id", id)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}
