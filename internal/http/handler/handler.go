package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/http/middleware"
	"github.com/sandeepkv93/credential-session-core/internal/http/response"
	"github.com/sandeepkv93/credential-session-core/internal/security"
)

type CookieSettings struct {
	Name   string
	Secure bool
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", nil)
			return false
		}
		response.Error(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body", nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		response.Error(w, r, http.StatusBadRequest, "INVALID_BODY", "body must contain a single JSON object", nil)
		return false
	}
	return true
}

// setSessionCookies writes the HttpOnly session cookie and a readable CSRF
// cookie for the double-submit check. Both expire with the session.
func setSessionCookies(w http.ResponseWriter, c CookieSettings, token string, expiresAt time.Time) (string, error) {
	csrf, err := security.NewSessionToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CSRFCookieName,
		Value:    csrf,
		Path:     "/",
		Expires:  expiresAt,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return csrf, nil
}

func clearSessionCookies(w http.ResponseWriter, c CookieSettings) {
	for _, name := range []string{c.Name, middleware.CSRFCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == c.Name,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
