package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/di"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAuthTestServer(t *testing.T) (string, *http.Client, func()) {
	return newAuthTestServerWithRedis(t, "")
}

// newAuthTestServerWithRedis builds the full production graph on an
// in-memory SQLite database and serves it over a real listener.
func newAuthTestServerWithRedis(t *testing.T, redisAddr string) (string, *http.Client, func()) {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared&_foreign_keys=on")
	t.Setenv("REDIS_ADDR", redisAddr)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ARGON2_MEMORY_KIB", "1024")
	t.Setenv("SESSION_COOKIE_SECURE", "false")
	t.Setenv("AUTH_RATE_LIMIT_RPM", "1000")
	t.Setenv("API_RATE_LIMIT_RPM", "1000")
	t.Setenv("OTEL_HTTP_ENABLED", "false")
	t.Setenv("LOGIN_MAX_FAILURES", "5")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	a, cleanup, err := di.InitializeApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	srv := httptest.NewServer(a.Server.Handler)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{Jar: jar}
	return srv.URL, client, func() {
		srv.Close()
		a.StopBackgroundTasks()
		_ = a.Observability.Shutdown(context.Background())
		cleanup()
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, apiEnvelope) {
	t.Helper()
	return doRaw(t, client, method, url, body, headers, nil)
}

func doRaw(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string, cookies []*http.Cookie) (*http.Response, apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var env apiEnvelope
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope: %v body=%s", err, raw)
		}
	}
	return resp, env
}

func cookieValue(t *testing.T, client *http.Client, baseURL, name string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

type loginPayload struct {
	CredentialID string `json:"credential_id"`
	Token        string `json:"token"`
	CSRFToken    string `json:"csrf_token"`
}

func registerAndLogin(t *testing.T, client *http.Client, baseURL, email, password string) loginPayload {
	t.Helper()
	creds := map[string]string{"email": email, "password": password}
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/register", creds, nil)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register failed: status=%d code=%s", resp.StatusCode, env.Error.Code)
	}
	return login(t, client, baseURL, email, password)
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) loginPayload {
	t.Helper()
	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", map[string]string{"email": email, "password": password}, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login failed: status=%d code=%s", resp.StatusCode, env.Error.Code)
	}
	var out loginPayload
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return out
}
