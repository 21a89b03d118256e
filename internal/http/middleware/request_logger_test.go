package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStructuredRequestLoggerRecordsOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := StructuredRequestLogger(logger)(AuthMiddleware(stubValidator{}, "ssid")(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("ok"))
		}),
	))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v (%s)", err, buf.String())
	}
	if record["status"] != float64(http.StatusCreated) || record["level"] != "INFO" {
		t.Fatalf("unexpected record %v", record)
	}
	if record["credential_id"] != "cred-abc" {
		t.Fatalf("expected credential id in record, got %v", record["credential_id"])
	}
	if record["bytes"] != float64(2) {
		t.Fatalf("expected bytes=2, got %v", record["bytes"])
	}
}

func TestStructuredRequestLoggerWarnsOnClientErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := StructuredRequestLogger(logger)(AuthMiddleware(stubValidator{}, "ssid")(http.NotFoundHandler()))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if record["level"] != "WARN" || record["status"] != float64(http.StatusUnauthorized) {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["credential_id"]; ok {
		t.Fatal("unauthenticated request must not carry a credential id")
	}
}
