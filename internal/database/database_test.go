package database

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/domain"
)

func TestToPgx5DSN(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@h:5432/db?sslmode=disable":   "pgx5://u:p@h:5432/db?sslmode=disable",
		"postgresql://u:p@h:5432/db?sslmode=disable": "pgx5://u:p@h:5432/db?sslmode=disable",
		"pgx5://already": "pgx5://already",
	}
	for in, want := range cases {
		if got := toPgx5DSN(in); got != want {
			t.Fatalf("toPgx5DSN(%q)=%q want %q", in, got, want)
		}
	}
}

func TestOpenAndMigrateSQLiteEnforcesCascade(t *testing.T) {
	cfg := &config.Config{
		DatabaseDriver: config.DriverSQLite,
		DatabaseURL:    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(cfg, log)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	if err := Migrate(cfg, db, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cred := &domain.Credential{ID: "c-1", Email: "a@example.com", Password: "x", Active: true}
	if err := db.Create(cred).Error; err != nil {
		t.Fatalf("create credential: %v", err)
	}
	if err := db.Exec(
		"INSERT INTO sessions (id, created_at, expires_at, credential_id, active) VALUES (?, CURRENT_TIMESTAMP, datetime('now', '+1 hour'), ?, 1)",
		"s-1", cred.ID,
	).Error; err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if err := db.Exec("DELETE FROM credentials WHERE id = ?", cred.ID).Error; err != nil {
		t.Fatalf("delete credential: %v", err)
	}
	var n int64
	if err := db.Model(&domain.Session{}).Count(&n).Error; err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected foreign key cascade to remove sessions, %d left", n)
	}
}

func TestSQLiteDSN(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "file gets wal defaults",
			in:   "file:authcore.db",
			want: "file:authcore.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate",
		},
		{
			name: "explicit values win",
			in:   "file:authcore.db?_busy_timeout=100&_foreign_keys=on",
			want: "file:authcore.db?_busy_timeout=100&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate",
		},
		{
			name: "memory only gets foreign keys",
			in:   "file:t1?mode=memory&cache=shared",
			want: "file:t1?_foreign_keys=on&cache=shared&mode=memory",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SQLiteDSN(tc.in); got != tc.want {
				t.Fatalf("SQLiteDSN(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
