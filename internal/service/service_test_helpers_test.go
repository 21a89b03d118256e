package service

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/repository"
	"github.com/sandeepkv93/credential-session-core/internal/security"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var serviceTestStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testCore struct {
	db          *gorm.DB
	clock       *ManualClock
	credentials *CredentialService
	sessions    *SessionService
}

func newCoreForTest(t *testing.T) *testCore {
	t.Helper()
	return newCoreWithDB(t, newServiceDBForTest(t))
}

func newCoreWithDB(t *testing.T, db *gorm.DB) *testCore {
	t.Helper()
	clock := NewManualClock(serviceTestStart)
	locks := NewCredentialLocks(8)
	log := discardLogger()
	retry := RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond}

	credentials := NewCredentialService(
		repository.NewCredentialRepository(db),
		newTestHasher(),
		security.PasswordPolicy{MinLength: 8, MaxLength: 128},
		locks,
		retry,
		log,
	)
	sessions := NewSessionService(
		repository.NewSessionRepository(db),
		clock,
		locks,
		SessionSettings{DefaultTTL: time.Hour, MaxTTL: 24 * time.Hour, SweepGrace: time.Hour, Pepper: "test-pepper"},
		retry,
		log,
	)
	return &testCore{db: db, clock: clock, credentials: credentials, sessions: sessions}
}

func newServiceDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&domain.Credential{}, &domain.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestHasher() *security.Argon2Hasher {
	return security.NewArgon2Hasher(security.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1}, 4)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
