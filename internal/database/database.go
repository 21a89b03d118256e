package database

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sandeepkv93/credential-session-core/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects gorm to the configured driver. Errors are translated so that
// unique violations surface as gorm.ErrDuplicatedKey on every dialect.
func Open(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseURL)
	case config.DriverSQLite:
		dialector = sqlite.Open(SQLiteDSN(cfg.DatabaseURL))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DatabaseDriver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	switch {
	case cfg.DatabaseDriver == config.DriverSQLite && isSQLiteMemory(cfg.DatabaseURL):
		// In-memory databases cannot use WAL, so every caller shares one
		// connection. Only suitable for tests.
		sqlDB.SetMaxOpenConns(1)
	case cfg.DatabaseDriver == config.DriverSQLite:
		// WAL readers never wait on the writer. Writers take the lock at
		// BEGIN and queue on the busy timeout.
		sqlDB.SetMaxOpenConns(sqliteMaxConns)
		sqlDB.SetMaxIdleConns(sqliteMaxConns)
	default:
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	log.Info("database connected", "driver", cfg.DatabaseDriver)
	return db, nil
}

const sqliteMaxConns = 8

var sqliteDefaults = [][2]string{
	{"_foreign_keys", "on"},
	{"_journal_mode", "WAL"},
	{"_busy_timeout", "5000"},
	{"_txlock", "immediate"},
}

// SQLiteDSN fills in connection parameters the service depends on. Values
// already present in raw win. In-memory databases only get foreign keys.
func SQLiteDSN(raw string) string {
	base, rawQuery, _ := strings.Cut(raw, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return raw
	}
	memory := isSQLiteMemory(raw)
	for _, kv := range sqliteDefaults {
		if memory && kv[0] != "_foreign_keys" {
			continue
		}
		if q.Get(kv[0]) == "" {
			q.Set(kv[0], kv[1])
		}
	}
	return base + "?" + q.Encode()
}

func isSQLiteMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
