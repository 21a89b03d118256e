package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/sandeepkv93/credential-session-core/internal/config"
	"github.com/sandeepkv93/credential-session-core/internal/domain"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate brings the schema up to date. Postgres runs the versioned SQL
// migrations; SQLite, used for local runs and tests, is auto-migrated from the
// gorm models which declare the same constraints.
func Migrate(cfg *config.Config, db *gorm.DB, log *slog.Logger) error {
	if cfg.DatabaseDriver == config.DriverSQLite {
		if err := AutoMigrate(db); err != nil {
			return err
		}
		log.Info("sqlite schema auto-migrated")
		return nil
	}
	return runSQLMigrations(cfg.DatabaseURL, log)
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Credential{}, &domain.Session{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func runSQLMigrations(dsn string, log *slog.Logger) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration: open embedded source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, toPgx5DSN(dsn))
	if err != nil {
		return fmt.Errorf("migration: initialize: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Error("migration source close failed", "error", srcErr)
		}
		if dbErr != nil {
			log.Error("migration database close failed", "error", dbErr)
		}
	}()

	from, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: read version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration: database is dirty at version %d", from)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("migration already up to date", "version", from)
			return nil
		}
		return fmt.Errorf("migration: up: %w", err)
	}
	to, _, _ := m.Version()
	log.Info("migration applied", "from_version", from, "to_version", to)
	return nil
}

// toPgx5DSN rewrites postgres URLs to the scheme registered by the pgx/v5
// migrate driver.
func toPgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}
