package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"evalsum/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Open connects to the database selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (*sql.DB, string, error) {
	var (
		db     *sql.DB
		err    error
		driver = normalizeDriver(cfg.Driver)
	)

	switch driver {
	case "sqlite3":
		if cfg.DSN == "" {
			return nil, "", fmt.Errorf("sqlite dsn must be provided")
		}
		if cfg.DSN != ":memory:" && !strings.HasPrefix(cfg.DSN, "file:") {
			if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
				return nil, "", fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite database: %w", err)
		}
		// single writer
		db.SetMaxOpenConns(1)
	case "mysql":
		dsn := cfg.DSN
		if dsn == "" {
			params := cfg.Params
			if params == "" {
				params = "parseTime=true"
			}
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				cfg.Username,
				cfg.Password,
				cfg.Host,
				cfg.Port,
				cfg.DBName,
				params,
			)
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, "", fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, "", fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping database: %w", err)
	}
	return db, driver, nil
}

// Migrate applies the embedded migrations for driver.
func Migrate(db *sql.DB, driver string) error {
	driver = normalizeDriver(driver)
	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	var m *migrate.Migrate
	switch driver {
	case "sqlite3":
		target, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			return fmt.Errorf("sqlite migrate driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", target)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
	case "mysql":
		target, err := migratemysql.WithInstance(db, &migratemysql.Config{})
		if err != nil {
			return fmt.Errorf("mysql migrate driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "mysql", target)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate (%s): %w", driver, err)
	}
	return nil
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return strings.ToLower(driver)
	}
}
