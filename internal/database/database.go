package database

import (
	"fmt"
	"strings"

	"wiki-quiz/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds database configuration
type Config struct {
	URL      string
	LogLevel string
}

// Connect opens a connection pool for the configured URL. Postgres URLs use the
// postgres driver; sqlite://, file: and :memory: URLs use SQLite.
func Connect(config *Config) (*gorm.DB, error) {
	dialector, err := dialectorFor(config.URL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(parseLogLevel(config.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if IsSQLite(config.URL) {
		// One connection: in-memory databases are per-connection and the
		// foreign_keys pragma is per-connection too.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)

		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	return db, nil
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection not established")
	}

	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Reset drops and recreates every table.
func Reset(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection not established")
	}

	if err := models.DropAll(db); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return Migrate(db)
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Ping checks that the database is reachable.
func Ping(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection not established")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// IsSQLite reports whether url points at a SQLite database.
func IsSQLite(url string) bool {
	return strings.HasPrefix(url, "sqlite://") ||
		strings.HasPrefix(url, "file:") ||
		url == ":memory:"
}

func dialectorFor(url string) (gorm.Dialector, error) {
	switch {
	case url == "":
		return nil, fmt.Errorf("database url is empty")
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(url, "sqlite://")), nil
	case IsSQLite(url):
		return sqlite.Open(url), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"), strings.Contains(url, "host="):
		return postgres.Open(url), nil
	default:
		return nil, fmt.Errorf("unsupported database url %q", url)
	}
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
