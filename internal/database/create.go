package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
)

// CreateDatabase connects to the server's maintenance database and creates the
// database named in targetURL when it does not exist yet. It reports whether
// the database was created.
func CreateDatabase(targetURL string) (bool, error) {
	adminURL, name, err := maintenanceURL(targetURL)
	if err != nil {
		return false, err
	}

	conn, err := sql.Open("postgres", adminURL)
	if err != nil {
		return false, fmt.Errorf("failed to open maintenance connection: %w", err)
	}
	defer conn.Close()

	var exists bool
	err = conn.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_catalog.pg_database WHERE datname = $1)", name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for database %s: %w", name, err)
	}
	if exists {
		return false, nil
	}

	if _, err := conn.Exec("CREATE DATABASE " + pq.QuoteIdentifier(name)); err != nil {
		return false, fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return true, nil
}

// maintenanceURL rewrites a postgres URL to point at the "postgres" database
// and returns the original database name.
func maintenanceURL(targetURL string) (string, string, error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid database url: %w", err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return "", "", fmt.Errorf("database creation requires a postgres url, got scheme %q", parsed.Scheme)
	}

	name := strings.TrimPrefix(parsed.Path, "/")
	if name == "" {
		return "", "", fmt.Errorf("database url has no database name")
	}

	parsed.Path = "/postgres"
	if parsed.Query().Get("sslmode") == "" {
		q := parsed.Query()
		q.Set("sslmode", "disable")
		parsed.RawQuery = q.Encode()
	}
	return parsed.String(), name, nil
}
