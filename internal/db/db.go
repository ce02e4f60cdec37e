package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var ErrCatalogNotFound = errors.New("catalog not found")

type OpenOptions struct {
	// ReadOnly rejects writes on the handle and never creates the file.
	ReadOnly bool
}

// Bootstrap opens the catalog at dbPath for writing, creating the file and
// its parent directory if needed, and applies the embedded schema.
func Bootstrap(dbPath string) (*sql.DB, error) {
	database, err := Open(dbPath, OpenOptions{})
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(database); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}

// OpenCatalog opens an existing catalog for reading.
func OpenCatalog(dbPath string) (*sql.DB, error) {
	info, err := os.Stat(dbPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", dbPath, ErrCatalogNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("catalog %s is a directory", dbPath)
	}

	return Open(dbPath, OpenOptions{ReadOnly: true})
}

func Open(dbPath string, opts OpenOptions) (*sql.DB, error) {
	if !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	database, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Pragmas are per connection; one connection keeps them in effect for
	// the scan transaction and every later query.
	database.SetMaxOpenConns(1)

	for _, pragma := range pragmasFor(opts) {
		if _, err := database.Exec(pragma); err != nil {
			database.Close()
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", pragma, err)
		}
	}

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return database, nil
}

func pragmasFor(opts OpenOptions) []string {
	if opts.ReadOnly {
		return []string{
			"PRAGMA busy_timeout=5000;",
			"PRAGMA query_only=ON;",
		}
	}

	return []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
}
