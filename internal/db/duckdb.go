// Package db owns the process-wide DuckDB connection.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	mu       sync.Mutex
	instance *sql.DB
	openPath string
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

func (c Config) path() string {
	return filepath.Join(c.DataDir, "duckdb", c.DBName+".duckdb")
}

// Get returns the process-wide DuckDB connection, creating the database
// file under <DataDir>/duckdb on first use. Later calls must resolve to the
// same file; a mismatch is an error rather than a silent reuse of the first
// database.
func Get(cfg Config) (*sql.DB, error) {
	mu.Lock()
	defer mu.Unlock()

	dbPath := cfg.path()
	if instance != nil {
		if dbPath != openPath {
			return nil, fmt.Errorf("duckdb already open at %s, cannot open %s", openPath, dbPath)
		}
		return instance, nil
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating duckdb directory: %w", err)
	}
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, err
	}
	instance = db
	openPath = dbPath
	return instance, nil
}

// Close closes the database connection. A later Get reopens.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		return nil
	}
	err := instance.Close()
	instance = nil
	openPath = ""
	return err
}
