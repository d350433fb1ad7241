package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const DefaultPath = ".clientpilot/clientpilot.db"

type Config struct {
	// Path is the SQLite file. Empty means DefaultPath.
	Path string
}

func (c Config) path() string {
	if c.Path == "" {
		return DefaultPath
	}
	return c.Path
}

// EnsureDir creates the directory holding the database file.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Open opens the SQLite database with foreign keys on and a busy timeout so
// concurrent writers wait instead of failing.
func Open(cfg Config) (*sql.DB, error) {
	path := cfg.path()
	if err := EnsureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
