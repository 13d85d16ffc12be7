package sqlite

import (
	"database/sql"
	"fmt"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path and creates the history table if it doesn't exist.
// A single connection serializes writers and keeps ":memory:" databases consistent.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		size_human TEXT NOT NULL DEFAULT '',
		format TEXT NOT NULL DEFAULT '',
		media_type TEXT NOT NULL DEFAULT '',
		added_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to create history table: %w", err)
	}

	return db, nil
}
