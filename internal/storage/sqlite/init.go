package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/oshokin/trackvault/internal/constants"
)

// DefaultDatabaseFilename is used when no database path is configured.
const DefaultDatabaseFilename = "trackvault.db"

// schema creates the catalogue tables if they don't exist.
var schema = []string{ //nolint:gochecknoglobals // Immutable list of DDL statements.
	`CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		artist TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		year INTEGER NOT NULL DEFAULT 0,
		thumbnail_url TEXT NOT NULL DEFAULT '',
		download_ref TEXT,
		downloaded_at TEXT,
		first_accessed_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tracks_download_ref ON tracks (download_ref)`,
	`CREATE TABLE IF NOT EXISTS formats (
		track_id TEXT PRIMARY KEY,
		tag INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT NOT NULL DEFAULT '',
		codecs TEXT NOT NULL DEFAULT '',
		bitrate INTEGER NOT NULL DEFAULT 0,
		sample_rate INTEGER NOT NULL DEFAULT 0,
		content_length INTEGER NOT NULL DEFAULT 0,
		loudness_db REAL,
		playback_url TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	)`,
}

// InitDB opens the SQLite database at path and creates the catalogue tables if they don't exist.
func InitDB(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = DefaultDatabaseFilename
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.DefaultFolderPermissions); err != nil {
			return nil, fmt.Errorf("failed to create database folder: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// SQLite serializes writers; one connection avoids "database is locked" between workers.
	db.SetMaxOpenConns(1)

	for _, statement := range schema {
		if _, err = db.ExecContext(ctx, statement); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return db, nil
}
