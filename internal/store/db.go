package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

// DB wraps a sqlite connection pool configured for the Store's durability
// and concurrency requirements: WAL journaling so readers never block
// writers, a generous busy timeout so concurrent tool execution doesn't
// surface SQLITE_BUSY, and immediate transaction locking so a writer fails
// fast instead of deadlocking against another writer.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if necessary) the sqlite database at path and applies
// the schema. path is typically config.StorageConfig.Path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// sqlite allows only one concurrent writer; keep the pool small so
	// contention surfaces as queueing rather than SQLITE_BUSY.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	log.Info().Str("path", path).Msg("store opened")
	return &DB{DB: db, path: path}, nil
}

func buildDSN(path string) string {
	v := url.Values{}
	v.Set("_pragma", "journal_mode=WAL")
	v.Add("_pragma", "foreign_keys=ON")
	v.Add("_pragma", "busy_timeout=30000")
	v.Add("_pragma", "synchronous=NORMAL")
	v.Add("_txlock", "immediate")
	return path + "?" + v.Encode()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
