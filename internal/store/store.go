package store

import "database/sql"

// Store wraps the embedded database for ingestion-pipeline operations. All
// writes go through SQLite's own single-writer serialization; readers may
// run concurrently.
type Store struct {
	DB *sql.DB
}

// New wraps an already-opened, already-schema'd database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}
