package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertSource adds a new source. Unique by URL.
func (s *Store) InsertSource(ctx context.Context, src *Source) error {
	if src.CreatedAt == 0 {
		src.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sources (id, url, name, created_at) VALUES (?, ?, ?, ?)`,
		src.ID, src.URL, src.Name, src.CreatedAt)
	return err
}

// GetSource retrieves a source by ID.
func (s *Store) GetSource(ctx context.Context, id string) (*Source, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, url, name, created_at FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

// ListSources returns every registered source, oldest first.
func (s *Store) ListSources(ctx context.Context) ([]*Source, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, url, name, created_at FROM sources ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.URL, &src.Name, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, &src)
	}
	return out, rows.Err()
}

// DeleteSource removes a source.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	return err
}

// CountSources returns the total number of registered sources.
func (s *Store) CountSources(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count)
	return count, err
}

func scanSource(row *sql.Row) (*Source, error) {
	var src Source
	err := row.Scan(&src.ID, &src.URL, &src.Name, &src.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}
	return &src, nil
}
