package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordArticleError replaces any existing failure record for e.URL with e.
func (s *Store) RecordArticleError(ctx context.Context, e *ArticleError) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO article_errors (id, url, title_hint, error_message, stack_trace, phase, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title_hint    = excluded.title_hint,
			error_message = excluded.error_message,
			stack_trace   = excluded.stack_trace,
			phase         = excluded.phase,
			context       = excluded.context,
			created_at    = excluded.created_at`,
		e.ID, e.URL, e.TitleHint, e.ErrorMessage, e.StackTrace, e.Phase, e.Context, e.CreatedAt)
	return err
}

// GetErrorByURL returns the current failure record for url, or nil.
func (s *Store) GetErrorByURL(ctx context.Context, url string) (*ArticleError, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, url, title_hint, error_message, stack_trace, phase, context, created_at
		 FROM article_errors WHERE url = ?`, url)
	var e ArticleError
	err := row.Scan(&e.ID, &e.URL, &e.TitleHint, &e.ErrorMessage, &e.StackTrace, &e.Phase, &e.Context, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan article_error: %w", err)
	}
	return &e, nil
}

// ClearError deletes the failure record for url, if any. Called on the
// first successful full processing of that URL.
func (s *Store) ClearError(ctx context.Context, url string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM article_errors WHERE url = ?`, url)
	return err
}

// GetErrorByID returns the ArticleError with the given id, or nil.
func (s *Store) GetErrorByID(ctx context.Context, id string) (*ArticleError, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, url, title_hint, error_message, stack_trace, phase, context, created_at
		 FROM article_errors WHERE id = ?`, id)
	var e ArticleError
	err := row.Scan(&e.ID, &e.URL, &e.TitleHint, &e.ErrorMessage, &e.StackTrace, &e.Phase, &e.Context, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan article_error: %w", err)
	}
	return &e, nil
}

// ListRecentErrors returns the latest limit ArticleErrors, newest first.
func (s *Store) ListRecentErrors(ctx context.Context, limit int) ([]*ArticleError, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, url, title_hint, error_message, stack_trace, phase, context, created_at
		 FROM article_errors ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ArticleError
	for rows.Next() {
		var e ArticleError
		if err := rows.Scan(&e.ID, &e.URL, &e.TitleHint, &e.ErrorMessage, &e.StackTrace, &e.Phase, &e.Context, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan article_error: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
