package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ArticlePatch is a partial write to an Article, keyed by URL. A nil field
// means "omitted": the prior value (if any) is preserved across an upsert.
// A non-nil field, including a pointer to an empty string, means "supplied"
// and overwrites.
type ArticlePatch struct {
	URL                   string
	ResolvedURL           *string
	OriginalTitle         *string
	TranslatedTitle       *string
	Summary               *string
	ShortSummary          *string
	Content               *string
	ImageURL              *string
	PublishedAt           *int64
	ScoreNovelty          *int
	ScoreImportance       *int
	ScoreReliability      *int
	ScoreContextValue     *int
	ScoreThoughtProvoking *int
	AverageScore          *float64
}

// UpsertArticle inserts a new Article for URL or merges the patch into the
// existing row: supplied columns overwrite, omitted columns preserve their
// prior value. Idempotent for the same input.
func (s *Store) UpsertArticle(ctx context.Context, id string, p ArticlePatch) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO articles (
			id, url, resolved_url, original_title, translated_title, summary,
			short_summary, content, image_url, published_at, created_at,
			score_novelty, score_importance, score_reliability, score_context_value,
			score_thought_provoking, average_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			resolved_url            = COALESCE(excluded.resolved_url, articles.resolved_url),
			original_title          = COALESCE(excluded.original_title, articles.original_title),
			translated_title        = COALESCE(excluded.translated_title, articles.translated_title),
			summary                 = COALESCE(excluded.summary, articles.summary),
			short_summary           = COALESCE(excluded.short_summary, articles.short_summary),
			content                 = COALESCE(excluded.content, articles.content),
			image_url               = COALESCE(excluded.image_url, articles.image_url),
			published_at            = COALESCE(excluded.published_at, articles.published_at),
			score_novelty           = COALESCE(excluded.score_novelty, articles.score_novelty),
			score_importance        = COALESCE(excluded.score_importance, articles.score_importance),
			score_reliability       = COALESCE(excluded.score_reliability, articles.score_reliability),
			score_context_value     = COALESCE(excluded.score_context_value, articles.score_context_value),
			score_thought_provoking = COALESCE(excluded.score_thought_provoking, articles.score_thought_provoking),
			average_score           = COALESCE(excluded.average_score, articles.average_score)
		`,
		id, p.URL, p.ResolvedURL, p.OriginalTitle, p.TranslatedTitle, p.Summary,
		p.ShortSummary, p.Content, p.ImageURL, p.PublishedAt, now,
		p.ScoreNovelty, p.ScoreImportance, p.ScoreReliability, p.ScoreContextValue,
		p.ScoreThoughtProvoking, p.AverageScore,
	)
	return err
}

const articleColumns = `id, url, resolved_url, original_title, translated_title, summary,
		short_summary, content, image_url, published_at, created_at,
		score_novelty, score_importance, score_reliability, score_context_value,
		score_thought_provoking, average_score`

// GetArticleByURL returns the article with the given URL, or nil if absent.
func (s *Store) GetArticleByURL(ctx context.Context, url string) (*Article, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE url = ?`, url)
	return scanArticle(row)
}

// GetArticle returns the article with the given ID, or nil if absent.
func (s *Store) GetArticle(ctx context.Context, id string) (*Article, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	return scanArticle(row)
}

// IsFullyProcessed reports whether url already has an Article with
// content >= 200 chars and a non-null average_score, the collector's
// skip-recrawl condition.
func (s *Store) IsFullyProcessed(ctx context.Context, url string) (bool, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM articles
		WHERE url = ? AND content IS NOT NULL AND length(content) >= 200 AND average_score IS NOT NULL`,
		url).Scan(&count)
	return count > 0, err
}

// Unprocessed returns up to limit articles that are crawlable (no content,
// or content shorter than 200 chars) or unevaluated (average_score IS
// NULL), excluding any article whose host (derived from resolved_url,
// falling back to url) is in blocked_domains. Host extraction requires a
// URL parse, so the block-list filter runs in Go rather than as raw SQL.
func (s *Store) Unprocessed(ctx context.Context, limit int) ([]*Article, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+articleColumns+` FROM articles a
		WHERE (a.content IS NULL OR length(a.content) < 200 OR a.average_score IS NULL)
		ORDER BY a.created_at ASC`)
	if err != nil {
		return nil, err
	}
	candidates, err := scanArticles(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	return s.filterBlocked(ctx, candidates, limit)
}

// ArticlesWithoutImages returns up to limit articles missing an image_url,
// excluding blocked hosts.
func (s *Store) ArticlesWithoutImages(ctx context.Context, limit int) ([]*Article, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+articleColumns+` FROM articles a
		WHERE (a.image_url IS NULL OR a.image_url = '')
		ORDER BY a.created_at ASC`)
	if err != nil {
		return nil, err
	}
	candidates, err := scanArticles(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	return s.filterBlocked(ctx, candidates, limit)
}

// filterBlocked drops articles whose effective host is blocked and caps the
// result at limit.
func (s *Store) filterBlocked(ctx context.Context, candidates []*Article, limit int) ([]*Article, error) {
	blocked, err := s.blockedDomainSet(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Article, 0, len(candidates))
	for _, a := range candidates {
		effective := a.ResolvedURL
		if effective == "" {
			effective = a.URL
		}
		if blocked[hostOf(effective)] {
			continue
		}
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func scanArticle(row *sql.Row) (*Article, error) {
	var a Article
	var resolvedURL, originalTitle, translatedTitle, summary, shortSummary, imageURL sql.NullString
	err := row.Scan(
		&a.ID, &a.URL, &resolvedURL, &originalTitle, &translatedTitle, &summary,
		&shortSummary, &a.Content, &imageURL, &a.PublishedAt, &a.CreatedAt,
		&a.ScoreNovelty, &a.ScoreImportance, &a.ScoreReliability, &a.ScoreContextValue,
		&a.ScoreThoughtProvoking, &a.AverageScore,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan article: %w", err)
	}
	a.ResolvedURL = resolvedURL.String
	a.OriginalTitle = originalTitle.String
	a.TranslatedTitle = translatedTitle.String
	a.Summary = summary.String
	a.ShortSummary = shortSummary.String
	a.ImageURL = imageURL.String
	return &a, nil
}

func scanArticles(rows *sql.Rows) ([]*Article, error) {
	var out []*Article
	for rows.Next() {
		var a Article
		var resolvedURL, originalTitle, translatedTitle, summary, shortSummary, imageURL sql.NullString
		if err := rows.Scan(
			&a.ID, &a.URL, &resolvedURL, &originalTitle, &translatedTitle, &summary,
			&shortSummary, &a.Content, &imageURL, &a.PublishedAt, &a.CreatedAt,
			&a.ScoreNovelty, &a.ScoreImportance, &a.ScoreReliability, &a.ScoreContextValue,
			&a.ScoreThoughtProvoking, &a.AverageScore,
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.ResolvedURL = resolvedURL.String
		a.OriginalTitle = originalTitle.String
		a.TranslatedTitle = translatedTitle.String
		a.Summary = summary.String
		a.ShortSummary = shortSummary.String
		a.ImageURL = imageURL.String
		out = append(out, &a)
	}
	return out, rows.Err()
}
