// Package store is the persistence layer for the ingestion pipeline: sources,
// articles, per-URL errors, blocked hosts, and the singleton crawler status.
package store

import "database/sql"

// Schema is the complete rssingest schema.
const Schema = `
CREATE TABLE IF NOT EXISTS sources (
    id         TEXT PRIMARY KEY,
    url        TEXT NOT NULL,
    name       TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sources_url ON sources(url);

CREATE TABLE IF NOT EXISTS articles (
    id                      TEXT PRIMARY KEY,
    url                     TEXT NOT NULL,
    resolved_url            TEXT,
    original_title          TEXT,
    translated_title        TEXT,
    summary                 TEXT,
    short_summary           TEXT,
    content                 TEXT,
    image_url               TEXT,
    published_at            INTEGER,
    created_at              INTEGER NOT NULL,
    score_novelty           INTEGER,
    score_importance        INTEGER,
    score_reliability       INTEGER,
    score_context_value     INTEGER,
    score_thought_provoking INTEGER,
    average_score           REAL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_articles_url ON articles(url);
CREATE INDEX IF NOT EXISTS idx_articles_unevaluated ON articles(average_score);

CREATE TABLE IF NOT EXISTS article_errors (
    id            TEXT PRIMARY KEY,
    url           TEXT NOT NULL,
    title_hint    TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    stack_trace   TEXT NOT NULL DEFAULT '',
    phase         TEXT NOT NULL,
    context       TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_article_errors_url ON article_errors(url);

CREATE TABLE IF NOT EXISTS blocked_domains (
    id         TEXT PRIMARY KEY,
    domain     TEXT NOT NULL,
    reason     TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_blocked_domains_domain ON blocked_domains(domain);

CREATE TABLE IF NOT EXISTS crawler_status (
    id                 INTEGER PRIMARY KEY CHECK (id = 1),
    is_crawling        INTEGER NOT NULL DEFAULT 0,
    last_run           INTEGER,
    current_task       TEXT NOT NULL DEFAULT 'Idle',
    articles_processed INTEGER NOT NULL DEFAULT 0,
    last_error         TEXT NOT NULL DEFAULT '',
    worker_pid         INTEGER
);

CREATE TABLE IF NOT EXISTS config (
    id                        INTEGER PRIMARY KEY CHECK (id = 1),
    llm_api_key               TEXT NOT NULL DEFAULT '',
    webhook_url               TEXT NOT NULL DEFAULT '',
    score_threshold           REAL NOT NULL DEFAULT 3.5,
    feed_fetch_concurrency    INTEGER NOT NULL DEFAULT 5,
    max_concurrent_per_domain INTEGER NOT NULL DEFAULT 2,
    max_total_concurrent      INTEGER NOT NULL DEFAULT 10,
    domain_delay_ms           INTEGER NOT NULL DEFAULT 1000,
    eval_concurrency          INTEGER NOT NULL DEFAULT 5
);
`

// ApplySchema creates all tables/indexes and seeds the two singleton rows.
// Safe to call on every process start (additive only, per the Store contract).
// It does not add columns to a table that already exists.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return err
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO crawler_status (id, is_crawling, articles_processed) VALUES (1, 0, 0)`); err != nil {
		return err
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO config (id) VALUES (1)`); err != nil {
		return err
	}
	return nil
}

// applyColumnMigration adds a column if it doesn't already exist (idempotent,
// additive-only per the Store contract). Unused today but kept as the hook
// future schema additions should use, matching the migration style this
// schema was grounded on.
func applyColumnMigration(db *sql.DB, table, column, ddl string) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	if err != nil || count > 0 {
		return
	}
	db.Exec(ddl)
}
