package store

import "context"

// GetConfig returns the singleton runtime configuration.
func (s *Store) GetConfig(ctx context.Context) (*Config, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT llm_api_key, webhook_url, score_threshold, feed_fetch_concurrency,
			max_concurrent_per_domain, max_total_concurrent, domain_delay_ms, eval_concurrency
		FROM config WHERE id = 1`)
	var c Config
	if err := row.Scan(
		&c.LLMAPIKey, &c.WebhookURL, &c.ScoreThreshold, &c.FeedFetchConcurrency,
		&c.MaxConcurrentPerDomain, &c.MaxTotalConcurrent, &c.DomainDelayMs, &c.EvalConcurrency,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateConfig replaces the singleton configuration wholesale.
func (s *Store) UpdateConfig(ctx context.Context, c *Config) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE config SET
			llm_api_key               = ?,
			webhook_url               = ?,
			score_threshold           = ?,
			feed_fetch_concurrency    = ?,
			max_concurrent_per_domain = ?,
			max_total_concurrent      = ?,
			domain_delay_ms           = ?,
			eval_concurrency          = ?
		WHERE id = 1`,
		c.LLMAPIKey, c.WebhookURL, c.ScoreThreshold, c.FeedFetchConcurrency,
		c.MaxConcurrentPerDomain, c.MaxTotalConcurrent, c.DomainDelayMs, c.EvalConcurrency)
	return err
}
