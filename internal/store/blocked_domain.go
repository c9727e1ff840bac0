package store

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rssingest/rssingest/idgen"
)

// InsertBlockedDomain records a host as permanently hostile for the
// remainder of the process lifetime. Idempotent: inserting an
// already-blocked domain is a no-op.
func (s *Store) InsertBlockedDomain(ctx context.Context, b *BlockedDomain) error {
	if b.CreatedAt == 0 {
		b.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO blocked_domains (id, domain, reason, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(domain) DO NOTHING`,
		b.ID, b.Domain, b.Reason, b.CreatedAt)
	return err
}

// Block records domain as hostile with reason. Convenience wrapper over
// InsertBlockedDomain for callers (the Fetcher, mainly) that don't otherwise
// need an *idgen.Generator of their own.
func (s *Store) Block(ctx context.Context, domain, reason string) error {
	return s.InsertBlockedDomain(ctx, &BlockedDomain{
		ID:     idgen.New(),
		Domain: domain,
		Reason: reason,
	})
}

// IsBlocked reports whether domain has been recorded as hostile.
func (s *Store) IsBlocked(ctx context.Context, domain string) (bool, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocked_domains WHERE domain = ?`, domain).Scan(&count)
	return count > 0, err
}

// ListBlockedDomains returns every recorded blocked domain.
func (s *Store) ListBlockedDomains(ctx context.Context) ([]*BlockedDomain, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, domain, reason, created_at FROM blocked_domains ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*BlockedDomain
	for rows.Next() {
		var b BlockedDomain
		if err := rows.Scan(&b.ID, &b.Domain, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// blockedDomainSet loads the current blocked-domain membership as a set for
// fast lookups. Reads may observe slightly stale membership within a
// cycle; this is acceptable per the Store's concurrency contract.
func (s *Store) blockedDomainSet(ctx context.Context) (map[string]bool, error) {
	domains, err := s.ListBlockedDomains(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		set[d.Domain] = true
	}
	return set, nil
}

// hostOf extracts the lowercase host from a URL. If rawURL doesn't parse,
// or has no host, it returns rawURL unchanged so callers degrade to an
// exact-string block rather than panicking.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
}
