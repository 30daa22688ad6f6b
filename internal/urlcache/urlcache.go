// Package urlcache implements the database-backed URL cache described in
// spec §4.5: a table keyed by URL storing bytes plus HTTP-time,
// last-change, and last-access metadata, with a freshness window used by
// the downloader's CheckCache/AlwaysCache/OnlyCache policies.
package urlcache

import (
	"context"
	"time"

	"github.com/release-engineering/symboldb/internal/db"
)

// ExpiryWindow is the duration after which an entry is eligible for
// removal by Expire, based on last_access (spec §3.2).
const ExpiryWindow = 3 * 24 * time.Hour

// Entry is one row of the URL cache.
type Entry struct {
	URL        string
	Bytes      []byte
	HTTPTime   time.Time
	LastChange time.Time
	LastAccess time.Time
}

// Store provides the URL cache's database operations.
type Store struct {
	DB db.Queryer
}

// Fetch returns a FetchQuery; its Unconditional and Conditional methods
// perform the lookup, touching last_access on a hit.
func (s *Store) Fetch(ctx context.Context) FetchQuery {
	return FetchQuery{s: s}
}

// FetchQuery is a small builder so both lookups read naturally at call
// sites, as Fetch(ctx).Unconditional(ctx, url) and
// Fetch(ctx).Conditional(ctx, url, length, time), matching spec §4.5's
// two Fetch overloads.
type FetchQuery struct {
	s *Store
}

// Unconditional looks up url regardless of expected length/time.
func (f FetchQuery) Unconditional(ctx context.Context, url string) ([]byte, bool, error) {
	const q = `
		UPDATE url_cache SET last_access = now()
		WHERE url = $1
		RETURNING bytes`
	var b []byte
	if err := f.s.DB.QueryRow(ctx, q, url).Scan(&b); err != nil {
		return nil, false, nil
	}
	return b, true, nil
}

// Conditional looks up url, returning the cached bytes only if both the
// stored length and http_time match exactly (spec §4.5).
func (f FetchQuery) Conditional(ctx context.Context, url string, expectedLength int64, expectedTime time.Time) ([]byte, bool, error) {
	const q = `
		UPDATE url_cache SET last_access = now()
		WHERE url = $1 AND length = $2 AND http_time = $3
		RETURNING bytes`
	var b []byte
	if err := f.s.DB.QueryRow(ctx, q, url, expectedLength, expectedTime).Scan(&b); err != nil {
		return nil, false, nil
	}
	return b, true, nil
}

// Update upserts url's cached bytes, setting http_time and touching both
// last_change and last_access.
func (s *Store) Update(ctx context.Context, url string, data []byte, httpTime time.Time) error {
	const q = `
		INSERT INTO url_cache (url, bytes, http_time, length, last_change, last_access)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (url) DO UPDATE SET
			bytes = EXCLUDED.bytes,
			http_time = EXCLUDED.http_time,
			length = EXCLUDED.length,
			last_change = now(),
			last_access = now()`
	_, err := s.DB.Exec(ctx, q, url, data, httpTime, len(data))
	return err
}

// Expire deletes cache rows whose last_access is older than
// ExpiryWindow, and returns the number of rows removed.
func (s *Store) Expire(ctx context.Context) (int64, error) {
	const q = `DELETE FROM url_cache WHERE last_access < now() - $1::interval`
	tag, err := s.DB.Exec(ctx, q, ExpiryWindow.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
