// Package downloader fetches URLs over HTTP, HTTPS, and FTP according to
// one of four cache policies, described in spec §4.6. It is grounded on
// claircore's internal/indexer/fetcher package: a shared *http.Client
// and a per-attempt log scope. Bodies are read fully into memory; no
// digest is checked here (the file cache verifies digests on insert).
package downloader

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/quay/zlog"

	"github.com/release-engineering/symboldb/internal/urlcache"
)

// UserAgent is sent on every outgoing request, matching spec §4.6.
const UserAgent = "symboldb/0.0"

// ConnectTimeout bounds TCP connection establishment.
const ConnectTimeout = 30 * time.Second

// CacheMode selects how a Fetch call interacts with the URL cache.
type CacheMode int

const (
	// NoCache bypasses the cache entirely: always fetch, never store.
	NoCache CacheMode = iota
	// CheckCache performs a HEAD request and serves the cached body if
	// Content-Length and Last-Modified still match; otherwise
	// re-fetches with GET and updates the cache.
	CheckCache
	// AlwaysCache serves directly from the cache without a conditional
	// check, falling back to a GET-and-store on a miss.
	AlwaysCache
	// OnlyCache never hits the network: a cache miss is an error.
	OnlyCache
)

// FetchError reports a failed download, analogous to libcurl's
// CURLcode/effective-URL/response-code triple referenced in the original
// implementation's error path.
type FetchError struct {
	OriginalURL  string
	EffectiveURL string
	StatusCode   int
	RemoteAddr   string
	Message      string
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("downloader: fetching %s: HTTP %d: %s", e.OriginalURL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("downloader: fetching %s: %s", e.OriginalURL, e.Message)
}

// Downloader fetches URLs, optionally consulting a urlcache.Store.
type Downloader struct {
	Client *http.Client
	Cache  *urlcache.Store
}

// New returns a Downloader with a default client configured with
// ConnectTimeout and no automatic decompression (callers decide, as the
// ingest pipeline needs the raw compressed bytes for digest checks).
func New(cache *urlcache.Store) *Downloader {
	dialer := &net.Dialer{Timeout: ConnectTimeout}
	return &Downloader{
		Client: &http.Client{
			Transport: &http.Transport{
				DialContext:        dialer.DialContext,
				DisableCompression: true,
			},
		},
		Cache: cache,
	}
}

// Fetch retrieves rawurl's contents under the given cache mode.
func (d *Downloader) Fetch(ctx context.Context, rawurl string, mode CacheMode) ([]byte, error) {
	attempt := uuid.New()
	ctx = zlog.ContextWithValues(ctx, "download_attempt", attempt.String(), "url", rawurl)
	zlog.Debug(ctx).Msg("download: starting attempt")

	if mode == AlwaysCache || mode == OnlyCache {
		if d.Cache != nil {
			if b, ok, err := d.Cache.Fetch(ctx).Unconditional(ctx, rawurl); err == nil && ok {
				zlog.Debug(ctx).Msg("download: served from cache")
				return b, nil
			}
		}
		if mode == OnlyCache {
			return nil, &FetchError{OriginalURL: rawurl, Message: "cache miss with OnlyCache policy"}
		}
	}

	if mode == CheckCache && d.Cache != nil {
		length, modified, ok, err := d.head(ctx, rawurl)
		if err == nil && ok {
			if b, hit, err := d.Cache.Fetch(ctx).Conditional(ctx, rawurl, length, modified); err == nil && hit {
				zlog.Debug(ctx).Msg("download: cache still fresh")
				return b, nil
			}
		}
	}

	body, httpTime, err := d.get(ctx, rawurl)
	if err != nil {
		return nil, err
	}

	if mode != NoCache && d.Cache != nil {
		if err := d.Cache.Update(ctx, rawurl, body, httpTime); err != nil {
			zlog.Debug(ctx).Err(err).Msg("download: failed to populate cache")
		}
	}
	return body, nil
}

func (d *Downloader) head(ctx context.Context, rawurl string) (length int64, modified time.Time, ok bool, err error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return 0, time.Time{}, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return 0, time.Time{}, false, err
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, time.Time{}, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, time.Time{}, false, nil
	}
	lm, err := http.ParseTime(resp.Header.Get("Last-Modified"))
	if err != nil {
		return 0, time.Time{}, false, nil
	}
	return resp.ContentLength, lm, true, nil
}

func (d *Downloader) get(ctx context.Context, rawurl string) ([]byte, time.Time, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, time.Time{}, &FetchError{OriginalURL: rawurl, Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, time.Time{}, &FetchError{OriginalURL: rawurl, Message: err.Error()}
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, time.Time{}, &FetchError{OriginalURL: rawurl, Message: err.Error()}
	}
	defer resp.Body.Close()

	effective := rawurl
	if resp.Request != nil && resp.Request.URL != nil {
		effective = resp.Request.URL.String()
	}

	if resp.StatusCode != http.StatusOK {
		return nil, time.Time{}, &FetchError{
			OriginalURL:  rawurl,
			EffectiveURL: effective,
			StatusCode:   resp.StatusCode,
			Message:      resp.Status,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, time.Time{}, &FetchError{OriginalURL: rawurl, EffectiveURL: effective, Message: err.Error()}
	}

	httpTime := time.Now().UTC()
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		httpTime = lm
	}

	zlog.Debug(ctx).Int("bytes", len(body)).Msg("download: attempt ok")
	return body, httpTime, nil
}
