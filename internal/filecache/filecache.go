// Package filecache implements the content-addressed on-disk blob store
// described in spec §4.4: a directory of files named by lowercase hex
// digest, with atomic, digest-verified insertion.
package filecache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/quay/zlog"

	"github.com/release-engineering/symboldb/internal/db"
	"github.com/release-engineering/symboldb/internal/hashutil"
	"github.com/release-engineering/symboldb/internal/streamio"
)

// ErrChecksumMismatchLength is returned by Finish when the number of
// bytes written does not match the checksum's expected length. The
// file is left in place for a concurrently racing producer, matching
// spec §4.4.
var ErrChecksumMismatchLength = errors.New("filecache: checksum mismatch: length")

// ErrChecksumMismatchDigest is returned by Finish when the computed
// digest does not match the expected one. The partial file is unlinked.
var ErrChecksumMismatchDigest = errors.New("filecache: checksum mismatch: digest")

// Cache is a directory-backed content-addressed blob store.
type Cache struct {
	Dir string
	DB  *db.Pool
}

// New returns a Cache rooted at dir. The directory must already exist.
func New(dir string, pool *db.Pool) *Cache {
	return &Cache{Dir: dir, DB: pool}
}

func (c *Cache) path(sum hashutil.Checksum) string {
	return filepath.Join(c.Dir, string(sum.Algorithm), hashutil.Base16Encode(sum.Digest))
}

// LookupPath returns the path to the cached blob for sum, iff it exists
// and (when sum carries an expected length) the on-disk size matches.
func (c *Cache) LookupPath(sum hashutil.Checksum) (string, bool) {
	p := c.path(sum)
	fi, err := os.Stat(p)
	if err != nil {
		return "", false
	}
	if !sum.MatchesLength(int(fi.Size())) {
		return "", false
	}
	return p, true
}

// AddSink is the write handle returned by Add: bytes written to it are
// teed into a temporary file and a running hash. Finish must be called
// exactly once to validate and commit the file, or Abort to discard it.
type AddSink struct {
	cache   *db.Pool
	sum     hashutil.Checksum
	final   string
	tmp     *os.File
	tmpPath string
	hash    *hashutil.Sink
	tee     *streamio.TeeSink
	written int64
	done    bool
}

// AddSink opens a write handle for the blob identified by sum.
func (c *Cache) AddSink(ctx context.Context, sum hashutil.Checksum) (*AddSink, error) {
	dir := filepath.Join(c.Dir, string(sum.Algorithm))
	if err := os.MkdirAll(dir, 0o0755); err != nil {
		return nil, fmt.Errorf("filecache: creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+hashutil.Base16Encode(sum.Digest)+"-*")
	if err != nil {
		return nil, fmt.Errorf("filecache: creating temp file: %w", err)
	}
	h, err := hashutil.NewSink(sum.Algorithm)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	return &AddSink{
		cache:   c.DB,
		sum:     sum,
		final:   c.path(sum),
		tmp:     tmp,
		tmpPath: tmp.Name(),
		hash:    h,
		tee:     streamio.NewTeeSink(tmp, h),
	}, nil
}

// Write implements io.Writer, teeing into both the temp file and the
// running hash via streamio's tee sink (spec §4.1's "tee sink (writes
// to two sinks in order)").
func (a *AddSink) Write(p []byte) (int, error) {
	n, err := a.tee.Write(p)
	if err != nil {
		return n, fmt.Errorf("filecache: writing temp file: %w", err)
	}
	a.written += int64(n)
	return n, nil
}

// Finish validates the written bytes against the checksum and, on
// success, atomically publishes the temp file as the cache entry.
//
// A length mismatch leaves the broken temp file untouched and returns
// ErrChecksumMismatchLength (the existing/competing correct file, if
// any, is never disturbed). A digest mismatch unlinks the temp file and
// returns ErrChecksumMismatchDigest.
func (a *AddSink) Finish(ctx context.Context) (string, error) {
	if a.done {
		return "", errors.New("filecache: Finish called twice")
	}
	a.done = true

	if !a.sum.MatchesLength(int(a.written)) {
		a.tmp.Close()
		return "", ErrChecksumMismatchLength
	}

	got := a.hash.Digest()
	if !equalBytes(got, a.sum.Digest) {
		a.tmp.Close()
		os.Remove(a.tmpPath)
		return "", ErrChecksumMismatchDigest
	}

	if err := a.tmp.Sync(); err != nil {
		a.tmp.Close()
		return "", fmt.Errorf("filecache: fsync: %w", err)
	}
	if err := a.tmp.Close(); err != nil {
		return "", fmt.Errorf("filecache: closing temp file: %w", err)
	}

	if err := a.publish(ctx); err != nil {
		return "", err
	}
	return a.final, nil
}

// publish serializes concurrent insertion of the same digest via an
// advisory lock held across the rename, so that two producers racing to
// populate the same entry do not both attempt the rename in a way that
// could corrupt a reader mid-copy. Lock failures are logged but not
// fatal: the raced rename is still safe since os.Rename is atomic on a
// POSIX filesystem.
func (a *AddSink) publish(ctx context.Context) error {
	if a.cache != nil {
		x, y := db.DigestLockKeys(a.sum.Digest)
		lock, err := a.cache.LockPair(ctx, x, y)
		if err != nil {
			zlog.Debug(ctx).Err(err).Msg("filecache: advisory lock unavailable, proceeding without it")
		} else {
			defer lock.Release(ctx)
		}
	}
	if err := os.Rename(a.tmpPath, a.final); err != nil {
		return fmt.Errorf("filecache: publishing blob: %w", err)
	}
	return nil
}

// Abort discards the temp file without publishing it.
func (a *AddSink) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	a.tmp.Close()
	return os.Remove(a.tmpPath)
}

// Add is a convenience wrapper around AddSink for in-memory byte slices.
func (c *Cache) Add(ctx context.Context, sum hashutil.Checksum, data []byte) (string, error) {
	sink, err := c.AddSink(ctx, sum)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(sink, bytes.NewReader(data)); err != nil {
		sink.Abort()
		return "", err
	}
	return sink.Finish(ctx)
}

// Digests lists all cached digests for the given algorithm, for
// garbage-collecting orphaned blobs. The `expire` subcommand does not
// call it and leaves the cache directory untouched.
func (c *Cache) Digests(alg string) ([]string, error) {
	dir := filepath.Join(c.Dir, alg)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("filecache: listing %q: %w", dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			// Skip in-flight ".tmp-*" producers.
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
