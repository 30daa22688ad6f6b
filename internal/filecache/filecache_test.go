package filecache

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/release-engineering/symboldb/internal/hashutil"
)

func TestAddAndLookup(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, nil)
	ctx := context.Background()

	data := []byte("package contents go here")
	digest, err := hashutil.Hash(hashutil.SHA256, data)
	require.NoError(t, err)
	sum := hashutil.Checksum{Algorithm: hashutil.SHA256, Digest: digest}

	path, err := c.Add(ctx, sum, data)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, data, got)

	lookedUp, ok := c.LookupPath(sum)
	require.True(t, ok)
	require.Equal(t, path, lookedUp)
}

func TestAddWrongDigestLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, nil)
	ctx := context.Background()

	data := []byte("some data")
	wrongDigest, err := hashutil.Hash(hashutil.SHA256, []byte("not the same data"))
	require.NoError(t, err)
	sum := hashutil.Checksum{Algorithm: hashutil.SHA256, Digest: wrongDigest}

	_, err = c.Add(ctx, sum, data)
	require.ErrorIs(t, err, ErrChecksumMismatchDigest)

	_, ok := c.LookupPath(sum)
	require.False(t, ok, "no file should be left behind on digest mismatch")
}

func TestAddWrongLengthLeavesExistingFileUntouched(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, nil)
	ctx := context.Background()

	correct := []byte("the correct, complete contents")
	digest, err := hashutil.Hash(hashutil.SHA256, correct)
	require.NoError(t, err)
	n := len(correct)
	sum := hashutil.Checksum{Algorithm: hashutil.SHA256, Digest: digest, Length: &n}

	path, err := c.Add(ctx, sum, correct)
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A second producer races in with a truncated write under the same
	// checksum's length expectation; the original file must survive.
	truncated := correct[:len(correct)-5]
	_, err = c.Add(ctx, sum, truncated)
	require.ErrorIs(t, err, ErrChecksumMismatchLength)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestDigestsListsCachedEntries(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, nil)
	ctx := context.Background()

	data := []byte("x")
	digest, err := hashutil.Hash(hashutil.SHA256, data)
	require.NoError(t, err)
	sum := hashutil.Checksum{Algorithm: hashutil.SHA256, Digest: digest}
	_, err = c.Add(ctx, sum, data)
	require.NoError(t, err)

	names, err := c.Digests("sha256")
	require.NoError(t, err)
	require.Contains(t, names, hashutil.Base16Encode(digest))
}
