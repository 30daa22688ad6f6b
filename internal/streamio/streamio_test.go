package streamio

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadExactly(t *testing.T) {
	r := bytes.NewReader([]byte("hello world"))
	b, err := ReadExactly(r, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	_, err = ReadExactly(r, 1000)
	require.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestTeeSink(t *testing.T) {
	var a, b bytes.Buffer
	tee := NewTeeSink(&a, &b)
	n, err := tee.Write([]byte("payload"))
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.Equal(t, "payload", a.String())
	require.Equal(t, "payload", b.String())
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestGunzipSourceConcatenatedMembers(t *testing.T) {
	member1 := gzipBytes(t, "first-")
	member2 := gzipBytes(t, "second")
	combined := append(member1, member2...)

	gz, err := NewGunzipSource(bytes.NewReader(combined))
	require.NoError(t, err)
	defer gz.Close()

	got, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.Equal(t, "first-second", string(got))
}

func TestGunzipSourceTruncated(t *testing.T) {
	member := gzipBytes(t, "some longer payload than the truncation point")
	truncated := member[:len(member)-5]

	gz, err := NewGunzipSource(bytes.NewReader(truncated))
	require.NoError(t, err)
	defer gz.Close()

	_, err = io.ReadAll(gz)
	require.Error(t, err)
}
