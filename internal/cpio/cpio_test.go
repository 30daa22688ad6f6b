package cpio

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildNewc constructs a minimal newc-format archive with one regular
// file entry followed by the trailer record.
func buildNewc(t *testing.T, name string, body []byte) []byte {
	t.Helper()
	var buf bytes.Buffer

	writeEntry := func(name string, body []byte) {
		namesize := len(name) + 1
		header := "070701" +
			hex8(1) + // ino
			hex8(0o100644) + // mode
			hex8(0) + // uid
			hex8(0) + // gid
			hex8(1) + // nlink
			hex8(0) + // mtime
			hex8(uint32(len(body))) + // filesize
			hex8(0) + // devmajor
			hex8(0) + // devminor
			hex8(0) + // rdevmajor
			hex8(0) + // rdevminor
			hex8(uint32(namesize)) + // namesize
			hex8(0) // check
		buf.WriteString(header)
		buf.WriteString(name)
		buf.WriteByte(0)
		pad(&buf, 110+namesize)
		buf.Write(body)
		pad(&buf, len(body))
	}

	writeEntry(name, body)
	writeEntry(trailerName, nil)
	return buf.Bytes()
}

func hex8(v uint32) string {
	const digits = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = digits[v&0xf]
		v >>= 4
	}
	return string(b)
}

func pad(buf *bytes.Buffer, consumed int) {
	if m := consumed % 4; m != 0 {
		for i := 0; i < 4-m; i++ {
			buf.WriteByte(0)
		}
	}
}

func TestReaderSingleEntry(t *testing.T) {
	body := []byte("hello world")
	data := buildNewc(t, "./etc/motd", body)

	r := NewReader(bytes.NewReader(data))
	e, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "./etc/motd", e.Name)
	require.Equal(t, uint64(len(body)), e.FileSize)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, body, got)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderSkipsUnreadBody(t *testing.T) {
	data := buildNewc(t, "./a", []byte("first-file-contents"))
	r := NewReader(bytes.NewReader(data))

	_, err := r.Next()
	require.NoError(t, err)
	// Do not read the body; Next must skip it plus padding before
	// reaching the trailer.
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderRejectsBadMagic(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("xxxxxx")))
	_, err := r.Next()
	require.Error(t, err)
	var headerErr *ErrHeader
	require.ErrorAs(t, err, &headerErr)
}
