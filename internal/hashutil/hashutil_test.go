package hashutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBase16RoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xde, 0xad, 0xbe, 0xef},
		bytes.Repeat([]byte{0xff}, 32),
	}
	for _, b := range cases {
		enc := Base16Encode(b)
		dec, err := Base16Decode(enc)
		require.NoError(t, err)
		require.Equal(t, b, dec)
	}
}

func TestBase16DecodeErrors(t *testing.T) {
	_, err := Base16Decode("abc")
	require.Error(t, err, "odd length must fail")

	_, err = Base16Decode("zz")
	require.Error(t, err, "non-hex nybble must fail")
}

func TestHashSinkChunking(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	whole, err := Hash(SHA256, data)
	require.NoError(t, err)

	s, err := NewSink(SHA256)
	require.NoError(t, err)
	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		s.Write(data[i:end])
	}
	require.Equal(t, whole, s.Digest())
}

func TestParseChecksum(t *testing.T) {
	sum, err := Hash(SHA1, []byte("hello"))
	require.NoError(t, err)
	hexSum := Base16Encode(sum)

	c, err := ParseChecksum("sha1:" + hexSum)
	require.NoError(t, err)
	require.Equal(t, SHA1, c.Algorithm)
	require.Equal(t, sum, c.Digest)

	c2, err := ParseChecksum(hexSum)
	require.NoError(t, err)
	require.Equal(t, SHA1, c2.Algorithm)

	c3, err := ParseChecksum("sha:" + hexSum)
	require.NoError(t, err)
	require.Equal(t, SHA1, c3.Algorithm)
}

func TestUnsupportedHash(t *testing.T) {
	_, err := New("crc32")
	require.ErrorIs(t, err, ErrUnsupportedHash)
}
