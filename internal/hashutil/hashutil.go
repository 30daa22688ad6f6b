// Package hashutil provides the digest primitives used by the file cache,
// the ingestion pipeline, and the downloader: algorithm-tagged checksums,
// a hash.Hash-backed sink, and lowercase base16 (hex) codecs.
package hashutil

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// Algorithm names a supported digest algorithm.
type Algorithm string

// Supported algorithms.
const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
)

// ErrUnsupportedHash is returned when an Algorithm is not one symboldb
// knows how to compute.
var ErrUnsupportedHash = errors.New("hashutil: unsupported hash algorithm")

// New returns a fresh hash.Hash for alg, or ErrUnsupportedHash.
func New(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHash, alg)
	}
}

// Hash computes the digest of b in one shot.
func Hash(alg Algorithm, b []byte) ([]byte, error) {
	h, err := New(alg)
	if err != nil {
		return nil, err
	}
	// hash.Hash.Write never returns an error.
	h.Write(b)
	return h.Sum(nil), nil
}

// Sink is a hash.Hash exposed through the io.Writer contract used for
// composing with tee and gunzip filters. finalize via Sum.
type Sink struct {
	Algorithm Algorithm
	hash.Hash
}

// NewSink constructs a Sink for alg.
func NewSink(alg Algorithm) (*Sink, error) {
	h, err := New(alg)
	if err != nil {
		return nil, err
	}
	return &Sink{Algorithm: alg, Hash: h}, nil
}

// Digest finalizes the running hash and returns the digest bytes. The
// sink remains usable for inspection afterward (hash.Hash.Sum does not
// reset state), matching the C++ original's non-destructive finalize().
func (s *Sink) Digest() []byte {
	return s.Hash.Sum(nil)
}

// Base16Encode lowercases-hex-encodes b.
func Base16Encode(b []byte) string {
	return hex.EncodeToString(b)
}

// Base16Decode decodes a lowercase (or uppercase) hex string. It returns
// an error for odd-length input or any non-hex nybble, matching
// encoding/hex's documented behavior.
func Base16Decode(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("hashutil: invalid base16 string: %w", err)
	}
	return b, nil
}

// Checksum carries an algorithm, an optional expected length, and the
// expected digest bytes. Length may be absent (nil), meaning "don't
// check length".
type Checksum struct {
	Algorithm Algorithm
	Length    *int
	Digest    []byte
}

// String renders the checksum as "alg:hexdigest".
func (c Checksum) String() string {
	return string(c.Algorithm) + ":" + Base16Encode(c.Digest)
}

// ParseChecksum parses a "alg:hexdigest" or bare-hex string (in which
// case the algorithm is inferred from the digest length: 20 bytes -> sha1,
// 32 bytes -> sha256).
func ParseChecksum(s string) (Checksum, error) {
	var algPart, hexPart string
	if i := strings.IndexByte(s, ':'); i >= 0 {
		algPart, hexPart = s[:i], s[i+1:]
	} else {
		hexPart = s
	}
	digest, err := Base16Decode(hexPart)
	if err != nil {
		return Checksum{}, fmt.Errorf("hashutil: parsing checksum %q: %w", s, err)
	}
	alg := Algorithm(strings.ToLower(algPart))
	if alg == "" {
		switch len(digest) {
		case sha1.Size:
			alg = SHA1
		case sha256.Size:
			alg = SHA256
		case md5.Size:
			alg = MD5
		default:
			return Checksum{}, fmt.Errorf("hashutil: cannot infer algorithm for %d-byte digest", len(digest))
		}
	}
	if alg == "sha" {
		alg = SHA1
	}
	if _, err := New(alg); err != nil {
		return Checksum{}, err
	}
	return Checksum{Algorithm: alg, Digest: digest}, nil
}

// MatchesLength reports whether n is acceptable for the checksum: true
// when no expected length was recorded, or n equals it exactly.
func (c Checksum) MatchesLength(n int) bool {
	return c.Length == nil || *c.Length == n
}
