package streamio

import (
	"compress/gzip"
	"fmt"
	"io"
)

// GunzipSource wraps an io.Reader of gzip-compressed bytes, transparently
// decompressing single-member or concatenated multi-member streams. A
// truncated member surfaces as an error from Read, matching the spec's
// "detects truncation" requirement.
type GunzipSource struct {
	underlying io.Reader
	gz         *gzip.Reader
}

// NewGunzipSource constructs a GunzipSource over r. The first member
// header is read eagerly so that an immediately-malformed stream fails
// at construction time rather than on first Read.
func NewGunzipSource(r io.Reader) (*GunzipSource, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("streamio: opening gzip stream: %w", err)
	}
	gz.Multistream(true)
	return &GunzipSource{underlying: r, gz: gz}, nil
}

// Read implements io.Reader.
func (g *GunzipSource) Read(p []byte) (int, error) {
	n, err := g.gz.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("streamio: gunzip: %w", err)
	}
	return n, err
}

// Close releases the underlying gzip.Reader. It does not close the
// wrapped io.Reader, matching the filter-composition style described in
// spec §4.1 (filters hold, but do not own, their downstream/upstream
// streams unless the caller says otherwise).
func (g *GunzipSource) Close() error {
	return g.gz.Close()
}
