package repomd

import (
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Package is one `<package type="rpm">` element of primary.xml (spec
// §4.12).
type Package struct {
	Name      string
	Epoch     *int32
	Version   string
	Release   string
	Arch      string
	SourceRPM string
	Checksum  Checksum
	Href      string
}

// Packages streams primary.xml (already gunzip'd) one <package>
// element at a time via a Go range-over-func iterator, matching the
// "coroutine" shape of the original's expat_source (spec §9). Missing
// required subelements raise a *ParseError naming the missing one (spec
// §4.12); the iterator stops and the error is delivered as the
// iteration's final yielded value.
func Packages(r io.Reader) iter.Seq2[*Package, error] {
	return func(yield func(*Package, error) bool) {
		dec := xml.NewDecoder(r)
		for {
			pkg, err := nextPackage(dec)
			if err == io.EOF {
				return
			}
			if !yield(pkg, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// GunzipPrimary opens the gzip-compressed primary.xml stream and
// returns an io.Reader over its decompressed XML (spec §4.12, §4.9's
// "wired here for the higher-throughput gunzip path").
func GunzipPrimary(r io.Reader) (io.Reader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("repomd: opening primary.xml.gz: %w", err)
	}
	return zr, nil
}

// nextPackage advances dec to the next <package> element and decodes
// it. Depth is tracked relative to the currently-open <package> (rather
// than from the document root) since nextPackage is called repeatedly
// on the same decoder and never sees the enclosing <metadata> start
// tag after the first call.
func nextPackage(dec *xml.Decoder) (*Package, error) {
	var pkg *Package
	var elem []string // element-name stack *inside* the open <package>
	var inFormat bool
	var checksumAlg string

	top := func() string {
		if len(elem) == 0 {
			return ""
		}
		return elem[len(elem)-1]
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("repomd: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if pkg == nil {
				if t.Name.Local != "package" {
					continue
				}
				if ty := attr(t, "type"); ty != "" && ty != "rpm" {
					return nil, parseErr("invalid package type: %s", ty)
				}
				pkg = &Package{}
				continue
			}
			elem = append(elem, t.Name.Local)
			switch t.Name.Local {
			case "version":
				pkg.Version = attr(t, "ver")
				pkg.Release = attr(t, "rel")
				if es := attr(t, "epoch"); es != "" {
					if n, err := strconv.ParseInt(es, 10, 32); err == nil {
						v := int32(n)
						pkg.Epoch = &v
					}
				}
			case "checksum":
				checksumAlg = attr(t, "type")
			case "location":
				pkg.Href = attr(t, "href")
			case "format":
				inFormat = true
			case "size":
				if n, err := strconv.ParseInt(attr(t, "package"), 10, 64); err == nil {
					pkg.Checksum.Length = n
				}
			}
		case xml.EndElement:
			if pkg == nil {
				continue
			}
			if t.Name.Local == "package" {
				if err := validatePackage(pkg); err != nil {
					return nil, err
				}
				return pkg, nil
			}
			if t.Name.Local == "format" {
				inFormat = false
			}
			if len(elem) > 0 {
				elem = elem[:len(elem)-1]
			}
		case xml.CharData:
			if pkg == nil {
				continue
			}
			switch {
			case top() == "name" && len(elem) == 1:
				pkg.Name = strings.TrimSpace(string(t))
			case top() == "arch" && len(elem) == 1:
				pkg.Arch = strings.TrimSpace(string(t))
			case top() == "checksum":
				pkg.Checksum.Algorithm = checksumAlg
				pkg.Checksum.Hex = strings.TrimSpace(string(t))
			case inFormat && top() == "sourcerpm":
				pkg.SourceRPM = strings.TrimSpace(string(t))
			}
		}
	}
}

func validatePackage(p *Package) error {
	switch {
	case p.Name == "":
		return parseErr("missing <name> element")
	case p.Version == "":
		return parseErr("missing <version> element in package: %s", p.Name)
	case p.Arch == "":
		return parseErr("missing <arch> element in package: %s", p.Name)
	case p.Href == "":
		return parseErr("missing <location>/href element in package: %s", p.Name)
	case p.Checksum.Algorithm == "":
		return parseErr("missing <checksum> element in package: %s", p.Name)
	case p.Checksum.Length == 0:
		return parseErr("missing <size> element in package: %s", p.Name)
	}
	return nil
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
