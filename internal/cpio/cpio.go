// Package cpio reads the "newc"/"oldc" cpio archive format used to store
// an RPM package's file payload (spec §4.7). The reader is grounded on
// original_source/cpio_reader.cpp's header layouts, structured as a
// pull-based Reader in the manner of the standard library's archive/tar:
// call Next to advance to each entry, then Read its body.
package cpio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/release-engineering/symboldb/internal/streamio"
)

// Entry describes one archive member.
type Entry struct {
	Name     string
	Mode     uint32
	UID      uint32
	GID      uint32
	NLink    uint32
	MTime    uint64
	FileSize uint64
	DevMajor uint32
	DevMinor uint32
	Ino      uint32
	RDevMajor uint32
	RDevMinor uint32
}

// ErrHeader is returned when a header fails validation: a malformed
// magic, a non-octal/non-hex digit where one is required, or a named
// field that doesn't parse.
type ErrHeader struct {
	Field string
}

func (e *ErrHeader) Error() string {
	return fmt.Sprintf("cpio: invalid header field %q", e.Field)
}

const trailerName = "TRAILER!!!"

// state names the reader's position within the entry loop, following
// spec §9's (needMagic, needHeader, needName, needPadding, needBody,
// needTrailer) state machine.
type state int

const (
	needMagic state = iota
	needHeader
	needName
	needPadding
	needBody
	needTrailer
)

// Reader streams entries from a cpio archive body.
type Reader struct {
	r     *bufio.Reader
	st    state
	cur   Entry
	left  int64 // bytes of current entry body remaining to read
	padN  int   // padding bytes remaining after body
	done  bool
}

// NewReader wraps r for cpio decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), st: needMagic}
}

// Next advances to the next entry, skipping any unread body bytes of the
// previous one. It returns io.EOF once the TRAILER!!! sentinel entry has
// been consumed.
func (z *Reader) Next() (*Entry, error) {
	if z.done {
		return nil, io.EOF
	}
	if err := z.skipRemainder(); err != nil {
		return nil, err
	}

	magic := make([]byte, 6)
	if _, err := io.ReadFull(z.r, magic); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	z.st = needHeader

	var e Entry
	var headerLen int
	var newc bool
	switch string(magic) {
	case "070707":
		headerLen = 70
		newc = false
	case "070701", "070702":
		headerLen = 104
		newc = true
	default:
		return nil, &ErrHeader{Field: "magic"}
	}

	hdr, err := streamio.ReadExactly(z.r, headerLen)
	if err != nil {
		return nil, fmt.Errorf("cpio: reading header: %w", err)
	}
	z.st = needName

	var namesize, filesize uint64
	var check uint32
	if newc {
		fields := []*uint32{}
		var ino, mode, uid, gid, nlink, mtime, fsize, devmajor, devminor, rdevmajor, rdevminor, nsize uint32
		fields = append(fields, &ino, &mode, &uid, &gid, &nlink, &mtime, &fsize, &devmajor, &devminor, &rdevmajor, &rdevminor, &nsize, &check)
		if err := readHexFields(hdr, fields); err != nil {
			return nil, err
		}
		e.Ino, e.Mode, e.UID, e.GID, e.NLink = ino, mode, uid, gid, nlink
		e.MTime = uint64(mtime)
		filesize = uint64(fsize)
		e.DevMajor, e.DevMinor = devmajor, devminor
		e.RDevMajor, e.RDevMinor = rdevmajor, rdevminor
		namesize = uint64(nsize)
	} else {
		var devmajor, ino, mode, uid, gid, nlink, rdevmajor uint32
		var mtime, nsize, fsize uint32
		if err := readOctalField(hdr[0:6], "dev", &devmajor); err != nil {
			return nil, err
		}
		if err := readOctalField(hdr[6:12], "ino", &ino); err != nil {
			return nil, err
		}
		if err := readOctalField(hdr[12:18], "mode", &mode); err != nil {
			return nil, err
		}
		if err := readOctalField(hdr[18:24], "uid", &uid); err != nil {
			return nil, err
		}
		if err := readOctalField(hdr[24:30], "gid", &gid); err != nil {
			return nil, err
		}
		if err := readOctalField(hdr[30:36], "nlink", &nlink); err != nil {
			return nil, err
		}
		if err := readOctalField(hdr[36:42], "rdev", &rdevmajor); err != nil {
			return nil, err
		}
		if err := readOctalField(hdr[42:53], "mtime", &mtime); err != nil {
			return nil, err
		}
		if err := readOctalField(hdr[53:59], "namesize", &nsize); err != nil {
			return nil, err
		}
		if err := readOctalField(hdr[59:70], "filesize", &fsize); err != nil {
			return nil, err
		}
		e.DevMajor, e.Ino, e.Mode, e.UID, e.GID, e.NLink, e.RDevMajor = devmajor, ino, mode, uid, gid, nlink, rdevmajor
		e.MTime = uint64(mtime)
		namesize = uint64(nsize)
		filesize = uint64(fsize)
	}
	e.FileSize = filesize

	if namesize == 0 || namesize > 1<<20 {
		return nil, &ErrHeader{Field: "namesize"}
	}
	nameBuf, err := streamio.ReadExactly(z.r, int(namesize))
	if err != nil {
		return nil, fmt.Errorf("cpio: reading name: %w", err)
	}
	if len(nameBuf) == 0 || nameBuf[len(nameBuf)-1] != 0 {
		return nil, &ErrHeader{Field: "name"}
	}
	e.Name = string(nameBuf[:len(nameBuf)-1])
	z.st = needPadding

	if newc {
		if err := z.skipPad(6 + headerLen + int(namesize)); err != nil {
			return nil, err
		}
	}

	z.st = needBody
	if e.Name == trailerName {
		z.done = true
		return nil, io.EOF
	}

	z.cur = e
	z.left = int64(filesize)
	if newc {
		z.padN = padLen(int64(filesize))
	} else {
		z.padN = 0
	}
	z.st = needTrailer
	return &e, nil
}

// Read reads from the current entry's body.
func (z *Reader) Read(p []byte) (int, error) {
	if z.left <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > z.left {
		p = p[:z.left]
	}
	n, err := z.r.Read(p)
	z.left -= int64(n)
	return n, err
}

func (z *Reader) skipRemainder() error {
	if z.left > 0 {
		if _, err := io.CopyN(io.Discard, z.r, z.left); err != nil {
			return fmt.Errorf("cpio: skipping body: %w", err)
		}
		z.left = 0
	}
	if z.padN > 0 {
		if _, err := io.CopyN(io.Discard, z.r, int64(z.padN)); err != nil {
			return fmt.Errorf("cpio: skipping padding: %w", err)
		}
		z.padN = 0
	}
	return nil
}

// skipPad consumes the padding bytes that align the newc header+name
// region to a 4-byte boundary.
func (z *Reader) skipPad(consumed int) error {
	n := padLen(int64(consumed))
	if n == 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, z.r, int64(n))
	return err
}

func padLen(n int64) int {
	if m := n % 4; m != 0 {
		return int(4 - m)
	}
	return 0
}

func readOctalField(b []byte, name string, out *uint32) error {
	var v uint32
	for _, c := range b {
		if c < '0' || c > '7' {
			return &ErrHeader{Field: name}
		}
		v = (v << 3) | uint32(c-'0')
	}
	*out = v
	return nil
}

func readHexFields(hdr []byte, fields []*uint32) error {
	names := [...]string{"ino", "mode", "uid", "gid", "nlink", "mtime", "filesize",
		"devmajor", "devminor", "rdevmajor", "rdevminor", "namesize", "check"}
	for i, f := range fields {
		b := hdr[i*8 : i*8+8]
		var v uint32
		for _, c := range b {
			var d uint32
			switch {
			case c >= '0' && c <= '9':
				d = uint32(c - '0')
			case c >= 'a' && c <= 'f':
				d = uint32(c-'a') + 10
			case c >= 'A' && c <= 'F':
				d = uint32(c-'A') + 10
			default:
				return &ErrHeader{Field: names[i]}
			}
			v = (v << 4) | d
		}
		*f = v
	}
	return nil
}
