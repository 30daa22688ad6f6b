package rpmpkg

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/release-engineering/symboldb/internal/cpio"
	"github.com/release-engineering/symboldb/internal/rpmhdr"
)

// FileKind classifies a CPIO entry by its mode bits.
type FileKind int

const (
	FileRegular FileKind = iota
	FileDirectory
	FileSymlink
)

const (
	sIFMT  = 0170000
	sIFDIR = 0040000
	sIFLNK = 0120000
	sIFREG = 0100000
)

// FileEntry is one archive member, combining the CPIO header's raw
// attributes with the header-derived metadata array entry of the same
// name (spec §4.8's "combined FileEntry").
type FileEntry struct {
	Name     string
	Kind     FileKind
	Mode     uint32
	MTime    int64
	Ino      uint32
	User     string
	Group    string
	Digest   string // hex, empty for non-regular files
	Flags    int32
	Caps     string
	LinkTo   string // symlink target
	Contents []byte
}

type fileAttrs struct {
	mode      uint32
	mtime     int64
	user      string
	group     string
	digest    string
	flags     int32
	caps      string
	linkTo    string
}

// buildAttrs constructs the name -> attributes map from the header's
// parallel per-file arrays (basenames/dirnames/dirindexes, or the
// legacy oldfilenames array), matching spec §4.8's "name -> attributes
// map built from the header".
func (p *Package) buildAttrs() {
	p.attrs = make(map[string]*fileAttrs)

	names := p.filenames()
	modes, _ := p.hdr.Int16s(rpmhdr.TagFileModes)
	mtimes, _ := p.hdr.Int32s(rpmhdr.TagFileMTimes)
	users, _ := p.hdr.Strings(rpmhdr.TagFileUsername)
	groups, _ := p.hdr.Strings(rpmhdr.TagFileGroupname)
	digests, _ := p.hdr.Strings(rpmhdr.TagFileDigests)
	flags, _ := p.hdr.Int32s(rpmhdr.TagFileFlags)
	linkTos, _ := p.hdr.Strings(rpmhdr.TagFileLinkTos)
	caps, _ := p.hdr.Strings(rpmhdr.TagFileCaps)

	for i, name := range names {
		a := &fileAttrs{}
		if i < len(modes) {
			a.mode = uint32(uint16(modes[i]))
		}
		if i < len(mtimes) {
			a.mtime = int64(mtimes[i])
		}
		if i < len(users) {
			a.user = users[i]
		}
		if i < len(groups) {
			a.group = groups[i]
		}
		if i < len(digests) {
			a.digest = digests[i]
		}
		if i < len(flags) {
			a.flags = flags[i]
		}
		if i < len(linkTos) {
			a.linkTo = linkTos[i]
		}
		if i < len(caps) {
			a.caps = caps[i]
		}
		p.attrs[name] = a
	}
}

// filenames reconstructs the absolute file path list from the header's
// dirname/basename/dirindex arrays (modern RPM), falling back to the
// legacy single oldfilenames array.
func (p *Package) filenames() []string {
	if old, err := p.hdr.Strings(rpmhdr.TagOldFilenames); err == nil && len(old) > 0 {
		return old
	}
	base, _ := p.hdr.Strings(rpmhdr.TagBaseNames)
	dirs, _ := p.hdr.Strings(rpmhdr.TagDirNames)
	idx, _ := p.hdr.Int32s(rpmhdr.TagDirIndexes)
	out := make([]string, len(base))
	for i, b := range base {
		var dir string
		if i < len(idx) && int(idx[i]) < len(dirs) {
			dir = dirs[idx[i]]
		}
		out[i] = dir + b
	}
	return out
}

// ReadFile streams the next CPIO entry, normalizes its name, and joins
// it against the header-derived attribute map. It returns (nil, nil) at
// the TRAILER!!! sentinel, matching spec §4.8's "Returns None at the
// trailer."
func (p *Package) ReadFile() (*FileEntry, error) {
	ent, err := p.cpio.Next()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("rpmpkg: reading cpio entry: %w", err)
	}

	name := strings.TrimPrefix(ent.Name, "./")
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}

	fe := &FileEntry{
		Name:  name,
		Mode:  ent.Mode,
		MTime: int64(ent.MTime),
		Ino:   ent.Ino,
	}
	switch ent.Mode & sIFMT {
	case sIFDIR:
		fe.Kind = FileDirectory
	case sIFLNK:
		fe.Kind = FileSymlink
	default:
		fe.Kind = FileRegular
	}

	if a, ok := p.attrs[name]; ok {
		fe.User = a.user
		fe.Group = a.group
		fe.Digest = a.digest
		fe.Flags = a.flags
		fe.Caps = a.caps
		fe.LinkTo = a.linkTo
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, p.cpio); err != nil {
		return nil, fmt.Errorf("rpmpkg: reading body of %s: %w", name, err)
	}
	fe.Contents = buf.Bytes()
	if fe.Kind == FileSymlink && fe.LinkTo == "" {
		fe.LinkTo = string(fe.Contents)
	}
	return fe, nil
}
