package rpmhdr

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// entryInfoSize is sizeof(uint32) * 4: tag, type, offset, count.
const entryInfoSize = 16

// preambleSize is sizeof(uint32) * 2: index count, data size.
const preambleSize = 8

// EntryInfo describes one tag's location within a Header's data arena.
type EntryInfo struct {
	Tag    Tag
	Type   Kind
	Offset int32
	Count  uint32
}

func (e *EntryInfo) unmarshal(b []byte) error {
	if len(b) < entryInfoSize {
		return io.ErrShortBuffer
	}
	e.Tag = Tag(int32(binary.BigEndian.Uint32(b[0:4])))
	e.Type = Kind(binary.BigEndian.Uint32(b[4:8]))
	e.Offset = int32(binary.BigEndian.Uint32(b[8:12]))
	e.Count = binary.BigEndian.Uint32(b[12:16])
	return nil
}

// Header is a parsed RPM header: an index of EntryInfo records plus the
// data arena they point into. The on-disk layout is the one described by
// spec §4.8/§4.11: an index-count/data-size preamble, an EntryInfo table,
// then a typed data segment.
type Header struct {
	tags *io.SectionReader
	data *io.SectionReader
	byTag map[Tag]*EntryInfo
	order []Tag
}

// ParseHeader decodes a header starting at offset base of r.
// It returns the header plus the number of bytes consumed, so callers
// streaming a lead+signature+header archive can advance past it.
func ParseHeader(r io.ReaderAt, base int64) (*Header, int64, error) {
	var pre [preambleSize]byte
	if _, err := r.ReadAt(pre[:], base); err != nil {
		return nil, 0, fmt.Errorf("rpmhdr: reading preamble: %w", err)
	}
	tagsCt := binary.BigEndian.Uint32(pre[0:4])
	dataSz := binary.BigEndian.Uint32(pre[4:8])
	const (
		tagsMax = 0x0000ffff
		dataMax = 0x0fffffff
	)
	if tagsCt == 0 || tagsCt > tagsMax {
		return nil, 0, fmt.Errorf("rpmhdr: tag count %d out of range", tagsCt)
	}
	if dataSz > dataMax {
		return nil, 0, fmt.Errorf("rpmhdr: data size %d out of range", dataSz)
	}
	tagsSz := int64(tagsCt) * entryInfoSize

	h := &Header{
		tags:  io.NewSectionReader(r, base+preambleSize, tagsSz),
		data:  io.NewSectionReader(r, base+preambleSize+tagsSz, int64(dataSz)),
		byTag: make(map[Tag]*EntryInfo, tagsCt),
		order: make([]Tag, 0, tagsCt),
	}

	buf := make([]byte, entryInfoSize)
	var prevOffset int32
	for i := uint32(0); i < tagsCt; i++ {
		if _, err := h.tags.ReadAt(buf, int64(i)*entryInfoSize); err != nil {
			return nil, 0, fmt.Errorf("rpmhdr: reading entry %d: %w", i, err)
		}
		var e EntryInfo
		if err := e.unmarshal(buf); err != nil {
			return nil, 0, fmt.Errorf("rpmhdr: entry %d: %w", i, err)
		}
		if e.Tag == TagHeaderImage || e.Tag == TagHeaderSignatures || e.Tag == TagHeaderImmutable {
			// Region tag: its data is a trailer EntryInfo, not a normal
			// value. Skip it from the lookup table but keep consuming
			// the index so offsets stay in sync.
			continue
		}
		if e.Type < TypeMin || e.Type > TypeMax {
			return nil, 0, fmt.Errorf("rpmhdr: entry %d: bad type %v", i, e.Type)
		}
		if e.Offset < prevOffset {
			return nil, 0, fmt.Errorf("rpmhdr: entry %d: offsets out of order", i)
		}
		prevOffset = e.Offset
		ec := e
		h.byTag[e.Tag] = &ec
		h.order = append(h.order, e.Tag)
	}

	total := preambleSize + tagsSz + int64(dataSz)
	return h, total, nil
}

// Has reports whether tag is present.
func (h *Header) Has(tag Tag) bool {
	_, ok := h.byTag[tag]
	return ok
}

// Strings decodes a TypeString, TypeStringArray or TypeI18nString entry.
func (h *Header) Strings(tag Tag) ([]string, error) {
	e, ok := h.byTag[tag]
	if !ok {
		return nil, nil
	}
	switch e.Type {
	case TypeString:
		r := bufio.NewReader(io.NewSectionReader(h.data, int64(e.Offset), -1))
		s, err := r.ReadString(0)
		if err != nil {
			return nil, fmt.Errorf("rpmhdr: tag %v: reading string: %w", tag, err)
		}
		return []string{s[:len(s)-1]}, nil
	case TypeStringArray, TypeI18nString:
		sc := bufio.NewScanner(io.NewSectionReader(h.data, int64(e.Offset), -1))
		sc.Split(splitCString)
		out := make([]string, 0, e.Count)
		for i := 0; uint32(i) < e.Count && sc.Scan(); i++ {
			out = append(out, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("rpmhdr: tag %v: reading string array: %w", tag, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("rpmhdr: tag %v: not a string type: %v", tag, e.Type)
	}
}

// String returns the first value of Strings, or "" if absent.
func (h *Header) String(tag Tag) string {
	s, err := h.Strings(tag)
	if err != nil || len(s) == 0 {
		return ""
	}
	return s[0]
}

// Int32s decodes a TypeInt32 entry.
func (h *Header) Int32s(tag Tag) ([]int32, error) {
	e, ok := h.byTag[tag]
	if !ok {
		return nil, nil
	}
	if e.Type != TypeInt32 {
		return nil, fmt.Errorf("rpmhdr: tag %v: not int32: %v", tag, e.Type)
	}
	sr := io.NewSectionReader(h.data, int64(e.Offset), -1)
	out := make([]int32, e.Count)
	b := make([]byte, 4)
	for i := range out {
		if _, err := io.ReadFull(sr, b); err != nil {
			return nil, fmt.Errorf("rpmhdr: tag %v: reading int32 %d: %w", tag, i, err)
		}
		out[i] = int32(binary.BigEndian.Uint32(b))
	}
	return out, nil
}

// Int32 returns the first value of Int32s and true, or (0, false) if absent.
func (h *Header) Int32(tag Tag) (int32, bool) {
	v, err := h.Int32s(tag)
	if err != nil || len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

// Int16s decodes a TypeInt16 entry.
func (h *Header) Int16s(tag Tag) ([]int16, error) {
	e, ok := h.byTag[tag]
	if !ok {
		return nil, nil
	}
	if e.Type != TypeInt16 {
		return nil, fmt.Errorf("rpmhdr: tag %v: not int16: %v", tag, e.Type)
	}
	sr := io.NewSectionReader(h.data, int64(e.Offset), -1)
	out := make([]int16, e.Count)
	b := make([]byte, 2)
	for i := range out {
		if _, err := io.ReadFull(sr, b); err != nil {
			return nil, fmt.Errorf("rpmhdr: tag %v: reading int16 %d: %w", tag, i, err)
		}
		out[i] = int16(binary.BigEndian.Uint16(b))
	}
	return out, nil
}

// Int64s decodes a TypeInt64 entry.
func (h *Header) Int64s(tag Tag) ([]int64, error) {
	e, ok := h.byTag[tag]
	if !ok {
		return nil, nil
	}
	if e.Type != TypeInt64 {
		return nil, fmt.Errorf("rpmhdr: tag %v: not int64: %v", tag, e.Type)
	}
	sr := io.NewSectionReader(h.data, int64(e.Offset), -1)
	out := make([]int64, e.Count)
	b := make([]byte, 8)
	for i := range out {
		if _, err := io.ReadFull(sr, b); err != nil {
			return nil, fmt.Errorf("rpmhdr: tag %v: reading int64 %d: %w", tag, i, err)
		}
		out[i] = int64(binary.BigEndian.Uint64(b))
	}
	return out, nil
}

// Bytes decodes a TypeBin entry.
func (h *Header) Bytes(tag Tag) ([]byte, error) {
	e, ok := h.byTag[tag]
	if !ok {
		return nil, nil
	}
	if e.Type != TypeBin {
		return nil, fmt.Errorf("rpmhdr: tag %v: not binary: %v", tag, e.Type)
	}
	b := make([]byte, e.Count)
	if _, err := h.data.ReadAt(b, int64(e.Offset)); err != nil {
		return nil, fmt.Errorf("rpmhdr: tag %v: reading binary: %w", tag, err)
	}
	return b, nil
}

func splitCString(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
