// Package javaclass parses a JVM class file into its constant pool and
// the (this_class, super_class, access_flags, interfaces,
// referenced_class_names) tuple spec §4.10/§3.2 records, deduplicating
// referenced names and filtering out java/lang/Object, java/lang/String,
// and the class's own name. Grounded on claircore's java/jar package for
// the magic-sniffing "looks like a class" dispatch convention; the
// constant-pool walk itself is new code against the published class
// file format, since the pack's jar reader only opens the zip container
// and never decodes bytecode.
package javaclass

import (
	"encoding/binary"
	"fmt"
)

// LooksLikeClass reports whether b begins with the class-file magic
// (spec §4.11's dispatch sniff).
func LooksLikeClass(b []byte) bool {
	return len(b) >= 4 && b[0] == 0xCA && b[1] == 0xFE && b[2] == 0xBA && b[3] == 0xBE
}

// Class is the decoded fact set for one class file (spec §3.2's
// JavaClass entity).
type Class struct {
	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  uint16
	ThisClass    string
	SuperClass   string // "" for java/lang/Object itself
	Interfaces   []string
	References   []string // deduplicated, filtered
}

const (
	tagUtf8               = 1
	tagInteger             = 3
	tagFloat               = 4
	tagLong                = 5
	tagDouble              = 6
	tagClass               = 7
	tagString              = 8
	tagFieldref            = 9
	tagMethodref           = 10
	tagInterfaceMethodref  = 11
	tagNameAndType         = 12
	tagMethodHandle        = 15
	tagMethodType          = 16
	tagDynamic             = 17
	tagInvokeDynamic       = 18
	tagModule              = 19
	tagPackage             = 20
)

type cpEntry struct {
	tag      byte
	classIdx uint16 // for tagClass: utf8 index of the name
}

// Parse decodes a class file's facts out of raw.
func Parse(raw []byte) (*Class, error) {
	if !LooksLikeClass(raw) {
		return nil, fmt.Errorf("javaclass: not a class file")
	}
	r := &reader{b: raw, pos: 8}

	cpCount, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("javaclass: reading constant pool count: %w", err)
	}

	utf8 := make(map[uint16]string)
	entries := make(map[uint16]cpEntry, cpCount)
	for i := uint16(1); i < cpCount; i++ {
		tag, err := r.u8()
		if err != nil {
			return nil, fmt.Errorf("javaclass: constant pool entry %d: %w", i, err)
		}
		switch tag {
		case tagUtf8:
			n, err := r.u16()
			if err != nil {
				return nil, err
			}
			s, err := r.bytes(int(n))
			if err != nil {
				return nil, err
			}
			utf8[i] = string(s)
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			idx, err := r.u16()
			if err != nil {
				return nil, err
			}
			entries[i] = cpEntry{tag: tag, classIdx: idx}
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			if _, err := r.u16(); err != nil {
				return nil, err
			}
			if _, err := r.u16(); err != nil {
				return nil, err
			}
		case tagInteger, tagFloat:
			if _, err := r.bytes(4); err != nil {
				return nil, err
			}
		case tagLong, tagDouble:
			if _, err := r.bytes(8); err != nil {
				return nil, err
			}
			i++ // long/double occupy two constant pool slots
		case tagMethodHandle:
			if _, err := r.u8(); err != nil {
				return nil, err
			}
			if _, err := r.u16(); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("javaclass: unknown constant pool tag %d at entry %d", tag, i)
		}
	}

	className := func(classEntryIdx uint16) string {
		e, ok := entries[classEntryIdx]
		if !ok || e.tag != tagClass {
			return ""
		}
		return utf8[e.classIdx]
	}

	accessFlags, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("javaclass: reading access_flags: %w", err)
	}
	thisIdx, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("javaclass: reading this_class: %w", err)
	}
	superIdx, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("javaclass: reading super_class: %w", err)
	}

	c := &Class{
		MinorVersion: 0,
		AccessFlags:  accessFlags,
		ThisClass:    className(thisIdx),
		SuperClass:   className(superIdx),
	}
	if len(raw) >= 8 {
		c.MinorVersion = binary.BigEndian.Uint16(raw[4:6])
		c.MajorVersion = binary.BigEndian.Uint16(raw[6:8])
	}

	ifaceCount, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("javaclass: reading interfaces_count: %w", err)
	}
	for i := uint16(0); i < ifaceCount; i++ {
		idx, err := r.u16()
		if err != nil {
			return nil, err
		}
		if n := className(idx); n != "" {
			c.Interfaces = append(c.Interfaces, n)
		}
	}

	seen := make(map[string]bool)
	var refs []string
	for _, e := range entries {
		if e.tag != tagClass {
			continue
		}
		name := utf8[e.classIdx]
		if name == "" || name == c.ThisClass || name == "java/lang/Object" || name == "java/lang/String" {
			continue
		}
		if !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}
	c.References = refs

	return c, nil
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) u8() (byte, error) {
	if r.pos+1 > len(r.b) {
		return 0, fmt.Errorf("javaclass: unexpected end of file")
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if r.pos+2 > len(r.b) {
		return 0, fmt.Errorf("javaclass: unexpected end of file")
	}
	v := binary.BigEndian.Uint16(r.b[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, fmt.Errorf("javaclass: unexpected end of file")
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}
