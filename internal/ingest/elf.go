package ingest

import (
	"context"
	"debug/elf"
	"fmt"
	"path"

	"github.com/release-engineering/symboldb/internal/db"
	"github.com/release-engineering/symboldb/internal/elfanalyze"
	"github.com/release-engineering/symboldb/internal/ids"
	"github.com/release-engineering/symboldb/internal/schema"
)

// analyzeELF records one ELF image's facts (spec §4.11 step 5's ELF
// bullet): the elf_file row (with SONAME resolution), every program
// header, every versioned symbol definition/reference, and the
// categorized dynamic entries. A second, differing DT_SONAME in the same
// image records an elf_error but does not block the rest of the facts
// from being recorded; the elf_file row keeps the first SONAME.
func analyzeELF(ctx context.Context, tx db.Queryer, contentsID ids.ContentsID, name string, raw []byte) error {
	f, err := elfanalyze.Open(raw)
	if err != nil {
		return schema.InsertElfError(ctx, tx, contentsID, err.Error())
	}

	soname, err := resolveSOName(ctx, tx, contentsID, f, name)
	if err != nil {
		return err
	}
	err = schema.InsertElfFile(ctx, tx, contentsID, byte(f.EIClass()), byte(f.EIData()), uint16(f.EType()),
		uint32(f.EMachine()), string(f.Arch), soname, f.Interp(), f.BuildID())
	if err != nil {
		return err
	}

	for _, ph := range f.ProgramHeaders() {
		if err := schema.InsertElfProgramHeader(ctx, tx, contentsID, ph); err != nil {
			return err
		}
	}

	syms, err := f.Symbols()
	if err != nil {
		return schema.InsertElfError(ctx, tx, contentsID, fmt.Sprintf("reading symbols: %s", err))
	}
	for _, s := range syms {
		switch {
		case s.Def != nil:
			if err := schema.InsertElfSymbolDefinition(ctx, tx, contentsID, s.Def); err != nil {
				return err
			}
		case s.Ref != nil:
			if err := schema.InsertElfSymbolReference(ctx, tx, contentsID, s.Ref); err != nil {
				return err
			}
		}
	}

	dyn, err := f.DynEntries()
	if err != nil {
		return schema.InsertElfError(ctx, tx, contentsID, fmt.Sprintf("reading dynamic section: %s", err))
	}
	for _, d := range dyn {
		switch d.Tag {
		case elf.DT_NEEDED:
			if err := schema.InsertElfNeeded(ctx, tx, contentsID, d.Needed); err != nil {
				return err
			}
		case elf.DT_SONAME:
			// Already folded into the elf_file row above.
		case elf.DT_RPATH:
			if err := schema.InsertElfRpath(ctx, tx, contentsID, d.RPath); err != nil {
				return err
			}
		case elf.DT_RUNPATH:
			if err := schema.InsertElfRunpath(ctx, tx, contentsID, d.RunPath); err != nil {
				return err
			}
		default:
			if err := schema.InsertElfDynamic(ctx, tx, contentsID, int64(d.Tag), d.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveSOName returns the explicit DT_SONAME when present, otherwise
// a name synthesised from the install path's basename for a shared
// object (spec §4.11 step 5: "resolved SONAME: explicit from DT_SONAME
// if present and unique; otherwise synthesised from the basename of the
// install path"). A second, differing DT_SONAME entry records an
// elf_error ("duplicate soname ignored") per spec §4.11's "Duplicate
// SONAME records an elf_error but only the first is used" and
// original_source/rpm_load.cpp:150-160; only the first value is ever
// returned.
func resolveSOName(ctx context.Context, tx db.Queryer, contentsID ids.ContentsID, f *elfanalyze.File, name string) (string, error) {
	if f.EType() != elf.ET_DYN {
		return "", nil
	}
	dyn, err := f.DynEntries()
	if err != nil {
		return path.Base(name), nil
	}
	var soname string
	var seen bool
	for _, d := range dyn {
		if d.Tag != elf.DT_SONAME || d.SOName == "" {
			continue
		}
		if !seen {
			soname = d.SOName
			seen = true
			continue
		}
		if d.SOName != soname {
			msg := fmt.Sprintf("duplicate soname ignored: %q, previous soname: %q", d.SOName, soname)
			if err := schema.InsertElfError(ctx, tx, contentsID, msg); err != nil {
				return "", err
			}
		}
	}
	if seen {
		return soname, nil
	}
	return path.Base(name), nil
}
