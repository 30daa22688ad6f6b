package schema

import (
	"context"
	"fmt"

	"github.com/release-engineering/symboldb/internal/db"
	"github.com/release-engineering/symboldb/internal/elfanalyze"
	"github.com/release-engineering/symboldb/internal/ids"
)

// InsertElfFile inserts the elf_file row. soname may be empty.
func InsertElfFile(ctx context.Context, q db.Queryer, contents ids.ContentsID, class, data byte, etype uint16, machine uint32, arch, soname, interp string, buildID []byte) error {
	const query = `
		INSERT INTO elf_file (contents_id, ei_class, ei_data, e_type, e_machine, arch, soname, interp, build_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (contents_id) DO NOTHING`
	_, err := q.Exec(ctx, query, int64(contents), int16(class), int16(data), int16(etype), int32(machine),
		nullString(arch), nullString(soname), nullString(interp), nullBytes(buildID))
	if err != nil {
		return fmt.Errorf("schema: inserting elf_file: %w", err)
	}
	return nil
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// InsertElfProgramHeader inserts one program-header row.
func InsertElfProgramHeader(ctx context.Context, q db.Queryer, contents ids.ContentsID, ph elfanalyze.ProgramHeader) error {
	const query = `
		INSERT INTO elf_program_header
			(contents_id, type, file_offset, virt_addr, phys_addr, file_size, mem_size, align, readable, writable, executable)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := q.Exec(ctx, query, int64(contents), int32(ph.Type), int64(ph.FileOff), int64(ph.VirtAddr),
		int64(ph.PhysAddr), int64(ph.FileSize), int64(ph.MemSize), int64(ph.Align), ph.Read, ph.Write, ph.Exec)
	if err != nil {
		return fmt.Errorf("schema: inserting elf_program_header: %w", err)
	}
	return nil
}

// InsertElfSymbolDefinition inserts one symbol definition row.
func InsertElfSymbolDefinition(ctx context.Context, q db.Queryer, contents ids.ContentsID, d *elfanalyze.SymbolDefinition) error {
	const query = `
		INSERT INTO elf_symbol_definition (contents_id, name, version, default_version, symbol_type, binding, visibility, section)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := q.Exec(ctx, query, int64(contents), d.Name, nullString(d.Version), d.DefaultVersion,
		int16(d.Type), int16(d.Binding), int16(d.Visibility), int32(d.Section))
	if err != nil {
		return fmt.Errorf("schema: inserting elf_symbol_definition %s: %w", d.Name, err)
	}
	return nil
}

// InsertElfSymbolReference inserts one symbol reference row.
func InsertElfSymbolReference(ctx context.Context, q db.Queryer, contents ids.ContentsID, r *elfanalyze.SymbolReference) error {
	const query = `
		INSERT INTO elf_symbol_reference (contents_id, name, version, symbol_type, binding, visibility)
		VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := q.Exec(ctx, query, int64(contents), r.Name, nullString(r.Version), int16(r.Type), int16(r.Binding), int16(r.Visibility))
	if err != nil {
		return fmt.Errorf("schema: inserting elf_symbol_reference %s: %w", r.Name, err)
	}
	return nil
}

// InsertElfNeeded inserts one NEEDED row.
func InsertElfNeeded(ctx context.Context, q db.Queryer, contents ids.ContentsID, name string) error {
	const query = `INSERT INTO elf_needed (contents_id, name) VALUES ($1,$2)`
	_, err := q.Exec(ctx, query, int64(contents), name)
	if err != nil {
		return fmt.Errorf("schema: inserting elf_needed %s: %w", name, err)
	}
	return nil
}

// InsertElfRpath inserts one RPATH row.
func InsertElfRpath(ctx context.Context, q db.Queryer, contents ids.ContentsID, path string) error {
	_, err := q.Exec(ctx, `INSERT INTO elf_rpath (contents_id, path) VALUES ($1,$2)`, int64(contents), path)
	if err != nil {
		return fmt.Errorf("schema: inserting elf_rpath: %w", err)
	}
	return nil
}

// InsertElfRunpath inserts one RUNPATH row.
func InsertElfRunpath(ctx context.Context, q db.Queryer, contents ids.ContentsID, path string) error {
	_, err := q.Exec(ctx, `INSERT INTO elf_runpath (contents_id, path) VALUES ($1,$2)`, int64(contents), path)
	if err != nil {
		return fmt.Errorf("schema: inserting elf_runpath: %w", err)
	}
	return nil
}

// InsertElfDynamic inserts one other-tag dynamic-section row.
func InsertElfDynamic(ctx context.Context, q db.Queryer, contents ids.ContentsID, tag int64, value uint64) error {
	_, err := q.Exec(ctx, `INSERT INTO elf_dynamic (contents_id, tag, value) VALUES ($1,$2,$3)`, int64(contents), tag, int64(value))
	if err != nil {
		return fmt.Errorf("schema: inserting elf_dynamic: %w", err)
	}
	return nil
}

// InsertElfError records a per-file ELF analysis error (spec §4.11: a
// duplicate SONAME "records an elf_error but only the first is used").
func InsertElfError(ctx context.Context, q db.Queryer, contents ids.ContentsID, message string) error {
	_, err := q.Exec(ctx, `INSERT INTO elf_error (contents_id, message) VALUES ($1,$2)`, int64(contents), message)
	if err != nil {
		return fmt.Errorf("schema: inserting elf_error: %w", err)
	}
	return nil
}
