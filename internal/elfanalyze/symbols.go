package elfanalyze

import (
	"debug/elf"
	"fmt"
)

// SymbolDefinition is a defined symbol, optionally tagged with the
// version it was defined at (spec §4.9).
type SymbolDefinition struct {
	Name           string
	Version        string // "" if unversioned
	DefaultVersion bool
	Type           elf.SymType
	Binding        elf.SymBind
	Visibility     elf.SymVis
	Section        elf.SectionIndex
}

// SymbolReference is an undefined symbol reference, optionally tagged
// with the version it needs (spec §4.9).
type SymbolReference struct {
	Name    string
	Version string // "" if unversioned
	Other   uint8
	Type    elf.SymType
	Binding elf.SymBind
	Visibility elf.SymVis
}

// Symbol is either a SymbolDefinition or a SymbolReference, replacing
// the "two optional pointers, exactly one non-null" pattern per spec §9.
type Symbol struct {
	Def *SymbolDefinition
	Ref *SymbolReference
}

// verdef entry: (version name, version index, VER_FLG_BASE bit).
type verdefEntry struct {
	name    string
	version uint16
	base    bool
}

// Symbols walks both SHT_DYNSYM and SHT_SYMTAB, yielding one Symbol per
// table entry (spec §4.9). Errors from individual malformed symbols
// abort the whole walk, matching the spec's "raises on a dynamic symbol
// whose versym entry matches no known verneed/verdef" rule.
func (f *File) Symbols() ([]Symbol, error) {
	var out []Symbol

	verdef, err := f.parseVerdef()
	if err != nil {
		return nil, err
	}
	versym := f.rawVersym()

	dynsyms, err := f.elf.DynamicSymbols()
	if err == nil {
		for i, s := range dynsyms {
			if s.Name == "" {
				continue
			}
			// DynamicSymbols omits the null symbol at index 0, so
			// dynsyms[i] is symbol-table (and versym) index i+1.
			sym, err := f.classifySymbol(s, i+1, versym, verdef, true)
			if err != nil {
				return nil, err
			}
			out = append(out, sym)
		}
	}

	syms, err := f.elf.Symbols()
	if err == nil {
		for _, s := range syms {
			if s.Name == "" {
				continue
			}
			out = append(out, classifyStaticSymbol(s))
		}
	}
	return out, nil
}

func classifyStaticSymbol(s elf.Symbol) Symbol {
	typ, bind, vis := s.Info&0xf, s.Info>>4, s.Other&0x3
	if s.Section == elf.SHN_UNDEF {
		return Symbol{Ref: &SymbolReference{
			Name: s.Name, Type: elf.SymType(typ), Binding: elf.SymBind(bind), Visibility: elf.SymVis(vis),
		}}
	}
	return Symbol{Def: &SymbolDefinition{
		Name: s.Name, Type: elf.SymType(typ), Binding: elf.SymBind(bind), Visibility: elf.SymVis(vis), Section: s.Section,
	}}
}

// classifySymbol resolves the version of one dynsym entry via the
// SHT_GNU_VERSYM table, consulting verdef for definitions (stdlib's
// DynamicSymbols already resolved s.Version/s.Library from verneed for
// references) and raising when a defined symbol's versym index names no
// known verdef entry and its section is not SHT_NOBITS (spec §4.9).
func (f *File) classifySymbol(s elf.Symbol, idx int, versym []uint16, verdef map[uint16]verdefEntry, dyn bool) (Symbol, error) {
	typ, bind, vis := s.Info&0xf, s.Info>>4, s.Other&0x3
	if s.Section == elf.SHN_UNDEF {
		return Symbol{Ref: &SymbolReference{
			Name: s.Name, Version: s.Version, Type: elf.SymType(typ), Binding: elf.SymBind(bind), Visibility: elf.SymVis(vis),
		}}, nil
	}

	def := &SymbolDefinition{
		Name: s.Name, Type: elf.SymType(typ), Binding: elf.SymBind(bind), Visibility: elf.SymVis(vis), Section: s.Section,
	}
	if len(versym) > idx {
		v := versym[idx] &^ 0x8000
		if v > 1 {
			ve, ok := verdef[v]
			if !ok {
				if int(s.Section) < len(f.elf.Sections) && f.elf.Sections[s.Section].Type == elf.SHT_NOBITS {
					return Symbol{Def: def}, nil
				}
				return Symbol{}, fmt.Errorf("elfanalyze: symbol %q: versym %d matches no verdef entry", s.Name, v)
			}
			def.Version = ve.name
			def.DefaultVersion = versym[idx]&0x8000 == 0
		}
	}
	return Symbol{Def: def}, nil
}

func (f *File) rawVersym() []uint16 {
	vs := f.elf.SectionByType(elf.SHT_GNU_VERSYM)
	if vs == nil {
		return nil
	}
	d, err := vs.Data()
	if err != nil {
		return nil
	}
	out := make([]uint16, len(d)/2)
	for i := range out {
		out[i] = f.elf.ByteOrder.Uint16(d[i*2 : i*2+2])
	}
	return out
}

// parseVerdef reads SHT_GNU_VERDEF into a map keyed by version index,
// the definitions-side counterpart to debug/elf's unexported verneed
// parsing.
func (f *File) parseVerdef() (map[uint16]verdefEntry, error) {
	vd := f.elf.SectionByType(elf.SHT_GNU_VERDEF)
	if vd == nil {
		return nil, nil
	}
	d, err := vd.Data()
	if err != nil {
		return nil, fmt.Errorf("elfanalyze: reading verdef: %w", err)
	}
	str, err := f.dynStrtab(vd.Link)
	if err != nil {
		return nil, fmt.Errorf("elfanalyze: reading verdef strtab: %w", err)
	}
	bo := f.elf.ByteOrder
	out := make(map[uint16]verdefEntry)
	i := 0
	for i+20 <= len(d) {
		vers := bo.Uint16(d[i : i+2])
		if vers != 1 {
			break
		}
		flags := bo.Uint16(d[i+2 : i+4])
		ndx := bo.Uint16(d[i+4 : i+6])
		auxCount := bo.Uint16(d[i+6 : i+8])
		auxOff := bo.Uint32(d[i+12 : i+16])
		next := bo.Uint32(d[i+16 : i+20])

		var name string
		if auxCount > 0 {
			auxPos := i + int(auxOff)
			if auxPos+8 <= len(d) {
				nameOff := bo.Uint32(d[auxPos : auxPos+4])
				name = getStr(str, int(nameOff))
			}
		}
		out[ndx] = verdefEntry{name: name, version: ndx, base: flags&1 != 0}
		if next == 0 {
			break
		}
		i += int(next)
	}
	return out, nil
}

func (f *File) dynStrtab(link uint32) ([]byte, error) {
	if int(link) >= len(f.elf.Sections) {
		return nil, fmt.Errorf("bad section link %d", link)
	}
	return f.elf.Sections[link].Data()
}

func getStr(b []byte, off int) string {
	if off >= len(b) {
		return ""
	}
	end := off
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[off:end])
}
