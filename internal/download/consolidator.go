package download

import (
	"github.com/release-engineering/symboldb/internal/hashutil"
	"github.com/release-engineering/symboldb/internal/rpmver"
)

// Ref is one candidate package to download: its resolved URL and the
// checksum primary.xml recorded for it (spec §4.13 step 1's "(name,
// href, checksum) tuples").
type Ref struct {
	Name     string
	Arch     string
	EVR      rpmver.EVR
	URL      string
	Checksum hashutil.Checksum
}

type consolidatorKey struct {
	name, arch string
}

// Consolidator keeps, per (name, architecture), only the Ref with the
// largest EVR (spec §4.13 step 2), grounded on
// original_source/package_set_consolidator.cpp's map<name,map<arch,
// value>> replaced with a single composite-key map, matching Go's
// idiom for that shape.
type Consolidator struct {
	best map[consolidatorKey]Ref
}

// NewConsolidator returns an empty Consolidator.
func NewConsolidator() *Consolidator {
	return &Consolidator{best: make(map[consolidatorKey]Ref)}
}

// Add records ref, replacing the current holder for (ref.Name,
// ref.Arch) iff ref's EVR compares greater (spec §9 note (iii): nil
// epoch sorts below any concrete epoch).
func (c *Consolidator) Add(ref Ref) {
	key := consolidatorKey{name: ref.Name, arch: ref.Arch}
	cur, ok := c.best[key]
	if !ok || rpmver.Compare(ref.EVR, cur.EVR) > 0 {
		c.best[key] = ref
	}
}

// Values returns every surviving Ref, in no particular order (spec
// §4.13's "package-set consolidator").
func (c *Consolidator) Values() []Ref {
	out := make([]Ref, 0, len(c.best))
	for _, v := range c.best {
		out = append(out, v)
	}
	return out
}
