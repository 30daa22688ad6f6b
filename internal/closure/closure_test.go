package closure

import (
	"testing"

	"github.com/release-engineering/symboldb/internal/ids"
)

func TestSameDirectory(t *testing.T) {
	cases := []struct {
		left, right string
		want        bool
	}{
		{"/lib64/libc.so.6", "/lib64/ld-linux-x86-64.so.2", true},
		{"/usr/lib64/libfoo.so", "/usr/lib64/libbar.so", true},
		{"/usr/lib64/libfoo.so", "/usr/lib/libbar.so", false},
		// Spec §9 Open Question (i): "/a/b/x" and "/a/bb/x" have
		// differently-sized dirnames and must NOT be considered to
		// share a directory.
		{"/a/b/x", "/a/bb/x", false},
		{"noslash", "/has/slash", false},
	}
	for _, c := range cases {
		if got := sameDirectory(c.left, c.right); got != c.want {
			t.Errorf("sameDirectory(%q, %q) = %v, want %v", c.left, c.right, got, c.want)
		}
	}
}

func TestPriorityLibDirBonus(t *testing.T) {
	inLib := fileRef{name: "/lib64/libc.so.6"}
	inOpt := fileRef{name: "/opt/vendor/libc.so.6"}
	needing := "/usr/bin/something"
	if inLib.priority(needing) <= inOpt.priority(needing) {
		t.Fatalf("a standard library directory candidate must outrank a non-standard one")
	}
}

func TestPrioritySameDirectoryBonus(t *testing.T) {
	near := fileRef{name: "/opt/app/libfoo.so"}
	far := fileRef{name: "/opt/other/libfoo.so"}
	needing := "/opt/app/tool"
	if near.priority(needing) <= far.priority(needing) {
		t.Fatalf("a same-directory candidate must outrank one that isn't")
	}
}

func TestPriorityPrefersShorterName(t *testing.T) {
	short := fileRef{name: "/lib64/libc.so.6"}
	long := fileRef{name: "/lib64/libc-extra-long-name.so.6"}
	needing := "/usr/bin/tool"
	if short.priority(needing) <= long.priority(needing) {
		t.Fatalf("a shorter candidate name must score higher, all else equal")
	}
}

func TestSynthesizeSoname(t *testing.T) {
	cases := map[string]string{
		"/lib64/libc.so.6": "libc.so.6",
		"noslash":          "noslash",
		"/a/b/":            "",
	}
	for in, want := range cases {
		if got := synthesizeSoname(in); got != want {
			t.Errorf("synthesizeSoname(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIgnoredFileName(t *testing.T) {
	yes := []string{
		"/lib/i686/nosegneg/libc.so.6",
		"/lib/rtkaio/librtkaio-2.17.so",
		"/lib/rtkaio/i686/nosegneg/librtkaio-2.17.so",
		"/lib64/rtkaio/librtkaio-2.17.so",
	}
	for _, p := range yes {
		if !ignoredFileName(p) {
			t.Errorf("ignoredFileName(%q) = false, want true", p)
		}
	}
	no := []string{"/lib64/libc.so.6", "/lib/rtkaio/other-thing.so", "/usr/lib64/libfoo.so"}
	for _, p := range no {
		if ignoredFileName(p) {
			t.Errorf("ignoredFileName(%q) = true, want false", p)
		}
	}
}

func TestIgnoredPackageName(t *testing.T) {
	if !ignoredPackageName("compat-glibc") || !ignoredPackageName("compat-gcc-34-c++") {
		t.Fatal("known compatibility packages must be ignored")
	}
	if ignoredPackageName("glibc") {
		t.Fatal("glibc itself must not be ignored")
	}
}

// TestSuppressSpuriousConflictsLeavesOneWinner mirrors spec §4.14 step 3:
// suppression only applies when removing every flagged candidate leaves
// exactly one provider standing.
func TestSuppressSpuriousConflictsLeavesOneWinner(t *testing.T) {
	arch := archSonameMap{
		"i386": sonameMap{
			"libc.so.6": []fileRef{
				{id: 1, name: "/lib/libc.so.6", pkg: "glibc"},
				{id: 2, name: "/lib/i686/nosegneg/libc.so.6", pkg: "glibc"},
			},
		},
	}
	suppressSpuriousConflicts(arch)
	got := arch["i386"]["libc.so.6"]
	if len(got) != 1 || got[0].id != 1 {
		t.Fatalf("expected suppression to leave exactly the non-flagged candidate, got %+v", got)
	}
}

// TestSuppressSpuriousConflictsKeepsRealConflicts ensures suppression
// never removes candidates when more than one non-flagged provider
// would remain — that's a real conflict, not a spurious one.
func TestSuppressSpuriousConflictsKeepsRealConflicts(t *testing.T) {
	arch := archSonameMap{
		"x86_64": sonameMap{
			"libfoo.so.1": []fileRef{
				{id: 1, name: "/usr/lib64/libfoo.so.1", pkg: "foo-a"},
				{id: 2, name: "/usr/lib64/libfoo.so.1", pkg: "foo-b"},
				{id: 3, name: "/lib64/rtkaio/librtkaio-2.17.so", pkg: "glibc"},
			},
		},
	}
	suppressSpuriousConflicts(arch)
	got := arch["x86_64"]["libfoo.so.1"]
	if len(got) != 3 {
		t.Fatalf("suppression must not fire when two real conflicts would remain, got %+v", got)
	}
}

func TestLookupSingleProvider(t *testing.T) {
	arch := archSonameMap{
		"x86_64": sonameMap{
			"libc.so.6": []fileRef{{id: 42, name: "/lib64/libc.so.6", pkg: "glibc"}},
		},
	}
	got := lookup(arch, "x86_64", "libc.so.6", ids.FileID(1), "/usr/bin/tool", nil)
	if got != 42 {
		t.Fatalf("lookup() = %v, want 42", got)
	}
}

// recordingConflicts is a minimal Conflicts implementation for tests.
type recordingConflicts struct {
	missing   []string
	conflicts [][]ids.FileID
}

func (r *recordingConflicts) Missing(_ ids.FileID, name string) {
	r.missing = append(r.missing, name)
}

func (r *recordingConflicts) Conflict(_ ids.FileID, _ string, candidates []ids.FileID) {
	r.conflicts = append(r.conflicts, candidates)
}

func TestLookupMissing(t *testing.T) {
	arch := archSonameMap{}
	collector := &recordingConflicts{}
	got := lookup(arch, "x86_64", "libmissing.so.1", ids.FileID(1), "/usr/bin/tool", collector)
	if got != 0 {
		t.Fatalf("lookup() for a missing soname = %v, want 0", got)
	}
	if len(collector.missing) != 1 || collector.missing[0] != "libmissing.so.1" {
		t.Fatalf("expected Missing to be reported once, got %v", collector.missing)
	}
}

func TestLookupTieBreakOnNameThenPackage(t *testing.T) {
	// Two candidates with equal priority (same directory, same name
	// length) tie-break on package name, matching original_source's
	// "p.second.name == best.name && p.second.package < best.package"
	// rule exactly.
	arch := archSonameMap{
		"x86_64": sonameMap{
			"libfoo.so.1": []fileRef{
				{id: 1, name: "/usr/lib64/libfoo.so.1", pkg: "zzz-package"},
				{id: 2, name: "/usr/lib64/libfoo.so.1", pkg: "aaa-package"},
			},
		},
	}
	got := lookup(arch, "x86_64", "libfoo.so.1", ids.FileID(1), "/usr/bin/tool", nil)
	if got != 2 {
		t.Fatalf("lookup() = %v, want the lexicographically smaller package's file id (2)", got)
	}
}

func TestLookupReportsConflict(t *testing.T) {
	arch := archSonameMap{
		"x86_64": sonameMap{
			"libfoo.so.1": []fileRef{
				{id: 1, name: "/usr/lib64/libfoo.so.1", pkg: "a"},
				{id: 2, name: "/opt/other/libfoo.so.1", pkg: "b"},
			},
		},
	}
	collector := &recordingConflicts{}
	lookup(arch, "x86_64", "libfoo.so.1", ids.FileID(9), "/usr/bin/tool", collector)
	if len(collector.conflicts) != 1 || len(collector.conflicts[0]) != 2 {
		t.Fatalf("expected one conflict with two candidates, got %v", collector.conflicts)
	}
}

func TestFixpointTransitiveClosure(t *testing.T) {
	// a -> b -> c, plus a -> d (direct). Closure of a must include
	// b, c, and d.
	edges := map[ids.FileID]map[ids.FileID]struct{}{
		1: {2: {}, 4: {}},
		2: {3: {}},
	}
	fixpoint(edges)
	got := edges[1]
	want := []ids.FileID{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("closure(1) = %v, want %v", got, want)
	}
	for _, k := range want {
		if _, ok := got[k]; !ok {
			t.Fatalf("closure(1) missing %v: got %v", k, got)
		}
	}
}

func TestFixpointNoReflexiveEdgeUnlessCyclic(t *testing.T) {
	// a -> b only; a must not depend on itself.
	edges := map[ids.FileID]map[ids.FileID]struct{}{
		1: {2: {}},
	}
	fixpoint(edges)
	if _, ok := edges[1][1]; ok {
		t.Fatal("fixpoint must not insert a self-edge absent a real cycle (spec §9 Open Question (iv))")
	}
}

func TestFixpointCycleProducesReflexiveEdge(t *testing.T) {
	// a -> b -> a is a genuine cycle; the closure legitimately contains
	// the self-edge in this case (spec §9 Open Question (iv) only bars
	// *inserting* one when it isn't present in the raw graph).
	edges := map[ids.FileID]map[ids.FileID]struct{}{
		1: {2: {}},
		2: {1: {}},
	}
	fixpoint(edges)
	if _, ok := edges[1][1]; !ok {
		t.Fatal("a genuine cycle must produce a reflexive edge in its closure")
	}
}
