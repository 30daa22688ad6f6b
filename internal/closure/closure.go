// Package closure implements the ELF closure resolver (spec §4.14): for
// a given package set, resolve every shared-library NEEDED entry to a
// concrete providing file, suppress a short list of known-spurious
// conflicts, compute the transitive closure to a fixpoint, and upsert
// the result into elf_closure as a single atomic set-difference. It is
// grounded byte-for-byte on
// original_source/lib/symboldb/update_elf_closure.cpp, including the
// dirname-length "same directory" quirk spec §9 Open Question (i) calls
// out to reproduce rather than fix.
package closure

import (
	"context"
	"debug/elf"
	"fmt"
	"sort"
	"strings"

	"github.com/quay/zlog"

	"github.com/release-engineering/symboldb/internal/db"
	"github.com/release-engineering/symboldb/internal/ids"
)

// fileRef is one candidate provider of a SONAME within an architecture
// bucket.
type fileRef struct {
	id   ids.FileID
	name string
	pkg  string
}

// priority rates how well this candidate matches needingPath, following
// original_source's file_ref::priority exactly: a flat bonus for living
// under a standard library directory, a bonus for sharing a directory
// with the needing file (see sameDirectory), 2 points per shared leading
// byte up to the shorter
// name's length, and a penalty for the candidate's own length.
func (f fileRef) priority(needingPath string) int {
	const (
		libPrio = 100000
		dirPrio = 10000
	)
	prio := 0
	if strings.HasPrefix(f.name, "/lib/") || strings.HasPrefix(f.name, "/lib64/") ||
		strings.HasPrefix(f.name, "/usr/lib/") || strings.HasPrefix(f.name, "/usr/lib64/") {
		prio += libPrio
	}
	if sameDirectory(f.name, needingPath) {
		prio += dirPrio
	}
	sz := len(f.name)
	if len(needingPath) < sz {
		sz = len(needingPath)
	}
	for i := 0; i < sz && f.name[i] == needingPath[i]; i++ {
		prio += 2
	}
	prio -= len(f.name)
	return prio
}

// sameDirectory reproduces original_source's same_directory check: two
// paths are considered to be in the same directory only when their last
// "/" occurs at the same byte offset and everything before it matches
// byte-for-byte, i.e. their dirnames are equal as strings. "/a/b/x" and
// "/a/bb/x" do not share a directory: their dirname lengths already
// differ. Paths are compared as given, without any normalization (no
// collapsing of "//" or "." components).
func sameDirectory(left, right string) bool {
	l := strings.LastIndexByte(left, '/')
	r := strings.LastIndexByte(right, '/')
	if l < 0 || r < 0 || l != r {
		return false
	}
	return left[:l] == right[:r]
}

// synthesizeSoname derives a SONAME from a file's basename when the ELF
// file carries none (spec §4.9/§4.11: "synthesised from the basename of
// the install path").
func synthesizeSoname(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Conflicts receives missing-dependency and multi-provider-conflict
// reports produced while resolving a closure. A nil Conflicts is valid:
// Recompute simply skips reporting.
type Conflicts interface {
	// Missing reports that needingFile requires neededName but no
	// provider exists in the set.
	Missing(needingFile ids.FileID, neededName string)
	// Conflict reports that needingFile's reference to neededName was
	// resolved to chosen, out of the full candidates slice (chosen
	// first, then the rest, matching original_source's ordering).
	Conflict(needingFile ids.FileID, neededName string, candidates []ids.FileID)
}

type sonameMap map[string][]fileRef

type archSonameMap map[string]sonameMap

// lookup finds the best provider of neededName within arch, scoring
// candidates against needingPath when more than one exists. Reports to
// conflicts when non-nil.
func lookup(archSoname archSonameMap, arch, neededName string, needingFile ids.FileID, needingPath string, conflicts Conflicts) ids.FileID {
	providers := archSoname[arch][neededName]
	if len(providers) == 0 {
		if conflicts != nil {
			conflicts.Missing(needingFile, neededName)
		}
		return 0
	}
	best := providers[0]
	if len(providers) == 1 {
		return best.id
	}
	bestPriority := best.priority(needingPath)
	for _, p := range providers[1:] {
		prio := p.priority(needingPath)
		// Tie-break exactly as original_source: only re-examine the
		// winner when the candidate's file name equals the current
		// best's, preferring the lexicographically smaller package
		// name. Spec §4.14 step 4 paraphrases this as "prefer smaller
		// package name, then smaller file name"; the original only
		// consults package name on a file-name tie, which is what we
		// reproduce here.
		if prio > bestPriority || (p.name == best.name && p.pkg < best.pkg) {
			best = p
			bestPriority = prio
		}
	}
	if conflicts != nil {
		choices := make([]ids.FileID, 0, len(providers))
		choices = append(choices, best.id)
		for _, p := range providers {
			if p.id != best.id {
				choices = append(choices, p.id)
			}
		}
		conflicts.Conflict(needingFile, neededName, choices)
	}
	return best.id
}

// ignoredFileName reports whether path is a known sub-architecture or
// compatibility DSO that should not itself cause a conflict to be
// reported, per spec §4.14 step 3's suppression list.
func ignoredFileName(path string) bool {
	return (strings.HasPrefix(path, "/lib/") &&
		(strings.HasPrefix(path, "/lib/i686/nosegneg/") ||
			(strings.HasPrefix(path, "/lib/rtkaio/") &&
				(strings.HasPrefix(path, "/lib/rtkaio/librtkaio-") ||
					strings.HasPrefix(path, "/lib/rtkaio/i686/nosegneg/"))))) ||
		strings.HasPrefix(path, "/lib64/rtkaio/librtkaio-")
}

// ignoredPackageName reports whether pkg is a known compatibility
// package whose DSOs should not contribute to conflicts.
func ignoredPackageName(pkg string) bool {
	return pkg == "compat-gcc-34-c++" || pkg == "compat-glibc"
}

// suppressSpuriousConflicts drops flagged candidates from each
// (arch, soname) bucket, but only when doing so leaves exactly one
// provider standing — suppressing is pointless (and would hide a real
// conflict) if more than one non-flagged candidate remains.
func suppressSpuriousConflicts(archSoname archSonameMap) {
	for _, soname := range archSoname {
		for name, providers := range soname {
			if len(providers) < 2 {
				continue
			}
			kept := make([]fileRef, 0, len(providers))
			for _, p := range providers {
				if !ignoredFileName(p.name) && !ignoredPackageName(p.pkg) {
					kept = append(kept, p)
				}
			}
			if len(kept) == 1 {
				soname[name] = kept
			}
		}
	}
}

// Recompute rebuilds the elf_closure rows for set (spec §4.14): it
// snapshots the SONAME providers and NEEDED references in a REPEATABLE
// READ / READ ONLY transaction, releases it, resolves every
// reference to a concrete file, computes the transitive closure to a
// fixpoint, and then, in a second transaction, replaces elf_closure's
// rows for set with the result via a COPY-loaded temp table and a
// set-difference upsert — so the final state is exactly the newly
// computed relation (spec §3.3).
func Recompute(ctx context.Context, pool *db.Pool, set ids.PackageSetID) error {
	return recompute(ctx, pool, set, nil)
}

// RecomputeWithConflicts behaves like Recompute but additionally reports
// missing dependencies and multi-provider conflicts to conflicts.
func RecomputeWithConflicts(ctx context.Context, pool *db.Pool, set ids.PackageSetID, conflicts Conflicts) error {
	return recompute(ctx, pool, set, conflicts)
}

func recompute(ctx context.Context, pool *db.Pool, set ids.PackageSetID, conflicts Conflicts) error {
	snapshot, err := pool.BeginSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("closure: beginning snapshot transaction: %w", err)
	}
	defer snapshot.Rollback(ctx)

	archSoname, err := loadSonameProviders(ctx, snapshot, set)
	if err != nil {
		return err
	}
	suppressSpuriousConflicts(archSoname)

	edges, err := loadClosureEdges(ctx, snapshot, set, archSoname, conflicts)
	if err != nil {
		return err
	}
	if err := snapshot.Rollback(ctx); err != nil {
		return fmt.Errorf("closure: releasing snapshot transaction: %w", err)
	}

	fixpoint(edges)

	zlog.Info(ctx).
		Int64("set", int64(set)).
		Int("files", len(edges)).
		Msg("closure: fixpoint reached")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("closure: beginning update transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := upsertClosure(ctx, tx, set, edges); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("closure: committing closure update: %w", err)
	}
	return nil
}

// loadSonameProviders runs the first snapshot query (spec §4.14 step 1):
// every ET_DYN ELF file within set, keyed by (arch, soname-or-
// synthesised-from-basename).
func loadSonameProviders(ctx context.Context, q db.Queryer, set ids.PackageSetID) (archSonameMap, error) {
	const query = `
		SELECT ef.arch, COALESCE(ef.soname, ''), f.id, f.name, p.name
		FROM package_set_member psm
		JOIN package p ON p.id = psm.package_id
		JOIN file f ON f.package_id = psm.package_id
		JOIN elf_file ef ON ef.contents_id = f.contents_id
		WHERE psm.package_set_id = $1 AND ef.e_type = $2`
	rows, err := q.Query(ctx, query, int64(set), int16(elf.ET_DYN))
	if err != nil {
		return nil, fmt.Errorf("closure: querying soname providers: %w", err)
	}
	defer rows.Close()

	out := archSonameMap{}
	for rows.Next() {
		var arch, soname, fileName, pkgName string
		var fid int64
		if err := rows.Scan(&arch, &soname, &fid, &fileName, &pkgName); err != nil {
			return nil, fmt.Errorf("closure: scanning soname provider: %w", err)
		}
		if soname == "" {
			soname = synthesizeSoname(fileName)
		}
		soMap, ok := out[arch]
		if !ok {
			soMap = sonameMap{}
			out[arch] = soMap
		}
		soMap[soname] = append(soMap[soname], fileRef{id: ids.FileID(fid), name: fileName, pkg: pkgName})
	}
	return out, rows.Err()
}

// loadClosureEdges runs the second snapshot query (spec §4.14 step 1)
// and resolves each NEEDED entry to a direct edge (step 4), returning
// the direct (pre-fixpoint) dependency map.
func loadClosureEdges(ctx context.Context, q db.Queryer, set ids.PackageSetID, archSoname archSonameMap, conflicts Conflicts) (map[ids.FileID]map[ids.FileID]struct{}, error) {
	const query = `
		SELECT ef.arch, en.name, f.id, f.name
		FROM package_set_member psm
		JOIN file f ON f.package_id = psm.package_id
		JOIN elf_file ef ON ef.contents_id = f.contents_id
		JOIN elf_needed en ON en.contents_id = f.contents_id
		WHERE psm.package_set_id = $1`
	rows, err := q.Query(ctx, query, int64(set))
	if err != nil {
		return nil, fmt.Errorf("closure: querying needed references: %w", err)
	}
	defer rows.Close()

	edges := map[ids.FileID]map[ids.FileID]struct{}{}
	for rows.Next() {
		var arch, neededName, needingPath string
		var fid int64
		if err := rows.Scan(&arch, &neededName, &fid, &needingPath); err != nil {
			return nil, fmt.Errorf("closure: scanning needed reference: %w", err)
		}
		needingFile := ids.FileID(fid)
		library := lookup(archSoname, arch, neededName, needingFile, needingPath, conflicts)
		if library == 0 {
			continue
		}
		deps, ok := edges[needingFile]
		if !ok {
			deps = map[ids.FileID]struct{}{}
			edges[needingFile] = deps
		}
		deps[library] = struct{}{}
	}
	return edges, rows.Err()
}

// fixpoint extends edges in place to its transitive closure (spec §4.14
// step 5): repeatedly union each file's dependency set with the
// dependency sets of everything it already depends on, until nothing
// changes. Per spec §9 Open Question (iv), no reflexive self-edge is
// ever inserted unless a genuine cycle in the raw NEEDED graph produces
// one.
func fixpoint(edges map[ids.FileID]map[ids.FileID]struct{}) {
	changed := true
	for changed {
		changed = false
		for _, deps := range edges {
			// Snapshot the current members: we're extending deps
			// in place and must not walk edges it gains this pass.
			current := make([]ids.FileID, 0, len(deps))
			for f := range deps {
				current = append(current, f)
			}
			for _, dep := range current {
				depDeps, ok := edges[dep]
				if !ok {
					continue
				}
				for depdep := range depDeps {
					if _, present := deps[depdep]; !present {
						deps[depdep] = struct{}{}
						changed = true
					}
				}
			}
		}
	}
}

// upsertClosure loads the newly computed relation into a temp table via
// COPY and then set-differences it into elf_closure, scoped to set, in
// one transaction (spec §4.14 step 6): rows no longer present are
// deleted, rows not yet present are inserted, so the final state equals
// the new relation exactly.
func upsertClosure(ctx context.Context, tx *db.Tx, set ids.PackageSetID, edges map[ids.FileID]map[ids.FileID]struct{}) error {
	const createTemp = `CREATE TEMPORARY TABLE update_elf_closure (
		file_id BIGINT NOT NULL,
		needed  BIGINT NOT NULL
	) ON COMMIT DROP`
	if _, err := tx.Exec(ctx, createTemp); err != nil {
		return fmt.Errorf("closure: creating staging table: %w", err)
	}

	// Deterministic row order makes the COPY payload (and any test
	// fixture comparing it) reproducible across runs.
	fileIDs := make([]ids.FileID, 0, len(edges))
	for f := range edges {
		fileIDs = append(fileIDs, f)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })

	rows := make([][]any, 0)
	for _, f := range fileIDs {
		needed := make([]ids.FileID, 0, len(edges[f]))
		for n := range edges[f] {
			needed = append(needed, n)
		}
		sort.Slice(needed, func(i, j int) bool { return needed[i] < needed[j] })
		for _, n := range needed {
			rows = append(rows, []any{int64(f), int64(n)})
		}
	}

	if len(rows) > 0 {
		loader := db.NewCopyLoader(tx, "update_elf_closure", []string{"file_id", "needed"})
		if _, err := loader.Load(ctx, rows); err != nil {
			return err
		}
	}

	const createIndex = `CREATE INDEX ON update_elf_closure (file_id, needed)`
	if _, err := tx.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("closure: indexing staging table: %w", err)
	}
	if _, err := tx.Exec(ctx, "ANALYZE update_elf_closure"); err != nil {
		return fmt.Errorf("closure: analyzing staging table: %w", err)
	}

	const deleteStale = `
		DELETE FROM elf_closure ec
		WHERE ec.package_set_id = $1
		AND NOT EXISTS (
			SELECT 1 FROM update_elf_closure u
			WHERE ec.file_id = u.file_id AND ec.needed_file_id = u.needed)`
	if _, err := tx.Exec(ctx, deleteStale, int64(set)); err != nil {
		return fmt.Errorf("closure: deleting stale closure rows: %w", err)
	}

	const insertNew = `
		INSERT INTO elf_closure (package_set_id, file_id, needed_file_id)
		SELECT $1, * FROM (
			SELECT file_id, needed FROM update_elf_closure
			EXCEPT
			SELECT file_id, needed_file_id FROM elf_closure WHERE package_set_id = $1
		) x`
	if _, err := tx.Exec(ctx, insertNew, int64(set)); err != nil {
		return fmt.Errorf("closure: inserting new closure rows: %w", err)
	}
	return nil
}
