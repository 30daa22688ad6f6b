package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/release-engineering/symboldb/internal/db"
	"github.com/release-engineering/symboldb/internal/ids"
)

// InternPackageSet returns the id of the named set, creating it if
// absent.
func InternPackageSet(ctx context.Context, q db.Queryer, name string) (ids.PackageSetID, error) {
	const selectQ = `SELECT id FROM package_set WHERE name = $1`
	var id int64
	err := q.QueryRow(ctx, selectQ, name).Scan(&id)
	if err == nil {
		return ids.PackageSetID(id), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("schema: looking up package set %q: %w", name, err)
	}
	const insertQ = `INSERT INTO package_set (name) VALUES ($1) RETURNING id`
	if err := q.QueryRow(ctx, insertQ, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("schema: creating package set %q: %w", name, err)
	}
	return ids.PackageSetID(id), nil
}

// PackageSetMembers returns the current membership of set.
func PackageSetMembers(ctx context.Context, q db.Queryer, set ids.PackageSetID) ([]ids.PackageID, error) {
	rows, err := q.Query(ctx, `SELECT package_id FROM package_set_member WHERE package_set_id = $1`, int64(set))
	if err != nil {
		return nil, fmt.Errorf("schema: reading package set %v members: %w", set, err)
	}
	defer rows.Close()
	var out []ids.PackageID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, ids.PackageID(id))
	}
	return out, rows.Err()
}

// UpdatePackageSet replaces set's membership with members, in a single
// transaction-scoped delta (spec §4.13 step 6, testable property 5):
// the final membership equals members exactly, and it returns true iff
// the membership actually changed.
func UpdatePackageSet(ctx context.Context, tx db.Queryer, set ids.PackageSetID, members []ids.PackageID) (bool, error) {
	current, err := PackageSetMembers(ctx, tx, set)
	if err != nil {
		return false, err
	}
	changed := !sameSet(current, members)
	if !changed {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM package_set_member WHERE package_set_id = $1`, int64(set)); err != nil {
		return false, fmt.Errorf("schema: clearing package set %v: %w", set, err)
	}
	const insertQ = `INSERT INTO package_set_member (package_set_id, package_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`
	for _, m := range members {
		if _, err := tx.Exec(ctx, insertQ, int64(set), int64(m)); err != nil {
			return false, fmt.Errorf("schema: inserting package set %v member %v: %w", set, m, err)
		}
	}
	return true, nil
}

func sameSet(a, b []ids.PackageID) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]ids.PackageID(nil), a...)
	sb := append([]ids.PackageID(nil), b...)
	sort.Slice(sa, func(i, j int) bool { return sa[i] < sa[j] })
	sort.Slice(sb, func(i, j int) bool { return sb[i] < sb[j] })
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// PackageByDigest looks up a known package id by one of its recorded
// digests, used by the download orchestrator to skip re-downloading
// packages already in the DB (spec §4.13 step 4).
func PackageByDigest(ctx context.Context, q db.Queryer, digest []byte) (ids.PackageID, bool, error) {
	const query = `SELECT package_id FROM package_digest WHERE digest = $1 LIMIT 1`
	var id int64
	err := q.QueryRow(ctx, query, digest).Scan(&id)
	if err == nil {
		return ids.PackageID(id), true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("schema: looking up package by digest: %w", err)
}

// ExpireOrphanPackages removes packages with no package-set membership,
// the first step of the operator-invoked `expire` cascade (spec §3.4).
func ExpireOrphanPackages(ctx context.Context, q db.Queryer) (int64, error) {
	const query = `DELETE FROM package WHERE id NOT IN (SELECT package_id FROM package_set_member)`
	tag, err := q.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("schema: expiring orphan packages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireOrphanContents removes FileContents rows no file references
// (spec §3.4 step 2).
func ExpireOrphanContents(ctx context.Context, q db.Queryer) (int64, error) {
	const query = `DELETE FROM file_contents WHERE id NOT IN (SELECT contents_id FROM file)`
	tag, err := q.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("schema: expiring orphan file contents: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireOrphanJavaClasses removes JavaClass rows no remaining contents
// references (spec §3.4 step 3).
func ExpireOrphanJavaClasses(ctx context.Context, q db.Queryer) (int64, error) {
	const query = `DELETE FROM java_class WHERE id NOT IN (SELECT class_id FROM java_class_contents)`
	tag, err := q.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("schema: expiring orphan java classes: %w", err)
	}
	return tag.RowsAffected(), nil
}
