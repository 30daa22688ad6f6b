package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/release-engineering/symboldb/internal/db"
	"github.com/release-engineering/symboldb/internal/ids"
	"github.com/release-engineering/symboldb/internal/rpmpkg"
)

// InternPackage inserts info, returning its id and whether it was
// already present (spec §3.3's "re-inserting a package with the same
// hash is a no-op and yields the existing id").
func InternPackage(ctx context.Context, q db.Queryer, info *rpmpkg.PackageInfo) (ids.PackageID, bool, error) {
	const selectQ = `SELECT id FROM package WHERE header_sha1 = $1`
	var id int64
	err := q.QueryRow(ctx, selectQ, info.HeaderSHA1).Scan(&id)
	switch {
	case err == nil:
		return ids.PackageID(id), true, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return 0, false, fmt.Errorf("schema: looking up package %s: %w", info.Hint(), err)
	}

	const insertQ = `
		INSERT INTO package
			(name, epoch, version, release, arch, source_package, header_sha1,
			 kind, build_host, build_time, summary, description, license, pkg_group)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (header_sha1) DO UPDATE SET header_sha1 = EXCLUDED.header_sha1
		RETURNING id, (xmax = 0) AS inserted`
	var inserted bool
	err = q.QueryRow(ctx, insertQ,
		info.Name, db.NullParam(info.Epoch), info.Version, info.Release, info.Arch,
		nullString(info.SourceRPM), info.HeaderSHA1, int16(info.Kind),
		nullString(info.BuildHost), info.BuildTime, nullString(info.Summary),
		nullString(info.Description), nullString(info.License), nullString(info.Group),
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, fmt.Errorf("schema: interning package %s: %w", info.Hint(), err)
	}
	return ids.PackageID(id), !inserted, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DigestAlgorithm enumerates the package_digest.algorithm column's
// values.
type DigestAlgorithm int16

const (
	DigestSHA1 DigestAlgorithm = iota
	DigestSHA256
)

// InsertPackageDigest records one whole-archive digest (spec §4.11 step
// 6: "insert two package_digest rows with the same length").
func InsertPackageDigest(ctx context.Context, q db.Queryer, pkg ids.PackageID, length int64, alg DigestAlgorithm, digest []byte) error {
	const query = `
		INSERT INTO package_digest (package_id, length, algorithm, digest)
		VALUES ($1,$2,$3,$4) ON CONFLICT (package_id, algorithm) DO NOTHING`
	if _, err := q.Exec(ctx, query, int64(pkg), length, int16(alg), digest); err != nil {
		return fmt.Errorf("schema: inserting package digest: %w", err)
	}
	return nil
}

// InsertDependency records a requires/provides/obsoletes row.
func InsertDependency(ctx context.Context, q db.Queryer, pkg ids.PackageID, d rpmpkg.Dependency) error {
	const query = `
		INSERT INTO package_dependency (package_id, kind, capability, op, version, pre, build)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := q.Exec(ctx, query, int64(pkg), int16(d.Kind), d.Capability, nullString(d.Op), nullString(d.Version), d.Pre, d.Build)
	if err != nil {
		return fmt.Errorf("schema: inserting dependency %s: %w", d.Capability, err)
	}
	return nil
}

// InsertScript records one pre/post install/uninstall script.
func InsertScript(ctx context.Context, q db.Queryer, pkg ids.PackageID, s rpmpkg.Script) error {
	const query = `INSERT INTO package_script (package_id, kind, interpreter, body) VALUES ($1,$2,$3,$4)`
	_, err := q.Exec(ctx, query, int64(pkg), int16(s.Kind), nullString(s.Interpreter), nullString(s.Body))
	if err != nil {
		return fmt.Errorf("schema: inserting script: %w", err)
	}
	return nil
}

// InsertTrigger records one trigger and its conditions.
func InsertTrigger(ctx context.Context, q db.Queryer, pkg ids.PackageID, t rpmpkg.Trigger) error {
	const query = `INSERT INTO package_trigger (package_id, interpreter, script) VALUES ($1,$2,$3) RETURNING id`
	var triggerID int64
	err := q.QueryRow(ctx, query, int64(pkg), nullString(t.Interpreter), nullString(t.Script)).Scan(&triggerID)
	if err != nil {
		return fmt.Errorf("schema: inserting trigger: %w", err)
	}
	const condQuery = `INSERT INTO package_trigger_condition (trigger_row, name, version) VALUES ($1,$2,$3)`
	for _, c := range t.Conditions {
		if _, err := q.Exec(ctx, condQuery, triggerID, c.Name, nullString(c.Version)); err != nil {
			return fmt.Errorf("schema: inserting trigger condition %s: %w", c.Name, err)
		}
	}
	return nil
}
