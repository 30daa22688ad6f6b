package schema

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/release-engineering/symboldb/internal/db"
	"github.com/release-engineering/symboldb/internal/ids"
	"github.com/release-engineering/symboldb/internal/javaclass"
)

// InternJavaClass interns a Java class by the SHA-256 of its raw bytes
// (spec §3.2: "Deduplicated by SHA-256 of bytes"), returning the id and
// whether it was already present.
func InternJavaClass(ctx context.Context, q db.Queryer, raw []byte, c *javaclass.Class) (ids.ClassID, bool, error) {
	digest := sha256.Sum256(raw)
	const selectQ = `SELECT id FROM java_class WHERE sha256 = $1`
	var id int64
	err := q.QueryRow(ctx, selectQ, digest[:]).Scan(&id)
	if err == nil {
		return ids.ClassID(id), true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("schema: looking up java class: %w", err)
	}

	const insertQ = `
		INSERT INTO java_class (sha256, this_class, super_class, access_flags)
		VALUES ($1,$2,$3,$4) RETURNING id`
	err = q.QueryRow(ctx, insertQ, digest[:], c.ThisClass, nullString(c.SuperClass), int32(c.AccessFlags)).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("schema: interning java class %s: %w", c.ThisClass, err)
	}
	for _, iface := range c.Interfaces {
		if _, err := q.Exec(ctx, `INSERT INTO java_class_interface (class_id, name) VALUES ($1,$2)`, id, iface); err != nil {
			return 0, false, fmt.Errorf("schema: inserting java interface %s: %w", iface, err)
		}
	}
	for _, ref := range c.References {
		if _, err := q.Exec(ctx, `INSERT INTO java_class_reference (class_id, name) VALUES ($1,$2)`, id, ref); err != nil {
			return 0, false, fmt.Errorf("schema: inserting java reference %s: %w", ref, err)
		}
	}
	return ids.ClassID(id), false, nil
}

// LinkJavaClassContents attaches a (already-deduplicated) class to the
// contents_id of the file it was found in (spec §3.2's many-to-many
// table).
func LinkJavaClassContents(ctx context.Context, q db.Queryer, class ids.ClassID, contents ids.ContentsID) error {
	const query = `INSERT INTO java_class_contents (class_id, contents_id) VALUES ($1,$2)`
	if _, err := q.Exec(ctx, query, int64(class), int64(contents)); err != nil {
		return fmt.Errorf("schema: linking java class to contents: %w", err)
	}
	return nil
}

// InsertJavaMavenURL records one Maven coordinate against a contents_id.
func InsertJavaMavenURL(ctx context.Context, q db.Queryer, contents ids.ContentsID, url string) error {
	if _, err := q.Exec(ctx, `INSERT INTO java_maven_url (contents_id, url) VALUES ($1,$2)`, int64(contents), url); err != nil {
		return fmt.Errorf("schema: inserting maven url: %w", err)
	}
	return nil
}

// InsertJavaError records a per-file Java class parse error.
func InsertJavaError(ctx context.Context, q db.Queryer, contents ids.ContentsID, message string) error {
	if _, err := q.Exec(ctx, `INSERT INTO java_error (contents_id, message) VALUES ($1,$2)`, int64(contents), message); err != nil {
		return fmt.Errorf("schema: inserting java_error: %w", err)
	}
	return nil
}
