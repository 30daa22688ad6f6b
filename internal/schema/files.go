package schema

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/release-engineering/symboldb/internal/db"
	"github.com/release-engineering/symboldb/internal/ids"
)

// FileAttributeKey is the (mode, flags, user, group, capabilities)
// tuple spec §3.3 keys by the MD5 of its canonical encoding ("mode LE32
// ‖ flags LE32 ‖ user ‖ NUL ‖ group ‖ NUL ‖ capabilities").
type FileAttributeKey struct {
	Mode         uint32
	Flags        int32
	User         string
	Group        string
	Capabilities string
}

// Digest returns the MD5 of the canonical byte encoding spec §3.3
// specifies.
func (k FileAttributeKey) Digest() [16]byte {
	var buf []byte
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], k.Mode)
	buf = append(buf, le[:]...)
	binary.LittleEndian.PutUint32(le[:], uint32(k.Flags))
	buf = append(buf, le[:]...)
	buf = append(buf, k.User...)
	buf = append(buf, 0)
	buf = append(buf, k.Group...)
	buf = append(buf, 0)
	buf = append(buf, k.Capabilities...)
	return md5.Sum(buf)
}

// InternFileAttribute interns an attribute tuple, keyed by its MD5
// (spec §3.3).
func InternFileAttribute(ctx context.Context, q db.Queryer, k FileAttributeKey) (ids.AttributeID, error) {
	digest := k.Digest()
	const selectQ = `SELECT id FROM file_attribute WHERE digest = $1`
	var id int64
	err := q.QueryRow(ctx, selectQ, digest[:]).Scan(&id)
	if err == nil {
		return ids.AttributeID(id), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("schema: looking up file attribute: %w", err)
	}

	const insertQ = `
		INSERT INTO file_attribute (digest, mode, flags, username, groupname, capabilities)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (digest) DO UPDATE SET digest = EXCLUDED.digest
		RETURNING id`
	err = q.QueryRow(ctx, insertQ, digest[:], int32(k.Mode), k.Flags, nullString(k.User), nullString(k.Group), nullString(k.Capabilities)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("schema: interning file attribute: %w", err)
	}
	return ids.AttributeID(id), nil
}

// InternFileContents interns a (length, digest) pair. The returned bool
// is true iff this call inserted a new row (spec §3.3, testable
// property 3: "the second insertion returns added=false").
func InternFileContents(ctx context.Context, q db.Queryer, length int64, digest []byte) (ids.ContentsID, bool, error) {
	const selectQ = `SELECT id FROM file_contents WHERE length = $1 AND digest = $2`
	var id int64
	err := q.QueryRow(ctx, selectQ, length, digest).Scan(&id)
	if err == nil {
		return ids.ContentsID(id), false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("schema: looking up file contents: %w", err)
	}

	const insertQ = `
		INSERT INTO file_contents (length, digest) VALUES ($1,$2)
		ON CONFLICT (length, digest) DO UPDATE SET length = EXCLUDED.length
		RETURNING id, (xmax = 0) AS inserted`
	var inserted bool
	err = q.QueryRow(ctx, insertQ, length, digest).Scan(&id, &inserted)
	if err != nil {
		return 0, false, fmt.Errorf("schema: interning file contents: %w", err)
	}
	return ids.ContentsID(id), inserted, nil
}

// UpdateContentsPreview stores a short text preview of contents on its
// FileContents row (spec §4.11: "Preview bytes of short text files are
// stored in the FileContents row via update_contents_preview").
func UpdateContentsPreview(ctx context.Context, q db.Queryer, contents ids.ContentsID, preview []byte) error {
	const query = `UPDATE file_contents SET preview = $2 WHERE id = $1`
	if _, err := q.Exec(ctx, query, int64(contents), preview); err != nil {
		return fmt.Errorf("schema: updating contents preview: %w", err)
	}
	return nil
}

// InsertFile inserts one File row.
func InsertFile(ctx context.Context, q db.Queryer, pkg ids.PackageID, name string, mtime int64, inode uint32, contents ids.ContentsID, attr ids.AttributeID) (ids.FileID, error) {
	const query = `
		INSERT INTO file (package_id, name, mtime, inode, contents_id, attribute_id)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`
	var id int64
	err := q.QueryRow(ctx, query, int64(pkg), name, mtime, int64(inode), int64(contents), int64(attr)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("schema: inserting file %s: %w", name, err)
	}
	return ids.FileID(id), nil
}

// InsertDirectory inserts one Directory row.
func InsertDirectory(ctx context.Context, q db.Queryer, pkg ids.PackageID, flags int32, name, user, group string, mtime int64, mode uint32) error {
	const query = `
		INSERT INTO directory (package_id, flags, name, username, groupname, mtime, mode)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := q.Exec(ctx, query, int64(pkg), flags, name, nullString(user), nullString(group), mtime, int32(mode))
	if err != nil {
		return fmt.Errorf("schema: inserting directory %s: %w", name, err)
	}
	return nil
}

// ErrEmptySymlinkTarget is returned by InsertSymlink for a symlink
// entry with an empty target, which spec §3.2 forbids ("Target must be
// non-empty").
var ErrEmptySymlinkTarget = errors.New("schema: symlink target must be non-empty")

// InsertSymlink inserts one Symlink row.
func InsertSymlink(ctx context.Context, q db.Queryer, pkg ids.PackageID, flags int32, name, target, user, group string, mtime int64) error {
	if target == "" {
		return ErrEmptySymlinkTarget
	}
	const query = `
		INSERT INTO symlink (package_id, flags, name, target, username, groupname, mtime)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := q.Exec(ctx, query, int64(pkg), flags, name, target, nullString(user), nullString(group), mtime)
	if err != nil {
		return fmt.Errorf("schema: inserting symlink %s: %w", name, err)
	}
	return nil
}
