// Package ingest drives rpm_load: opening one RPM archive, interning
// its package-level metadata, and streaming its CPIO payload through
// the file-attribute/content interning tables and the per-file-type
// analyzers (spec §4.11). It is grounded on
// original_source/lib/symboldb/rpm_load.cpp for the step ordering
// (lock, intern, iterate, analyze, double-hash, commit) and on
// claircore's updater drivers for the begin/lock/commit transaction
// shape around a single logical unit of work.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"unicode/utf8"

	"github.com/quay/zlog"

	"github.com/release-engineering/symboldb/internal/db"
	"github.com/release-engineering/symboldb/internal/elfanalyze"
	"github.com/release-engineering/symboldb/internal/hashutil"
	"github.com/release-engineering/symboldb/internal/ids"
	"github.com/release-engineering/symboldb/internal/javaclass"
	"github.com/release-engineering/symboldb/internal/pyanalyze"
	"github.com/release-engineering/symboldb/internal/rpmpkg"
	"github.com/release-engineering/symboldb/internal/schema"
	"github.com/release-engineering/symboldb/internal/streamio"
	"github.com/release-engineering/symboldb/internal/xmlfacts"
)

// previewLimit bounds how much of a short text file is kept as a
// FileContents preview (spec §4.11 step 5's "short text files").
const previewLimit = 4096

// Load implements rpm_load: parse the archive at path, intern it, and
// walk its payload, returning the resulting package id (spec §4.11).
// Re-loading an archive whose header is already known is a no-op that
// returns the existing id (spec §4.11 step 3, testable property 4).
func Load(ctx context.Context, pool *db.Pool, path string) (ids.PackageID, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("ingest: opening %s: %w", path, err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("ingest: stat %s: %w", path, err)
	}

	pkg, err := rpmpkg.Open(f, fi.Size())
	if err != nil {
		return 0, fmt.Errorf("ingest: parsing %s: %w", path, err)
	}
	info := pkg.Info()
	ctx = zlog.ContextWithValues(ctx, "package", info.Hint())

	tx, err := pool.BeginNoSync(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	a, b := db.DigestLockKeys([]byte(info.HeaderSHA1))
	if err := tx.LockPair(ctx, a, b); err != nil {
		return 0, err
	}

	pkgID, already, err := schema.InternPackage(ctx, tx, info)
	if err != nil {
		return 0, err
	}

	if !already {
		if err := loadDependencies(ctx, tx, pkgID, pkg); err != nil {
			return 0, err
		}
		if err := walkPayload(ctx, tx, pkgID, pkg); err != nil {
			return 0, err
		}
	} else {
		zlog.Debug(ctx).Msg("ingest: package already present, skipping body")
	}

	if err := insertDigests(ctx, tx, pkgID, f, fi.Size()); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return pkgID, nil
}

func loadDependencies(ctx context.Context, q db.Queryer, pkgID ids.PackageID, pkg *rpmpkg.Package) error {
	deps, err := pkg.Dependencies()
	if err != nil {
		return fmt.Errorf("ingest: reading dependencies: %w", err)
	}
	for _, d := range deps {
		if err := schema.InsertDependency(ctx, q, pkgID, d); err != nil {
			return err
		}
	}

	scripts, err := pkg.Scripts()
	if err != nil {
		return fmt.Errorf("ingest: reading scripts: %w", err)
	}
	for _, s := range scripts {
		if err := schema.InsertScript(ctx, q, pkgID, s); err != nil {
			return err
		}
	}

	triggers, err := pkg.Triggers()
	if err != nil {
		return fmt.Errorf("ingest: reading triggers: %w", err)
	}
	for _, t := range triggers {
		if err := schema.InsertTrigger(ctx, q, pkgID, t); err != nil {
			return err
		}
	}
	return nil
}

// insertDigests hashes the whole archive file twice via a single pass
// through a tee'd SHA-1/SHA-256 pair, then records both digests (spec
// §4.11 step 6).
func insertDigests(ctx context.Context, q db.Queryer, pkgID ids.PackageID, f *os.File, size int64) error {
	sha1Sink, err := hashutil.NewSink(hashutil.SHA1)
	if err != nil {
		return err
	}
	sha256Sink, err := hashutil.NewSink(hashutil.SHA256)
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("ingest: rewinding archive: %w", err)
	}
	tee := streamio.NewTeeSink(sha1Sink, sha256Sink)
	if _, err := streamio.Copy(tee, f); err != nil {
		return fmt.Errorf("ingest: hashing archive: %w", err)
	}
	if err := schema.InsertPackageDigest(ctx, q, pkgID, size, schema.DigestSHA1, sha1Sink.Digest()); err != nil {
		return err
	}
	if err := schema.InsertPackageDigest(ctx, q, pkgID, size, schema.DigestSHA256, sha256Sink.Digest()); err != nil {
		return err
	}
	return nil
}

// walkPayload streams every CPIO entry, dispatching by FileKind (spec
// §4.11 step 5).
func walkPayload(ctx context.Context, tx db.Queryer, pkgID ids.PackageID, pkg *rpmpkg.Package) error {
	for {
		fe, err := pkg.ReadFile()
		if err != nil {
			return fmt.Errorf("ingest: reading cpio payload: %w", err)
		}
		if fe == nil {
			return nil
		}

		name := normalizeName(fe.Name)

		switch fe.Kind {
		case rpmpkg.FileDirectory:
			if err := schema.InsertDirectory(ctx, tx, pkgID, fe.Flags, name, fe.User, fe.Group, fe.MTime, fe.Mode); err != nil {
				return err
			}
		case rpmpkg.FileSymlink:
			if err := schema.InsertSymlink(ctx, tx, pkgID, fe.Flags, name, fe.LinkTo, fe.User, fe.Group, fe.MTime); err != nil {
				return err
			}
		case rpmpkg.FileRegular:
			if err := addFile(ctx, tx, pkgID, name, fe); err != nil {
				return err
			}
		}
	}
}

// normalizeName converts a filename to UTF-8, trying latin-1 as a
// fallback when it isn't already valid UTF-8 (spec §4.11 step 5,
// supplemented from original_source/string_support.cpp).
func normalizeName(name string) string {
	if utf8.ValidString(name) {
		return name
	}
	var buf bytes.Buffer
	for _, b := range []byte(name) {
		buf.WriteRune(rune(b))
	}
	return buf.String()
}

// addFile hashes a regular file's bytes, interns its attribute and
// content rows, inserts the File row, and — only the first time its
// contents are seen — dispatches to the matching analyzer (spec §4.11
// step 5's "add_file").
func addFile(ctx context.Context, tx db.Queryer, pkgID ids.PackageID, name string, fe *rpmpkg.FileEntry) error {
	digest, err := hashutil.Hash(hashutil.SHA256, fe.Contents)
	if err != nil {
		return err
	}

	attrID, err := schema.InternFileAttribute(ctx, tx, schema.FileAttributeKey{
		Mode:         fe.Mode,
		Flags:        fe.Flags,
		User:         fe.User,
		Group:        fe.Group,
		Capabilities: fe.Caps,
	})
	if err != nil {
		return err
	}

	contentsID, added, err := schema.InternFileContents(ctx, tx, int64(len(fe.Contents)), digest)
	if err != nil {
		return err
	}

	if _, err := schema.InsertFile(ctx, tx, pkgID, name, fe.MTime, fe.Ino, contentsID, attrID); err != nil {
		return err
	}

	if !added {
		return nil
	}

	if looksLikeText(fe.Contents) {
		preview := fe.Contents
		if len(preview) > previewLimit {
			preview = preview[:previewLimit]
		}
		if err := schema.UpdateContentsPreview(ctx, tx, contentsID, preview); err != nil {
			return err
		}
	}

	return analyzeContents(ctx, tx, contentsID, name, fe.Contents)
}

// looksLikeText is a best-effort check used only to decide whether to
// store a preview; it does not gate analyzer dispatch.
func looksLikeText(b []byte) bool {
	if len(b) > previewLimit {
		b = b[:previewLimit]
	}
	return utf8.Valid(b) && bytes.IndexByte(b, 0) < 0
}

// analyzeContents dispatches newly-seen file bytes to the matching
// analyzer by magic/shape sniff (spec §4.11 step 5).
func analyzeContents(ctx context.Context, tx db.Queryer, contentsID ids.ContentsID, name string, raw []byte) error {
	switch {
	case elfanalyze.LooksLikeELF(raw):
		return analyzeELF(ctx, tx, contentsID, name, raw)
	case javaclass.LooksLikeClass(raw):
		return analyzeJavaClass(ctx, tx, contentsID, raw)
	case xmlfacts.LooksLikeXML(raw):
		return analyzeXML(ctx, tx, contentsID, raw)
	case looksLikePython(name, raw):
		return analyzePython(ctx, tx, contentsID, raw)
	}
	return nil
}

func looksLikePython(name string, raw []byte) bool {
	if path.Ext(name) == ".py" {
		return true
	}
	return bytes.HasPrefix(raw, []byte("#!")) && bytes.Contains(raw[:min(len(raw), 64)], []byte("python"))
}

func analyzeJavaClass(ctx context.Context, tx db.Queryer, contentsID ids.ContentsID, raw []byte) error {
	c, err := javaclass.Parse(raw)
	if err != nil {
		return schema.InsertJavaError(ctx, tx, contentsID, err.Error())
	}
	classID, _, err := schema.InternJavaClass(ctx, tx, raw, c)
	if err != nil {
		return err
	}
	return schema.LinkJavaClassContents(ctx, tx, classID, contentsID)
}

func analyzeXML(ctx context.Context, tx db.Queryer, contentsID ids.ContentsID, raw []byte) error {
	mvn, err := xmlfacts.ParsePOM(raw)
	if err != nil {
		if pe, ok := err.(*xmlfacts.ParseError); ok {
			return schema.InsertXmlError(ctx, tx, contentsID, pe)
		}
		return schema.InsertXmlError(ctx, tx, contentsID, &xmlfacts.ParseError{Message: err.Error()})
	}
	if mvn == nil {
		return nil
	}
	return schema.InsertJavaMavenURL(ctx, tx, contentsID, mvn.String())
}

func analyzePython(ctx context.Context, tx db.Queryer, contentsID ids.ContentsID, raw []byte) error {
	facts, err := pyanalyze.Parse(raw)
	if err != nil {
		if pe, ok := err.(*pyanalyze.ParseError); ok {
			return schema.InsertPythonError(ctx, tx, contentsID, pe)
		}
		return schema.InsertPythonError(ctx, tx, contentsID, &pyanalyze.ParseError{Message: err.Error()})
	}
	return schema.InsertPythonFacts(ctx, tx, contentsID, facts)
}
