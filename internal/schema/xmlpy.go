package schema

import (
	"context"
	"fmt"

	"github.com/release-engineering/symboldb/internal/ids"
	"github.com/release-engineering/symboldb/internal/pyanalyze"
	"github.com/release-engineering/symboldb/internal/xmlfacts"

	"github.com/release-engineering/symboldb/internal/db"
)

// InsertXmlError records a per-file XML parse error with its line and
// surrounding byte context (spec §4.11).
func InsertXmlError(ctx context.Context, q db.Queryer, contents ids.ContentsID, e *xmlfacts.ParseError) error {
	const query = `INSERT INTO xml_error (contents_id, message, line, context) VALUES ($1,$2,$3,$4)`
	if _, err := q.Exec(ctx, query, int64(contents), e.Message, int32(e.Line), nullBytes(e.Context)); err != nil {
		return fmt.Errorf("schema: inserting xml_error: %w", err)
	}
	return nil
}

// InsertPythonFacts records every fact in f against contents, in file
// order.
func InsertPythonFacts(ctx context.Context, q db.Queryer, contents ids.ContentsID, f *pyanalyze.Facts) error {
	for _, im := range f.Imports {
		const query = `INSERT INTO python_import (contents_id, module, name, alias, line) VALUES ($1,$2,$3,$4,$5)`
		if _, err := q.Exec(ctx, query, int64(contents), im.Module, nullString(im.Name), nullString(im.Alias), int32(im.Line)); err != nil {
			return fmt.Errorf("schema: inserting python_import: %w", err)
		}
	}
	for _, a := range f.Attributes {
		const query = `INSERT INTO python_attribute (contents_id, object, name, line) VALUES ($1,$2,$3,$4)`
		if _, err := q.Exec(ctx, query, int64(contents), a.Object, a.Name, int32(a.Line)); err != nil {
			return fmt.Errorf("schema: inserting python_attribute: %w", err)
		}
	}
	for _, fn := range f.Functions {
		const query = `INSERT INTO python_function_def (contents_id, name, line) VALUES ($1,$2,$3)`
		if _, err := q.Exec(ctx, query, int64(contents), fn.Name, int32(fn.Line)); err != nil {
			return fmt.Errorf("schema: inserting python_function_def: %w", err)
		}
	}
	for _, c := range f.Classes {
		const query = `INSERT INTO python_class_def (contents_id, name, line) VALUES ($1,$2,$3)`
		if _, err := q.Exec(ctx, query, int64(contents), c.Name, int32(c.Line)); err != nil {
			return fmt.Errorf("schema: inserting python_class_def: %w", err)
		}
	}
	return nil
}

// InsertPythonError records a single PythonError (spec §4.11: Python
// analysis yields "a single PythonError" rather than partial facts).
func InsertPythonError(ctx context.Context, q db.Queryer, contents ids.ContentsID, e *pyanalyze.ParseError) error {
	const query = `INSERT INTO python_error (contents_id, message, line) VALUES ($1,$2,$3)`
	if _, err := q.Exec(ctx, query, int64(contents), e.Message, int32(e.Line)); err != nil {
		return fmt.Errorf("schema: inserting python_error: %w", err)
	}
	return nil
}
