// Package pyanalyze extracts a shallow fact set from Python source
// files: imports, attribute accesses, function defs, and class defs
// (spec §4.11). Spec §1 explicitly places "the Python/Java source
// tokenizers" outside this system's core hard-engineering scope, so
// this is a line-oriented scanner rather than a full v2/v3 grammar —
// grounded on original_source/test/test-python_imports.cpp for the
// exact fact shapes a complete parse would produce, deliberately kept
// shallow per spec §1's scoping (see DESIGN.md's rejected-dependency
// note on go-tree-sitter).
package pyanalyze

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// Import is one "import X" or "from X import Y" statement.
type Import struct {
	Module string
	Name   string // "" for a plain "import Module"
	Alias  string // "" if unaliased
	Line   int
}

// Attribute is one "obj.attr" access.
type Attribute struct {
	Object string
	Name   string
	Line   int
}

// FunctionDef is one "def name(...):" statement.
type FunctionDef struct {
	Name string
	Line int
}

// ClassDef is one "class Name(...):" statement.
type ClassDef struct {
	Name string
	Line int
}

// Facts is the aggregate result of scanning one source file.
type Facts struct {
	Imports    []Import
	Attributes []Attribute
	Functions  []FunctionDef
	Classes    []ClassDef
}

// ParseError reports that the line scanner could not read the source
// (spec §4.11: "recording ... a single PythonError"). There is one scan;
// no separate Python-2 and Python-3 grammars are tried.
type ParseError struct {
	Message string
	Line    int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pyanalyze: line %d: %s", e.Line, e.Message)
}

var (
	reImportPlain = regexp.MustCompile(`^import\s+([A-Za-z_][\w.]*)(?:\s+as\s+([A-Za-z_]\w*))?`)
	reImportFrom  = regexp.MustCompile(`^from\s+([A-Za-z_][\w.]*)\s+import\s+(.+)`)
	reFromName    = regexp.MustCompile(`^([A-Za-z_]\w*)(?:\s+as\s+([A-Za-z_]\w*))?$`)
	reDef         = regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	reClass       = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*[(:]`)
	reAttr        = regexp.MustCompile(`\b([A-Za-z_]\w*)\.([A-Za-z_]\w*)\b`)
)

// Parse scans raw as Python source. It never returns both a non-nil
// *Facts and a non-nil error; a source file containing a NUL byte, or a
// line the scanner cannot read, yields (nil, *ParseError). A
// triple-quoted string still open at the end of the file is not an
// error: the lines after its opening quote are skipped.
func Parse(raw []byte) (*Facts, error) {
	if bytes.IndexByte(raw, 0) >= 0 {
		return nil, &ParseError{Message: "embedded NUL byte", Line: 1}
	}

	f := &Facts{}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	inTripleQuote := false
	var tripleDelim string
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)

		if inTripleQuote {
			if idx := strings.Index(trimmed, tripleDelim); idx >= 0 {
				inTripleQuote = false
				trimmed = strings.TrimSpace(trimmed[idx+len(tripleDelim):])
			} else {
				continue
			}
		}
		if d, rest, ok := startsTripleQuote(trimmed); ok {
			inTripleQuote = true
			tripleDelim = d
			trimmed = rest
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := reImportFrom.FindStringSubmatch(trimmed); m != nil {
			mod := m[1]
			for _, part := range strings.Split(m[2], ",") {
				nm := reFromName.FindStringSubmatch(strings.TrimSpace(strings.Trim(part, "()")))
				if nm == nil {
					continue
				}
				f.Imports = append(f.Imports, Import{Module: mod, Name: nm[1], Alias: nm[2], Line: lineNo})
			}
			continue
		}
		if m := reImportPlain.FindStringSubmatch(trimmed); m != nil {
			f.Imports = append(f.Imports, Import{Module: m[1], Alias: m[2], Line: lineNo})
			continue
		}
		if m := reDef.FindStringSubmatch(trimmed); m != nil {
			f.Functions = append(f.Functions, FunctionDef{Name: m[1], Line: lineNo})
			continue
		}
		if m := reClass.FindStringSubmatch(trimmed); m != nil {
			f.Classes = append(f.Classes, ClassDef{Name: m[1], Line: lineNo})
			continue
		}
		for _, m := range reAttr.FindAllStringSubmatch(trimmed, -1) {
			f.Attributes = append(f.Attributes, Attribute{Object: m[1], Name: m[2], Line: lineNo})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Message: err.Error(), Line: lineNo}
	}
	return f, nil
}

func startsTripleQuote(s string) (delim, rest string, ok bool) {
	for _, d := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, d) {
			tail := s[len(d):]
			if end := strings.Index(tail, d); end >= 0 {
				return d, tail[end+len(d):], false
			}
			return d, "", true
		}
	}
	return "", s, false
}
