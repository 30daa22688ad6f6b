// Package ids defines the opaque, type-safe primary key handles used
// throughout symboldb. Every table's primary key is represented by a
// distinct Go type so that the compiler catches cross-table
// misassignments (passing a FileID where a ContentsID is expected, etc).
//
// The zero value of every id type is the "no such id" sentinel, matching
// the database convention that real ids are strictly positive.
package ids

import "strconv"

// PackageID identifies a row in the package table.
type PackageID int64

// FileID identifies a row in the file table.
type FileID int64

// ContentsID identifies a row in the file_contents table.
type ContentsID int64

// AttributeID identifies a row in the file_attribute table.
type AttributeID int64

// PackageSetID identifies a named package set.
type PackageSetID int64

// ClassID identifies a deduplicated Java class.
type ClassID int64

// Valid reports whether id refers to an actual row.
func (id PackageID) Valid() bool { return id != 0 }

// Valid reports whether id refers to an actual row.
func (id FileID) Valid() bool { return id != 0 }

// Valid reports whether id refers to an actual row.
func (id ContentsID) Valid() bool { return id != 0 }

// Valid reports whether id refers to an actual row.
func (id AttributeID) Valid() bool { return id != 0 }

// Valid reports whether id refers to an actual row.
func (id PackageSetID) Valid() bool { return id != 0 }

// Valid reports whether id refers to an actual row.
func (id ClassID) Valid() bool { return id != 0 }

func (id PackageID) String() string    { return "package:" + strconv.FormatInt(int64(id), 10) }
func (id FileID) String() string       { return "file:" + strconv.FormatInt(int64(id), 10) }
func (id ContentsID) String() string   { return "contents:" + strconv.FormatInt(int64(id), 10) }
func (id AttributeID) String() string  { return "attribute:" + strconv.FormatInt(int64(id), 10) }
func (id PackageSetID) String() string { return "package_set:" + strconv.FormatInt(int64(id), 10) }
func (id ClassID) String() string      { return "class:" + strconv.FormatInt(int64(id), 10) }
