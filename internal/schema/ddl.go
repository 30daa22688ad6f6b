// Package schema owns the logical table shape spec §3.2 describes and
// exposes the typed intern/insert operations the ingestion and closure
// pipelines call (spec §4.14's "Database schema interface"). The DDL
// text itself is out of scope per spec §1 ("not the SQL schema text
// only the logical shape of tables the core writes to matters"); the
// two scripts below are a faithful, minimal rendering of that shape so
// `create-schema` has something real to apply, following
// datastore/postgres's snake_case/_id-suffix naming conventions.
package schema

// Base is applied by `create-schema` before Index.
const Base = `
CREATE TABLE IF NOT EXISTS package (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL,
	epoch           INTEGER,
	version         TEXT NOT NULL,
	release         TEXT NOT NULL,
	arch            TEXT NOT NULL,
	source_package  TEXT,
	header_sha1     TEXT NOT NULL UNIQUE,
	kind            SMALLINT NOT NULL,
	build_host      TEXT,
	build_time      BIGINT,
	summary         TEXT,
	description     TEXT,
	license         TEXT,
	pkg_group       TEXT,
	normalized      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS package_digest (
	package_id BIGINT NOT NULL REFERENCES package(id),
	length     BIGINT NOT NULL,
	algorithm  SMALLINT NOT NULL,
	digest     BYTEA NOT NULL,
	UNIQUE (package_id, algorithm)
);

CREATE TABLE IF NOT EXISTS package_url (
	package_id BIGINT NOT NULL REFERENCES package(id),
	url        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS package_dependency (
	package_id BIGINT NOT NULL REFERENCES package(id),
	kind       SMALLINT NOT NULL,
	capability TEXT NOT NULL,
	op         TEXT,
	version    TEXT,
	pre        BOOLEAN NOT NULL DEFAULT FALSE,
	build      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS package_script (
	package_id  BIGINT NOT NULL REFERENCES package(id),
	kind        SMALLINT NOT NULL,
	interpreter TEXT,
	body        TEXT
);

CREATE TABLE IF NOT EXISTS package_trigger (
	id          BIGSERIAL PRIMARY KEY,
	package_id  BIGINT NOT NULL REFERENCES package(id),
	interpreter TEXT,
	script      TEXT
);

CREATE TABLE IF NOT EXISTS package_trigger_condition (
	trigger_row BIGINT NOT NULL,
	name        TEXT NOT NULL,
	version     TEXT
);

CREATE TABLE IF NOT EXISTS file_attribute (
	id           BIGSERIAL PRIMARY KEY,
	digest       BYTEA NOT NULL UNIQUE,
	mode         INTEGER NOT NULL,
	flags        INTEGER NOT NULL,
	username     TEXT,
	groupname    TEXT,
	capabilities TEXT
);

CREATE TABLE IF NOT EXISTS file_contents (
	id      BIGSERIAL PRIMARY KEY,
	length  BIGINT NOT NULL,
	digest  BYTEA NOT NULL,
	preview BYTEA,
	UNIQUE (length, digest)
);

CREATE TABLE IF NOT EXISTS file (
	id           BIGSERIAL PRIMARY KEY,
	package_id   BIGINT NOT NULL REFERENCES package(id),
	name         TEXT NOT NULL,
	mtime        BIGINT NOT NULL,
	inode        BIGINT NOT NULL,
	contents_id  BIGINT NOT NULL REFERENCES file_contents(id),
	attribute_id BIGINT NOT NULL REFERENCES file_attribute(id),
	normalized   BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS directory (
	package_id BIGINT NOT NULL REFERENCES package(id),
	flags      INTEGER NOT NULL,
	name       TEXT NOT NULL,
	username   TEXT,
	groupname  TEXT,
	mtime      BIGINT NOT NULL,
	mode       INTEGER NOT NULL,
	normalized BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS symlink (
	package_id BIGINT NOT NULL REFERENCES package(id),
	flags      INTEGER NOT NULL,
	name       TEXT NOT NULL,
	target     TEXT NOT NULL,
	username   TEXT,
	groupname  TEXT,
	mtime      BIGINT NOT NULL,
	normalized BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS elf_file (
	contents_id  BIGINT PRIMARY KEY REFERENCES file_contents(id),
	ei_class     SMALLINT NOT NULL,
	ei_data      SMALLINT NOT NULL,
	e_type       SMALLINT NOT NULL,
	e_machine    INTEGER NOT NULL,
	arch         TEXT,
	soname       TEXT,
	interp       TEXT,
	build_id     BYTEA
);

CREATE TABLE IF NOT EXISTS elf_program_header (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	type        INTEGER NOT NULL,
	file_offset BIGINT NOT NULL,
	virt_addr   BIGINT NOT NULL,
	phys_addr   BIGINT NOT NULL,
	file_size   BIGINT NOT NULL,
	mem_size    BIGINT NOT NULL,
	align       BIGINT NOT NULL,
	readable    BOOLEAN NOT NULL,
	writable    BOOLEAN NOT NULL,
	executable  BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS elf_symbol_definition (
	contents_id     BIGINT NOT NULL REFERENCES file_contents(id),
	name            TEXT NOT NULL,
	version         TEXT,
	default_version BOOLEAN NOT NULL,
	symbol_type     SMALLINT NOT NULL,
	binding         SMALLINT NOT NULL,
	visibility      SMALLINT NOT NULL,
	section         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS elf_symbol_reference (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	name        TEXT NOT NULL,
	version     TEXT,
	symbol_type SMALLINT NOT NULL,
	binding     SMALLINT NOT NULL,
	visibility  SMALLINT NOT NULL
);

CREATE TABLE IF NOT EXISTS elf_needed (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	name        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS elf_rpath (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	path        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS elf_runpath (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	path        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS elf_dynamic (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	tag         BIGINT NOT NULL,
	value       BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS elf_error (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	message     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS java_class (
	id           BIGSERIAL PRIMARY KEY,
	sha256       BYTEA NOT NULL UNIQUE,
	this_class   TEXT NOT NULL,
	super_class  TEXT,
	access_flags INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS java_class_interface (
	class_id BIGINT NOT NULL REFERENCES java_class(id),
	name     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS java_class_reference (
	class_id BIGINT NOT NULL REFERENCES java_class(id),
	name     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS java_class_contents (
	class_id    BIGINT NOT NULL REFERENCES java_class(id),
	contents_id BIGINT NOT NULL REFERENCES file_contents(id)
);

CREATE TABLE IF NOT EXISTS java_maven_url (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	url         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS java_error (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	message     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS xml_error (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	message     TEXT NOT NULL,
	line        INTEGER NOT NULL,
	context     BYTEA
);

CREATE TABLE IF NOT EXISTS python_import (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	module      TEXT NOT NULL,
	name        TEXT,
	alias       TEXT,
	line        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS python_attribute (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	object      TEXT NOT NULL,
	name        TEXT NOT NULL,
	line        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS python_function_def (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	name        TEXT NOT NULL,
	line        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS python_class_def (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	name        TEXT NOT NULL,
	line        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS python_error (
	contents_id BIGINT NOT NULL REFERENCES file_contents(id),
	message     TEXT NOT NULL,
	line        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS package_set (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS package_set_member (
	package_set_id BIGINT NOT NULL REFERENCES package_set(id),
	package_id     BIGINT NOT NULL REFERENCES package(id),
	PRIMARY KEY (package_set_id, package_id)
);

CREATE TABLE IF NOT EXISTS elf_closure (
	package_set_id BIGINT NOT NULL REFERENCES package_set(id),
	file_id        BIGINT NOT NULL REFERENCES file(id),
	needed_file_id BIGINT NOT NULL REFERENCES file(id),
	PRIMARY KEY (package_set_id, file_id, needed_file_id)
);

CREATE TABLE IF NOT EXISTS url_cache (
	url         TEXT PRIMARY KEY,
	bytes       BYTEA NOT NULL,
	http_time   TIMESTAMPTZ,
	length      BIGINT NOT NULL,
	last_change TIMESTAMPTZ NOT NULL,
	last_access TIMESTAMPTZ NOT NULL
);
`

// Index is applied by `create-schema` after Base.
const Index = `
CREATE INDEX IF NOT EXISTS file_package_id_idx ON file (package_id);
CREATE INDEX IF NOT EXISTS file_contents_id_idx ON file (contents_id);
CREATE INDEX IF NOT EXISTS directory_package_id_idx ON directory (package_id);
CREATE INDEX IF NOT EXISTS symlink_package_id_idx ON symlink (package_id);
CREATE INDEX IF NOT EXISTS elf_needed_name_idx ON elf_needed (name);
CREATE INDEX IF NOT EXISTS elf_file_soname_idx ON elf_file (soname);
CREATE INDEX IF NOT EXISTS package_set_member_set_idx ON package_set_member (package_set_id);
CREATE INDEX IF NOT EXISTS elf_closure_set_idx ON elf_closure (package_set_id);
CREATE INDEX IF NOT EXISTS package_dependency_package_id_idx ON package_dependency (package_id);
CREATE INDEX IF NOT EXISTS java_class_reference_class_id_idx ON java_class_reference (class_id);
`
