// Package migrations holds the registry's numbered schema migrations,
// applied in order against the version table. Grounded on the teacher's
// own libvuln/migrations package: each migration is a SQL string constant
// of idempotent statements, executed directly on the connection (not
// inside a transaction) every time the registry is opened, with a
// version row recording the schema version.
package migrations

// Version is the schema version this build expects. Schema creation
// compares it against the on-disk version row; see spec §4.4.
const (
	Major = 1
	Minor = 0
	Patch = 0
)

// migration1 creates the full schema described in spec §4.4. Unlike the
// teacher's Postgres migrations, this targets SQLite: no extensions, no
// custom range types, BIGSERIAL becomes INTEGER PRIMARY KEY (SQLite's
// rowid alias).
const migration1 = `
CREATE TABLE IF NOT EXISTS tag (
	id    INTEGER PRIMARY KEY,
	name  TEXT NOT NULL UNIQUE,
	color TEXT NOT NULL DEFAULT 'default'
);

CREATE TABLE IF NOT EXISTS value (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS file (
	id        INTEGER PRIMARY KEY,
	directory TEXT NOT NULL,
	name      TEXT NOT NULL,
	hash      BLOB,
	mime      TEXT,
	mtime     TIMESTAMP,
	ctime     TIMESTAMP,
	mode      INTEGER,
	inode     INTEGER,
	links     INTEGER,
	uid       INTEGER,
	gid       INTEGER,
	size      INTEGER,
	is_dir    BOOLEAN NOT NULL DEFAULT 0,
	UNIQUE(directory, name)
);
CREATE INDEX IF NOT EXISTS file_hash_idx ON file(hash);

CREATE TABLE IF NOT EXISTS file_tag (
	file_id  INTEGER NOT NULL,
	tag_id   INTEGER NOT NULL,
	value_id INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (file_id, tag_id, value_id)
);
CREATE INDEX IF NOT EXISTS file_tag_file_idx ON file_tag(file_id);
CREATE INDEX IF NOT EXISTS file_tag_tag_idx ON file_tag(tag_id);
CREATE INDEX IF NOT EXISTS file_tag_value_idx ON file_tag(value_id);

CREATE TABLE IF NOT EXISTS impl (
	tag_id          INTEGER NOT NULL,
	value_id        INTEGER NOT NULL DEFAULT 0,
	implied_tag_id  INTEGER NOT NULL,
	implied_value_id INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tag_id, value_id, implied_tag_id, implied_value_id)
);

CREATE TABLE IF NOT EXISTS query (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	text TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS version (
	major INTEGER NOT NULL,
	minor INTEGER NOT NULL,
	patch INTEGER NOT NULL
);
`

// All is the ordered list of migrations applied to a fresh or stale
// registry. Each entry's index+1 is its migration number.
var All = []string{migration1}
