// Package registry is the embedded-database registry: schema, transaction
// layer, and the high-level entity API described in spec §4.4, §4.5, §4.8.
//
// Grounded on quay/claircore's datastore/postgres package (one exported
// method per concern, package-level prepared SQL, zlog-scoped context,
// %w-wrapped errors) adapted from Postgres/pgx to a single-file
// modernc.org/sqlite database, per spec §6's "embedded SQL database
// file ... single-file store" requirement.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/sqlite3"
	"github.com/quay/zlog"
	_ "modernc.org/sqlite"

	wutag "github.com/wutag-go/wutag"
	"github.com/wutag-go/wutag/internal/registry/migrations"
	"github.com/wutag-go/wutag/internal/registry/udf"
)

// Handle owns the single shared *sql.DB connection for a registry file
// and the in-memory mutex that serializes calls to it (spec §5: "an
// in-memory mutex for the registry object").
type Handle struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	dia  goqu.DialectWrapper
}

// Open opens (creating if absent) the SQLite database at path, enables
// WAL journaling, installs the pattern UDFs, and reconciles the schema
// version. path must be a real file; modernc.org/sqlite cannot operate on
// an in-memory handle shared across goroutines the way this package needs.
func Open(ctx context.Context, path string) (*Handle, error) {
	if err := udf.Register(); err != nil {
		return nil, err
	}

	u := url.URL{
		Scheme: "file",
		Opaque: path,
		RawQuery: url.Values{
			"_pragma": {
				"journal_mode(WAL)",
				"foreign_keys(1)",
				"busy_timeout(5000)",
			},
		}.Encode(),
	}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrNoConnection, Op: "registry.Open", Inner: err}
	}
	db.SetMaxOpenConns(1) // one shared connection, serialized by Handle.mu

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &wutag.Error{Kind: wutag.ErrNoConnection, Op: "registry.Open", Inner: err}
	}

	h := &Handle{db: db, path: path, dia: goqu.Dialect("sqlite3")}
	if err := h.reconcileSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// Close releases the underlying connection.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.db.Close(); err != nil {
		return &wutag.Error{Kind: wutag.ErrCloseConnection, Op: "registry.Close", Inner: err}
	}
	return nil
}

// Path returns the on-disk location of the registry file.
func (h *Handle) Path() string { return h.path }

func (h *Handle) reconcileSchema(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, stmt := range migrations.All {
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return &wutag.Error{Kind: wutag.ErrGeneral, Op: "reconcileSchema", Message: fmt.Sprintf("applying migration %d", i+1), Inner: err}
		}
	}

	row := h.db.QueryRowContext(ctx, `SELECT major, minor, patch FROM version LIMIT 1`)
	var major, minor, patch int
	switch err := row.Scan(&major, &minor, &patch); {
	case err == sql.ErrNoRows:
		_, err := h.db.ExecContext(ctx, `INSERT INTO version (major, minor, patch) VALUES (?, ?, ?)`,
			migrations.Major, migrations.Minor, migrations.Patch)
		if err != nil {
			return &wutag.Error{Kind: wutag.ErrGeneral, Op: "reconcileSchema", Inner: err}
		}
	case err != nil:
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "reconcileSchema", Inner: err}
	case major > migrations.Major:
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "reconcileSchema", Message: "registry schema is newer than this build supports"}
	case major < migrations.Major:
		zlog.Info(ctx).Msg("recreating registry schema for older version")
		if _, err := h.db.ExecContext(ctx, `DELETE FROM version`); err != nil {
			return &wutag.Error{Kind: wutag.ErrGeneral, Op: "reconcileSchema", Inner: err}
		}
		_, err := h.db.ExecContext(ctx, `INSERT INTO version (major, minor, patch) VALUES (?, ?, ?)`,
			migrations.Major, migrations.Minor, migrations.Patch)
		if err != nil {
			return &wutag.Error{Kind: wutag.ErrGeneral, Op: "reconcileSchema", Inner: err}
		}
	}
	return nil
}
