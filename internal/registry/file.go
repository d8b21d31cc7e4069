package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	wutag "github.com/wutag-go/wutag"
	"github.com/wutag-go/wutag/internal/identity"
	wpath "github.com/wutag-go/wutag/pkg/path"
)

const fileColumns = "id, directory, name, hash, mime, mtime, ctime, mode, inode, links, uid, gid, size, is_dir"

// InsertFile computes the §4.3 fingerprint for path and inserts a File
// row. Fails with an ErrGeneral error wrapping the constraint violation
// if (directory, name) already exists (schema-enforced uniqueness, spec §3).
func (t *Txn) InsertFile(ctx context.Context, path string) (wutag.File, error) {
	f, err := identity.Fingerprint(ctx, path)
	if err != nil {
		return wutag.File{}, err
	}
	res, err := t.Exec(
		`INSERT INTO file (directory, name, hash, mime, mtime, ctime, mode, inode, links, uid, gid, size, is_dir)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Directory, f.Name, f.Hash, f.Mime, f.Mtime, f.Ctime, f.Mode, f.Inode, f.Links, f.UID, f.GID, f.Size, f.IsDir,
	)
	if err != nil {
		return wutag.File{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "InsertFile", Message: "path " + path, Inner: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return wutag.File{}, &wutag.Error{Kind: wutag.ErrIntegerOverflow, Op: "InsertFile", Inner: err}
	}
	f.ID = id
	return f, nil
}

// UpsertFile returns the existing File row for path if one exists,
// otherwise inserts a fresh fingerprint. Used by the consistency
// protocol's "upsert the File row for F" step (spec §4.9).
func (t *Txn) UpsertFile(ctx context.Context, path string) (wutag.File, error) {
	existing, err := t.FileByPath(path)
	switch {
	case err == nil:
		return existing, nil
	case errors.Is(err, wutag.ErrNonexistentFile):
		return t.InsertFile(ctx, path)
	default:
		return wutag.File{}, err
	}
}

// UpdateFile rebuilds the fingerprint for id from the file currently at
// path and overwrites every column.
func (t *Txn) UpdateFile(ctx context.Context, id int64, path string) (wutag.File, error) {
	f, err := identity.Fingerprint(ctx, path)
	if err != nil {
		return wutag.File{}, err
	}
	res, err := t.Exec(
		`UPDATE file SET directory=?, name=?, hash=?, mime=?, mtime=?, ctime=?, mode=?, inode=?, links=?, uid=?, gid=?, size=?, is_dir=?
		 WHERE id = ?`,
		f.Directory, f.Name, f.Hash, f.Mime, f.Mtime, f.Ctime, f.Mode, f.Inode, f.Links, f.UID, f.GID, f.Size, f.IsDir, id,
	)
	if err != nil {
		return wutag.File{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "UpdateFile", Inner: err}
	}
	if err := expectOneRowKind(res, "UpdateFile", fmt.Sprintf("file id %d", id), wutag.ErrNonexistentFile); err != nil {
		return wutag.File{}, err
	}
	f.ID = id
	return f, nil
}

// FileByPath looks up a file row by its canonicalized (directory, name).
func (t *Txn) FileByPath(path string) (wutag.File, error) {
	dir, name, err := wpath.SplitDirBase(path)
	if err != nil {
		return wutag.File{}, &wutag.Error{Kind: wutag.ErrIO, Op: "FileByPath", Inner: err}
	}
	row := t.QueryRow(`SELECT `+fileColumns+` FROM file WHERE directory = ? AND name = ?`, dir, name)
	return scanFile(row)
}

// FileByID looks up a file row by id.
func (t *Txn) FileByID(id int64) (wutag.File, error) {
	row := t.QueryRow(`SELECT `+fileColumns+` FROM file WHERE id = ?`, id)
	return scanFile(row)
}

func (t *Txn) filesByColumn(column string, value any) ([]wutag.File, error) {
	rows, err := t.Query(`SELECT `+fileColumns+` FROM file WHERE `+column+` = ?`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

func (t *Txn) FilesByHash(hash []byte) ([]wutag.File, error)  { return t.filesByColumn("hash", hash) }
func (t *Txn) FilesByMime(mime string) ([]wutag.File, error)  { return t.filesByColumn("mime", mime) }
func (t *Txn) FilesByMode(mode uint32) ([]wutag.File, error)  { return t.filesByColumn("mode", mode) }
func (t *Txn) FilesByInode(inode uint64) ([]wutag.File, error) {
	return t.filesByColumn("inode", inode)
}
func (t *Txn) FilesByLinks(links uint64) ([]wutag.File, error) {
	return t.filesByColumn("links", links)
}
func (t *Txn) FilesByUID(uid uint32) ([]wutag.File, error) { return t.filesByColumn("uid", uid) }
func (t *Txn) FilesByGID(gid uint32) ([]wutag.File, error) { return t.filesByColumn("gid", gid) }
func (t *Txn) FilesBySize(size int64) ([]wutag.File, error) {
	return t.filesByColumn("size", size)
}

// FilesByMtime and FilesByCtime accept a Unix-timestamp boundary and
// return files modified/created at or after it, matching the original's
// time-comparison lookups.
func (t *Txn) FilesByMtime(after int64) ([]wutag.File, error) {
	rows, err := t.Query(`SELECT `+fileColumns+` FROM file WHERE mtime >= ?`, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

func (t *Txn) FilesByCtime(after int64) ([]wutag.File, error) {
	rows, err := t.Query(`SELECT `+fileColumns+` FROM file WHERE ctime >= ?`, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

// DuplicateFiles returns every file whose content hash appears on more
// than one row.
func (t *Txn) DuplicateFiles() ([]wutag.File, error) {
	rows, err := t.Query(`
		SELECT ` + fileColumns + `
		FROM file
		WHERE hash IN (SELECT hash FROM file GROUP BY hash HAVING COUNT(*) > 1)
		ORDER BY hash`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

// FilesUntagged returns files with no FileTag row.
func (t *Txn) FilesUntagged() ([]wutag.File, error) {
	rows, err := t.Query(`
		SELECT ` + fileColumns + `
		FROM file
		LEFT JOIN file_tag ON file_tag.file_id = file.id
		WHERE file_tag.file_id IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

// DeleteFile removes the file row with id unconditionally.
func (t *Txn) DeleteFile(id int64) error {
	res, err := t.Exec(`DELETE FROM file WHERE id = ?`, id)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteFile", Inner: err}
	}
	return expectOneRowKind(res, "DeleteFile", fmt.Sprintf("file id %d", id), wutag.ErrNonexistentFile)
}

// DeleteFileIfUntagged removes the file row with id only if it has no
// FileTag rows; it is a no-op (not an error) otherwise, per spec §3's
// lifecycle note and the testable property in spec §8.
func (t *Txn) DeleteFileIfUntagged(id int64) error {
	_, err := t.Exec(`DELETE FROM file WHERE id = ? AND id NOT IN (SELECT DISTINCT file_id FROM file_tag)`, id)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteFileIfUntagged", Inner: err}
	}
	return nil
}

// DeleteUntaggedFiles applies DeleteFileIfUntagged to every id in ids.
func (t *Txn) DeleteUntaggedFiles(ids []int64) error {
	if len(ids) == 0 {
		return &wutag.Error{Kind: wutag.ErrEmptyArray, Op: "DeleteUntaggedFiles"}
	}
	for _, id := range ids {
		if err := t.DeleteFileIfUntagged(id); err != nil {
			return err
		}
	}
	return nil
}

// SearchFiles runs the WHERE fragment produced by internal/query's
// lowering pass against the file table, ordering by directory||'/'||name
// unless orderBy overrides it (spec §4.7's tie-break rule).
func (t *Txn) SearchFiles(whereSQL string, args []any, orderBy string) ([]wutag.File, error) {
	if orderBy == "" {
		orderBy = "file.directory || '/' || file.name"
	}
	sqlStr := "SELECT " + fileColumns + " FROM file WHERE " + whereSQL + " ORDER BY " + orderBy
	rows, err := t.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

func scanFile(r rowScanner) (wutag.File, error) {
	var f wutag.File
	err := r.Scan(&f.ID, &f.Directory, &f.Name, &f.Hash, &f.Mime, &f.Mtime, &f.Ctime,
		&f.Mode, &f.Inode, &f.Links, &f.UID, &f.GID, &f.Size, &f.IsDir)
	switch {
	case err == sql.ErrNoRows:
		return wutag.File{}, &wutag.Error{Kind: wutag.ErrNonexistentFile, Op: "scanFile"}
	case err != nil:
		return wutag.File{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "scanFile", Inner: err}
	}
	return f, nil
}

func scanFiles(rows *sql.Rows) ([]wutag.File, error) {
	var out []wutag.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
