package registry

import (
	wutag "github.com/wutag-go/wutag"
)

// InsertFileTag associates (ft.FileID, ft.TagID, ft.ValueID). Duplicate
// triples are ignored at the SQL level (INSERT OR IGNORE) and reported
// back to the caller as Inserted=false rather than as an error, per
// spec §4.8 and the idempotence property in spec §8.
type InsertFileTagResult struct {
	FileTag  wutag.FileTag
	Inserted bool
}

func (t *Txn) InsertFileTag(ft wutag.FileTag) (InsertFileTagResult, error) {
	res, err := t.Exec(`INSERT OR IGNORE INTO file_tag (file_id, tag_id, value_id) VALUES (?, ?, ?)`,
		ft.FileID, ft.TagID, ft.ValueID)
	if err != nil {
		return InsertFileTagResult{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "InsertFileTag", Inner: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return InsertFileTagResult{}, &wutag.Error{Kind: wutag.ErrIntegerOverflow, Op: "InsertFileTag", Inner: err}
	}
	return InsertFileTagResult{FileTag: ft, Inserted: n > 0}, nil
}

// DeleteFileTag removes a single (file, tag, value) triple.
func (t *Txn) DeleteFileTag(ft wutag.FileTag) error {
	_, err := t.Exec(`DELETE FROM file_tag WHERE file_id = ? AND tag_id = ? AND value_id = ?`,
		ft.FileID, ft.TagID, ft.ValueID)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteFileTag", Inner: err}
	}
	return nil
}

// DeleteFileTagsByTag removes every FileTag row for (fileID, tagID)
// regardless of value, used by "rm TAG" without a specific value.
func (t *Txn) DeleteFileTagsByTag(fileID, tagID int64) error {
	_, err := t.Exec(`DELETE FROM file_tag WHERE file_id = ? AND tag_id = ?`, fileID, tagID)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteFileTagsByTag", Inner: err}
	}
	return nil
}

// DeleteFileTagsByFile removes every FileTag row for fileID, used by the
// --clear path of set and by the clear command (spec §4.9).
func (t *Txn) DeleteFileTagsByFile(fileID int64) error {
	_, err := t.Exec(`DELETE FROM file_tag WHERE file_id = ?`, fileID)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteFileTagsByFile", Inner: err}
	}
	return nil
}

// FileTagCount reports how many FileTag rows reference fileID.
func (t *Txn) FileTagCount(fileID int64) (int, error) {
	var n int
	err := t.QueryRow(`SELECT COUNT(*) FROM file_tag WHERE file_id = ?`, fileID).Scan(&n)
	if err != nil {
		return 0, &wutag.Error{Kind: wutag.ErrGeneral, Op: "FileTagCount", Inner: err}
	}
	return n, nil
}

// ListEntriesWithTags returns every file holding at least one FileTag
// with the given tag id.
func (t *Txn) ListEntriesWithTags(tagID int64) ([]wutag.File, error) {
	rows, err := t.Query(`
		SELECT `+fileColumns+`
		FROM file
		JOIN file_tag ON file_tag.file_id = file.id
		WHERE file_tag.tag_id = ?
		GROUP BY file.id
		ORDER BY file.directory || '/' || file.name`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

// FileTagsForFile returns every (tag_id, value_id) pair directly attached
// to fileID (not including implications).
func (t *Txn) FileTagsForFile(fileID int64) ([]wutag.FileTag, error) {
	rows, err := t.Query(`SELECT file_id, tag_id, value_id FROM file_tag WHERE file_id = ?`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wutag.FileTag
	for rows.Next() {
		var ft wutag.FileTag
		if err := rows.Scan(&ft.FileID, &ft.TagID, &ft.ValueID); err != nil {
			return nil, &wutag.Error{Kind: wutag.ErrGeneral, Op: "FileTagsForFile", Inner: err}
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}
