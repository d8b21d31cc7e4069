package registry

import (
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v8"

	wutag "github.com/wutag-go/wutag"
)

// InsertTag validates name and inserts a new Tag row. Fails with
// ErrTagExists if a tag with that name is already present. See spec
// §4.8.
func (t *Txn) InsertTag(name string, color wutag.Color) (wutag.Tag, error) {
	if err := wutag.ValidateName(name); err != nil {
		return wutag.Tag{}, err
	}

	var exists int
	if err := t.QueryRow(`SELECT COUNT(*) FROM tag WHERE name = ?`, name).Scan(&exists); err != nil {
		return wutag.Tag{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "InsertTag", Inner: err}
	}
	if exists > 0 {
		return wutag.Tag{}, &wutag.Error{Kind: wutag.ErrTagExists, Op: "InsertTag", Message: name}
	}

	res, err := t.Exec(`INSERT INTO tag (name, color) VALUES (?, ?)`, name, color.String())
	if err != nil {
		return wutag.Tag{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "InsertTag", Inner: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return wutag.Tag{}, &wutag.Error{Kind: wutag.ErrIntegerOverflow, Op: "InsertTag", Inner: err}
	}
	return wutag.Tag{ID: id, Name: name, Color: color}, nil
}

// UpdateTagName renames the tag with id. Fails ErrNonexistentTag if no
// row matches, ErrTooManyChanges if more than one row was affected
// (a corruption signal, since name is unique by schema).
func (t *Txn) UpdateTagName(id int64, newName string) error {
	if err := wutag.ValidateName(newName); err != nil {
		return err
	}
	res, err := t.Exec(`UPDATE tag SET name = ? WHERE id = ?`, newName, id)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "UpdateTagName", Inner: err}
	}
	return expectOneRow(res, "UpdateTagName", fmt.Sprintf("tag id %d", id))
}

// UpdateTagColor recolors the tag with id.
func (t *Txn) UpdateTagColor(id int64, color wutag.Color) error {
	res, err := t.Exec(`UPDATE tag SET color = ? WHERE id = ?`, color.String(), id)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "UpdateTagColor", Inner: err}
	}
	return expectOneRow(res, "UpdateTagColor", fmt.Sprintf("tag id %d", id))
}

// DeleteTag removes the tag row with id. Callers are responsible for
// having already removed its FileTag and Implication references.
func (t *Txn) DeleteTag(id int64) error {
	res, err := t.Exec(`DELETE FROM tag WHERE id = ?`, id)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteTag", Inner: err}
	}
	return expectOneRow(res, "DeleteTag", fmt.Sprintf("tag id %d", id))
}

// TagByName looks up a tag by exact name, optionally using
// case-insensitive collation.
func (t *Txn) TagByName(name string, ignoreCase bool) (wutag.Tag, error) {
	q := t.h.dia.From("tag").Select("id", "name", "color")
	if ignoreCase {
		q = q.Where(goqu.L("name = ? COLLATE NOCASE", name))
	} else {
		q = q.Where(goqu.Ex{"name": name})
	}
	row, err := queryRowGoqu(t, q)
	if err != nil {
		return wutag.Tag{}, err
	}
	return scanTag(row)
}

// TagsForFile returns every tag attached to fileID, regardless of value.
func (t *Txn) TagsForFile(fileID int64) ([]wutag.Tag, error) {
	q := t.h.dia.From("tag").
		Select("tag.id", "tag.name", "tag.color").
		InnerJoin(goqu.T("file_tag"), goqu.On(goqu.Ex{"tag.id": goqu.I("file_tag.tag_id")})).
		Where(goqu.Ex{"file_tag.file_id": fileID}).
		Distinct()
	return t.queryTags(q)
}

// UniqueTags returns tags attached to exactly one file.
func (t *Txn) UniqueTags() ([]wutag.Tag, error) {
	sqlStr := `
		SELECT tag.id, tag.name, tag.color
		FROM tag
		JOIN file_tag ON file_tag.tag_id = tag.id
		GROUP BY tag.id
		HAVING COUNT(DISTINCT file_tag.file_id) = 1`
	return t.queryTagsRaw(sqlStr)
}

// DanglingTags returns tags with no FileTag row referencing them.
func (t *Txn) DanglingTags() ([]wutag.Tag, error) {
	sqlStr := `
		SELECT tag.id, tag.name, tag.color
		FROM tag
		LEFT JOIN file_tag ON file_tag.tag_id = tag.id
		WHERE file_tag.tag_id IS NULL`
	return t.queryTagsRaw(sqlStr)
}

// DeleteDanglingTags removes every dangling tag row in one statement.
func (t *Txn) DeleteDanglingTags() (int64, error) {
	res, err := t.Exec(`DELETE FROM tag WHERE id NOT IN (SELECT DISTINCT tag_id FROM file_tag)`)
	if err != nil {
		return 0, &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteDanglingTags", Inner: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// TagsByRegexName returns tags whose name matches a POSIX-ish regex, via
// the regex/iregex UDF pushed into SQL (spec §4.6).
func (t *Txn) TagsByRegexName(pattern string, ignoreCase bool) ([]wutag.Tag, error) {
	fn := "regex"
	if ignoreCase {
		fn = "iregex"
	}
	return t.tagsByFunc(fn, pattern)
}

// TagsByGlobName is the glob analogue of TagsByRegexName.
func (t *Txn) TagsByGlobName(pattern string, ignoreCase bool) ([]wutag.Tag, error) {
	fn := "glob"
	if ignoreCase {
		fn = "iglob"
	}
	return t.tagsByFunc(fn, pattern)
}

func (t *Txn) tagsByFunc(fn, pattern string) ([]wutag.Tag, error) {
	sqlStr := fmt.Sprintf(`SELECT id, name, color FROM tag WHERE %s(?, name) = 1`, fn)
	rows, err := t.Query(sqlStr, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func (t *Txn) queryTags(q *goqu.SelectDataset) ([]wutag.Tag, error) {
	sqlStr, args, err := q.ToSQL()
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrGeneral, Op: "queryTags", Inner: err}
	}
	return t.queryTagsArgs(sqlStr, args...)
}

func (t *Txn) queryTagsRaw(sqlStr string) ([]wutag.Tag, error) {
	return t.queryTagsArgs(sqlStr)
}

func (t *Txn) queryTagsArgs(sqlStr string, args ...any) ([]wutag.Tag, error) {
	rows, err := t.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]wutag.Tag, error) {
	var out []wutag.Tag
	for rows.Next() {
		tag, err := scanTagRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrGeneral, Op: "scanTags", Inner: err}
	}
	return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTagRow(r rowScanner) (wutag.Tag, error) {
	var (
		id        int64
		name      string
		colorText string
	)
	if err := r.Scan(&id, &name, &colorText); err != nil {
		if err == sql.ErrNoRows {
			return wutag.Tag{}, &wutag.Error{Kind: wutag.ErrNonexistentTag, Op: "scanTagRow"}
		}
		return wutag.Tag{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "scanTagRow", Inner: err}
	}
	color, err := wutag.ParseColor(colorText)
	if err != nil {
		color = wutag.DefaultColor
	}
	return wutag.Tag{ID: id, Name: name, Color: color}, nil
}

func scanTag(r rowScanner) (wutag.Tag, error) {
	return scanTagRow(r)
}

func queryRowGoqu(t *Txn, q *goqu.SelectDataset) (*sql.Row, error) {
	sqlStr, args, err := q.ToSQL()
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrGeneral, Op: "queryRowGoqu", Inner: err}
	}
	return t.QueryRow(sqlStr, args...), nil
}

// expectOneRow enforces the "exactly one row changed" invariant spec §4.8
// requires of update_tag_name/update_tag_color and similar single-row
// mutations.
func expectOneRow(res sql.Result, op, what string) error {
	return expectOneRowKind(res, op, what, wutag.ErrNonexistentTag)
}
