package registry

import (
	"database/sql"
	"fmt"

	wutag "github.com/wutag-go/wutag"
)

// InsertValue validates name and inserts a new Value row.
func (t *Txn) InsertValue(name string) (wutag.Value, error) {
	if err := wutag.ValidateName(name); err != nil {
		return wutag.Value{}, err
	}
	var exists int
	if err := t.QueryRow(`SELECT COUNT(*) FROM value WHERE name = ?`, name).Scan(&exists); err != nil {
		return wutag.Value{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "InsertValue", Inner: err}
	}
	if exists > 0 {
		return wutag.Value{}, &wutag.Error{Kind: wutag.ErrTagExists, Op: "InsertValue", Message: name}
	}
	res, err := t.Exec(`INSERT INTO value (name) VALUES (?)`, name)
	if err != nil {
		return wutag.Value{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "InsertValue", Inner: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return wutag.Value{}, &wutag.Error{Kind: wutag.ErrIntegerOverflow, Op: "InsertValue", Inner: err}
	}
	return wutag.Value{ID: id, Name: name}, nil
}

// ValueByName looks up a value by exact name.
func (t *Txn) ValueByName(name string) (wutag.Value, error) {
	var v wutag.Value
	v.Name = name
	err := t.QueryRow(`SELECT id FROM value WHERE name = ?`, name).Scan(&v.ID)
	switch {
	case err == sql.ErrNoRows:
		return wutag.Value{}, &wutag.Error{Kind: wutag.ErrNonexistentValue, Op: "ValueByName", Message: name}
	case err != nil:
		return wutag.Value{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "ValueByName", Inner: err}
	}
	return v, nil
}

// ValueByID looks up a value by id. The sentinel id 0 resolves to the
// empty Value rather than a lookup, per spec §3 "no value" semantics.
func (t *Txn) ValueByID(id int64) (wutag.Value, error) {
	if id == wutag.NoValueID {
		return wutag.Value{ID: wutag.NoValueID}, nil
	}
	var v wutag.Value
	v.ID = id
	err := t.QueryRow(`SELECT name FROM value WHERE id = ?`, id).Scan(&v.Name)
	switch {
	case err == sql.ErrNoRows:
		return wutag.Value{}, &wutag.Error{Kind: wutag.ErrNonexistentValue, Op: "ValueByID", Message: fmt.Sprintf("value id %d", id)}
	case err != nil:
		return wutag.Value{}, &wutag.Error{Kind: wutag.ErrGeneral, Op: "ValueByID", Inner: err}
	}
	return v, nil
}

// DanglingValues returns values with no FileTag row referencing them.
func (t *Txn) DanglingValues() ([]wutag.Value, error) {
	rows, err := t.Query(`
		SELECT value.id, value.name
		FROM value
		LEFT JOIN file_tag ON file_tag.value_id = value.id
		WHERE file_tag.value_id IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wutag.Value
	for rows.Next() {
		var v wutag.Value
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, &wutag.Error{Kind: wutag.ErrGeneral, Op: "DanglingValues", Inner: err}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteDanglingValues removes every dangling value row.
func (t *Txn) DeleteDanglingValues() (int64, error) {
	res, err := t.Exec(`DELETE FROM value WHERE id != 0 AND id NOT IN (SELECT DISTINCT value_id FROM file_tag)`)
	if err != nil {
		return 0, &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteDanglingValues", Inner: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteValue removes the value row with id.
func (t *Txn) DeleteValue(id int64) error {
	res, err := t.Exec(`DELETE FROM value WHERE id = ?`, id)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteValue", Inner: err}
	}
	return expectOneRowKind(res, "DeleteValue", fmt.Sprintf("value id %d", id), wutag.ErrNonexistentValue)
}

func expectOneRowKind(res sql.Result, op, what string, notFound wutag.ErrorKind) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrIntegerOverflow, Op: op, Inner: err}
	}
	switch n {
	case 0:
		return &wutag.Error{Kind: notFound, Op: op, Message: what}
	case 1:
		return nil
	default:
		return &wutag.Error{Kind: wutag.ErrTooManyChanges, Op: op, Message: fmt.Sprintf("%s affected %d rows", what, n)}
	}
}
