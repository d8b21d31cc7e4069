package registry

import wutag "github.com/wutag-go/wutag"

// InsertImplication records "(tagID with valueID) implies (impliedTagID
// with impliedValueID)". Implications are never materialized as FileTag
// rows (spec §3 invariant); they are only ever resolved on read.
func (t *Txn) InsertImplication(impl wutag.Implication) error {
	_, err := t.Exec(
		`INSERT OR IGNORE INTO impl (tag_id, value_id, implied_tag_id, implied_value_id) VALUES (?, ?, ?, ?)`,
		impl.TagID, impl.ValueID, impl.ImpliedTagID, impl.ImpliedValueID,
	)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "InsertImplication", Inner: err}
	}
	return nil
}

// DeleteImplicationByTagID cascades the deletion of a tag to every
// implication referencing it on either side, per spec §3's
// delete_implication_by_tagid cascade.
func (t *Txn) DeleteImplicationByTagID(tagID int64) error {
	_, err := t.Exec(`DELETE FROM impl WHERE tag_id = ? OR implied_tag_id = ?`, tagID, tagID)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteImplicationByTagID", Inner: err}
	}
	return nil
}

// DeleteImplicationByValueID cascades the deletion of a value.
func (t *Txn) DeleteImplicationByValueID(valueID int64) error {
	_, err := t.Exec(`DELETE FROM impl WHERE value_id = ? OR implied_value_id = ?`, valueID, valueID)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "DeleteImplicationByValueID", Inner: err}
	}
	return nil
}

// ImplicationsFor returns the transitive closure of every (tagID,
// valueID) pair implied, directly or indirectly, by any pair in seeds.
// Grounded on spec §4.7's recursive-CTE lowering rule for pattern
// searches that must expand implied tags.
func (t *Txn) ImplicationsFor(seeds []wutag.FileTag) ([]wutag.Implication, error) {
	if len(seeds) == 0 {
		return nil, &wutag.Error{Kind: wutag.ErrEmptyArray, Op: "ImplicationsFor"}
	}

	// SQLite recursive CTEs can't be parameterized with a variable-length
	// VALUES seed list across driver boundaries as cleanly as a UNION
	// chain, so the seed rows are unioned in directly as parameters.
	seedSQL := NewSqlBuilder()
	seedSQL.Lit("WITH RECURSIVE closure(tag_id, value_id) AS (")
	for i, s := range seeds {
		if i > 0 {
			seedSQL.Lit(" UNION ")
		}
		seedSQL.Lit("SELECT ").Param(s.TagID).Lit(", ").Param(s.ValueID)
	}
	seedSQL.Lit(`
		UNION
		SELECT impl.implied_tag_id, impl.implied_value_id
		FROM impl
		JOIN closure ON closure.tag_id = impl.tag_id
			AND (impl.value_id = 0 OR impl.value_id = closure.value_id)
	)
	SELECT DISTINCT tag_id, value_id FROM closure`)

	sqlStr, args := seedSQL.Build()
	rows, err := t.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wutag.Implication
	for rows.Next() {
		var tagID, valueID int64
		if err := rows.Scan(&tagID, &valueID); err != nil {
			return nil, &wutag.Error{Kind: wutag.ErrGeneral, Op: "ImplicationsFor", Inner: err}
		}
		out = append(out, wutag.Implication{ImpliedTagID: tagID, ImpliedValueID: valueID})
	}
	return out, rows.Err()
}
