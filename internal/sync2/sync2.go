// Package sync2 implements the two-store consistency protocol between
// the registry's FileTag rows and a file's mirrored xattrs (spec §4.9).
// It is named sync2, not sync, to avoid colliding with the standard
// library package of that name.
//
// Grounded on original_source/src/subcommand/set2.rs's write order:
// resolve/create tag and value rows, upsert the file, subtract already-
// implied pairs unless --explicit, then for each surviving pair insert
// the FileTag row before mirroring it onto the file's xattrs. A failed
// xattr mirror rolls back only that pair's FileTag insert and is
// reported as a per-entry error, never as a fatal abort of the whole
// command (spec §4.9's last paragraph; aggregated with
// go.uber.org/multierr the way the original continues its stdin loop
// past individual tag failures).
package sync2

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	wutag "github.com/wutag-go/wutag"
	"github.com/wutag-go/wutag/internal/registry"
	"github.com/wutag-go/wutag/internal/xattrtag"
)

// Pair names a tag to apply, with an optional value name ("" means no
// value, the sentinel id 0).
type Pair struct {
	TagName   string
	ValueName string
	Color     wutag.Color
}

// SetOptions mirrors the set subcommand's --clear/--explicit flags.
type SetOptions struct {
	Clear    bool
	Explicit bool
}

// Set applies pairs to path inside txn, per spec §4.9's six-step set
// protocol. It returns the FileTag rows that were actually (re)written,
// and a non-nil error aggregating every per-pair xattr-mirror failure
// (registry state for failed pairs is rolled back individually; the
// transaction as a whole is left to the caller to commit).
func Set(ctx context.Context, txn *registry.Txn, path string, pairs []Pair, opts SetOptions) ([]wutag.FileTag, error) {
	combos, err := resolvePairs(txn, pairs)
	if err != nil {
		return nil, err
	}

	f, err := txn.UpsertFile(ctx, path)
	if err != nil {
		return nil, err
	}

	if opts.Clear {
		if err := txn.DeleteFileTagsByFile(f.ID); err != nil {
			return nil, err
		}
		if err := xattrtag.Clear(path); err != nil {
			return nil, err
		}
	}

	if !opts.Explicit {
		combos, err = subtractImplied(txn, f.ID, combos)
		if err != nil {
			return nil, err
		}
	}

	var applied []wutag.FileTag
	var errs error
	for _, c := range combos {
		ft := wutag.FileTag{FileID: f.ID, TagID: c.tag.ID, ValueID: valueID(c.value)}

		res, err := txn.InsertFileTag(ft)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !res.Inserted {
			// Already present; treat as already in sync and move on.
			applied = append(applied, ft)
			continue
		}

		var valuePtr *wutag.Value
		if c.value.ID != wutag.NoValueID {
			v := c.value
			valuePtr = &v
		}
		if err := xattrtag.Save(path, c.tag, valuePtr); err != nil {
			// Roll back this pair's FileTag row only; the rest of the
			// command's pairs still commit (spec §4.9).
			_ = txn.DeleteFileTag(ft)
			errs = multierr.Append(errs, err)
			continue
		}
		applied = append(applied, ft)
	}

	return applied, errs
}

type combo struct {
	tag   wutag.Tag
	value wutag.Value
}

func valueID(v wutag.Value) int64 {
	if v.ID == wutag.NoValueID {
		return wutag.NoValueID
	}
	return v.ID
}

// resolvePairs creates or looks up each pair's Tag and Value row (step 1
// of spec §4.9's set protocol).
func resolvePairs(txn *registry.Txn, pairs []Pair) ([]combo, error) {
	combos := make([]combo, 0, len(pairs))
	for _, p := range pairs {
		tag, err := txn.TagByName(p.TagName, false)
		if isNotFound(err) {
			color := p.Color
			if color == (wutag.Color{}) {
				color = wutag.DefaultColor
			}
			tag, err = txn.InsertTag(p.TagName, color)
		}
		if err != nil {
			return nil, err
		}

		var value wutag.Value
		if p.ValueName != "" {
			value, err = txn.ValueByName(p.ValueName)
			if isNotFound(err) {
				value, err = txn.InsertValue(p.ValueName)
			}
			if err != nil {
				return nil, err
			}
		} else {
			value = wutag.Value{ID: wutag.NoValueID}
		}

		combos = append(combos, combo{tag: tag, value: value})
	}
	return combos, nil
}

// subtractImplied removes any pair from combos that is already present,
// directly or via the implication closure, on fileID (step 4 of spec
// §4.9's set protocol, when --explicit was not requested).
func subtractImplied(txn *registry.Txn, fileID int64, combos []combo) ([]combo, error) {
	existing, err := txn.FileTagsForFile(fileID)
	if err != nil {
		return nil, err
	}
	implied, err := txn.ImplicationsFor(existing)
	if err != nil {
		return nil, err
	}

	already := make(map[[2]int64]bool, len(existing)+len(implied))
	for _, ft := range existing {
		already[[2]int64{ft.TagID, ft.ValueID}] = true
	}
	for _, im := range implied {
		already[[2]int64{im.ImpliedTagID, im.ImpliedValueID}] = true
	}

	var revised []combo
	for _, c := range combos {
		key := [2]int64{c.tag.ID, valueID(c.value)}
		if already[key] {
			continue
		}
		revised = append(revised, c)
	}
	return revised, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, wutag.ErrNonexistentTag) || errors.Is(err, wutag.ErrNonexistentValue)
}

// Remove deletes tagNames from fileID inside txn and mirrors the removal
// onto path's xattrs, aggregating per-tag xattr failures the same way
// Set does.
func Remove(txn *registry.Txn, path string, fileID int64, tagNames []string) error {
	var errs error
	for _, name := range tagNames {
		tag, err := txn.TagByName(name, false)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := txn.DeleteFileTagsByTag(fileID, tag.ID); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := xattrtag.Remove(path, name); err != nil && !errors.Is(err, wutag.ErrTagNotOnFile) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Clear removes every FileTag row for fileID and every xattr on path.
func Clear(txn *registry.Txn, path string, fileID int64) error {
	if err := txn.DeleteFileTagsByFile(fileID); err != nil {
		return err
	}
	return xattrtag.Clear(path)
}
