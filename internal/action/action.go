// Package action implements the ten user-facing commands as
// compositions of the lower layers (walker, registry, query, sync2,
// xattrtag), per spec §4.10. Grounded on original_source's per-command
// App methods (set2.rs, merge.rs, view.rs, subcommand/mod.rs) — each
// Dispatcher method plays the role one of those App methods played,
// translated into the registry.Handle/Txn transaction-per-command model.
package action

import (
	"context"
	"fmt"

	wutag "github.com/wutag-go/wutag"
	"github.com/wutag-go/wutag/internal/query"
	"github.com/wutag-go/wutag/internal/registry"
	"github.com/wutag-go/wutag/internal/sync2"
	"github.com/wutag-go/wutag/internal/walker"
	"github.com/wutag-go/wutag/internal/xattrtag"
)

// Dispatcher binds the registry handle every command runs against.
type Dispatcher struct {
	Reg *registry.Handle
}

// New returns a Dispatcher bound to reg.
func New(reg *registry.Handle) *Dispatcher {
	return &Dispatcher{Reg: reg}
}

// SetRequest names the files (by walker.Options) and tag/value pairs to
// apply, matching the set2.rs CLI's --clear/--explicit/--pairs shape.
type SetRequest struct {
	Walk     walker.Options
	Pairs    []sync2.Pair
	Clear    bool
	Explicit bool
}

// Set walks Walk.Base applying Pairs to every matched entry, per spec
// §4.9. It aggregates per-file errors rather than aborting on the first
// failure, matching the original's stdin-loop continuation behavior.
func (d *Dispatcher) Set(ctx context.Context, req SetRequest) error {
	var walkErr error
	err := d.Reg.WithTxn(ctx, func(txn *registry.Txn) error {
		return walker.Walk(req.Walk, func(e walker.Entry) error {
			if _, err := sync2.Set(ctx, txn, e.Path, req.Pairs, sync2.SetOptions{
				Clear:    req.Clear,
				Explicit: req.Explicit,
			}); err != nil {
				walkErr = appendErr(walkErr, fmt.Errorf("%s: %w", e.Path, err))
			}
			return ctx.Err()
		})
	})
	if err != nil {
		return err
	}
	return walkErr
}

// RemoveRequest names the files and tags to strip.
type RemoveRequest struct {
	Walk     walker.Options
	TagNames []string
}

// Remove strips TagNames from every matched entry.
func (d *Dispatcher) Remove(ctx context.Context, req RemoveRequest) error {
	var walkErr error
	err := d.Reg.WithTxn(ctx, func(txn *registry.Txn) error {
		return walker.Walk(req.Walk, func(e walker.Entry) error {
			f, err := txn.FileByPath(e.Path)
			if err != nil {
				// Never tagged; nothing to remove.
				return ctx.Err()
			}
			if err := sync2.Remove(txn, e.Path, f.ID, req.TagNames); err != nil {
				walkErr = appendErr(walkErr, fmt.Errorf("%s: %w", e.Path, err))
			}
			return ctx.Err()
		})
	})
	if err != nil {
		return err
	}
	return walkErr
}

// Clear removes every tag from every entry Walk matches.
func (d *Dispatcher) Clear(ctx context.Context, w walker.Options) error {
	var walkErr error
	err := d.Reg.WithTxn(ctx, func(txn *registry.Txn) error {
		return walker.Walk(w, func(e walker.Entry) error {
			f, err := txn.FileByPath(e.Path)
			if err != nil {
				return ctx.Err()
			}
			if err := sync2.Clear(txn, e.Path, f.ID); err != nil {
				walkErr = appendErr(walkErr, fmt.Errorf("%s: %w", e.Path, err))
			}
			return ctx.Err()
		})
	})
	if err != nil {
		return err
	}
	return walkErr
}

// Search runs a query-language expression against the whole registry
// (spec §4.7), independent of the walker since it operates on already-
// registered files rather than the live filesystem.
func (d *Dispatcher) Search(ctx context.Context, expr, sort string) ([]wutag.File, error) {
	var out []wutag.File
	err := d.Reg.WithTxn(ctx, func(txn *registry.Txn) error {
		var err error
		out, err = query.Search(txn, expr, sort)
		return err
	})
	return out, err
}

// List returns every tagged file, or every file carrying tagFilter when
// non-empty, ordered the same way Search orders results.
func (d *Dispatcher) List(ctx context.Context, tagFilter string) ([]wutag.File, error) {
	expr := "true"
	if tagFilter != "" {
		expr = fmt.Sprintf("tag(%q)", tagFilter)
	}
	return d.Search(ctx, expr, "")
}

// View is a read-only alias of List scoped to a single path, grounded on
// view.rs's pattern-or-all display.
func (d *Dispatcher) View(ctx context.Context, path string) ([]wutag.Tag, error) {
	var out []wutag.Tag
	err := d.Reg.WithTxn(ctx, func(txn *registry.Txn) error {
		f, err := txn.FileByPath(path)
		if err != nil {
			return err
		}
		out, err = txn.TagsForFile(f.ID)
		return err
	})
	return out, err
}

// Copy mirrors src's tags onto dst, inserting dst's File row if needed.
// Grounded on original_source's cp subcommand (a read of src's FileTags
// followed by the same insert-then-xattr sequence Set uses).
func (d *Dispatcher) Copy(ctx context.Context, src, dst string) error {
	return d.Reg.WithTxn(ctx, func(txn *registry.Txn) error {
		srcFile, err := txn.FileByPath(src)
		if err != nil {
			return err
		}
		tags, err := txn.TagsForFile(srcFile.ID)
		if err != nil {
			return err
		}
		pairs := make([]sync2.Pair, 0, len(tags))
		for _, t := range tags {
			pairs = append(pairs, sync2.Pair{TagName: t.Name, Color: t.Color})
		}
		_, err = sync2.Set(ctx, txn, dst, pairs, sync2.SetOptions{Explicit: true})
		return err
	})
}

// Edit renames a tag (and/or recolors it). FileTag rows follow by tag id;
// the xattr key on every file carrying the tag is then replaced with one
// for the renamed/recolored tag, best-effort as in Merge. The rewritten
// xattr carries no value payload.
func (d *Dispatcher) Edit(ctx context.Context, oldName, newName string, color *wutag.Color) error {
	return d.Reg.WithTxn(ctx, func(txn *registry.Txn) error {
		tag, err := txn.TagByName(oldName, false)
		if err != nil {
			return err
		}
		if newName != "" && newName != oldName {
			if err := txn.UpdateTagName(tag.ID, newName); err != nil {
				return err
			}
		}
		if color != nil {
			if err := txn.UpdateTagColor(tag.ID, *color); err != nil {
				return err
			}
		}
		if (newName == "" || newName == oldName) && color == nil {
			return nil
		}
		renamed := tag
		if newName != "" {
			renamed.Name = newName
		}
		if color != nil {
			renamed.Color = *color
		}
		files, err := txn.ListEntriesWithTags(tag.ID)
		if err != nil {
			return err
		}
		for _, f := range files {
			_ = xattrtag.Remove(f.Path(), oldName)
			_ = xattrtag.Save(f.Path(), renamed, nil)
		}
		return nil
	})
}

// Merge re-points every FileTag referencing any of sources onto dest,
// then deletes the now-dangling source tags. Grounded on merge.rs's
// dest/source rename-in-place semantics.
func (d *Dispatcher) Merge(ctx context.Context, dest string, sources []string) error {
	return d.Reg.WithTxn(ctx, func(txn *registry.Txn) error {
		destTag, err := txn.TagByName(dest, false)
		if err != nil {
			destTag, err = txn.InsertTag(dest, wutag.DefaultColor)
			if err != nil {
				return err
			}
		}

		for _, name := range sources {
			srcTag, err := txn.TagByName(name, false)
			if err != nil {
				continue
			}
			files, err := txn.ListEntriesWithTags(srcTag.ID)
			if err != nil {
				return err
			}
			for _, f := range files {
				existing, err := txn.FileTagsForFile(f.ID)
				if err != nil {
					return err
				}
				for _, ft := range existing {
					if ft.TagID != srcTag.ID {
						continue
					}
					if _, err := txn.InsertFileTag(wutag.FileTag{FileID: f.ID, TagID: destTag.ID, ValueID: ft.ValueID}); err != nil {
						return err
					}
					if err := txn.DeleteFileTag(ft); err != nil {
						return err
					}
				}
				// Best-effort mirror; registry state is authoritative, and a
				// divergent xattr self-heals on the next Set (spec §4.9).
				_ = xattrtag.Remove(f.Path(), srcTag.Name)
				_ = xattrtag.Save(f.Path(), destTag, nil)
			}
			if err := txn.DeleteImplicationByTagID(srcTag.ID); err != nil {
				return err
			}
			if err := txn.DeleteTag(srcTag.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// CleanCache sweeps dangling tags, dangling values, and untagged orphan
// File rows in one transaction, per spec §3's dangling-sweep invariant
// and SPEC_FULL.md §4.10's cache-cleaning supplement.
func (d *Dispatcher) CleanCache(ctx context.Context) (tagsRemoved, valuesRemoved int64, filesRemoved int, err error) {
	err = d.Reg.WithTxn(ctx, func(txn *registry.Txn) error {
		var err error
		tagsRemoved, err = txn.DeleteDanglingTags()
		if err != nil {
			return err
		}
		valuesRemoved, err = txn.DeleteDanglingValues()
		if err != nil {
			return err
		}
		untagged, err := txn.FilesUntagged()
		if err != nil {
			return err
		}
		ids := make([]int64, len(untagged))
		for i, f := range untagged {
			ids[i] = f.ID
		}
		if len(ids) > 0 {
			if err := txn.DeleteUntaggedFiles(ids); err != nil {
				return err
			}
		}
		filesRemoved = len(ids)
		return nil
	})
	return
}

func appendErr(base, next error) error {
	if base == nil {
		return next
	}
	return fmt.Errorf("%w; %v", base, next)
}
