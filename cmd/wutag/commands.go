package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	wutag "github.com/wutag-go/wutag"
	"github.com/wutag-go/wutag/internal/action"
	"github.com/wutag-go/wutag/internal/registry"
	"github.com/wutag-go/wutag/internal/sync2"
)

// usageError marks a command-line misuse (wrong argument count, bad
// syntax) so main can map it to exit code 2 rather than 1, per spec §6.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// parsePairs turns CLI tokens of the form name, name=value, or
// name=value:color into sync2.Pair values, per spec §6's tag/value CLI
// shorthand.
func parsePairs(tokens []string) ([]sync2.Pair, error) {
	pairs := make([]sync2.Pair, 0, len(tokens))
	for _, tok := range tokens {
		name, rest, hasValue := strings.Cut(tok, "=")
		p := sync2.Pair{TagName: name}
		if hasValue {
			value, colorStr, hasColor := strings.Cut(rest, ":")
			p.ValueName = value
			if hasColor {
				c, err := wutag.ParseColor(colorStr)
				if err != nil {
					return nil, err
				}
				p.Color = c
			}
		}
		if err := wutag.ValidateName(p.TagName); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func printFiles(files []wutag.File) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	for _, f := range files {
		fmt.Fprintf(w, "%s\n", f.Path())
	}
}

func cmdList(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	tag := fs.String("tag", "", "list only files carrying this tag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d := action.New(reg)
	files, err := d.List(ctx, *tag)
	if err != nil {
		return err
	}
	printFiles(files)
	return nil
}

func cmdSet(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	clear := fs.Bool("clear", false, "remove every existing tag before applying the new ones")
	explicit := fs.Bool("explicit", false, "apply tags even if already implied")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return usagef("usage: wutag set <pattern> <tag[=value[:color]]>...")
	}
	pairs, err := parsePairs(rest[1:])
	if err != nil {
		return err
	}
	d := action.New(reg)
	return d.Set(ctx, action.SetRequest{
		Walk:     g.walkerOptions(rest[0]),
		Pairs:    pairs,
		Clear:    *clear,
		Explicit: *explicit,
	})
}

func cmdRemove(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return usagef("usage: wutag rm <pattern> <tag>...")
	}
	d := action.New(reg)
	return d.Remove(ctx, action.RemoveRequest{
		Walk:     g.walkerOptions(rest[0]),
		TagNames: rest[1:],
	})
}

func cmdClear(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	pattern := ""
	if len(rest) > 0 {
		pattern = rest[0]
	}
	d := action.New(reg)
	return d.Clear(ctx, g.walkerOptions(pattern))
}

func cmdSearch(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	sort := fs.String("sort", "", "ORDER BY column override")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return usagef("usage: wutag search <expr>")
	}
	d := action.New(reg)
	files, err := d.Search(ctx, strings.Join(rest, " "), *sort)
	if err != nil {
		return err
	}
	printFiles(files)
	return nil
}

func cmdCopy(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error {
	fs := flag.NewFlagSet("cp", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return usagef("usage: wutag cp <src> <dst>")
	}
	d := action.New(reg)
	return d.Copy(ctx, rest[0], rest[1])
}

func cmdEdit(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	rename := fs.String("rename", "", "new name for the tag")
	colorStr := fs.String("color", "", "new color for the tag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return usagef("usage: wutag edit <tag>")
	}
	var color *wutag.Color
	if *colorStr != "" {
		c, err := wutag.ParseColor(*colorStr)
		if err != nil {
			return err
		}
		color = &c
	}
	d := action.New(reg)
	return d.Edit(ctx, rest[0], *rename, color)
}

func cmdView(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return usagef("usage: wutag view <path>")
	}
	d := action.New(reg)
	tags, err := d.View(ctx, rest[0])
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	for _, t := range tags {
		fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Color)
	}
	return nil
}

func cmdMerge(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return usagef("usage: wutag merge <dest> <source>...")
	}
	d := action.New(reg)
	return d.Merge(ctx, rest[0], rest[1:])
}

func cmdCleanCache(ctx context.Context, g *globalFlags, reg *registry.Handle, args []string) error {
	fs := flag.NewFlagSet("clean-cache", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	d := action.New(reg)
	tags, values, files, err := d.CleanCache(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "removed %d dangling tags, %d dangling values, %d untagged files\n", tags, values, files)
	return nil
}
