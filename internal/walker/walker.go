// Package walker traverses a base directory honoring glob/regex/fixed
// string patterns, exclude patterns, file-type filters, extension
// filters, and a max depth, per spec §4.2.
package walker

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	wutag "github.com/wutag-go/wutag"
)

// Mode selects how Pattern is compiled.
type Mode uint8

const (
	ModeGlob Mode = iota
	ModeRegex
	ModeFixedString
)

// FileTypes mirrors the original's per-type filter set plus the two
// derived flags (ExecutablesOnly, EmptyOnly).
type FileTypes struct {
	Files           bool
	Directories     bool
	Symlinks        bool
	BlockDevices    bool
	CharDevices     bool
	Sockets         bool
	Fifos           bool
	ExecutablesOnly bool
	EmptyOnly       bool
}

// any reports whether any individual type flag (not the derived ones) is
// set; an all-false FileTypes accepts everything.
func (ft FileTypes) any() bool {
	return ft.Files || ft.Directories || ft.Symlinks || ft.BlockDevices ||
		ft.CharDevices || ft.Sockets || ft.Fifos
}

// Entry is one accepted filesystem entry, handed to the walk callback.
type Entry struct {
	Path  string // canonicalized, absolute
	Info  os.FileInfo
}

// Options configures a walk. Zero value is a reasonable default (depth 2,
// glob mode, case-insensitive unless the pattern has uppercase).
type Options struct {
	Base             string
	MaxDepth         int
	Pattern          string
	Mode             Mode
	CaseSensitive    *bool // nil = smart case
	Exclude          []string
	ExtensionPattern string
	Types            FileTypes
	FollowSymlinks   bool
}

const DefaultMaxDepth = 2

// Walk traverses Options.Base applying the filters in the order spec §4.2
// mandates: exclude, extension, file-type, pattern. cb is invoked on the
// calling goroutine for every surviving entry, in depth-first order; the
// walker does not parallelize callback delivery even though directory
// hashing in internal/identity is parallel, because the callback mutates the
// registry (spec §4.2, §5).
func Walk(opts Options, cb func(Entry) error) error {
	base := opts.Base
	if base == "" {
		base = "."
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	patternRe, err := compilePattern(opts.Pattern, opts.Mode, opts.CaseSensitive)
	if err != nil {
		return err
	}

	var excludeRe *regexp.Regexp
	if len(opts.Exclude) > 0 {
		excludeRe, err = regexp.Compile(strings.Join(opts.Exclude, "|"))
		if err != nil {
			return &wutag.Error{Kind: wutag.ErrInvalidPattern, Op: "Walk", Inner: err}
		}
	}

	var extRe *regexp.Regexp
	if opts.ExtensionPattern != "" {
		extRe, err = regexp.Compile(opts.ExtensionPattern)
		if err != nil {
			return &wutag.Error{Kind: wutag.ErrInvalidPattern, Op: "Walk", Inner: err}
		}
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrIO, Op: "Walk", Inner: err}
	}

	return walkDir(absBase, absBase, 0, maxDepth, opts, patternRe, excludeRe, extRe, cb)
}

func walkDir(base, dir string, depth, maxDepth int, opts Options, patternRe, excludeRe, extRe *regexp.Regexp, cb func(Entry) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &wutag.Error{Kind: wutag.ErrIO, Op: "walkDir", Inner: err}
	}

	for _, ent := range entries {
		full := filepath.Join(dir, ent.Name())
		info, err := ent.Info()
		if err != nil {
			continue
		}

		isSymlink := info.Mode()&os.ModeSymlink != 0
		if isSymlink && !opts.FollowSymlinks {
			if accept(full, info, opts, excludeRe, extRe, patternRe) {
				if err := cb(Entry{Path: full, Info: info}); err != nil {
					return err
				}
			}
			continue
		}

		if info.IsDir() {
			if accept(full, info, opts, excludeRe, extRe, patternRe) {
				if err := cb(Entry{Path: full, Info: info}); err != nil {
					return err
				}
			}
			if depth+1 <= maxDepth {
				if err := walkDir(base, full, depth+1, maxDepth, opts, patternRe, excludeRe, extRe, cb); err != nil {
					return err
				}
			}
			continue
		}

		if accept(full, info, opts, excludeRe, extRe, patternRe) {
			if err := cb(Entry{Path: full, Info: info}); err != nil {
				return err
			}
		}
	}
	return nil
}

// accept applies the filter pipeline in spec order: exclude, extension,
// file-type, pattern.
func accept(path string, info os.FileInfo, opts Options, excludeRe, extRe, patternRe *regexp.Regexp) bool {
	if excludeRe != nil && excludeRe.MatchString(path) {
		return false
	}
	if extRe != nil && !info.IsDir() && !extRe.MatchString(filepath.Ext(path)) {
		return false
	}
	if !matchesType(info, opts.Types) {
		return false
	}
	return patternRe == nil || patternRe.Match([]byte(path))
}

func matchesType(info os.FileInfo, ft FileTypes) bool {
	if ft.ExecutablesOnly {
		if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			return false
		}
	}
	if ft.EmptyOnly && !isEmpty(info) {
		return false
	}
	if !ft.any() {
		return true
	}

	mode := info.Mode()
	switch {
	case mode.IsRegular():
		return ft.Files
	case mode.IsDir():
		return ft.Directories
	case mode&os.ModeSymlink != 0:
		return ft.Symlinks
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0:
		return ft.CharDevices
	case mode&os.ModeDevice != 0:
		return ft.BlockDevices
	case mode&os.ModeSocket != 0:
		return ft.Sockets
	case mode&os.ModeNamedPipe != 0:
		return ft.Fifos
	default:
		return false
	}
}

func isEmpty(info os.FileInfo) bool {
	if info.IsDir() {
		// Only the FileInfo is available here, not a path, so a directory
		// counts as empty only when its reported size is 0; its entries
		// are not listed. Directories whose filesystem reports a nonzero
		// size are never treated as empty, even with no entries.
		return info.Size() == 0
	}
	return info.Size() == 0
}

// compilePattern implements the mode-specific compilation and the
// "smart case" rule: case-sensitive is forced on if the pattern contains
// an uppercase rune, unless the caller pins sensitivity explicitly.
func compilePattern(pattern string, mode Mode, caseSensitive *bool) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}

	var src string
	switch mode {
	case ModeGlob:
		src = globToRegex(pattern)
	case ModeFixedString:
		src = regexp.QuoteMeta(pattern)
	case ModeRegex:
		src = pattern
	}

	sensitive := caseSensitive != nil && *caseSensitive
	if caseSensitive == nil {
		sensitive = hasUpper(pattern)
	}
	if !sensitive {
		src = "(?i)" + src
	}

	re, err := regexp.Compile(src)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrInvalidPattern, Op: "compilePattern", Inner: err}
	}
	return re, nil
}

func hasUpper(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}
