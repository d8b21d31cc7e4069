// Package udf registers the pattern-matching scalar functions (regex,
// iregex, glob, iglob) and a blake3 hash function on the SQLite
// connection, so predicates can be pushed into SQL instead of being
// evaluated row-by-row in Go. See spec §4.6.
package udf

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	"github.com/zeebo/blake3"
	"modernc.org/sqlite"

	wutag "github.com/wutag-go/wutag"
	"github.com/wutag-go/wutag/internal/walker"
)

// patternCache memoizes compiled regexes by source text so a full-table
// scan pays compilation cost once, per spec §4.6's "caches a compiled
// pattern per-row-group" requirement. Unbounded: entries are never
// evicted for the life of the process. SQLite UDFs run
// in a single connection per registry.Handle so this never needs to be
// per-row.
type patternCache struct {
	mu   sync.Mutex
	data map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{data: make(map[string]*regexp.Regexp)}
}

func (c *patternCache) get(key string, compile func() (*regexp.Regexp, error)) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.data[key]; ok {
		return re, nil
	}
	re, err := compile()
	if err != nil {
		return nil, err
	}
	c.data[key] = re
	return re, nil
}

var (
	regexCache  = newPatternCache()
	globCache   = newPatternCache()
	registerOnce sync.Once
	registerErr  error
)

// Register installs the regex/iregex/glob/iglob/blake3 scalar functions on
// the SQLite driver. Safe to call more than once; registration happens
// exactly once per process since modernc.org/sqlite registers functions
// driver-wide rather than per-connection.
func Register() error {
	registerOnce.Do(func() {
		registerErr = registerAll()
	})
	return registerErr
}

func registerAll() error {
	fns := []struct {
		name       string
		ignoreCase bool
		kind       patternKind
	}{
		{"regex", false, kindRegex},
		{"iregex", true, kindRegex},
		{"glob", false, kindGlob},
		{"iglob", true, kindGlob},
	}
	for _, f := range fns {
		if err := sqlite.RegisterDeterministicScalarFunction(f.name, 2, matchFunc(f.kind, f.ignoreCase)); err != nil {
			return &wutag.Error{Kind: wutag.ErrGeneral, Op: "udf.Register", Message: "registering " + f.name, Inner: err}
		}
	}
	if err := sqlite.RegisterDeterministicScalarFunction("blake3", 1, blake3Func); err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "udf.Register", Message: "registering blake3", Inner: err}
	}
	return nil
}

type patternKind uint8

const (
	kindRegex patternKind = iota
	kindGlob
)

func matchFunc(kind patternKind, ignoreCase bool) func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("udf: expected 2 arguments, got %d", len(args))
		}
		pattern, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("udf: pattern argument must be text")
		}
		text, ok := args[1].(string)
		if !ok {
			return int64(0), nil
		}

		cache := regexCache
		if kind == kindGlob {
			cache = globCache
		}
		cacheKey := pattern
		if ignoreCase {
			cacheKey = "i:" + pattern
		}

		re, err := cache.get(cacheKey, func() (*regexp.Regexp, error) {
			src := pattern
			if kind == kindGlob {
				src = walker.GlobToRegex(pattern)
			}
			if ignoreCase {
				src = "(?i)" + src
			}
			return regexp.Compile(src)
		})
		if err != nil {
			return nil, &wutag.Error{Kind: wutag.ErrInvalidPattern, Op: "udf", Inner: err}
		}
		if re.MatchString(text) {
			return int64(1), nil
		}
		return int64(0), nil
	}
}

func blake3Func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("udf: blake3 expects 1 argument")
	}
	text, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("udf: blake3 argument must be text")
	}
	sum := blake3.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum), nil
}
