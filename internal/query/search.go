package query

import (
	wutag "github.com/wutag-go/wutag"
	"github.com/wutag-go/wutag/internal/registry"
)

// Search parses source as a query expression, lowers it to SQL, and runs
// it against t, returning matching files ordered by directory||'/'||name
// unless sort overrides the ordering column.
func Search(t *registry.Txn, source, sort string) ([]wutag.File, error) {
	expr, err := Parse(source)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrInvalidPattern, Op: "query.Search", Inner: err}
	}
	compiled, err := Lower(expr)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrInvalidPattern, Op: "query.Search", Inner: err}
	}
	return t.SearchFiles(compiled.SQL, compiled.Args, sort)
}
