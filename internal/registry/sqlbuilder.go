package registry

import (
	"strings"
)

// SqlBuilder incrementally assembles parameterized SQL text and its
// parameter list. It is the injection boundary named in spec §4.5 and
// §4.7/§4.9: every untrusted value (tag/value/file names, patterns) must
// go through Param, never Lit.
//
// The tag lookups in tag.go compose predicates with goqu, whose own
// Ex/L tree already enforces this boundary; the rest of the package uses
// raw SQL with bound '?' arguments. This lighter-weight builder is used
// by ImplicationsFor (implication.go) to assemble the seed rows of its
// hand-written recursive CTE. internal/query's lowering does not use it;
// it builds its SQL strings and argument list directly.
type SqlBuilder struct {
	sb     strings.Builder
	params []any
}

// NewSqlBuilder returns an empty builder.
func NewSqlBuilder() *SqlBuilder {
	return &SqlBuilder{}
}

// Lit appends literal SQL text. Never call this with a value that
// originated from user input; use Param instead.
func (b *SqlBuilder) Lit(s string) *SqlBuilder {
	b.sb.WriteString(s)
	return b
}

// Param appends a positional '?' placeholder and records its value.
func (b *SqlBuilder) Param(v any) *SqlBuilder {
	b.params = append(b.params, v)
	b.sb.WriteByte('?')
	return b
}

// NoCase appends a case-folding collation clause.
func (b *SqlBuilder) NoCase() *SqlBuilder {
	b.sb.WriteString(" COLLATE NOCASE")
	return b
}

// Build returns the finished SQL string and its positional parameters.
func (b *SqlBuilder) Build() (string, []any) {
	return b.sb.String(), b.params
}
