package query

import (
	"strings"
	"testing"
)

func lowerSrc(t *testing.T, src string) Compiled {
	t.Helper()
	expr, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	c, err := Lower(expr)
	if err != nil {
		t.Fatalf("Lower(%q): %v", src, err)
	}
	return c
}

func TestLowerBareNameProducesClosureExists(t *testing.T) {
	c := lowerSrc(t, "work")
	if !containsAll(c.SQL, "EXISTS", "WITH RECURSIVE closure", "tag.name = ?") {
		t.Errorf("SQL = %q, missing expected closure-exists shape", c.SQL)
	}
	if len(c.Args) != 1 || c.Args[0] != "work" {
		t.Errorf("Args = %v, want [work]", c.Args)
	}
}

func TestLowerAndOrJoinsWithParens(t *testing.T) {
	c := lowerSrc(t, "a and b")
	if !containsAll(c.SQL, " AND ") {
		t.Errorf("SQL = %q, want an AND join", c.SQL)
	}
	c = lowerSrc(t, "a or b")
	if !containsAll(c.SQL, " OR ") {
		t.Errorf("SQL = %q, want an OR join", c.SQL)
	}
}

func TestLowerNegatesComparisonOperatorInsteadOfWrappingNot(t *testing.T) {
	c := lowerSrc(t, "not size() == 5")
	if containsAll(c.SQL, "NOT (") {
		t.Errorf("SQL = %q, negating a comparison should flip the operator, not wrap in NOT", c.SQL)
	}
	if !containsAll(c.SQL, "file.size", "!=") {
		t.Errorf("SQL = %q, want file.size != ?", c.SQL)
	}
}

func TestLowerNegatesNonComparisonWithNot(t *testing.T) {
	c := lowerSrc(t, "not work")
	if !containsAll(c.SQL, "NOT (", "EXISTS") {
		t.Errorf("SQL = %q, want a NOT(...) wrapper around the closure EXISTS", c.SQL)
	}
}

func TestLowerSizeComparisonUsesFileColumn(t *testing.T) {
	c := lowerSrc(t, "size() > 1024")
	if !containsAll(c.SQL, "file.size", ">", "?") {
		t.Errorf("SQL = %q, want file.size > ?", c.SQL)
	}
	if len(c.Args) != 1 || c.Args[0] != int64(1024) {
		t.Errorf("Args = %v, want [1024]", c.Args)
	}
}

func TestLowerTernaryProducesBothBranches(t *testing.T) {
	c := lowerSrc(t, "a ? b : c")
	if !containsAll(c.SQL, "AND", "OR", "NOT") {
		t.Errorf("SQL = %q, want both branches combined with AND/OR/NOT", c.SQL)
	}
}

func TestLowerValueFunctionComparisonUsesSubquery(t *testing.T) {
	c := lowerSrc(t, `value(rating) == "5"`)
	if !containsAll(c.SQL, "SELECT value.name", "JOIN value") {
		t.Errorf("SQL = %q, want a value-name subquery", c.SQL)
	}
}

func TestLowerPatternGlobUsesGlobFunction(t *testing.T) {
	c := lowerSrc(t, "%g{*.txt}")
	if !containsAll(c.SQL, "glob(?, tag.name)") {
		t.Errorf("SQL = %q, want a glob(...) predicate", c.SQL)
	}
}

func TestLowerPatternRegexCaseInsensitiveUsesIregex(t *testing.T) {
	c := lowerSrc(t, "/^img/i")
	if !containsAll(c.SQL, "iregex(?, tag.name)") {
		t.Errorf("SQL = %q, want an iregex(...) predicate for the case-insensitive flag", c.SQL)
	}
}

func TestLowerDirFunctionChecksIsDirColumn(t *testing.T) {
	c := lowerSrc(t, "dir")
	if !containsAll(c.SQL, "file.is_dir = 1") {
		t.Errorf("SQL = %q, want file.is_dir = 1", c.SQL)
	}
}

func TestLowerBoolLiteral(t *testing.T) {
	c := lowerSrc(t, "true")
	if c.SQL != "1=1" {
		t.Errorf("SQL = %q, want 1=1", c.SQL)
	}
	c = lowerSrc(t, "false")
	if c.SQL != "1=0" {
		t.Errorf("SQL = %q, want 1=0", c.SQL)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
