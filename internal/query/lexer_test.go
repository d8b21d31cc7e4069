package query

import "testing"

func lexKinds(t *testing.T, src string) []tokenKind {
	t.Helper()
	toks, err := newLexer(src).lex()
	if err != nil {
		t.Fatalf("lex(%q): %v", src, err)
	}
	kinds := make([]tokenKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.kind
	}
	return kinds
}

func TestLexKeywordsAndIdents(t *testing.T) {
	kinds := lexKinds(t, "work and not urgent")
	want := []tokenKind{tokIdent, tokAnd, tokNot, tokIdent, tokEOF}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestLexKeywordsCaseInsensitive(t *testing.T) {
	toks, err := newLexer("AND OR NOT").lex()
	if err != nil {
		t.Fatal(err)
	}
	want := []tokenKind{tokAnd, tokOr, tokNot, tokEOF}
	for i, k := range want {
		if toks[i].kind != k {
			t.Errorf("toks[%d].kind = %v, want %v", i, toks[i].kind, k)
		}
	}
}

func TestLexComparisonOperators(t *testing.T) {
	kinds := lexKinds(t, "== != < > <= >=")
	want := []tokenKind{tokEq, tokNeq, tokLt, tokGt, tokLe, tokGe, tokEOF}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestLexSlashPatternRegex(t *testing.T) {
	toks, err := newLexer("/foo.*/i").lex()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].kind != tokPattern {
		t.Fatalf("toks[0].kind = %v, want tokPattern", toks[0].kind)
	}
	if toks[0].text != "foo.*" {
		t.Errorf("pattern text = %q, want foo.*", toks[0].text)
	}
	if toks[0].patternKind != SearchRegex {
		t.Errorf("patternKind = %v, want SearchRegex", toks[0].patternKind)
	}
}

func TestLexSlashPatternGlobFlag(t *testing.T) {
	toks, err := newLexer("/*.txt/g").lex()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].patternKind != SearchGlob {
		t.Errorf("patternKind = %v, want SearchGlob", toks[0].patternKind)
	}
}

func TestLexPercentPatternWithBraces(t *testing.T) {
	toks, err := newLexer("%r{a(b)c}i").lex()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].kind != tokPattern {
		t.Fatalf("toks[0].kind = %v, want tokPattern", toks[0].kind)
	}
	if toks[0].text != "a(b)c" {
		t.Errorf("pattern text = %q, want a(b)c", toks[0].text)
	}
}

func TestLexUnterminatedPatternFails(t *testing.T) {
	if _, err := newLexer("/unterminated").lex(); err == nil {
		t.Error("expected an error for an unterminated pattern literal")
	}
}

func TestLexDotDotRanges(t *testing.T) {
	kinds := lexKinds(t, "1..5 1..=5")
	want := []tokenKind{tokInt, tokDotDot, tokInt, tokInt, tokDotDotEq, tokInt, tokEOF}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
}

func TestLexTagIndexSelectorIdents(t *testing.T) {
	toks, err := newLexer("@F[0] $F").lex()
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].kind != tokIdent || toks[0].text != "@F" {
		t.Errorf("toks[0] = %+v, want ident @F", toks[0])
	}
}
