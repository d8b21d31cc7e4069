package wutag

import "testing"

func TestValidateNameRejectsReservedWords(t *testing.T) {
	for word := range reservedWords {
		if err := ValidateName(word); err == nil {
			t.Errorf("ValidateName(%q): expected error for reserved word", word)
		}
	}
}

func TestValidateNameRejectsComparisonTokens(t *testing.T) {
	for _, tok := range []string{"rating!=3", "a<b", "a>=b"} {
		if err := ValidateName(tok); err == nil {
			t.Errorf("ValidateName(%q): expected error for comparison token", tok)
		}
	}
}

func TestValidateNameRejectsSelectorShapes(t *testing.T) {
	for _, s := range []string{"@F", "@F[0]", "$F", "%r{foo}", "//r"} {
		if err := ValidateName(s); err == nil {
			t.Errorf("ValidateName(%q): expected error for selector shape", s)
		}
	}
}

func TestValidateNameRejectsFunctionCallShape(t *testing.T) {
	if err := ValidateName("tag(foo)"); err == nil {
		t.Error("ValidateName(\"tag(foo)\"): expected error")
	}
}

func TestValidateNameAcceptsOrdinaryNames(t *testing.T) {
	for _, s := range []string{"work", "project-x", "rating", "2024-q1"} {
		if err := ValidateName(s); err != nil {
			t.Errorf("ValidateName(%q): unexpected error %v", s, err)
		}
	}
}

func TestValidateNameRejectsEmptyAndWhitespace(t *testing.T) {
	if err := ValidateName(""); err == nil {
		t.Error("ValidateName(\"\"): expected error")
	}
	if err := ValidateName("has space"); err == nil {
		t.Error("ValidateName(\"has space\"): expected error")
	}
}
