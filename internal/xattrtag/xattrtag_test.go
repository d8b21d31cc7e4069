package xattrtag

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	wutag "github.com/wutag-go/wutag"
)

func newFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tagged.txt")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// skipIfUnsupported lets the suite pass on filesystems (tmpfs variants,
// some CI overlay mounts) that refuse user.* xattrs outright, rather than
// failing the whole package on an environment limitation spec §7's
// SymlinkUnavailable95 kind already names.
func skipIfUnsupported(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	var werr *wutag.Error
	if errors.As(err, &werr) && werr.Kind == wutag.ErrSymlinkUnavailable95 {
		t.Skipf("xattrs unsupported on this filesystem: %v", err)
	}
	if errors.Is(err, errors.ErrUnsupported) {
		t.Skipf("xattrs unsupported on this filesystem: %v", err)
	}
}

func TestSaveListRemoveRoundTrip(t *testing.T) {
	path := newFile(t)
	tag := wutag.Tag{Name: "work", Color: wutag.DefaultColor}

	if err := Save(path, tag, nil); err != nil {
		skipIfUnsupported(t, err)
		t.Fatalf("Save: %v", err)
	}

	tags, err := List(path)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "work" {
		t.Fatalf("List = %v, want one tag named work", tags)
	}

	if err := Remove(path, "work"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	tags, err = List(path)
	if err != nil {
		t.Fatalf("List after Remove: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("List after Remove = %v, want empty", tags)
	}
}

func TestSaveDuplicateTagFails(t *testing.T) {
	path := newFile(t)
	tag := wutag.Tag{Name: "dup", Color: wutag.DefaultColor}
	if err := Save(path, tag, nil); err != nil {
		skipIfUnsupported(t, err)
		t.Fatalf("Save: %v", err)
	}
	err := Save(path, tag, nil)
	if !errors.Is(err, wutag.ErrTagExists) {
		t.Errorf("second Save of the same tag: got %v, want ErrTagExists", err)
	}
}

func TestClearRemovesEveryTag(t *testing.T) {
	path := newFile(t)
	for _, name := range []string{"a", "b", "c"} {
		if err := Save(path, wutag.Tag{Name: name, Color: wutag.DefaultColor}, nil); err != nil {
			skipIfUnsupported(t, err)
			t.Fatalf("Save(%q): %v", name, err)
		}
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	tags, err := List(path)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("List after Clear = %v, want empty", tags)
	}
}

func TestRemoveAbsentTagFails(t *testing.T) {
	path := newFile(t)
	err := Remove(path, "nope")
	if !errors.Is(err, wutag.ErrTagNotOnFile) {
		t.Errorf("Remove of absent tag: got %v, want ErrTagNotOnFile", err)
	}
}

func TestSaveWithValuePayload(t *testing.T) {
	path := newFile(t)
	tag := wutag.Tag{Name: "rating", Color: wutag.DefaultColor}
	value := wutag.Value{Name: "5"}
	if err := Save(path, tag, &value); err != nil {
		skipIfUnsupported(t, err)
		t.Fatalf("Save: %v", err)
	}
	tags, err := List(path)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "rating" {
		t.Fatalf("List = %v, want one tag named rating", tags)
	}
}
