package registry

import (
	"context"
	"errors"
	"testing"

	wutag "github.com/wutag-go/wutag"
)

func TestInsertTagAndLookup(t *testing.T) {
	h := openTestHandle(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		tag, err := txn.InsertTag("work", wutag.DefaultColor)
		if err != nil {
			return err
		}
		if tag.ID == 0 {
			t.Error("expected a non-zero inserted id")
		}

		got, err := txn.TagByName("work", false)
		if err != nil {
			return err
		}
		if got.Name != "work" {
			t.Errorf("TagByName = %+v, want name work", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestInsertTagDuplicateFails(t *testing.T) {
	h := openTestHandle(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		if _, err := txn.InsertTag("dup", wutag.DefaultColor); err != nil {
			return err
		}
		_, err := txn.InsertTag("dup", wutag.DefaultColor)
		if !errors.Is(err, wutag.ErrTagExists) {
			t.Errorf("second insert: got %v, want ErrTagExists", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTagByNameMissing(t *testing.T) {
	h := openTestHandle(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		_, err := txn.TagByName("nope", false)
		if !errors.Is(err, wutag.ErrNonexistentTag) {
			t.Errorf("got %v, want ErrNonexistentTag", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestTagByNameCaseInsensitive(t *testing.T) {
	h := openTestHandle(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		if _, err := txn.InsertTag("Work", wutag.DefaultColor); err != nil {
			return err
		}
		got, err := txn.TagByName("work", true)
		if err != nil {
			return err
		}
		if got.Name != "Work" {
			t.Errorf("case-insensitive lookup = %+v, want Work", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpdateTagNameAndColor(t *testing.T) {
	h := openTestHandle(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		tag, err := txn.InsertTag("old", wutag.DefaultColor)
		if err != nil {
			return err
		}
		if err := txn.UpdateTagName(tag.ID, "new"); err != nil {
			return err
		}
		color, _ := wutag.NewANSIColor(32)
		if err := txn.UpdateTagColor(tag.ID, color); err != nil {
			return err
		}
		got, err := txn.TagByName("new", false)
		if err != nil {
			return err
		}
		if got.Color.String() != color.String() {
			t.Errorf("Color = %v, want %v", got.Color, color)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDanglingTagsAndDelete(t *testing.T) {
	h := openTestHandle(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		if _, err := txn.InsertTag("orphan", wutag.DefaultColor); err != nil {
			return err
		}
		dangling, err := txn.DanglingTags()
		if err != nil {
			return err
		}
		if len(dangling) != 1 || dangling[0].Name != "orphan" {
			t.Fatalf("DanglingTags = %v, want exactly [orphan]", dangling)
		}
		n, err := txn.DeleteDanglingTags()
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("DeleteDanglingTags removed %d rows, want 1", n)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
