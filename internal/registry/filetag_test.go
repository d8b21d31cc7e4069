package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	wutag "github.com/wutag-go/wutag"
)

func newTestFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInsertFileTagIsIdempotent(t *testing.T) {
	h := openTestHandle(t)
	path := newTestFile(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		f, err := txn.UpsertFile(context.Background(), path)
		if err != nil {
			return err
		}
		tag, err := txn.InsertTag("dup-insert", wutag.DefaultColor)
		if err != nil {
			return err
		}
		ft := wutag.FileTag{FileID: f.ID, TagID: tag.ID, ValueID: wutag.NoValueID}

		first, err := txn.InsertFileTag(ft)
		if err != nil {
			return err
		}
		if !first.Inserted {
			t.Error("first InsertFileTag should report Inserted=true")
		}

		second, err := txn.InsertFileTag(ft)
		if err != nil {
			return err
		}
		if second.Inserted {
			t.Error("second InsertFileTag of the same triple should report Inserted=false")
		}

		count, err := txn.FileTagCount(f.ID)
		if err != nil {
			return err
		}
		if count != 1 {
			t.Errorf("FileTagCount = %d, want 1 after idempotent inserts", count)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDeleteFileTag(t *testing.T) {
	h := openTestHandle(t)
	path := newTestFile(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		f, err := txn.UpsertFile(context.Background(), path)
		if err != nil {
			return err
		}
		tag, err := txn.InsertTag("removable", wutag.DefaultColor)
		if err != nil {
			return err
		}
		ft := wutag.FileTag{FileID: f.ID, TagID: tag.ID, ValueID: wutag.NoValueID}
		if _, err := txn.InsertFileTag(ft); err != nil {
			return err
		}
		if err := txn.DeleteFileTag(ft); err != nil {
			return err
		}
		count, err := txn.FileTagCount(f.ID)
		if err != nil {
			return err
		}
		if count != 0 {
			t.Errorf("FileTagCount after delete = %d, want 0", count)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFileUniquenessOnDirectoryName(t *testing.T) {
	h := openTestHandle(t)
	path := newTestFile(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		f1, err := txn.UpsertFile(context.Background(), path)
		if err != nil {
			return err
		}
		f2, err := txn.UpsertFile(context.Background(), path)
		if err != nil {
			return err
		}
		if f1.ID != f2.ID {
			t.Errorf("UpsertFile of the same path twice produced different ids: %d vs %d", f1.ID, f2.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestListEntriesWithTags(t *testing.T) {
	h := openTestHandle(t)
	path := newTestFile(t)
	err := h.WithTxn(context.Background(), func(txn *Txn) error {
		f, err := txn.UpsertFile(context.Background(), path)
		if err != nil {
			return err
		}
		tag, err := txn.InsertTag("listed", wutag.DefaultColor)
		if err != nil {
			return err
		}
		if _, err := txn.InsertFileTag(wutag.FileTag{FileID: f.ID, TagID: tag.ID, ValueID: wutag.NoValueID}); err != nil {
			return err
		}
		files, err := txn.ListEntriesWithTags(tag.ID)
		if err != nil {
			return err
		}
		if len(files) != 1 || files[0].ID != f.ID {
			t.Errorf("ListEntriesWithTags = %v, want exactly the tagged file", files)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
