package query

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	wutag "github.com/wutag-go/wutag"
	"github.com/wutag-go/wutag/internal/registry"
)

func openSearchHandle(t *testing.T) *registry.Handle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "search.registry")
	h, err := registry.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func writeTestFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSearchByBareTagName(t *testing.T) {
	h := openSearchHandle(t)
	dir := t.TempDir()
	workPath := writeTestFile(t, dir, "report.txt")
	otherPath := writeTestFile(t, dir, "notes.txt")

	err := h.WithTxn(context.Background(), func(txn *registry.Txn) error {
		workFile, err := txn.UpsertFile(context.Background(), workPath)
		if err != nil {
			return err
		}
		if _, err := txn.UpsertFile(context.Background(), otherPath); err != nil {
			return err
		}
		tag, err := txn.InsertTag("work", wutag.DefaultColor)
		if err != nil {
			return err
		}
		_, err = txn.InsertFileTag(wutag.FileTag{FileID: workFile.ID, TagID: tag.ID, ValueID: wutag.NoValueID})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	err = h.WithTxn(context.Background(), func(txn *registry.Txn) error {
		files, err := Search(txn, "work", "")
		if err != nil {
			return err
		}
		if len(files) != 1 || files[0].Name != "report.txt" {
			t.Errorf("Search(work) = %v, want exactly report.txt", files)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSearchWithSizeComparison(t *testing.T) {
	h := openSearchHandle(t)
	dir := t.TempDir()
	bigPath := filepath.Join(dir, "big.bin")
	smallPath := filepath.Join(dir, "small.bin")
	if err := os.WriteFile(bigPath, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(smallPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := h.WithTxn(context.Background(), func(txn *registry.Txn) error {
		if _, err := txn.UpsertFile(context.Background(), bigPath); err != nil {
			return err
		}
		if _, err := txn.UpsertFile(context.Background(), smallPath); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = h.WithTxn(context.Background(), func(txn *registry.Txn) error {
		files, err := Search(txn, "size() > 1024", "")
		if err != nil {
			return err
		}
		if len(files) != 1 || files[0].Name != "big.bin" {
			t.Errorf("Search(size() > 1024) = %v, want exactly big.bin", files)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSearchTransitiveImplication(t *testing.T) {
	h := openSearchHandle(t)
	dir := t.TempDir()
	path := writeTestFile(t, dir, "photo.jpg")

	err := h.WithTxn(context.Background(), func(txn *registry.Txn) error {
		f, err := txn.UpsertFile(context.Background(), path)
		if err != nil {
			return err
		}
		media, err := txn.InsertTag("media", wutag.DefaultColor)
		if err != nil {
			return err
		}
		photo, err := txn.InsertTag("photo", wutag.DefaultColor)
		if err != nil {
			return err
		}
		if err := txn.InsertImplication(wutag.Implication{
			TagID: photo.ID, ValueID: wutag.NoValueID,
			ImpliedTagID: media.ID, ImpliedValueID: wutag.NoValueID,
		}); err != nil {
			return err
		}
		_, err = txn.InsertFileTag(wutag.FileTag{FileID: f.ID, TagID: photo.ID, ValueID: wutag.NoValueID})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	err = h.WithTxn(context.Background(), func(txn *registry.Txn) error {
		files, err := Search(txn, "media", "")
		if err != nil {
			return err
		}
		if len(files) != 1 || files[0].Name != "photo.jpg" {
			t.Errorf("Search(media) via implication = %v, want exactly photo.jpg", files)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSearchInvalidQuerySyntaxFails(t *testing.T) {
	h := openSearchHandle(t)
	err := h.WithTxn(context.Background(), func(txn *registry.Txn) error {
		_, err := Search(txn, "and and", "")
		if err == nil {
			t.Error("expected an error for malformed query syntax")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
