package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveOpenRemove(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "uploads/batch_0_a.pdf", strings.NewReader("content")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(storage.Path("uploads/batch_0_a.pdf")); err != nil {
		t.Fatalf("expected file at Path(): %v", err)
	}

	rc, err := storage.Open(ctx, "uploads/batch_0_a.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	rc.Close()
	if string(raw) != "content" {
		t.Fatalf("unexpected content %q", raw)
	}

	if err := storage.Remove(ctx, "uploads/batch_0_a.pdf"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(storage.Path("uploads/batch_0_a.pdf")); !os.IsNotExist(err) {
		t.Fatalf("expected file to be gone, stat err = %v", err)
	}
	if err := storage.Remove(ctx, "uploads/batch_0_a.pdf"); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := storage.Save(context.Background(), "a.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, key := range []string{"../outside.txt", "", "a/../../x"} {
		if err := storage.Save(context.Background(), key, strings.NewReader("x")); err == nil {
			t.Fatalf("Save(%q) expected error", key)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "outside.txt")); !os.IsNotExist(err) {
		t.Fatalf("file written outside storage dir")
	}
}
