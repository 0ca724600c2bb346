package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCommitMovesIntoPlace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	part, err := CreatePartial(dir)
	if err != nil {
		t.Fatalf("CreatePartial: %v", err)
	}
	if _, err := part.WriteString("dubbed"); err != nil {
		t.Fatalf("write: %v", err)
	}

	dest, err := part.Commit("out.mp4")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if dest != filepath.Join(dir, "out.mp4") {
		t.Fatalf("dest = %q", dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "dubbed" {
		t.Fatalf("read dest: %q %v", data, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the destination, got %d entries", len(entries))
	}

	part.Abort()
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("abort after commit removed the destination: %v", err)
	}
	if _, err := part.Commit("again.mp4"); err == nil {
		t.Fatal("expected second commit to fail")
	}
}

func TestAbortRemovesPartial(t *testing.T) {
	dir := t.TempDir()
	part, err := CreatePartial(dir)
	if err != nil {
		t.Fatalf("CreatePartial: %v", err)
	}
	_, _ = part.WriteString("partial")
	part.Abort()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, got %d entries", len(entries))
	}
}
