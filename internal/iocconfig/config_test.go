package iocconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTablesWithEmptyPathReturnsDefaults(t *testing.T) {
	tables, err := LoadTables("")
	if err != nil {
		t.Fatalf("LoadTables(\"\"): %v", err)
	}
	if !tables.IsTLD("com") {
		t.Fatalf("expected the default table set")
	}
}

func TestLoadTablesMergesOverlayOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	if err := os.WriteFile(path, []byte("tlds: [corp]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}
	if !tables.IsTLD("corp") {
		t.Fatalf("expected the overlay TLD to be present")
	}
	if !tables.IsTLD("com") {
		t.Fatalf("expected the default TLDs to still be present")
	}
}

func TestLoadTablesMissingFileErrors(t *testing.T) {
	if _, err := LoadTables(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing overlay file")
	}
}

func TestLoadTablesInvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("tlds: [unterminated"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadTables(path); err == nil {
		t.Fatalf("expected an error for malformed overlay YAML")
	}
}

func TestLoadKeywordDirSkipsBlankLinesAndSubdirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "apt.txt"), []byte("cobalt strike\n\nmimikatz\n  \n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	got, err := LoadKeywordDir(dir)
	if err != nil {
		t.Fatalf("LoadKeywordDir: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d keyword files, want 1 (subdirectory skipped): %v", len(got), got)
	}
	words, ok := got["apt.txt"]
	if !ok {
		t.Fatalf("expected an entry keyed by apt.txt, got %v", got)
	}
	want := [][]byte{[]byte("cobalt strike"), []byte("mimikatz")}
	if len(words) != len(want) {
		t.Fatalf("got %d keywords, want %d: %v", len(words), len(want), words)
	}
	for i := range want {
		if !bytes.Equal(words[i], want[i]) {
			t.Errorf("words[%d] = %q, want %q", i, words[i], want[i])
		}
	}
}

func TestLoadKeywordDirMissingDirErrors(t *testing.T) {
	if _, err := LoadKeywordDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected an error for a missing keyword directory")
	}
}
