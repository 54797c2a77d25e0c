package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "checkpoint.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte(`{"a":2}`), 0o644); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":2}` {
		t.Errorf("unexpected contents %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "files.txt")
	content := "# survey 2017\n/data/a.190\n\n  /data/b.190  \n#/data/skipped.190\n/data/c.171"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines failed: %v", err)
	}
	expected := []string{"/data/a.190", "/data/b.190", "/data/c.171"}
	if !reflect.DeepEqual(lines, expected) {
		t.Errorf("ReadLines = %v, expected %v", lines, expected)
	}

	if _, err := ReadLines(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestRunIDs(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("run IDs should be unique")
	}
	if len(a) != 36 || len(GenerateUUID()) != 36 {
		t.Errorf("unexpected UUID format %q", a)
	}
}
