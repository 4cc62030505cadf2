package digest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestContent(t *testing.T) {
	a := Content([]byte("v1"))
	b := Content([]byte("v1"))
	c := Content([]byte("v2"))

	if len(a) != Size {
		t.Fatalf("Expected %d characters, got %d (%q)", Size, len(a), a)
	}
	if a != b {
		t.Errorf("Content is not deterministic: %q != %q", a, b)
	}
	if a == c {
		t.Errorf("Different content produced the same fingerprint %q", a)
	}
	if Content(nil) != Content([]byte{}) {
		t.Error("nil and empty content should fingerprint the same")
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	_, ok, err := File(path)
	if err != nil || ok {
		t.Fatalf("File on missing path = ok %v, err %v; want false, nil", ok, err)
	}

	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	sum, ok, err := File(path)
	if err != nil || !ok {
		t.Fatalf("File failed: ok %v, err %v", ok, err)
	}
	if sum != Content([]byte("hello")) {
		t.Errorf("File() = %q, want %q", sum, Content([]byte("hello")))
	}
}
