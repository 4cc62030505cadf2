package lockfile

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/lherron/stencil/internal/manifest"
)

func sampleState() State {
	return State{
		Template: "service",
		Source:   "acme",
		Version:  "1.0.0",
		Created:  "2026-03-01T10:00:00Z",
		Context:  manifest.Context{"projectName": "demo", "ci": true, "year": float64(2026)},
		Synced:   map[string]string{"README.md": "aaaa", "go.mod": "bbbb"},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := sampleState()

	if err := Save(dir, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	// Saving what was loaded must produce identical bytes.
	first, _ := os.ReadFile(Path(dir))
	if err := Save(dir, got); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}
	second, _ := os.ReadFile(Path(dir))
	if string(first) != string(second) {
		t.Errorf("Lock file changed across round trip:\n%s\n---\n%s", first, second)
	}
}

func TestSaveLoadRoundTrip_NewState(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	want := New("app", "acme", "", manifest.Context{"projectName": "demo", "year": 2026, "port": int64(8080)}, now)

	if err := Save(dir, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Round trip mismatch:\n got %#v\nwant %#v", got, want)
	}

	empty := New("app", "", "", manifest.Context{}, now)
	if err := Save(dir, empty); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err = Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, empty) {
		t.Errorf("Round trip mismatch for empty state:\n got %#v\nwant %#v", got, empty)
	}

	merged := got.Apply(MergeContext(manifest.Context{"workers": 4}))
	if merged.Context["workers"] != float64(4) {
		t.Errorf("merged numbers should be stored as float64, got %T", merged.Context["workers"])
	}
}

func TestLoad_OptionalFieldsAbsent(t *testing.T) {
	dir := t.TempDir()
	content := `{"template": "minimal", "created": "2025-01-01T00:00:00Z"}`
	if err := os.WriteFile(Path(dir), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write lock: %v", err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Template != "minimal" || s.Source != "" || s.Context != nil || s.Synced == nil || len(s.Synced) != 0 {
		t.Errorf("Unexpected state: %+v", s)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(dir); !errors.Is(err, ErrNoLock) {
		t.Errorf("Expected ErrNoLock, got %v", err)
	}

	os.WriteFile(Path(dir), []byte("{not json"), 0644)
	if _, err := Load(dir); err == nil || errors.Is(err, ErrNoLock) {
		t.Errorf("Expected parse error, got %v", err)
	}

	os.WriteFile(Path(dir), []byte(`{"created": "x"}`), 0644)
	if _, err := Load(dir); err == nil {
		t.Error("Expected error for missing template")
	}
}

func TestApply(t *testing.T) {
	base := sampleState()

	out := base.Apply(Patch{
		Context: manifest.Context{"license": "MIT"},
		Set:     map[string]string{"README.md": "cccc", "LICENSE": "dddd"},
		Delete:  []string{"go.mod"},
	}).Apply(SetVersion("2.0.0"))

	if out.Synced["README.md"] != "cccc" || out.Synced["LICENSE"] != "dddd" {
		t.Errorf("Set not applied: %v", out.Synced)
	}
	if _, ok := out.Synced["go.mod"]; ok {
		t.Error("Delete not applied")
	}
	if out.Context["license"] != "MIT" || out.Context["projectName"] != "demo" {
		t.Errorf("Context merge wrong: %v", out.Context)
	}
	if out.Version != "2.0.0" {
		t.Errorf("Version = %q", out.Version)
	}

	// The original value is untouched.
	if base.Synced["README.md"] != "aaaa" || base.Version != "1.0.0" || base.Context.Has("license") {
		t.Errorf("Apply mutated its receiver: %+v", base)
	}
}

func TestApply_NilSynced(t *testing.T) {
	s := State{Template: "t"}.Apply(SetSynced("a", "h"))
	if s.Synced["a"] != "h" {
		t.Errorf("Expected synced entry, got %v", s.Synced)
	}
}

func TestUpdate(t *testing.T) {
	dir := t.TempDir()
	if _, err := Update(dir, SetSynced("x", "y")); !errors.Is(err, ErrNoLock) {
		t.Fatalf("Expected ErrNoLock, got %v", err)
	}

	if err := Save(dir, sampleState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := Update(dir, DeleteSynced("README.md")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(s.SyncedPaths(), []string{"go.mod"}) {
		t.Errorf("SyncedPaths() = %v", s.SyncedPaths())
	}
}

func TestNew(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	ctx := manifest.Context{"a": "b"}
	s := New("t", "src", "1", ctx, now)

	created, err := s.CreatedAt()
	if err != nil || !created.Equal(now) {
		t.Errorf("CreatedAt() = %v, %v", created, err)
	}
	ctx["a"] = "changed"
	if s.Context["a"] != "b" {
		t.Error("New must copy the context")
	}
	if Exists(t.TempDir()) {
		t.Error("Exists should be false for an empty dir")
	}
}

func TestPatchIsEmpty(t *testing.T) {
	if !(Patch{}).IsEmpty() {
		t.Error("zero patch should be empty")
	}
	if SetVersion("1").IsEmpty() || MergeContext(manifest.Context{"a": 1.0}).IsEmpty() {
		t.Error("non-zero patch reported empty")
	}
}
