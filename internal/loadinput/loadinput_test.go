package loadinput

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cheshbon/cheshbon/internal/spec"
)

const minimalSpec = `{"spec_version":"0.7","study_id":"S","source_table":"t",
	"sources":[{"id":"s:A","name":"A","type":"string"}],
	"derived":[{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","inputs":["s:A"]}]}`

func TestSpecResolvePrefersValueOverPath(t *testing.T) {
	t.Parallel()

	s, err := spec.Parse([]byte(minimalSpec))
	if err != nil {
		t.Fatalf("spec.Parse() error = %v", err)
	}
	in := FromValue(s)
	got, err := in.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != s {
		t.Error("Resolve() returned a different pointer than the wrapped value")
	}
}

func TestSpecResolveReadsAndParsesPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "spec.json")
	writeFile(t, path, minimalSpec)

	in := FromPath(path)
	got, err := in.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.StudyID != "S" {
		t.Errorf("StudyID = %q, want %q", got.StudyID, "S")
	}
}

func TestSpecResolveErrorsWithNeitherPathNorValue(t *testing.T) {
	t.Parallel()

	var in Spec
	if _, err := in.Resolve(); err == nil {
		t.Error("Resolve() error = nil, want an error for an empty input")
	}
}

func TestBindingsResolveReadsPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bindings.json")
	writeFile(t, path, `{"table":"raw_t","bindings":{"raw_col_a":"s:A"}}`)

	in := BindingsFromPath(path)
	got, err := in.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Table != "raw_t" || got.Bindings["raw_col_a"] != "s:A" {
		t.Errorf("Resolve() = %+v, want table raw_t with raw_col_a -> s:A", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
