package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenNoConfigPresent(t *testing.T) {
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	res, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.DefaultDetailLevel != "core" || res.DetailLevelSource != "default" {
		t.Fatalf("unexpected defaults: %+v", res)
	}
	if res.Caps["max_witnesses"] != 100000 {
		t.Fatalf("unexpected default caps: %+v", res.Caps)
	}
}

func TestLoad_PrecedenceProjectThenEnvThenFlag(t *testing.T) {
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	home := filepath.Join(dir, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("HOME", home)

	if err := os.WriteFile(DefaultProjectFileName, []byte(`{"schemaVersion":1,"defaultDetailLevel":"all-details"}`), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	res, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.DefaultDetailLevel != "all-details" || res.DetailLevelSource != DefaultProjectFileName {
		t.Fatalf("project config not applied: %+v", res)
	}

	t.Setenv("CHESHBON_DETAIL_LEVEL", "core")
	res, err = Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.DefaultDetailLevel != "core" || res.DetailLevelSource != "env:CHESHBON_DETAIL_LEVEL" {
		t.Fatalf("env override not applied: %+v", res)
	}

	res, err = Load("all-details", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.DefaultDetailLevel != "all-details" || res.DetailLevelSource != "flag" {
		t.Fatalf("flag override not applied: %+v", res)
	}
}

func TestLoad_CapsOverrideMergesPartially(t *testing.T) {
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	home := filepath.Join(dir, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("HOME", home)

	res, err := Load("", &CapsV1{MaxWitnesses: 500})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Caps["max_witnesses"] != 500 {
		t.Errorf("max_witnesses = %d, want 500", res.Caps["max_witnesses"])
	}
	if res.Caps["max_top_roots"] != 50 {
		t.Errorf("max_top_roots = %d, want unchanged default 50", res.Caps["max_top_roots"])
	}
}

func TestLoad_RejectsUnknownDetailLevel(t *testing.T) {
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	home := filepath.Join(dir, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("HOME", home)

	if _, err := Load("verbose", nil); err == nil {
		t.Fatal("expected an error for an unknown detail level")
	}
}

func TestLoad_RejectsUnsupportedSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	home := filepath.Join(dir, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("HOME", home)

	if err := os.WriteFile(DefaultProjectFileName, []byte(`{"schemaVersion":2}`), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	if _, err := Load("", nil); err == nil {
		t.Fatal("expected an error for an unsupported schemaVersion")
	}
}
