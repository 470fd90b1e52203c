package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

const cliSpecV1 = `{"spec_version":"0.7","study_id":"S","source_table":"t",
	"sources":[{"id":"s:A","name":"A","type":"string"}],
	"derived":[{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","inputs":["s:A"]}]}`

const cliSpecV2 = `{"spec_version":"0.7","study_id":"S","source_table":"t",
	"sources":[{"id":"s:A","name":"A","type":"string"}],
	"derived":[{"id":"d:B","name":"B","type":"string","transform_ref":"t:m2","inputs":["s:A"]}]}`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunValidateExitsZeroOnCleanSpec(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	specPath := writeFixture(t, dir, "spec.json", cliSpecV1)

	var stdout, stderr bytes.Buffer
	r := Runner{Stdout: &stdout, Stderr: &stderr}
	code := r.Run([]string{"validate", "--spec", specPath, "--json"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0; stderr=%q", code, stderr.String())
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("decoding stdout: %v, stdout=%q", err, stdout.String())
	}
	if !result.OK {
		t.Error("ok = false, want true for a clean spec")
	}
}

func TestRunValidateExitsTwoOnDanglingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	specPath := writeFixture(t, dir, "spec.json", `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[],
		"derived":[{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","inputs":["s:missing"]}]}`)

	var stdout, stderr bytes.Buffer
	r := Runner{Stdout: &stdout, Stderr: &stderr}
	code := r.Run([]string{"validate", "--spec", specPath, "--json"})
	if code != 2 {
		t.Fatalf("exit code = %d, want 2; stderr=%q", code, stderr.String())
	}
}

func TestRunDiffReportsImpactedExit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v1Path := writeFixture(t, dir, "v1.json", cliSpecV1)
	v2Path := writeFixture(t, dir, "v2.json", cliSpecV2)

	var stdout, stderr bytes.Buffer
	r := Runner{Stdout: &stdout, Stderr: &stderr}
	code := r.Run([]string{"diff", "--spec-v1", v1Path, "--spec-v2", v2Path, "--json"})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1 (impacted); stderr=%q", code, stderr.String())
	}

	var result struct {
		ImpactedIDs []string `json:"impacted_ids"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("decoding stdout: %v", err)
	}
	if len(result.ImpactedIDs) == 0 {
		t.Error("impacted_ids is empty, want d:B impacted by its changed transform_ref")
	}
}

func TestRunUnknownCommandExitsTwo(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	r := Runner{Stdout: &stdout, Stderr: &stderr}
	code := r.Run([]string{"bogus"})
	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

func TestRunNoArgsPrintsHelpAndExitsZero(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	r := Runner{Stdout: &stdout, Stderr: &stderr}
	code := r.Run(nil)
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if stdout.Len() == 0 {
		t.Error("expected root help text on stdout")
	}
}
