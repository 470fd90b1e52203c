package reportdoctor

import (
	"encoding/json"
	"testing"

	"github.com/cheshbon/cheshbon/internal/bindings"
	"github.com/cheshbon/cheshbon/internal/canon"
	"github.com/cheshbon/cheshbon/internal/diffengine"
	"github.com/cheshbon/cheshbon/internal/report"
	"github.com/cheshbon/cheshbon/internal/spec"
)

func mustParse(t *testing.T, doc string) *spec.MappingSpec {
	t.Helper()
	s, err := spec.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("spec.Parse() error = %v", err)
	}
	return s
}

func digestOf(t *testing.T, v any) *report.InputDigest {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	decoded, err := canon.DecodeJSON(b)
	if err != nil {
		t.Fatalf("canon.DecodeJSON() error = %v", err)
	}
	d, err := report.DigestForInput(decoded)
	if err != nil {
		t.Fatalf("report.DigestForInput() error = %v", err)
	}
	return d
}

func noRefLookup(string) (string, bool) { return "", false }

func buildGenuineReport(t *testing.T, specV1, specV2 *spec.MappingSpec, b *bindings.Bindings) (map[string]any, Inputs) {
	t.Helper()

	out, err := diffengine.Compute(diffengine.Inputs{SpecV1: specV1, SpecV2: specV2, BindingsV2: b}, true)
	if err != nil {
		t.Fatalf("diffengine.Compute() error = %v", err)
	}

	inputs := map[string]*report.InputDigest{
		"spec_v1": digestOf(t, specV1),
		"spec_v2": digestOf(t, specV2),
	}
	if b != nil {
		inputs["bindings_v2"] = digestOf(t, b)
	}

	doc, err := report.AllDetailsReport(out.DiffResult, inputs, nil, noRefLookup, noRefLookup)
	if err != nil {
		t.Fatalf("report.AllDetailsReport() error = %v", err)
	}

	in := Inputs{SpecV1: specV1, SpecV2: specV2}
	if b != nil {
		in.BindingsV2 = b
	}
	return doc, in
}

func TestVerifyAcceptsGenuineReport(t *testing.T) {
	t.Parallel()

	v1 := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"A","type":"string"}],
		"derived":[
			{"id":"d:B","name":"B","type":"string","transform_ref":"t:m1","inputs":["s:A"]},
			{"id":"d:C","name":"C","type":"string","transform_ref":"t:m2","inputs":["d:B"]}
		]}`)
	v2 := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"A","type":"string"}],
		"derived":[
			{"id":"d:B","name":"B","type":"string","transform_ref":"t:m1","params":{"x":1},"inputs":["s:A"]},
			{"id":"d:C","name":"C","type":"string","transform_ref":"t:m2","inputs":["d:B"]}
		]}`)

	doc, in := buildGenuineReport(t, v1, v2, nil)

	result := Verify(doc, in, "strict")
	if !result.OK {
		t.Fatalf("Verify() OK = false, want true; clauses = %+v", result.Clauses)
	}
	if result.Summary.FailedClauses != 0 {
		t.Errorf("FailedClauses = %d, want 0: %v", result.Summary.FailedClauses, result.Summary.FailedClauseIDs)
	}
}

func TestVerifyCatchesTamperedCoreDigest(t *testing.T) {
	t.Parallel()

	v1 := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"A","type":"string"}],
		"derived":[{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","inputs":["s:A"]}]}`)
	v2 := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"A","type":"string"}],
		"derived":[{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","params":{"x":1},"inputs":["s:A"]}]}`)

	doc, in := buildGenuineReport(t, v1, v2, nil)
	doc["core_digest"] = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

	result := Verify(doc, in, "strict")
	if result.OK {
		t.Fatal("Verify() OK = true, want false for a tampered core_digest")
	}
	found := false
	for _, c := range result.Clauses {
		if c.ID == "core_digest" && !c.OK {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a failing core_digest clause, got %+v", result.Clauses)
	}
}

func TestVerifyCatchesMismatchedHeader(t *testing.T) {
	t.Parallel()

	v1 := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"A","type":"string"}],
		"derived":[{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","inputs":["s:A"]}]}`)
	v2 := v1

	doc, in := buildGenuineReport(t, v1, v2, nil)
	doc["report_schema_version"] = "9.9"

	result := Verify(doc, in, "strict")
	if result.OK {
		t.Fatal("Verify() OK = true, want false for a mismatched schema version")
	}
}

func TestVerifyWithBindingsOverlay(t *testing.T) {
	t.Parallel()

	v1 := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"A","type":"string"}],
		"derived":[{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","inputs":["s:A"]}]}`)
	v2 := v1
	b := &bindings.Bindings{Table: "t", Bindings: map[string]string{}}

	doc, in := buildGenuineReport(t, v1, v2, b)

	result := Verify(doc, in, "sample")
	if !result.OK {
		t.Fatalf("Verify() OK = false, want true; clauses = %+v", result.Clauses)
	}
}
