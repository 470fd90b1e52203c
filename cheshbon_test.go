package cheshbon

import (
	"testing"

	"github.com/cheshbon/cheshbon/internal/bindings"
	"github.com/cheshbon/cheshbon/internal/spec"
)

const specDoc = `{"spec_version":"0.7","study_id":"S","source_table":"t",
	"sources":[{"id":"s:A","name":"A","type":"string"}],
	"derived":[
		{"id":"d:B","name":"B","type":"string","transform_ref":"t:m1","inputs":["s:A"]},
		{"id":"d:C","name":"C","type":"string","transform_ref":"t:m2","inputs":["d:B"]}
	]}`

const specDocChanged = `{"spec_version":"0.7","study_id":"S","source_table":"t",
	"sources":[{"id":"s:A","name":"A","type":"string"}],
	"derived":[
		{"id":"d:B","name":"B","type":"string","transform_ref":"t:m1","params":{"x":1},"inputs":["s:A"]},
		{"id":"d:C","name":"C","type":"string","transform_ref":"t:m2","inputs":["d:B"]}
	]}`

func mustParseSpec(t *testing.T, doc string) *spec.MappingSpec {
	t.Helper()
	s, err := spec.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("spec.Parse() error = %v", err)
	}
	return s
}

func TestDiffReportsDirectChangeAndTransitiveDependency(t *testing.T) {
	t.Parallel()

	v1 := mustParseSpec(t, specDoc)
	v2 := mustParseSpec(t, specDocChanged)

	result, err := Diff(FromValue(v1), FromValue(v2), nil, nil, nil, DetailFull)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if result.Reasons["d:B"] != "DIRECT_CHANGE" {
		t.Errorf("reasons[d:B] = %q, want DIRECT_CHANGE", result.Reasons["d:B"])
	}
	if result.Reasons["d:C"] != "TRANSITIVE_DEPENDENCY" {
		t.Errorf("reasons[d:C] = %q, want TRANSITIVE_DEPENDENCY", result.Reasons["d:C"])
	}
	if result.ValidationFailed {
		t.Error("ValidationFailed = true, want false")
	}
}

func TestDiffRejectsLopsidedRegistryPair(t *testing.T) {
	t.Parallel()

	v1 := mustParseSpec(t, specDoc)
	regIn := RegistryFromValue(nil)

	_, err := Diff(FromValue(v1), FromValue(v1), &regIn, nil, nil, DetailCore)
	if err != ErrRegistryPairRequired {
		t.Errorf("err = %v, want ErrRegistryPairRequired", err)
	}
}

func TestValidateCatchesMissingInput(t *testing.T) {
	t.Parallel()

	v := mustParseSpec(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[],
		"derived":[{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","inputs":["s:missing"]}]}`)

	result, err := Validate(FromValue(v), nil, nil, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.OK {
		t.Fatal("OK = true, want false for a dangling input reference")
	}
	found := false
	for _, e := range result.Errors {
		if e.Code == "MISSING_INPUT" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a MISSING_INPUT error, got %+v", result.Errors)
	}
}

func TestValidateWarnsOnMissingBinding(t *testing.T) {
	t.Parallel()

	v := mustParseSpec(t, specDoc)
	b := BindingsFromValue(&bindings.Bindings{Table: "t", Bindings: map[string]string{}})

	result, err := Validate(FromValue(v), nil, &b, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.OK {
		t.Fatalf("OK = false, want true: a missing binding is a warning, not an error. errors = %+v", result.Errors)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Code == "MISSING_BINDING" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a MISSING_BINDING warning, got %+v", result.Warnings)
	}
}

func TestDiffAllDetailsVerifiesClean(t *testing.T) {
	t.Parallel()

	v1 := mustParseSpec(t, specDoc)
	v2 := mustParseSpec(t, specDocChanged)

	reportDoc, err := DiffAllDetails(FromValue(v1), FromValue(v2), nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("DiffAllDetails() error = %v", err)
	}

	result, err := VerifyReport(reportDoc, VerifyInputs{SpecV1: FromValue(v1), SpecV2: FromValue(v2)}, VerifyStrict)
	if err != nil {
		t.Fatalf("VerifyReport() error = %v", err)
	}
	if !result.OK {
		t.Fatalf("VerifyReport() OK = false, want true; clauses = %+v", result.Clauses)
	}
}
