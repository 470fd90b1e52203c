package spec

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, doc string) *MappingSpec {
	t.Helper()
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return s
}

func TestParseCanonicalizesInputs(t *testing.T) {
	t.Parallel()

	doc := `{
		"spec_version": "0.7", "study_id": "S1", "source_table": "t",
		"sources": [{"id":"s:A","name":"A","type":"string"},{"id":"s:B","name":"B","type":"string"}],
		"derived": [{"id":"d:X","name":"X","type":"string","transform_ref":"t:copy","inputs":["s:B","s:A"]}]
	}`
	s := mustParse(t, doc)
	got := s.Derived[0].Inputs
	if len(got) != 2 || got[0] != "s:A" || got[1] != "s:B" {
		t.Errorf("Inputs = %v, want sorted [s:A s:B]", got)
	}
}

func TestParseRejectsDuplicateInputs(t *testing.T) {
	t.Parallel()

	doc := `{
		"spec_version": "0.7", "study_id": "S1", "source_table": "t",
		"sources": [{"id":"s:A","name":"A","type":"string"}],
		"derived": [{"id":"d:X","name":"X","type":"string","transform_ref":"t:copy","inputs":["s:A","s:A"]}]
	}`
	_, err := Parse([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("Parse() error = %v, want duplicate-inputs error", err)
	}
}

func TestParseRejectsUnknownTopLevelField(t *testing.T) {
	t.Parallel()

	doc := `{
		"spec_version": "0.7", "study_id": "S1", "source_table": "t",
		"sources": [], "derived": [], "bogus": 1
	}`
	_, err := Parse([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "unknown top-level field") {
		t.Fatalf("Parse() error = %v, want unknown-field error", err)
	}
}

func TestParseMissingSpecVersionNormalizesTo07(t *testing.T) {
	t.Parallel()

	doc := `{
		"study_id": "S1", "source_table": "t", "sources": [], "derived": []
	}`
	s := mustParse(t, doc)
	if s.SpecVersion != "0.7" || !s.SchemaVersionImplicit {
		t.Errorf("SpecVersion = %q, SchemaVersionImplicit = %v, want 0.7/true", s.SpecVersion, s.SchemaVersionImplicit)
	}
}

func TestParseComputesParamsHashDeterministically(t *testing.T) {
	t.Parallel()

	docA := `{"spec_version":"0.7","study_id":"S","source_table":"t","sources":[],
		"derived":[{"id":"d:X","name":"X","type":"string","transform_ref":"t:m","inputs":[],"params":{"a":1,"b":2}}]}`
	docB := `{"spec_version":"0.7","study_id":"S","source_table":"t","sources":[],
		"derived":[{"id":"d:X","name":"X","type":"string","transform_ref":"t:m","inputs":[],"params":{"b":2,"a":1}}]}`
	a := mustParse(t, docA)
	b := mustParse(t, docB)
	if a.Derived[0].ParamsHash != b.Derived[0].ParamsHash {
		t.Errorf("ParamsHash differs by key order: %s vs %s", a.Derived[0].ParamsHash, b.Derived[0].ParamsHash)
	}
}

func TestParseRejectsFloatParams(t *testing.T) {
	t.Parallel()

	doc := `{"spec_version":"0.7","study_id":"S","source_table":"t","sources":[],
		"derived":[{"id":"d:X","name":"X","type":"string","transform_ref":"t:m","inputs":[],"params":{"a":1.5}}]}`
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("expected error for float params")
	}
}

func TestParseRejectsBadTransformRefPrefix(t *testing.T) {
	t.Parallel()

	doc := `{"spec_version":"0.7","study_id":"S","source_table":"t","sources":[],
		"derived":[{"id":"d:X","name":"X","type":"string","transform_ref":"copy","inputs":[]}]}`
	_, err := Parse([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "transform_ref") {
		t.Fatalf("Parse() error = %v, want transform_ref error", err)
	}
}
