package diff

import (
	"testing"

	"github.com/cheshbon/cheshbon/internal/registry"
	"github.com/cheshbon/cheshbon/internal/spec"
)

func mustParseSpec(t *testing.T, doc string) *spec.MappingSpec {
	t.Helper()
	s, err := spec.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("spec.Parse() error = %v", err)
	}
	return s
}

func TestDiffSpecsDetectsSourceRename(t *testing.T) {
	t.Parallel()

	v1 := mustParseSpec(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"old_name","type":"string"}],"derived":[]}`)
	v2 := mustParseSpec(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"new_name","type":"string"}],"derived":[]}`)

	events := DiffSpecs(v1, v2)
	if len(events) != 1 {
		t.Fatalf("events = %v, want 1 event", events)
	}
	if events[0].ChangeType != SourceRenamed {
		t.Errorf("ChangeType = %s, want SOURCE_RENAMED", events[0].ChangeType)
	}
}

func TestDiffSpecsTransformRefChangeSkipsParamsCheck(t *testing.T) {
	t.Parallel()

	v1 := mustParseSpec(t, `{"spec_version":"0.7","study_id":"S","source_table":"t","sources":[],
		"derived":[{"id":"d:X","name":"X","type":"string","transform_ref":"t:a","inputs":[],"params":{"x":1}}]}`)
	v2 := mustParseSpec(t, `{"spec_version":"0.7","study_id":"S","source_table":"t","sources":[],
		"derived":[{"id":"d:X","name":"X","type":"string","transform_ref":"t:b","inputs":[],"params":{"y":2}}]}`)

	events := DiffSpecs(v1, v2)
	for _, e := range events {
		if e.ChangeType == DerivedTransformParamsChanged {
			t.Fatal("expected no DERIVED_TRANSFORM_PARAMS_CHANGED event when transform_ref also changed")
		}
	}
	found := false
	for _, e := range events {
		if e.ChangeType == DerivedTransformRefChanged {
			found = true
		}
	}
	if !found {
		t.Fatal("expected DERIVED_TRANSFORM_REF_CHANGED event")
	}
}

func TestDiffSpecsDetectsParamsChangeWhenRefUnchanged(t *testing.T) {
	t.Parallel()

	v1 := mustParseSpec(t, `{"spec_version":"0.7","study_id":"S","source_table":"t","sources":[],
		"derived":[{"id":"d:X","name":"X","type":"string","transform_ref":"t:a","inputs":[],"params":{"x":1}}]}`)
	v2 := mustParseSpec(t, `{"spec_version":"0.7","study_id":"S","source_table":"t","sources":[],
		"derived":[{"id":"d:X","name":"X","type":"string","transform_ref":"t:a","inputs":[],"params":{"x":2}}]}`)

	events := DiffSpecs(v1, v2)
	if len(events) != 1 || events[0].ChangeType != DerivedTransformParamsChanged {
		t.Fatalf("events = %v, want single DERIVED_TRANSFORM_PARAMS_CHANGED", events)
	}
}

func TestDiffRegistriesIgnoresVersionOnlyChange(t *testing.T) {
	t.Parallel()

	digest := rep64("a")
	v1, err := registry.Parse([]byte(`{"registry_version":"1","transforms":[
		{"id":"t:x","version":"1.0.0","kind":"builtin","signature":{"inputs":[],"output":"string"},
		 "impl_fingerprint":{"algo":"sha256","source":"builtin","ref":"x","digest":"` + digest + `"}}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	v2, err := registry.Parse([]byte(`{"registry_version":"1","transforms":[
		{"id":"t:x","version":"2.0.0","kind":"builtin","signature":{"inputs":[],"output":"string"},
		 "impl_fingerprint":{"algo":"sha256","source":"builtin","ref":"x","digest":"` + digest + `"}}
	]}`))
	if err != nil {
		t.Fatal(err)
	}

	events := DiffRegistries(v1, v2)
	if len(events) != 0 {
		t.Errorf("events = %v, want none (version-only change is informational)", events)
	}
}

func TestDiffRegistriesDetectsImplChange(t *testing.T) {
	t.Parallel()

	v1, err := registry.Parse([]byte(`{"registry_version":"1","transforms":[
		{"id":"t:x","version":"1.0.0","kind":"builtin","signature":{"inputs":[],"output":"string"},
		 "impl_fingerprint":{"algo":"sha256","source":"builtin","ref":"x","digest":"` + rep64("a") + `"}}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	v2, err := registry.Parse([]byte(`{"registry_version":"1","transforms":[
		{"id":"t:x","version":"1.0.0","kind":"builtin","signature":{"inputs":[],"output":"string"},
		 "impl_fingerprint":{"algo":"sha256","source":"builtin","ref":"x","digest":"` + rep64("b") + `"}}
	]}`))
	if err != nil {
		t.Fatal(err)
	}

	events := DiffRegistries(v1, v2)
	if len(events) != 1 || events[0].ChangeType != TransformImplChanged {
		t.Fatalf("events = %v, want single TRANSFORM_IMPL_CHANGED", events)
	}
}

func TestMergeAndSortOrdersByElementThenPriority(t *testing.T) {
	t.Parallel()

	specEvents := []ChangeEvent{
		{ChangeType: DerivedRenamed, ElementID: "d:x"},
		{ChangeType: DerivedAdded, ElementID: "d:x"},
	}
	registryEvents := []ChangeEvent{
		{ChangeType: TransformAdded, ElementID: "t:z"},
	}

	got := MergeAndSort(specEvents, registryEvents)
	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3", len(got))
	}
	if got[0].ElementID != "d:x" || got[0].ChangeType != DerivedAdded {
		t.Errorf("got[0] = %+v, want DERIVED_ADDED before DERIVED_RENAMED for d:x", got[0])
	}
	if got[2].ElementID != "t:z" {
		t.Errorf("got[2].ElementID = %s, want t:z", got[2].ElementID)
	}
}

func rep64(s string) string {
	out := make([]byte, 0, 64)
	for i := 0; i < 64; i++ {
		out = append(out, s...)
	}
	return string(out)
}
