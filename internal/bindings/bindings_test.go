package bindings

import (
	"testing"

	"github.com/cheshbon/cheshbon/internal/spec"
)

func TestCheckMissingBindings(t *testing.T) {
	t.Parallel()

	s, err := spec.Parse([]byte(`{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"A","type":"string"},{"id":"s:B","name":"B","type":"string"}],
		"derived":[{"id":"d:X","name":"X","type":"string","transform_ref":"t:m","inputs":["s:A","s:B"]}]}`))
	if err != nil {
		t.Fatal(err)
	}
	b := &Bindings{Table: "t", Bindings: map[string]string{"COL_A": "s:A"}}

	missing := CheckMissingBindings(s, b)
	if !missing["d:X"]["s:B"] {
		t.Errorf("missing[d:X] = %v, want {s:B}", missing["d:X"])
	}
	if missing["d:X"]["s:A"] {
		t.Errorf("s:A should not be missing, it is bound")
	}
}

func TestCheckAmbiguousBindings(t *testing.T) {
	t.Parallel()

	b := &Bindings{Table: "t", Bindings: map[string]string{"COL1": "s:A", "COL2": "s:A"}}
	ambiguous := CheckAmbiguousBindings(b)
	cols, ok := ambiguous["s:A"]
	if !ok {
		t.Fatal("expected s:A to be ambiguous")
	}
	if len(cols) != 2 || cols[0] != "COL1" || cols[1] != "COL2" {
		t.Errorf("cols = %v, want sorted [COL1 COL2]", cols)
	}
}

func TestValidateDetectsInvalidBinding(t *testing.T) {
	t.Parallel()

	schema := &RawSchema{Table: "t", Columns: []RawColumn{{Name: "COL_A", Type: "string"}}}
	b := &Bindings{Table: "t", Bindings: map[string]string{"COL_MISSING": "s:A"}}

	events, unmapped := Validate(schema, b)
	if len(events) != 1 || events[0].EventType != BindingInvalid {
		t.Fatalf("events = %v, want single BINDING_INVALID", events)
	}
	if !unmapped["COL_A"] {
		t.Errorf("unmapped = %v, want COL_A present", unmapped)
	}
}
