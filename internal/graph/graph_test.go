package graph

import (
	"testing"

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

func TestBuildDetectsMissingDependency(t *testing.T) {
	t.Parallel()

	s := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[],"derived":[{"id":"d:X","name":"X","type":"string","transform_ref":"t:m","inputs":["s:NOPE"]}]}`)

	_, err := Build(s)
	if err == nil {
		t.Fatal("expected MissingDependenciesError")
	}
	if _, ok := err.(*MissingDependenciesError); !ok {
		t.Errorf("error type = %T, want *MissingDependenciesError", err)
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	t.Parallel()

	s := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[],
		"derived":[
			{"id":"d:A","name":"A","type":"string","transform_ref":"t:m","inputs":["d:B"]},
			{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","inputs":["d:A"]}
		]}`)

	_, err := Build(s)
	if err == nil {
		t.Fatal("expected CycleDetectedError")
	}
	cerr, ok := err.(*CycleDetectedError)
	if !ok {
		t.Fatalf("error type = %T, want *CycleDetectedError", err)
	}
	if len(cerr.Cycle) != 2 || cerr.Cycle[0] != "d:A" {
		t.Errorf("Cycle = %v, want rotated to start at d:A", cerr.Cycle)
	}
}

func TestGetDependencyPathFindsShortestPath(t *testing.T) {
	t.Parallel()

	s := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"A","type":"string"}],
		"derived":[
			{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","inputs":["s:A"]},
			{"id":"d:C","name":"C","type":"string","transform_ref":"t:m","inputs":["d:B"]}
		]}`)
	g, err := Build(s)
	if err != nil {
		t.Fatal(err)
	}

	path := g.GetDependencyPath("s:A", "d:C")
	want := []string{"s:A", "d:B", "d:C"}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}
}

func TestCountAlternativePathsDiamond(t *testing.T) {
	t.Parallel()

	s := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"A","type":"string"}],
		"derived":[
			{"id":"d:B1","name":"B1","type":"string","transform_ref":"t:m","inputs":["s:A"]},
			{"id":"d:B2","name":"B2","type":"string","transform_ref":"t:m","inputs":["s:A"]},
			{"id":"d:C","name":"C","type":"string","transform_ref":"t:m","inputs":["d:B1","d:B2"]}
		]}`)
	g, err := Build(s)
	if err != nil {
		t.Fatal(err)
	}

	if got := g.CountAlternativePaths("s:A", "d:C"); got != 1 {
		t.Errorf("CountAlternativePaths = %d, want 1 (two disjoint paths of equal length)", got)
	}
}

func TestGetTransitiveDependentsExcludesSelf(t *testing.T) {
	t.Parallel()

	s := mustParse(t, `{"spec_version":"0.7","study_id":"S","source_table":"t",
		"sources":[{"id":"s:A","name":"A","type":"string"}],
		"derived":[{"id":"d:B","name":"B","type":"string","transform_ref":"t:m","inputs":["s:A"]}]}`)
	g, err := Build(s)
	if err != nil {
		t.Fatal(err)
	}

	deps := g.GetTransitiveDependents("s:A")
	if !deps["d:B"] || deps["s:A"] {
		t.Errorf("GetTransitiveDependents(s:A) = %v, want {d:B}", deps)
	}
}
