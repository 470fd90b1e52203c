// Package spec loads and validates mapping specifications: the declarative
// raw-column -> derived-variable -> constraint documents that the rest of
// Cheshbon diffs and analyzes.
package spec

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cheshbon/cheshbon/internal/canon"
)

const (
	// maxParamsBytes is the hard limit on a derived variable's canonical
	// params size; exceeding it is a construction error.
	maxParamsBytes = 50_000
	// advisoryParamsBytes is the soft limit that produces a PARAMS_LARGE
	// warning from Validate, not a construction error.
	advisoryParamsBytes = 10_000
)

// SourceColumn is a raw column available to the mapping.
type SourceColumn struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ConstraintNode is a derived node with a boolean output: modeling it as a
// derived-style node lets it share the graph, diff, and impact machinery.
type ConstraintNode struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Inputs     []string `json:"inputs"`
	Expression *string  `json:"expression,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}

// DerivedVariable is computed from inputs by a named transform.
type DerivedVariable struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	TransformRef string          `json:"transform_ref"`
	Inputs       []string        `json:"inputs"`
	Params       json.RawMessage `json:"params,omitempty"`
	Notes        *string         `json:"notes,omitempty"`

	// ParamsHash is computed at load time from the canonical JSON of
	// Params (an empty mapping when Params is absent). It is never part
	// of the wire document.
	ParamsHash string `json:"-"`
}

// MappingSpec is a full mapping specification: sources, derived variables,
// and constraints, plus non-impacting review metadata.
type MappingSpec struct {
	SpecVersion  string            `json:"spec_version"`
	StudyID      string            `json:"study_id"`
	SourceTable  string            `json:"source_table"`
	Sources      []SourceColumn    `json:"sources"`
	Derived      []DerivedVariable `json:"derived"`
	Constraints  []ConstraintNode  `json:"constraints,omitempty"`
	Review       json.RawMessage   `json:"review,omitempty"`

	// SchemaVersionImplicit is true when the document omitted
	// spec_version or gave it as "0.6": either way it was read as "0.6"
	// and normalized in memory to "0.7" without rewriting stored bytes.
	SchemaVersionImplicit bool `json:"-"`
}

var allowedTopLevelFields = map[string]bool{
	"spec_version": true, "study_id": true, "source_table": true,
	"sources": true, "derived": true, "constraints": true, "review": true,
}

// Parse decodes and validates a mapping specification document. Unknown
// top-level fields are rejected, and input canonicalization, transform_ref
// shape, and params canonicalization/hashing all happen here at parse
// time. Duplicate-id detection is not done here: it happens in the
// graph/validate layer, which needs the full id set across entity classes.
func Parse(data []byte) (*MappingSpec, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("spec: invalid JSON: %w", err)
	}
	for k := range raw {
		if !allowedTopLevelFields[k] {
			return nil, fmt.Errorf("spec: unknown top-level field %q", k)
		}
	}

	type wire struct {
		SpecVersion string            `json:"spec_version"`
		StudyID     string            `json:"study_id"`
		SourceTable string            `json:"source_table"`
		Sources     []SourceColumn    `json:"sources"`
		Derived     []DerivedVariable `json:"derived"`
		Constraints []ConstraintNode  `json:"constraints"`
		Review      json.RawMessage   `json:"review"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("spec: invalid JSON: %w", err)
	}

	s := &MappingSpec{
		SpecVersion: w.SpecVersion,
		StudyID:     w.StudyID,
		SourceTable: w.SourceTable,
		Sources:     w.Sources,
		Derived:     w.Derived,
		Constraints: w.Constraints,
		Review:      w.Review,
	}
	if s.SpecVersion == "" {
		s.SpecVersion = "0.7"
		s.SchemaVersionImplicit = true
	} else if s.SpecVersion == "0.6" {
		s.SpecVersion = "0.7"
		s.SchemaVersionImplicit = true
	}

	for i := range s.Derived {
		d := &s.Derived[i]
		if err := validatePrefixedID(d.TransformRef, "t:"); err != nil {
			return nil, fmt.Errorf("spec: derived %q: transform_ref: %w", d.ID, err)
		}
		inputs, err := canonicalizeInputs(d.Inputs)
		if err != nil {
			return nil, fmt.Errorf("spec: derived %q: %w", d.ID, err)
		}
		d.Inputs = inputs

		if err := checkParamsSize(d.Params); err != nil {
			return nil, fmt.Errorf("spec: derived %q: %w", d.ID, err)
		}
		hash, err := paramsHash(d.Params)
		if err != nil {
			return nil, fmt.Errorf("spec: derived %q: %w", d.ID, err)
		}
		d.ParamsHash = hash
	}

	for i := range s.Constraints {
		c := &s.Constraints[i]
		if err := validatePrefixedID(c.ID, "c:"); err != nil {
			return nil, fmt.Errorf("spec: constraint: %w", err)
		}
		inputs, err := canonicalizeInputs(c.Inputs)
		if err != nil {
			return nil, fmt.Errorf("spec: constraint %q: %w", c.ID, err)
		}
		c.Inputs = inputs
	}

	return s, nil
}

func validatePrefixedID(id, prefix string) error {
	if len(id) <= len(prefix) || id[:len(prefix)] != prefix {
		return fmt.Errorf("%q must start with %q", id, prefix)
	}
	return nil
}

// canonicalizeInputs validates every input has a recognized prefix,
// rejects duplicates, and returns a sorted, duplicate-free copy.
func canonicalizeInputs(inputs []string) ([]string, error) {
	for _, in := range inputs {
		if !hasAnyPrefix(in, "s:", "d:", "v:", "c:") {
			return nil, fmt.Errorf("input %q must start with 's:', 'd:', 'v:', or 'c:'", in)
		}
	}

	seen := make(map[string]bool, len(inputs))
	var duplicates []string
	for _, in := range inputs {
		if seen[in] {
			duplicates = append(duplicates, in)
		}
		seen[in] = true
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return nil, fmt.Errorf("duplicate inputs not allowed: %v", duplicates)
	}

	out := append([]string(nil), inputs...)
	sort.Strings(out)
	return out, nil
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) > len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

func checkParamsSize(params json.RawMessage) error {
	if len(params) == 0 {
		return nil
	}
	v, err := canon.DecodeJSON(params)
	if err != nil {
		return fmt.Errorf("params: %w", err)
	}
	b, err := canon.Canonicalize(v)
	if err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if len(b) > maxParamsBytes {
		return fmt.Errorf("params exceed size limit (%d bytes); got %d bytes (canonical JSON)", maxParamsBytes, len(b))
	}
	return nil
}

// paramsHash computes params_hash from the canonical JSON of params (an
// empty mapping when params is absent).
func paramsHash(params json.RawMessage) (string, error) {
	if len(params) == 0 {
		return canon.SHA256Canonical(map[string]any{})
	}
	v, err := canon.DecodeJSON(params)
	if err != nil {
		return "", fmt.Errorf("params: %w", err)
	}
	return canon.SHA256Canonical(v)
}

// ParamsAdvisoryBytes returns the canonical byte length of a derived
// variable's params, for the PARAMS_LARGE advisory check. Returns 0 when
// params is absent.
func ParamsAdvisoryBytes(params json.RawMessage) (int, error) {
	if len(params) == 0 {
		return 0, nil
	}
	v, err := canon.DecodeJSON(params)
	if err != nil {
		return 0, err
	}
	b, err := canon.Canonicalize(v)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// AdvisoryParamsLimit is the §4.1 threshold above which Validate emits a
// PARAMS_LARGE warning (not a construction error).
const AdvisoryParamsLimit = advisoryParamsBytes

// SourceIDs returns the set of source column ids.
func (s *MappingSpec) SourceIDs() map[string]bool {
	out := make(map[string]bool, len(s.Sources))
	for _, c := range s.Sources {
		out[c.ID] = true
	}
	return out
}

// DerivedIDs returns the set of derived variable ids.
func (s *MappingSpec) DerivedIDs() map[string]bool {
	out := make(map[string]bool, len(s.Derived))
	for _, d := range s.Derived {
		out[d.ID] = true
	}
	return out
}

// ConstraintIDs returns the set of constraint node ids.
func (s *MappingSpec) ConstraintIDs() map[string]bool {
	out := make(map[string]bool, len(s.Constraints))
	for _, c := range s.Constraints {
		out[c.ID] = true
	}
	return out
}

// AllIDs returns the union of sources, derived variables, and constraints.
func (s *MappingSpec) AllIDs() map[string]bool {
	out := s.SourceIDs()
	for id := range s.DerivedIDs() {
		out[id] = true
	}
	for id := range s.ConstraintIDs() {
		out[id] = true
	}
	return out
}

// DerivedByID finds a derived variable by id.
func (s *MappingSpec) DerivedByID(id string) (*DerivedVariable, bool) {
	for i := range s.Derived {
		if s.Derived[i].ID == id {
			return &s.Derived[i], true
		}
	}
	return nil, false
}

// ConstraintByID finds a constraint node by id.
func (s *MappingSpec) ConstraintByID(id string) (*ConstraintNode, bool) {
	for i := range s.Constraints {
		if s.Constraints[i].ID == id {
			return &s.Constraints[i], true
		}
	}
	return nil, false
}

// SourceByID finds a source column by id.
func (s *MappingSpec) SourceByID(id string) (*SourceColumn, bool) {
	for i := range s.Sources {
		if s.Sources[i].ID == id {
			return &s.Sources[i], true
		}
	}
	return nil, false
}
