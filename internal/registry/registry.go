// Package registry loads and validates transform registries: the versioned
// catalog of named transforms a mapping specification's derived variables
// reference by id.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TransformKind is the closed set of transform implementation kinds.
type TransformKind string

const (
	KindBuiltin     TransformKind = "builtin"
	KindExternalSAS TransformKind = "external_sas"
	KindExternalPy  TransformKind = "external_py"
	KindTemplateSAS TransformKind = "template_sas"
)

// ImplFingerprintSource is the closed set of places an implementation's
// content can be sourced from.
type ImplFingerprintSource string

const (
	SourceBuiltin     ImplFingerprintSource = "builtin"
	SourceExternalSAS ImplFingerprintSource = "external_sas"
	SourceExternalPy  ImplFingerprintSource = "external_py"
	SourceTemplateSAS ImplFingerprintSource = "template_sas"
	SourceFile        ImplFingerprintSource = "file"
	SourceGit         ImplFingerprintSource = "git"
)

// Signature describes a transform's input/output types.
type Signature struct {
	Inputs []string `json:"inputs"`
	Output string   `json:"output"`
}

// ImplFingerprint locates a transform's implementation content. Only Digest
// participates in TRANSFORM_IMPL_CHANGED detection; the other fields are
// informational.
type ImplFingerprint struct {
	Algo   string                `json:"algo"`
	Source ImplFingerprintSource `json:"source"`
	Ref    string                `json:"ref"`
	Digest string                `json:"digest"` // bare 64-hex, never prefixed
}

// HistorySnapshot is an immutable, append-only record of a transform's
// state at a point in time.
type HistorySnapshot struct {
	Timestamp        string          `json:"timestamp"`
	ImplFingerprint  ImplFingerprint `json:"impl_fingerprint"`
	ParamsSchemaHash *string         `json:"params_schema_hash,omitempty"`
	ChangeReason     *string         `json:"change_reason,omitempty"`
}

// TransformEntry is one registry entry.
type TransformEntry struct {
	ID               string            `json:"id"`
	Version          string            `json:"version"` // informational only
	Kind             TransformKind     `json:"kind"`
	Signature        Signature         `json:"signature"`
	ParamsSchemaHash *string           `json:"params_schema_hash,omitempty"`
	ImplFingerprint  ImplFingerprint   `json:"impl_fingerprint"`
	History          []HistorySnapshot `json:"history,omitempty"`
}

// AddHistoryEntry returns a NEW TransformEntry with a snapshot of the
// current impl_fingerprint/params_schema_hash appended to history. The
// receiver is never mutated: History is copied, not grown in place.
func (e TransformEntry) AddHistoryEntry(timestamp string, changeReason *string) TransformEntry {
	snapshot := HistorySnapshot{
		Timestamp:        timestamp,
		ImplFingerprint:  e.ImplFingerprint,
		ParamsSchemaHash: e.ParamsSchemaHash,
		ChangeReason:     changeReason,
	}
	newHistory := make([]HistorySnapshot, len(e.History), len(e.History)+1)
	copy(newHistory, e.History)
	newHistory = append(newHistory, snapshot)

	out := e
	out.History = newHistory
	return out
}

// TransformRegistry is a versioned catalog of transforms with globally
// unique ids.
type TransformRegistry struct {
	RegistryVersion string           `json:"registry_version"`
	Transforms      []TransformEntry `json:"transforms"`
}

// DuplicateTransformIDError is a construction error: two entries share an id.
type DuplicateTransformIDError struct {
	Duplicates []string
}

func (e *DuplicateTransformIDError) Error() string {
	return fmt.Sprintf("duplicate transform IDs found: %v; transform IDs must be globally unique within a registry", e.Duplicates)
}

var allowedTopLevelFields = map[string]bool{"registry_version": true, "transforms": true}

// Parse decodes and validates a transform registry: globally unique ids,
// lowercase-with-underscores id shape, 64-hex digests, and a
// params_schema_hash that is either absent or exactly "sha256:" + 64 hex.
func Parse(data []byte) (*TransformRegistry, error) {
	var rawTop map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawTop); err != nil {
		return nil, fmt.Errorf("registry: invalid JSON: %w", err)
	}
	for k := range rawTop {
		if !allowedTopLevelFields[k] {
			return nil, fmt.Errorf("registry: unknown top-level field %q", k)
		}
	}

	var r TransformRegistry
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("registry: invalid JSON: %w", err)
	}

	for i := range r.Transforms {
		if err := validateEntry(&r.Transforms[i]); err != nil {
			return nil, fmt.Errorf("registry: transform %d: %w", i, err)
		}
	}

	seen := make(map[string]bool, len(r.Transforms))
	var duplicates []string
	for _, t := range r.Transforms {
		if seen[t.ID] {
			duplicates = append(duplicates, t.ID)
		}
		seen[t.ID] = true
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return nil, &DuplicateTransformIDError{Duplicates: duplicates}
	}

	return &r, nil
}

func validateEntry(t *TransformEntry) error {
	if !strings.HasPrefix(t.ID, "t:") {
		return fmt.Errorf("id %q must start with 't:'", t.ID)
	}
	for _, c := range t.ID[2:] {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
			return fmt.Errorf("id %q must be lowercase with underscores", t.ID)
		}
	}
	if t.ParamsSchemaHash != nil {
		h := *t.ParamsSchemaHash
		if !strings.HasPrefix(h, "sha256:") || len(h) != 71 || !isHex(h[7:]) {
			return fmt.Errorf("params_schema_hash must be \"sha256:\" + 64 hex, got %q", h)
		}
	}
	if len(t.ImplFingerprint.Digest) != 64 || !isHex(t.ImplFingerprint.Digest) {
		return fmt.Errorf("impl_fingerprint.digest must be 64 hex characters, got %q", t.ImplFingerprint.Digest)
	}
	return nil
}

func isHex(s string) bool {
	for _, c := range strings.ToLower(s) {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// GetTransform returns the entry for a "t:"-prefixed ref, or ok=false.
func (r *TransformRegistry) GetTransform(ref string) (*TransformEntry, bool) {
	if !strings.HasPrefix(ref, "t:") {
		return nil, false
	}
	for i := range r.Transforms {
		if r.Transforms[i].ID == ref {
			return &r.Transforms[i], true
		}
	}
	return nil, false
}

// HasTransform reports whether ref is present in the registry.
func (r *TransformRegistry) HasTransform(ref string) bool {
	_, ok := r.GetTransform(ref)
	return ok
}

// AllIDs returns every transform id in the registry.
func (r *TransformRegistry) AllIDs() []string {
	out := make([]string, len(r.Transforms))
	for i, t := range r.Transforms {
		out[i] = t.ID
	}
	return out
}
