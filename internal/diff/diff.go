// Package diff computes the structural diff between two mapping
// specifications, and between two transform registries, producing the
// ordered change events the rest of Cheshbon drives impact analysis from.
package diff

import (
	"encoding/json"
	"sort"

	"github.com/cheshbon/cheshbon/internal/registry"
	"github.com/cheshbon/cheshbon/internal/spec"
)

// ChangeType is the closed set of structural change events.
type ChangeType string

const (
	SourceRenamed ChangeType = "SOURCE_RENAMED"
	SourceRemoved ChangeType = "SOURCE_REMOVED"
	SourceAdded   ChangeType = "SOURCE_ADDED"

	DerivedRenamed                ChangeType = "DERIVED_RENAMED"
	DerivedRemoved                ChangeType = "DERIVED_REMOVED"
	DerivedAdded                  ChangeType = "DERIVED_ADDED"
	DerivedTransformRefChanged    ChangeType = "DERIVED_TRANSFORM_REF_CHANGED"
	DerivedTransformParamsChanged ChangeType = "DERIVED_TRANSFORM_PARAMS_CHANGED"
	DerivedTypeChanged            ChangeType = "DERIVED_TYPE_CHANGED"
	DerivedInputsChanged          ChangeType = "DERIVED_INPUTS_CHANGED"

	ConstraintRenamed           ChangeType = "CONSTRAINT_RENAMED"
	ConstraintRemoved           ChangeType = "CONSTRAINT_REMOVED"
	ConstraintAdded             ChangeType = "CONSTRAINT_ADDED"
	ConstraintInputsChanged     ChangeType = "CONSTRAINT_INPUTS_CHANGED"
	ConstraintExpressionChanged ChangeType = "CONSTRAINT_EXPRESSION_CHANGED"

	TransformImplChanged ChangeType = "TRANSFORM_IMPL_CHANGED"
	TransformAdded       ChangeType = "TRANSFORM_ADDED"
	TransformRemoved     ChangeType = "TRANSFORM_REMOVED"
)

// changeTypePriority breaks ties within an element_id group. Unlisted
// change types (there are none today) sort last.
var changeTypePriority = map[ChangeType]int{
	SourceRemoved: 10, SourceAdded: 20, SourceRenamed: 30,
	DerivedRemoved: 10, DerivedAdded: 20, DerivedRenamed: 30,
	DerivedTransformRefChanged: 40, DerivedTransformParamsChanged: 50,
	DerivedTypeChanged: 60, DerivedInputsChanged: 70,
	ConstraintRemoved: 10, ConstraintAdded: 20, ConstraintRenamed: 30,
	ConstraintInputsChanged: 40, ConstraintExpressionChanged: 50,
	TransformRemoved: 10, TransformAdded: 20, TransformImplChanged: 30,
}

// ChangeEvent is a single structural change between two document versions.
type ChangeEvent struct {
	ChangeType ChangeType     `json:"change_type"`
	ElementID  string         `json:"element_id"`
	OldValue   *string        `json:"old_value,omitempty"`
	NewValue   *string        `json:"new_value,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

func strp(s string) *string { return &s }

// DiffSpecs computes the structural diff between two mapping specs. Both
// specs must already have canonicalized inputs (Parse does this).
func DiffSpecs(v1, v2 *spec.MappingSpec) []ChangeEvent {
	var events []ChangeEvent

	sourcesV1 := make(map[string]spec.SourceColumn, len(v1.Sources))
	for _, s := range v1.Sources {
		sourcesV1[s.ID] = s
	}
	sourcesV2 := make(map[string]spec.SourceColumn, len(v2.Sources))
	for _, s := range v2.Sources {
		sourcesV2[s.ID] = s
	}
	derivedV1 := make(map[string]spec.DerivedVariable, len(v1.Derived))
	for _, d := range v1.Derived {
		derivedV1[d.ID] = d
	}
	derivedV2 := make(map[string]spec.DerivedVariable, len(v2.Derived))
	for _, d := range v2.Derived {
		derivedV2[d.ID] = d
	}
	constraintsV1 := make(map[string]spec.ConstraintNode, len(v1.Constraints))
	for _, c := range v1.Constraints {
		constraintsV1[c.ID] = c
	}
	constraintsV2 := make(map[string]spec.ConstraintNode, len(v2.Constraints))
	for _, c := range v2.Constraints {
		constraintsV2[c.ID] = c
	}

	for id, s := range sourcesV1 {
		if _, ok := sourcesV2[id]; !ok {
			events = append(events, ChangeEvent{ChangeType: SourceRemoved, ElementID: id, OldValue: strp(s.Name)})
		}
	}
	for id, s := range sourcesV2 {
		if _, ok := sourcesV1[id]; !ok {
			events = append(events, ChangeEvent{ChangeType: SourceAdded, ElementID: id, NewValue: strp(s.Name)})
		}
	}
	for id, s1 := range sourcesV1 {
		if s2, ok := sourcesV2[id]; ok && s1.Name != s2.Name {
			events = append(events, ChangeEvent{ChangeType: SourceRenamed, ElementID: id, OldValue: strp(s1.Name), NewValue: strp(s2.Name)})
		}
	}

	for id, d := range derivedV1 {
		if _, ok := derivedV2[id]; !ok {
			events = append(events, ChangeEvent{ChangeType: DerivedRemoved, ElementID: id, OldValue: strp(d.Name)})
		}
	}
	for id, d := range derivedV2 {
		if _, ok := derivedV1[id]; !ok {
			events = append(events, ChangeEvent{ChangeType: DerivedAdded, ElementID: id, NewValue: strp(d.Name)})
		}
	}
	for id, d1 := range derivedV1 {
		d2, ok := derivedV2[id]
		if !ok {
			continue
		}
		if d1.Name != d2.Name {
			events = append(events, ChangeEvent{ChangeType: DerivedRenamed, ElementID: id, OldValue: strp(d1.Name), NewValue: strp(d2.Name)})
		}
		if d1.TransformRef != d2.TransformRef {
			// Params are transform-specific; when the ref itself changes,
			// params_hash is not comparable across transforms and is not
			// checked. The new ref's existence in a registry is validated
			// separately, not here.
			events = append(events, ChangeEvent{ChangeType: DerivedTransformRefChanged, ElementID: id, OldValue: strp(d1.TransformRef), NewValue: strp(d2.TransformRef)})
		} else if d1.ParamsHash != d2.ParamsHash {
			events = append(events, ChangeEvent{
				ChangeType: DerivedTransformParamsChanged, ElementID: id,
				OldValue: strp(d1.ParamsHash), NewValue: strp(d2.ParamsHash),
				Details: map[string]any{"transform_ref": d1.TransformRef},
			})
		}
		if d1.Type != d2.Type {
			events = append(events, ChangeEvent{ChangeType: DerivedTypeChanged, ElementID: id, OldValue: strp(d1.Type), NewValue: strp(d2.Type)})
		}
		if !stringsEqual(d1.Inputs, d2.Inputs) {
			events = append(events, ChangeEvent{
				ChangeType: DerivedInputsChanged, ElementID: id,
				OldValue: strp(mustJSON(d1.Inputs)), NewValue: strp(mustJSON(d2.Inputs)),
				Details: map[string]any{"old_inputs": d1.Inputs, "new_inputs": d2.Inputs},
			})
		}
	}

	for id, c := range constraintsV1 {
		if _, ok := constraintsV2[id]; !ok {
			events = append(events, ChangeEvent{ChangeType: ConstraintRemoved, ElementID: id, OldValue: strp(c.Name)})
		}
	}
	for id, c := range constraintsV2 {
		if _, ok := constraintsV1[id]; !ok {
			events = append(events, ChangeEvent{ChangeType: ConstraintAdded, ElementID: id, NewValue: strp(c.Name)})
		}
	}
	for id, c1 := range constraintsV1 {
		c2, ok := constraintsV2[id]
		if !ok {
			continue
		}
		if c1.Name != c2.Name {
			events = append(events, ChangeEvent{ChangeType: ConstraintRenamed, ElementID: id, OldValue: strp(c1.Name), NewValue: strp(c2.Name)})
		}
		if !stringsEqual(c1.Inputs, c2.Inputs) {
			events = append(events, ChangeEvent{
				ChangeType: ConstraintInputsChanged, ElementID: id,
				OldValue: strp(mustJSON(c1.Inputs)), NewValue: strp(mustJSON(c2.Inputs)),
				Details: map[string]any{"old_inputs": c1.Inputs, "new_inputs": c2.Inputs},
			})
		}
		if exprOrEmpty(c1.Expression) != exprOrEmpty(c2.Expression) {
			events = append(events, ChangeEvent{ChangeType: ConstraintExpressionChanged, ElementID: id, OldValue: strp(exprOrEmpty(c1.Expression)), NewValue: strp(exprOrEmpty(c2.Expression))})
		}
	}

	return events
}

// DiffRegistries computes the structural diff between two transform
// registries. Only impl_fingerprint.digest is authoritative; version,
// source, ref, and algo are informational and never trigger an event on
// their own.
func DiffRegistries(v1, v2 *registry.TransformRegistry) []ChangeEvent {
	var events []ChangeEvent

	transformsV1 := make(map[string]registry.TransformEntry, len(v1.Transforms))
	for _, t := range v1.Transforms {
		transformsV1[t.ID] = t
	}
	transformsV2 := make(map[string]registry.TransformEntry, len(v2.Transforms))
	for _, t := range v2.Transforms {
		transformsV2[t.ID] = t
	}

	for id, t := range transformsV2 {
		if _, ok := transformsV1[id]; !ok {
			var nv *string
			if t.Version != "" {
				nv = strp(t.Version)
			}
			events = append(events, ChangeEvent{ChangeType: TransformAdded, ElementID: id, NewValue: nv})
		}
	}
	for id, t := range transformsV1 {
		if _, ok := transformsV2[id]; !ok {
			var ov *string
			if t.Version != "" {
				ov = strp(t.Version)
			}
			events = append(events, ChangeEvent{ChangeType: TransformRemoved, ElementID: id, OldValue: ov})
		}
	}

	var common []string
	for id := range transformsV1 {
		if _, ok := transformsV2[id]; ok {
			common = append(common, id)
		}
	}
	sort.Strings(common)
	for _, id := range common {
		t1 := transformsV1[id]
		t2 := transformsV2[id]
		if t1.ImplFingerprint.Digest == t2.ImplFingerprint.Digest {
			continue
		}
		details := map[string]any{
			"old_source": t1.ImplFingerprint.Source,
			"new_source": t2.ImplFingerprint.Source,
			"old_ref":    t1.ImplFingerprint.Ref,
			"new_ref":    t2.ImplFingerprint.Ref,
		}
		if t1.Version != "" {
			details["old_version"] = t1.Version
		}
		if t2.Version != "" {
			details["new_version"] = t2.Version
		}
		events = append(events, ChangeEvent{
			ChangeType: TransformImplChanged, ElementID: id,
			OldValue: strp(t1.ImplFingerprint.Digest), NewValue: strp(t2.ImplFingerprint.Digest),
			Details: details,
		})
	}

	return events
}

// ValidateTransformRefs reports every derived variable whose transform_ref
// is absent from reg, as a descriptive error. It never stops processing:
// the caller marks the run validation_failed but continues impact analysis.
func ValidateTransformRefs(s *spec.MappingSpec, reg *registry.TransformRegistry) []string {
	if reg == nil {
		return nil
	}
	var errs []string
	for _, d := range s.Derived {
		if !reg.HasTransform(d.TransformRef) {
			errs = append(errs, "derived variable '"+d.ID+"' ("+d.Name+") references missing transform '"+d.TransformRef+"'. Transform not found in registry.")
		}
	}
	return errs
}

// MergeAndSort combines spec-diff events with registry-diff events using the
// two-stage order: registry events are first sorted locally by element_id
// and prepended, then the full combined list is sorted by the canonical
// global key (element_id, change-type priority within its element, change
// type, old value, new value).
func MergeAndSort(specEvents, registryEvents []ChangeEvent) []ChangeEvent {
	sortedRegistry := append([]ChangeEvent(nil), registryEvents...)
	sort.SliceStable(sortedRegistry, func(i, j int) bool {
		return sortedRegistry[i].ElementID < sortedRegistry[j].ElementID
	})

	combined := append(append([]ChangeEvent(nil), sortedRegistry...), specEvents...)
	sort.SliceStable(combined, func(i, j int) bool {
		a, b := combined[i], combined[j]
		if a.ElementID != b.ElementID {
			return a.ElementID < b.ElementID
		}
		pa, pb := priority(a.ChangeType), priority(b.ChangeType)
		if pa != pb {
			return pa < pb
		}
		if a.ChangeType != b.ChangeType {
			return a.ChangeType < b.ChangeType
		}
		ao, bo := valueOr(a.OldValue), valueOr(b.OldValue)
		if ao != bo {
			return ao < bo
		}
		return valueOr(a.NewValue) < valueOr(b.NewValue)
	})
	return combined
}

func priority(t ChangeType) int {
	if p, ok := changeTypePriority[t]; ok {
		return p
	}
	return 999
}

func valueOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func exprOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		// v is always []string; Marshal cannot fail on it.
		panic(err)
	}
	return string(b)
}
