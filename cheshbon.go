// Package cheshbon is the stable public facade over the kernel packages
// under internal/: Validate, Diff, DiffAllDetails, and VerifyReport, each
// accepting a file path or an already-decoded value for every input
// document (internal/loadinput), mirroring api.py's flexibility.
package cheshbon

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cheshbon/cheshbon/internal/bindings"
	"github.com/cheshbon/cheshbon/internal/canon"
	"github.com/cheshbon/cheshbon/internal/codes"
	"github.com/cheshbon/cheshbon/internal/diff"
	"github.com/cheshbon/cheshbon/internal/diffengine"
	"github.com/cheshbon/cheshbon/internal/diffresult"
	"github.com/cheshbon/cheshbon/internal/graph"
	"github.com/cheshbon/cheshbon/internal/loadinput"
	"github.com/cheshbon/cheshbon/internal/registry"
	"github.com/cheshbon/cheshbon/internal/report"
	"github.com/cheshbon/cheshbon/internal/reportdoctor"
	"github.com/cheshbon/cheshbon/internal/spec"
)

// roundTripJSON re-decodes v through encoding/json so canon.DecodeJSON sees
// only decoded-JSON-shaped values (nil/bool/int/json.Number/string/[]any/
// map[string]any), never a Go struct.
func roundTripJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return canon.DecodeJSON(b)
}

// SpecInput, RegistryInput, BindingsInput, and RawSchemaInput are the
// file-path-or-decoded-value tagged unions every public operation below
// accepts, one per document kind (§6.2).
type (
	SpecInput      = loadinput.Spec
	RegistryInput  = loadinput.Registry
	BindingsInput  = loadinput.Bindings
	RawSchemaInput = loadinput.RawSchema
)

// DetailLevel selects whether Diff computes explanation paths.
type DetailLevel string

const (
	DetailCore DetailLevel = "core"
	DetailFull DetailLevel = "full"
)

// VerifyMode selects how exhaustively VerifyReport checks witnesses.
type VerifyMode string

const (
	VerifySample VerifyMode = "sample"
	VerifyStrict VerifyMode = "strict"
)

// ErrRegistryPairRequired is returned when only one of registryV1/registryV2
// is supplied: registries are bound together, diffed as a pair or not at all.
var ErrRegistryPairRequired = errors.New("cheshbon: registryV1 and registryV2 must both be given, or neither")

// DiffResult is the stable result of Diff.
type DiffResult = diffresult.DiffResult

// ValidationResult is the result of Validate.
type ValidationResult = diffresult.ValidationResult

// AllDetailsReport is the machine-first artifact produced by DiffAllDetails,
// a plain JSON-shaped value (see internal/report.AllDetailsReport).
type AllDetailsReport map[string]any

// FromPath wraps a spec file path to be parsed lazily. FromValue wraps an
// already-parsed spec. Callers outside this module can't reach
// internal/loadinput directly, so the facade re-exports its constructors.
func FromPath(path string) SpecInput          { return loadinput.FromPath(path) }
func FromValue(v *spec.MappingSpec) SpecInput { return loadinput.FromValue(v) }

func RegistryFromPath(path string) RegistryInput { return loadinput.RegistryFromPath(path) }
func RegistryFromValue(v *registry.TransformRegistry) RegistryInput {
	return loadinput.RegistryFromValue(v)
}

func BindingsFromPath(path string) BindingsInput { return loadinput.BindingsFromPath(path) }
func BindingsFromValue(v *bindings.Bindings) BindingsInput {
	return loadinput.BindingsFromValue(v)
}

func RawSchemaFromPath(path string) RawSchemaInput { return loadinput.RawSchemaFromPath(path) }
func RawSchemaFromValue(v *bindings.RawSchema) RawSchemaInput {
	return loadinput.RawSchemaFromValue(v)
}

// VerifyInputs is the set of original documents VerifyReport recomputes an
// independent result from, to check against a report's claims.
type VerifyInputs struct {
	SpecV1      SpecInput
	SpecV2      SpecInput
	RegistryV1  *RegistryInput
	RegistryV2  *RegistryInput
	BindingsV2  *BindingsInput
	RawSchemaV2 *RawSchemaInput
}

func resolveRegistryPair(v1, v2 *RegistryInput) (*registry.TransformRegistry, *registry.TransformRegistry, error) {
	if (v1 == nil) != (v2 == nil) {
		return nil, nil, ErrRegistryPairRequired
	}
	if v1 == nil {
		return nil, nil, nil
	}
	r1, err := v1.Resolve()
	if err != nil {
		return nil, nil, err
	}
	r2, err := v2.Resolve()
	if err != nil {
		return nil, nil, err
	}
	return r1, r2, nil
}

// Diff computes the full diff/impact analysis between two spec versions,
// optionally diffing a registry pair and overlaying a raw-column binding
// set, per §6.1.
func Diff(
	specV1, specV2 SpecInput,
	registryV1, registryV2 *RegistryInput,
	bindingsV2 *BindingsInput,
	detailLevel DetailLevel,
) (DiffResult, error) {
	out, err := computeDiff(specV1, specV2, registryV1, registryV2, bindingsV2, detailLevel == DetailFull)
	if err != nil {
		return DiffResult{}, err
	}
	return *out.DiffResult, nil
}

func computeDiff(
	specV1, specV2 SpecInput,
	registryV1, registryV2 *RegistryInput,
	bindingsV2 *BindingsInput,
	computePaths bool,
) (*diffengine.Output, error) {
	s1, err := specV1.Resolve()
	if err != nil {
		return nil, err
	}
	s2, err := specV2.Resolve()
	if err != nil {
		return nil, err
	}
	r1, r2, err := resolveRegistryPair(registryV1, registryV2)
	if err != nil {
		return nil, err
	}
	var b *bindings.Bindings
	if bindingsV2 != nil {
		b, err = bindingsV2.Resolve()
		if err != nil {
			return nil, err
		}
	}

	return diffengine.Compute(diffengine.Inputs{
		SpecV1: s1, SpecV2: s2,
		RegistryV1: r1, RegistryV2: r2,
		BindingsV2: b,
	}, computePaths)
}

// DiffAllDetails computes the diff/impact analysis and assembles the
// machine-verifiable all-details report (§4.7), independently re-checkable
// via VerifyReport, which re-derives the diff from the original inputs.
func DiffAllDetails(
	specV1, specV2 SpecInput,
	registryV1, registryV2 *RegistryInput,
	bindingsV2 *BindingsInput,
	rawSchemaV2 *RawSchemaInput,
	caps map[string]int,
) (AllDetailsReport, error) {
	out, err := computeDiff(specV1, specV2, registryV1, registryV2, bindingsV2, true)
	if err != nil {
		return nil, err
	}

	inputs := map[string]*report.InputDigest{}
	if d, err := digestInput(specV1); err == nil && d != nil {
		inputs["spec_v1"] = d
	} else if err != nil {
		return nil, err
	}
	if d, err := digestInput(specV2); err == nil && d != nil {
		inputs["spec_v2"] = d
	} else if err != nil {
		return nil, err
	}
	if registryV1 != nil {
		if d, err := digestInput(*registryV1); err == nil && d != nil {
			inputs["registry_v1"] = d
		} else if err != nil {
			return nil, err
		}
	}
	if registryV2 != nil {
		if d, err := digestInput(*registryV2); err == nil && d != nil {
			inputs["registry_v2"] = d
		} else if err != nil {
			return nil, err
		}
	}
	if bindingsV2 != nil {
		if d, err := digestInput(*bindingsV2); err == nil && d != nil {
			inputs["bindings_v2"] = d
		} else if err != nil {
			return nil, err
		}
	}
	if rawSchemaV2 != nil {
		if d, err := digestInput(*rawSchemaV2); err == nil && d != nil {
			inputs["raw_schema_v2"] = d
		} else if err != nil {
			return nil, err
		}
	}

	v1, _ := specV1.Resolve()
	v2, _ := specV2.Resolve()

	doc, err := report.AllDetailsReport(out.DiffResult, inputs, caps,
		transformRefLookup(v1, v2), transformRefLookup(v2, v1))
	if err != nil {
		return nil, err
	}
	return AllDetailsReport(doc), nil
}

// transformRefLookup resolves a derived variable id to its transform_ref,
// preferring primary and falling back to secondary (a variable renamed or
// removed in one version still has its transform_ref in the other).
func transformRefLookup(primary, secondary *spec.MappingSpec) report.TransformRefLookup {
	return func(derivedID string) (string, bool) {
		if primary != nil {
			if d, ok := primary.DerivedByID(derivedID); ok {
				return d.TransformRef, true
			}
		}
		if secondary != nil {
			if d, ok := secondary.DerivedByID(derivedID); ok {
				return d.TransformRef, true
			}
		}
		return "", false
	}
}

// digestInput canonicalizes whichever of Path/Value is set and digests it,
// without requiring the caller to have already resolved it (a facade-level
// convenience; internal/reportdoctor's Inputs require resolved values since
// it's never given a loadinput union).
func digestInput(in any) (*report.InputDigest, error) {
	var v any
	switch t := in.(type) {
	case SpecInput:
		s, err := t.Resolve()
		if err != nil {
			return nil, err
		}
		v = s
	case RegistryInput:
		r, err := t.Resolve()
		if err != nil {
			return nil, err
		}
		v = r
	case BindingsInput:
		b, err := t.Resolve()
		if err != nil {
			return nil, err
		}
		v = b
	case RawSchemaInput:
		s, err := t.Resolve()
		if err != nil {
			return nil, err
		}
		v = s
	default:
		return nil, fmt.Errorf("cheshbon: digestInput: unsupported input type %T", in)
	}
	decoded, err := roundTripJSON(v)
	if err != nil {
		return nil, err
	}
	return report.DigestForInput(decoded)
}

// VerifyReport independently recomputes a diff from inputs and checks the
// report's claims against it (§4.8), never recomputing by reading the
// report itself.
func VerifyReport(reportDoc AllDetailsReport, inputs VerifyInputs, mode VerifyMode) (reportdoctor.VerifyResult, error) {
	s1, err := inputs.SpecV1.Resolve()
	if err != nil {
		return reportdoctor.VerifyResult{}, err
	}
	s2, err := inputs.SpecV2.Resolve()
	if err != nil {
		return reportdoctor.VerifyResult{}, err
	}
	r1, r2, err := resolveRegistryPair(inputs.RegistryV1, inputs.RegistryV2)
	if err != nil {
		return reportdoctor.VerifyResult{}, err
	}
	var b *bindings.Bindings
	if inputs.BindingsV2 != nil {
		b, err = inputs.BindingsV2.Resolve()
		if err != nil {
			return reportdoctor.VerifyResult{}, err
		}
	}
	var rawSchema *bindings.RawSchema
	if inputs.RawSchemaV2 != nil {
		rawSchema, err = inputs.RawSchemaV2.Resolve()
		if err != nil {
			return reportdoctor.VerifyResult{}, err
		}
	}

	return reportdoctor.Verify(reportDoc, reportdoctor.Inputs{
		SpecV1: s1, SpecV2: s2,
		RegistryV1: r1, RegistryV2: r2,
		BindingsV2:  b,
		RawSchemaV2: rawSchema,
	}, string(mode)), nil
}

// Validate runs the preflight checks diff/impact rely on against a single
// spec, never running impact analysis (§6.1).
func Validate(specIn SpecInput, registryIn *RegistryInput, bindingsIn *BindingsInput, rawSchemaIn *RawSchemaInput) (ValidationResult, error) {
	var errs, warns []diffresult.ValidationIssue

	s, err := specIn.Resolve()
	if err != nil {
		errs = append(errs, diffresult.ValidationIssue{
			Code:    codes.InvalidStructure,
			Message: fmt.Sprintf("failed to parse spec: %s", err.Error()),
		})
		return finalizeValidation(errs, warns), nil
	}

	for _, d := range s.Derived {
		if len(d.Params) == 0 {
			continue
		}
		n, err := spec.ParamsAdvisoryBytes(d.Params)
		if err == nil && n > 10000 {
			warns = append(warns, diffresult.ValidationIssue{
				Code:      codes.ParamsLarge,
				Message:   fmt.Sprintf("params for derived variable '%s' are large (%d bytes). Params should be small and schema-governed.", d.ID, n),
				ElementID: strp(d.ID),
			})
		}
	}

	if dup := duplicateIDs(s); len(dup) > 0 {
		for _, id := range dup {
			errs = append(errs, diffresult.ValidationIssue{
				Code:      codes.DuplicateID,
				Message:   fmt.Sprintf("duplicate ID '%s' found in spec", id),
				ElementID: strp(id),
			})
		}
	}

	if _, err := graph.Build(s); err != nil {
		var missingErr *graph.MissingDependenciesError
		var cycleErr *graph.CycleDetectedError
		switch {
		case errors.As(err, &missingErr):
			for _, missingID := range missingErr.Missing {
				elementID := referencingElement(s, missingID)
				errs = append(errs, diffresult.ValidationIssue{
					Code:      codes.MissingInput,
					Message:   fmt.Sprintf("input reference '%s' not found in spec", missingID),
					ElementID: elementID,
					MissingID: strp(missingID),
				})
			}
		case errors.As(err, &cycleErr):
			errs = append(errs, diffresult.ValidationIssue{
				Code:      codes.CycleDetected,
				Message:   err.Error(),
				CyclePath: cycleErr.Cycle,
			})
		default:
			errs = append(errs, diffresult.ValidationIssue{
				Code:    codes.DependencyGraphError,
				Message: fmt.Sprintf("unexpected error building dependency graph: %s", err.Error()),
			})
		}
	}

	if registryIn != nil {
		reg, err := registryIn.Resolve()
		if err != nil {
			errs = append(errs, diffresult.ValidationIssue{
				Code:    codes.RegistryLoadError,
				Message: fmt.Sprintf("failed to load registry: %s", err.Error()),
			})
		} else {
			for _, msg := range diff.ValidateTransformRefs(s, reg) {
				errs = append(errs, diffresult.ValidationIssue{
					Code:      codes.MissingTransformRef,
					Message:   msg,
					ElementID: extractQuoted(msg, "derived variable '"),
				})
			}
		}
	}

	if bindingsIn != nil {
		b, err := bindingsIn.Resolve()
		if err != nil {
			warns = append(warns, diffresult.ValidationIssue{
				Code:    codes.BindingsLoadError,
				Message: fmt.Sprintf("failed to load bindings: %s. Binding validation skipped.", err.Error()),
			})
		} else {
			var rawSchema *bindings.RawSchema
			if rawSchemaIn != nil {
				rawSchema, err = rawSchemaIn.Resolve()
				if err != nil {
					warns = append(warns, diffresult.ValidationIssue{
						Code:    codes.RawSchemaLoadError,
						Message: fmt.Sprintf("failed to load raw_schema: %s. Binding validation skipped.", err.Error()),
					})
				}
			}

			for derivedID, missing := range bindings.CheckMissingBindings(s, b) {
				for _, sourceID := range sortedKeys(missing) {
					warns = append(warns, diffresult.ValidationIssue{
						Code:      codes.MissingBinding,
						Message:   fmt.Sprintf("derived variable '%s' requires source '%s' but no binding found", derivedID, sourceID),
						ElementID: strp(sourceID),
					})
				}
			}
			for sourceID, rawColumns := range bindings.CheckAmbiguousBindings(b) {
				sorted := append([]string(nil), rawColumns...)
				sort.Strings(sorted)
				warns = append(warns, diffresult.ValidationIssue{
					Code:      codes.AmbiguousBinding,
					Message:   fmt.Sprintf("source ID '%s' is bound to multiple raw columns: %s", sourceID, strings.Join(sorted, ", ")),
					ElementID: strp(sourceID),
				})
			}
			if rawSchema != nil {
				events, _ := bindings.Validate(rawSchema, b)
				for _, ev := range events {
					if ev.EventType != "BINDING_INVALID" {
						continue
					}
					reason := fmt.Sprintf("raw column '%s' not found in schema", derefStr(ev.OldValue))
					if ev.Details != nil {
						if r, ok := ev.Details["reason"].(string); ok && r != "" {
							reason = r
						}
					}
					warns = append(warns, diffresult.ValidationIssue{
						Code:      codes.InvalidRawColumn,
						Message:   reason,
						ElementID: strp(ev.Element),
						RawColumn: ev.OldValue,
					})
				}
			}
		}
	}

	return finalizeValidation(errs, warns), nil
}

func finalizeValidation(errs, warns []diffresult.ValidationIssue) ValidationResult {
	sortIssues(errs)
	sortIssues(warns)
	return ValidationResult{OK: len(errs) == 0, Errors: errs, Warnings: warns}
}

func sortIssues(issues []diffresult.ValidationIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		ak := [4]string{a.Code, derefStr(a.ElementID), derefStr(a.MissingID), derefStr(a.RawColumn)}
		bk := [4]string{b.Code, derefStr(b.ElementID), derefStr(b.MissingID), derefStr(b.RawColumn)}
		return ak[0] < bk[0] || (ak[0] == bk[0] && (ak[1] < bk[1] || (ak[1] == bk[1] && (ak[2] < bk[2] || (ak[2] == bk[2] && ak[3] < bk[3])))))
	})
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strp(s string) *string { return &s }

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func duplicateIDs(s *spec.MappingSpec) []string {
	seen := map[string]bool{}
	dup := map[string]bool{}
	var all []string
	for _, src := range s.Sources {
		all = append(all, src.ID)
	}
	for _, d := range s.Derived {
		all = append(all, d.ID)
	}
	for _, c := range s.Constraints {
		all = append(all, c.ID)
	}
	for _, id := range all {
		if seen[id] {
			dup[id] = true
		}
		seen[id] = true
	}
	out := sortedKeys(dup)
	return out
}

func referencingElement(s *spec.MappingSpec, missingID string) *string {
	for _, d := range s.Derived {
		if containsStr(d.Inputs, missingID) {
			return strp(d.ID)
		}
	}
	for _, c := range s.Constraints {
		if containsStr(c.Inputs, missingID) {
			return strp(c.ID)
		}
	}
	return nil
}

func containsStr(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}

// extractQuoted pulls the first '...' after prefix, matching
// diff.ValidateTransformRefs' message shape ("derived variable '<id>' (...)").
func extractQuoted(msg, prefix string) *string {
	start := strings.Index(msg, prefix)
	if start < 0 {
		return nil
	}
	start += len(prefix)
	end := strings.Index(msg[start:], "'")
	if end < 0 {
		return nil
	}
	v := msg[start : start+end]
	return &v
}
