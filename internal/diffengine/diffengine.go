// Package diffengine assembles the kernel packages (diff, graph, impact,
// bindings, bindingimpact) into a single diff run, producing the stable
// diffresult.DiffResult shape. This is the one place that orchestration
// lives, so the public facade and the report verifier compute identical
// results from identical inputs.
package diffengine

import (
	"sort"

	"github.com/cheshbon/cheshbon/internal/bindingimpact"
	"github.com/cheshbon/cheshbon/internal/bindings"
	"github.com/cheshbon/cheshbon/internal/diff"
	"github.com/cheshbon/cheshbon/internal/diffresult"
	"github.com/cheshbon/cheshbon/internal/graph"
	"github.com/cheshbon/cheshbon/internal/impact"
	"github.com/cheshbon/cheshbon/internal/registry"
	"github.com/cheshbon/cheshbon/internal/spec"
)

// Inputs bundles everything a diff run may be given. SpecV1 and SpecV2 are
// required; everything else is optional.
type Inputs struct {
	SpecV1     *spec.MappingSpec
	SpecV2     *spec.MappingSpec
	RegistryV1 *registry.TransformRegistry
	RegistryV2 *registry.TransformRegistry
	BindingsV2 *bindings.Bindings
}

// Output is the full set of intermediate artifacts a run produces, so
// callers needing more than the stable DiffResult (e.g. an all-details
// report, or a verifier) don't have to recompute them.
type Output struct {
	GraphV1      *graph.DependencyGraph
	GraphV2      *graph.DependencyGraph
	ChangeEvents []diff.ChangeEvent
	Impact       *impact.Result
	DiffResult   *diffresult.DiffResult
}

// Compute runs a full diff/impact analysis over in. computePaths controls
// whether explanation paths and alternative-path counts are populated
// (the "core" vs "full" detail level).
func Compute(in Inputs, computePaths bool) (*Output, error) {
	graphV1, err := graph.Build(in.SpecV1)
	if err != nil {
		return nil, err
	}
	graphV2, err := graph.Build(in.SpecV2)
	if err != nil {
		return nil, err
	}

	var refValidationErrors []string
	if in.RegistryV2 != nil {
		refValidationErrors = append(refValidationErrors, diff.ValidateTransformRefs(in.SpecV2, in.RegistryV2)...)
		if in.RegistryV1 != nil {
			refValidationErrors = append(refValidationErrors, diff.ValidateTransformRefs(in.SpecV1, in.RegistryV1)...)
		}
	}

	specEvents := diff.DiffSpecs(in.SpecV1, in.SpecV2)
	var registryEvents []diff.ChangeEvent
	if in.RegistryV1 != nil && in.RegistryV2 != nil {
		registryEvents = diff.DiffRegistries(in.RegistryV1, in.RegistryV2)
	}
	changeEvents := diff.MergeAndSort(specEvents, registryEvents)

	impactResult := impact.Compute(in.SpecV1, in.SpecV2, graphV1, changeEvents, in.RegistryV2, computePaths)

	if in.BindingsV2 != nil {
		impactResult = bindingimpact.Compute(in.SpecV2, in.BindingsV2, graphV2, impactResult, computePaths)
	}

	result := buildDiffResult(changeEvents, impactResult, in.BindingsV2 != nil, refValidationErrors, computePaths)

	return &Output{
		GraphV1: graphV1, GraphV2: graphV2,
		ChangeEvents: changeEvents, Impact: impactResult, DiffResult: result,
	}, nil
}

func buildDiffResult(changeEvents []diff.ChangeEvent, r *impact.Result, withBindings bool, extraValidationErrors []string, computePaths bool) *diffresult.DiffResult {
	changeSummary := map[string]int{}
	events := make([]diffresult.Event, 0, len(changeEvents))
	for _, e := range changeEvents {
		changeSummary[string(e.ChangeType)]++
		events = append(events, diffresult.Event{
			ChangeType: string(e.ChangeType), ElementID: e.ElementID,
			OldValue: e.OldValue, NewValue: e.NewValue, Details: e.Details,
		})
	}

	impactedIDs := sortedKeys(r.Impacted)
	unaffectedIDs := sortedKeys(r.Unaffected)

	reasons := make(map[string]string, len(r.ImpactReasons))
	for id, reason := range r.ImpactReasons {
		reasons[id] = string(reason)
	}

	paths := map[string][]string{}
	alternativePathCounts := map[string]int{}
	if computePaths {
		for id, p := range r.ImpactPaths {
			paths[id] = p
		}
		for id, c := range r.AlternativePathCounts {
			alternativePathCounts[id] = c
		}
	}

	missingInputs := sortedSetMap(r.UnresolvedReferences)
	missingBindings := sortedSetMap(r.MissingBindings)
	ambiguousBindings := sortedSetMap(r.AmbiguousBindings)
	missingTransformRefs := sortedSetMap(r.MissingTransformRefs)

	bindingIssues := map[string][]string{}
	if withBindings {
		for varID, missing := range r.MissingBindings {
			bindingIssues[varID] = append(bindingIssues[varID], sortedList(missing)...)
		}
		for varID, ambiguous := range r.AmbiguousBindings {
			bindingIssues[varID] = append(bindingIssues[varID], sortedList(ambiguous)...)
		}
		for varID := range bindingIssues {
			bindingIssues[varID] = dedupSorted(bindingIssues[varID])
		}
	}

	combinedErrors := append([]string(nil), r.ValidationErrors...)
	combinedErrors = append(combinedErrors, extraValidationErrors...)
	combinedErrors = dedupSorted(combinedErrors)

	return &diffresult.DiffResult{
		ValidationFailed:      r.ValidationFailed || len(extraValidationErrors) > 0,
		ValidationErrors:      combinedErrors,
		ChangeSummary:         changeSummary,
		ImpactedIDs:           impactedIDs,
		UnaffectedIDs:         unaffectedIDs,
		Reasons:               reasons,
		Paths:                 paths,
		MissingInputs:         missingInputs,
		MissingBindings:       missingBindings,
		AmbiguousBindings:     ambiguousBindings,
		MissingTransformRefs:  missingTransformRefs,
		AlternativePathCounts: alternativePathCounts,
		Events:                events,
		BindingIssues:         bindingIssues,
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedList(m map[string]bool) []string {
	return sortedKeys(m)
}

func sortedSetMap(m map[string]map[string]bool) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = sortedKeys(v)
	}
	return out
}

func dedupSorted(items []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}
