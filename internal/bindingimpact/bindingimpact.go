// Package bindingimpact overlays binding-aware failures onto a base impact
// result: a derived variable requiring an unbound source id, or a source id
// bound to more than one raw column. A missing binding is a non-terminal
// warning; an ambiguous binding is a terminal failure. Both propagate
// transitively.
//
// Unlike the base impact engine, this overlay does not use a numeric
// reason-priority lattice. A directly affected node's reason is
// unconditionally overwritten (AMBIGUOUS_BINDING taking precedence over
// MISSING_BINDING only via an idempotency check, never a priority compare);
// a transitive dependent's reason is set to TRANSITIVE_DEPENDENCY only when
// it has no existing reason at all, and is otherwise left untouched while
// still being added to the impacted set.
package bindingimpact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cheshbon/cheshbon/internal/bindings"
	"github.com/cheshbon/cheshbon/internal/codes"
	"github.com/cheshbon/cheshbon/internal/graph"
	"github.com/cheshbon/cheshbon/internal/impact"
	"github.com/cheshbon/cheshbon/internal/spec"
)

// Compute overlays missing- and ambiguous-binding failures onto base. If
// neither failure mode is present, base is returned unchanged.
func Compute(s *spec.MappingSpec, b *bindings.Bindings, g *graph.DependencyGraph, base *impact.Result, computePaths bool) *impact.Result {
	missingBindingsMap := bindings.CheckMissingBindings(s, b)
	ambiguousBindingsMap := bindings.CheckAmbiguousBindings(b)

	if len(missingBindingsMap) == 0 && len(ambiguousBindingsMap) == 0 {
		return base
	}

	impacted := copyBoolSet(base.Impacted)
	impactReasons := copyReasonMap(base.ImpactReasons)
	missingBindings := copyStringSetMap(base.MissingBindings)
	ambiguousBindings := copyStringSetMap(base.AmbiguousBindings)
	allDerivedIDs := s.DerivedIDs()

	propagateTransitive := func(derivedID string) {
		dependents := g.GetTransitiveDependents(derivedID)
		for depID := range dependents {
			if !allDerivedIDs[depID] {
				continue
			}
			if _, hasReason := impactReasons[depID]; !hasReason {
				impactReasons[depID] = codes.ReasonTransitiveDependency
			}
			// An existing reason (binding or otherwise) is left untouched;
			// the node is still counted as impacted.
			impacted[depID] = true
		}
	}

	var missingIDs []string
	for id := range missingBindingsMap {
		missingIDs = append(missingIDs, id)
	}
	sort.Strings(missingIDs)
	for _, derivedID := range missingIDs {
		impacted[derivedID] = true
		impactReasons[derivedID] = codes.ReasonMissingBinding
		missingBindings[derivedID] = missingBindingsMap[derivedID]
		propagateTransitive(derivedID)
	}

	hasAmbiguous := false
	var ambiguousSourceIDs = make(map[string]bool, len(ambiguousBindingsMap))
	for id := range ambiguousBindingsMap {
		ambiguousSourceIDs[id] = true
	}

	var validationErrors []string
	for _, d := range s.Derived {
		var ambiguousSources map[string]bool
		for _, in := range d.Inputs {
			if strings.HasPrefix(in, "s:") && ambiguousSourceIDs[in] {
				if ambiguousSources == nil {
					ambiguousSources = map[string]bool{}
				}
				ambiguousSources[in] = true
			}
		}
		if len(ambiguousSources) == 0 {
			continue
		}
		hasAmbiguous = true
		impacted[d.ID] = true
		if impactReasons[d.ID] != codes.ReasonAmbiguousBinding {
			impactReasons[d.ID] = codes.ReasonAmbiguousBinding
		}
		ambiguousBindings[d.ID] = ambiguousSources
		propagateTransitive(d.ID)
	}

	validationFailed := base.ValidationFailed || hasAmbiguous
	validationErrors = append(validationErrors, base.ValidationErrors...)
	if hasAmbiguous {
		var sourceIDs []string
		for id := range ambiguousBindingsMap {
			sourceIDs = append(sourceIDs, id)
		}
		sort.Strings(sourceIDs)
		for _, sourceID := range sourceIDs {
			cols := ambiguousBindingsMap[sourceID]
			validationErrors = append(validationErrors, fmt.Sprintf(
				"ambiguous binding for source id '%s': multiple raw columns map to same source (%s). Cannot determine which to use. Terminal failure.",
				sourceID, strings.Join(cols, ", ")))
		}
	}

	impactPaths := copyPathMap(base.ImpactPaths)
	if computePaths {
		var seeds []string
		seeds = append(seeds, missingIDs...)
		var ambIDs []string
		for id := range ambiguousBindings {
			ambIDs = append(ambIDs, id)
		}
		sort.Strings(ambIDs)
		seeds = append(seeds, ambIDs...)

		for _, derivedID := range seeds {
			if _, ok := impactPaths[derivedID]; !ok {
				impactPaths[derivedID] = []string{derivedID}
			}
			dependents := g.GetTransitiveDependents(derivedID)
			var depIDs []string
			for depID := range dependents {
				if allDerivedIDs[depID] {
					depIDs = append(depIDs, depID)
				}
			}
			sort.Strings(depIDs)
			for _, depID := range depIDs {
				if _, ok := impactPaths[depID]; !ok {
					if path := g.GetDependencyPath(derivedID, depID); path != nil {
						impactPaths[depID] = path
					}
				}
			}
		}
	}

	unaffected := copyBoolSet(base.Unaffected)
	for id := range impacted {
		delete(unaffected, id)
	}

	alternativePathCounts := copyIntMap(base.AlternativePathCounts)
	if computePaths {
		var varIDs []string
		for id := range impactPaths {
			varIDs = append(varIDs, id)
		}
		sort.Strings(varIDs)
		for _, varID := range varIDs {
			path := impactPaths[varID]
			if _, ok := alternativePathCounts[varID]; ok {
				continue
			}
			if len(path) <= 1 {
				continue
			}
			changeSource := path[0]
			impactedVar := path[len(path)-1]
			if alt := g.CountAlternativePaths(changeSource, impactedVar); alt > 0 {
				alternativePathCounts[varID] = alt
			}
		}
	}

	return &impact.Result{
		Impacted:              impacted,
		Unaffected:            unaffected,
		ImpactPaths:           impactPaths,
		ImpactReasons:         impactReasons,
		UnresolvedReferences:  base.UnresolvedReferences,
		MissingBindings:       missingBindings,
		AmbiguousBindings:     ambiguousBindings,
		MissingTransformRefs:  base.MissingTransformRefs,
		AlternativePathCounts: alternativePathCounts,
		ValidationFailed:      validationFailed,
		ValidationErrors:      validationErrors,
	}
}

func copyBoolSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyReasonMap(m map[string]codes.ReasonCode) map[string]codes.ReasonCode {
	out := make(map[string]codes.ReasonCode, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringSetMap(m map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(m))
	for k, v := range m {
		inner := make(map[string]bool, len(v))
		for kk, vv := range v {
			inner[kk] = vv
		}
		out[k] = inner
	}
	return out
}

func copyPathMap(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
