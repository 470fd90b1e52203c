// Package impact computes which derived variables are impacted by a set of
// structural change events, with a deterministic reason and explanation
// path for each.
//
// A derived variable is impacted if any of:
//  1. an input reference changed identity (source/derived removed)
//  2. its transform_ref changed
//  3. its transform params changed
//  4. its type changed
//  5. its input list changed
//  6. the transform implementation changed (registry-level)
//  7. the transform was removed from the registry
//  8. transitively: anything depending on an impacted variable is impacted
//
// Name changes, notes, and review status are non-impacting metadata.
package impact

import (
	"fmt"

	"github.com/cheshbon/cheshbon/internal/codes"
	"github.com/cheshbon/cheshbon/internal/diff"
	"github.com/cheshbon/cheshbon/internal/graph"
	"github.com/cheshbon/cheshbon/internal/registry"
	"github.com/cheshbon/cheshbon/internal/spec"
)

// Result is the outcome of impact analysis.
type Result struct {
	Impacted               map[string]bool
	Unaffected             map[string]bool
	ImpactPaths            map[string][]string
	ImpactReasons          map[string]codes.ReasonCode
	UnresolvedReferences   map[string]map[string]bool
	MissingBindings        map[string]map[string]bool
	AmbiguousBindings      map[string]map[string]bool
	MissingTransformRefs   map[string]map[string]bool
	AlternativePathCounts  map[string]int
	ValidationFailed       bool
	ValidationErrors       []string
}

// Compute runs the event-driven impact propagation over changeEvents,
// using graphV1 (the dependency graph of specV1) as the basis for
// transitive-dependent and path lookups. registryV2 is optional; when
// provided, every v2 derived variable is checked against it and a missing
// transform_ref takes absolute precedence over any other reason.
func Compute(specV1, specV2 *spec.MappingSpec, graphV1 *graph.DependencyGraph, changeEvents []diff.ChangeEvent, registryV2 *registry.TransformRegistry, computePaths bool) *Result {
	impacted := map[string]bool{}
	impactPaths := map[string][]string{}
	impactReasons := map[string]codes.ReasonCode{}
	unresolvedReferences := map[string]map[string]bool{}
	missingTransformRefs := map[string]map[string]bool{}

	allDerivedIDs := specV1.DerivedIDs()
	allConstraintIDs := specV1.ConstraintIDs()

	availableIDsV2 := specV2.SourceIDs()
	for id := range specV2.DerivedIDs() {
		availableIDsV2[id] = true
	}

	transformRefToDerived := map[string]map[string]bool{}
	for _, d := range specV1.Derived {
		if transformRefToDerived[d.TransformRef] == nil {
			transformRefToDerived[d.TransformRef] = map[string]bool{}
		}
		transformRefToDerived[d.TransformRef][d.ID] = true
	}

	setReason := func(varID string, reason codes.ReasonCode, pathFrom string, hasPathFrom bool) {
		current, ok := impactReasons[varID]
		if ok && codes.Priority(reason) <= codes.Priority(current) {
			return
		}
		impactReasons[varID] = reason
		if !computePaths {
			return
		}
		if !hasPathFrom || pathFrom == varID {
			impactPaths[varID] = []string{varID}
			return
		}
		if p := graphV1.GetDependencyPath(pathFrom, varID); p != nil {
			impactPaths[varID] = p
		}
	}

	addMissingRef := func(target map[string]map[string]bool, varID, refID string) {
		if target[varID] == nil {
			target[varID] = map[string]bool{}
		}
		target[varID][refID] = true
	}

	intersectDerived := func(s map[string]bool) map[string]bool {
		out := map[string]bool{}
		for id := range s {
			if allDerivedIDs[id] {
				out[id] = true
			}
		}
		return out
	}

	propagateTransitive := func(fromID string, affectedDerived map[string]bool) {
		for depID := range affectedDerived {
			setReason(depID, codes.ReasonTransitiveDependency, fromID, true)
		}
		for depID := range affectedDerived {
			impacted[depID] = true
		}
	}

	for _, event := range changeEvents {
		switch event.ChangeType {
		case diff.SourceRemoved:
			sourceID := event.ElementID
			affected := intersectDerived(graphV1.GetTransitiveDependents(sourceID))
			for id := range affected {
				impacted[id] = true
			}
			for varID := range affected {
				if graphV1.GetDependencies(varID)[sourceID] {
					setReason(varID, codes.ReasonMissingInput, sourceID, true)
					addMissingRef(unresolvedReferences, varID, sourceID)
				} else {
					setReason(varID, codes.ReasonTransitiveDependency, sourceID, true)
				}
			}

		case diff.SourceRenamed:
			// Name change only; ID-stable, non-impacting on its own.

		case diff.DerivedRemoved:
			derivedID := event.ElementID
			if !allDerivedIDs[derivedID] {
				continue
			}
			affected := intersectDerived(graphV1.GetTransitiveDependents(derivedID))
			for id := range affected {
				impacted[id] = true
			}
			for varID := range affected {
				if graphV1.GetDependencies(varID)[derivedID] {
					setReason(varID, codes.ReasonMissingInput, derivedID, true)
					addMissingRef(unresolvedReferences, varID, derivedID)
				} else {
					setReason(varID, codes.ReasonTransitiveDependency, derivedID, true)
				}
			}

		case diff.DerivedTransformRefChanged:
			derivedID := event.ElementID
			if !allDerivedIDs[derivedID] {
				continue
			}
			impacted[derivedID] = true
			setReason(derivedID, codes.ReasonDirectChange, "", false)
			affected := intersectDerived(graphV1.GetTransitiveDependents(derivedID))
			propagateTransitive(derivedID, affected)

		case diff.DerivedTransformParamsChanged:
			derivedID := event.ElementID
			if !allDerivedIDs[derivedID] {
				continue
			}
			impacted[derivedID] = true
			setReason(derivedID, codes.ReasonDirectChange, "", false)
			affected := intersectDerived(graphV1.GetTransitiveDependents(derivedID))
			propagateTransitive(derivedID, affected)

		case diff.TransformImplChanged:
			transformRef := event.ElementID
			affected := intersectDerived(transformRefToDerived[transformRef])
			for varID := range affected {
				impacted[varID] = true
				setReason(varID, codes.ReasonTransformImplChanged, "", false)
				transitive := intersectDerived(graphV1.GetTransitiveDependents(varID))
				propagateTransitive(varID, transitive)
			}

		case diff.TransformRemoved:
			transformRef := event.ElementID
			affected := intersectDerived(transformRefToDerived[transformRef])
			for varID := range affected {
				impacted[varID] = true
				setReason(varID, codes.ReasonTransformRemoved, "", false)
				transitive := intersectDerived(graphV1.GetTransitiveDependents(varID))
				propagateTransitive(varID, transitive)
			}

		case diff.DerivedTypeChanged:
			derivedID := event.ElementID
			if !allDerivedIDs[derivedID] {
				continue
			}
			impacted[derivedID] = true
			setReason(derivedID, codes.ReasonDirectChange, "", false)
			affected := intersectDerived(graphV1.GetTransitiveDependents(derivedID))
			propagateTransitive(derivedID, affected)

		case diff.DerivedInputsChanged:
			derivedID := event.ElementID
			if !allDerivedIDs[derivedID] {
				continue
			}
			impacted[derivedID] = true
			setReason(derivedID, codes.ReasonDirectChange, "", false)

			d2, ok := specV2.DerivedByID(derivedID)
			if ok {
				var missingInputs []string
				for _, inID := range d2.Inputs {
					if !availableIDsV2[inID] {
						missingInputs = append(missingInputs, inID)
					}
				}
				if len(missingInputs) > 0 {
					for _, mID := range missingInputs {
						addMissingRef(unresolvedReferences, derivedID, mID)
					}
					setReason(derivedID, codes.ReasonDirectChangeMissingInput, "", false)
				}
			}

			affected := intersectDerived(graphV1.GetTransitiveDependents(derivedID))
			propagateTransitive(derivedID, affected)

		case diff.ConstraintRemoved:
			constraintID := event.ElementID
			if !allConstraintIDs[constraintID] {
				continue
			}
			dependents := graphV1.GetTransitiveDependents(constraintID)
			affected := intersectDerived(dependents)
			for id := range affected {
				impacted[id] = true
			}
			for varID := range affected {
				if graphV1.GetDependencies(varID)[constraintID] {
					setReason(varID, codes.ReasonMissingInput, constraintID, true)
					addMissingRef(unresolvedReferences, varID, constraintID)
				} else {
					setReason(varID, codes.ReasonTransitiveDependency, constraintID, true)
				}
			}

		case diff.ConstraintInputsChanged:
			constraintID := event.ElementID
			if !allConstraintIDs[constraintID] {
				continue
			}
			affected := intersectDerived(graphV1.GetTransitiveDependents(constraintID))
			propagateTransitive(constraintID, affected)

		case diff.ConstraintExpressionChanged:
			constraintID := event.ElementID
			if !allConstraintIDs[constraintID] {
				continue
			}
			affected := intersectDerived(graphV1.GetTransitiveDependents(constraintID))
			propagateTransitive(constraintID, affected)

		default:
			// SOURCE_ADDED, DERIVED_ADDED, CONSTRAINT_ADDED, and the
			// *_RENAMED events (other than SOURCE_RENAMED above) are
			// non-impacting for existing derived variables.
		}
	}

	unaffected := map[string]bool{}
	for id := range allDerivedIDs {
		if !impacted[id] {
			unaffected[id] = true
		}
	}

	var validationErrors []string
	validationFailed := false

	if registryV2 != nil {
		for _, d := range specV2.Derived {
			if !allDerivedIDs[d.ID] {
				continue
			}
			if !registryV2.HasTransform(d.TransformRef) {
				validationErrors = append(validationErrors, fmt.Sprintf(
					"derived variable '%s' (%s) references missing transform '%s'. Transform not found in registry.",
					d.ID, d.Name, d.TransformRef))
				validationFailed = true
				impacted[d.ID] = true
				setReason(d.ID, codes.ReasonMissingTransformRef, "", false)
				addMissingRef(missingTransformRefs, d.ID, d.TransformRef)
				delete(unaffected, d.ID)
			}
		}
	}

	alternativePathCounts := map[string]int{}
	if computePaths {
		for varID, path := range impactPaths {
			if len(path) <= 1 {
				continue
			}
			changeSource := path[0]
			impactedVar := path[len(path)-1]
			if alt := graphV1.CountAlternativePaths(changeSource, impactedVar); alt > 0 {
				alternativePathCounts[varID] = alt
			}
		}
	}

	return &Result{
		Impacted:              impacted,
		Unaffected:            unaffected,
		ImpactPaths:           impactPaths,
		ImpactReasons:         impactReasons,
		UnresolvedReferences:  unresolvedReferences,
		MissingBindings:       map[string]map[string]bool{},
		AmbiguousBindings:     map[string]map[string]bool{},
		MissingTransformRefs:  missingTransformRefs,
		AlternativePathCounts: alternativePathCounts,
		ValidationFailed:      validationFailed,
		ValidationErrors:      validationErrors,
	}
}
