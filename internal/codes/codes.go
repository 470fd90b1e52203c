// Package codes holds the flat string constants used across Cheshbon:
// validation issue codes and impact reason codes. Kept as a standalone
// package so callers never hand-roll a code string.
package codes

// Validation codes: errors are blocking (ValidationResult.ok == false);
// warnings never block.
const (
	InvalidStructure     = "INVALID_STRUCTURE"
	DuplicateID          = "DUPLICATE_ID"
	MissingInput         = "MISSING_INPUT"
	CycleDetected        = "CYCLE_DETECTED"
	MissingTransformRef  = "MISSING_TRANSFORM_REF"
	DependencyGraphError = "DEPENDENCY_GRAPH_ERROR"
	RegistryLoadError    = "REGISTRY_LOAD_ERROR"

	MissingBinding    = "MISSING_BINDING"
	AmbiguousBinding  = "AMBIGUOUS_BINDING"
	InvalidRawColumn  = "INVALID_RAW_COLUMN"
	BindingsLoadError = "BINDINGS_LOAD_ERROR"
	RawSchemaLoadError = "RAW_SCHEMA_LOAD_ERROR"
	ParamsLarge       = "PARAMS_LARGE"
)

// ReasonCode is an impact reason, ordered by Priority.
type ReasonCode string

const (
	ReasonMissingTransformRef     ReasonCode = "MISSING_TRANSFORM_REF"
	ReasonDirectChangeMissingInput ReasonCode = "DIRECT_CHANGE_MISSING_INPUT"
	ReasonMissingInput            ReasonCode = "MISSING_INPUT"
	ReasonDirectChange            ReasonCode = "DIRECT_CHANGE"
	ReasonTransformRemoved        ReasonCode = "TRANSFORM_REMOVED"
	ReasonTransformImplChanged    ReasonCode = "TRANSFORM_IMPL_CHANGED"
	ReasonTransitiveDependency    ReasonCode = "TRANSITIVE_DEPENDENCY"
	ReasonMissingBinding          ReasonCode = "MISSING_BINDING"
	ReasonAmbiguousBinding        ReasonCode = "AMBIGUOUS_BINDING"
)

// priority is the reason-precedence lattice used by the base impact engine
// (internal/impact). Reasons not listed here have priority 0. The binding
// overlay (internal/bindingimpact) does not consult this lattice: it
// overwrites a directly-affected node's reason unconditionally with
// MISSING_BINDING or AMBIGUOUS_BINDING, and only assigns
// TRANSITIVE_DEPENDENCY to a dependent that has no reason at all yet — ground
// truth for this is kernel/binding_impact.py, not a numeric comparison.
var priority = map[ReasonCode]int{
	ReasonMissingTransformRef:      100,
	ReasonDirectChangeMissingInput: 90,
	ReasonMissingInput:             85,
	ReasonDirectChange:             80,
	ReasonTransformRemoved:         75,
	ReasonTransformImplChanged:     70,
	ReasonTransitiveDependency:     10,
}

// Priority returns the precedence of a reason code. Strictly-greater wins
// when the impact engine resolves concurrent causes on the same node.
func Priority(r ReasonCode) int {
	return priority[r]
}
