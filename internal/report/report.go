// Package report builds the two JSON artifacts produced from a diff
// result: a minimal core report (no paths, no explanations) and the
// machine-first all-details report (event/issue indexes, per-node
// witnesses, summaries, and cap accounting).
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cheshbon/cheshbon/internal/canon"
	"github.com/cheshbon/cheshbon/internal/diffresult"
)

const (
	AllDetailsSchemaVersion  = "0.1"
	VerifierContractVersion  = "1"
	CanonicalizationPolicyID = "cheshbon.canonical-json.v1"
)

// DefaultCaps mirrors the default accounting limits for an all-details
// report; callers may override any subset via the caps argument to
// AllDetailsReport.
var DefaultCaps = map[string]int{
	"max_witnesses":               100000,
	"max_root_causes_per_node":    16,
	"max_trigger_events_per_node": 16,
	"max_top_roots":               50,
}

// RunStatus classifies a diff run for quick dispatch by callers.
func RunStatus(r *diffresult.DiffResult) string {
	if r.ValidationFailed {
		return "non_executable"
	}
	if len(r.ImpactedIDs) > 0 {
		return "impacted"
	}
	return "no_impact"
}

// CoreReport is the minimal JSON report: run status, validation outcome,
// summary counts, and the raw change/impact data, with no explanation
// paths or witnesses.
func CoreReport(r *diffresult.DiffResult) map[string]any {
	totalEvents := 0
	registryEvents := 0
	for changeType, count := range r.ChangeSummary {
		totalEvents += count
		if strings.HasPrefix(changeType, "TRANSFORM_") {
			registryEvents += count
		}
	}
	specEvents := totalEvents - registryEvents

	missingBindingsCount := 0
	for _, ids := range r.MissingBindings {
		missingBindingsCount += len(ids)
	}
	missingTransformsCount := 0
	for _, ids := range r.MissingTransformRefs {
		missingTransformsCount += len(ids)
	}

	return map[string]any{
		"run_status":        RunStatus(r),
		"validation_failed": r.ValidationFailed,
		"validation_errors": r.ValidationErrors,
		"summary": map[string]any{
			"total_events":             totalEvents,
			"spec_events":              specEvents,
			"registry_events":          registryEvents,
			"impacted_count":           len(r.ImpactedIDs),
			"unaffected_count":         len(r.UnaffectedIDs),
			"missing_bindings_count":   missingBindingsCount,
			"missing_transforms_count": missingTransformsCount,
		},
		"change_events":          r.Events,
		"impacted":               r.ImpactedIDs,
		"unaffected":             r.UnaffectedIDs,
		"reasons":                r.Reasons,
		"missing_inputs":         r.MissingInputs,
		"missing_bindings":       r.MissingBindings,
		"ambiguous_bindings":     r.AmbiguousBindings,
		"missing_transform_refs": r.MissingTransformRefs,
	}
}

// InputDigest is the digest witness recorded for a single input document.
type InputDigest struct {
	Digest           string `json:"digest"`
	Canonicalization string `json:"canonicalization"`
}

// DigestForInput computes the canonical-JSON digest witness for an input
// value, or nil if the value is absent.
func DigestForInput(v any) (*InputDigest, error) {
	if v == nil {
		return nil, nil
	}
	digest, err := canon.SHA256Canonical(v)
	if err != nil {
		return nil, err
	}
	return &InputDigest{Digest: digest, Canonicalization: CanonicalizationPolicyID}, nil
}

// coreDigestSubset is the exact field subset core_digest is computed over:
// enough of DiffResult to detect any semantically meaningful change,
// deliberately excluding paths and alternative path counts since those
// are explanation aids, not outcomes. ambiguous_bindings is excluded too:
// it's always a subset of reasons (every ambiguous binding surfaces as an
// AMBIGUOUS_BINDING reason), so reasons already covers it.
func coreDigestSubset(r *diffresult.DiffResult) map[string]any {
	return map[string]any{
		"validation_failed":      r.ValidationFailed,
		"validation_errors":      r.ValidationErrors,
		"events":                 r.Events,
		"impacted_ids":           r.ImpactedIDs,
		"unaffected_ids":         r.UnaffectedIDs,
		"reasons":                r.Reasons,
		"missing_inputs":         r.MissingInputs,
		"missing_bindings":       r.MissingBindings,
		"missing_transform_refs": r.MissingTransformRefs,
	}
}

// CoreDigest computes the content-addressed digest of the subset of r that
// the all-details verifier re-derives and checks against.
func CoreDigest(r *diffresult.DiffResult) (string, error) {
	return canon.SHA256Canonical(coreDigestSubset(r))
}

// shortDigest returns the 8-hex prefix of the canonical-JSON SHA-256
// digest of v, used to build evt:/iss: short ids.
func shortDigest(v any) (string, error) {
	full, err := canon.SHA256CanonicalBare(v)
	if err != nil {
		return "", err
	}
	return full[:8], nil
}

// EventIndex is one entry in the all-details event index: the source
// change event plus its derived short id and sequence number.
type EventIndex struct {
	EventID    string         `json:"event_id"`
	EventSeq   int            `json:"event_seq"`
	ChangeType string         `json:"change_type"`
	ElementID  string         `json:"element_id"`
	OldValue   *string        `json:"old_value,omitempty"`
	NewValue   *string        `json:"new_value,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// BuildEventIndex assigns a digest-derived id and sequence number to every
// change event, and returns the element_id -> sorted [event_id] lookup
// used to find an element's triggering events.
func BuildEventIndex(events []diffresult.Event) ([]EventIndex, map[string][]string, error) {
	index := make([]EventIndex, 0, len(events))
	byElement := map[string][]string{}

	for i, e := range events {
		digest, err := shortDigest(e)
		if err != nil {
			return nil, nil, fmt.Errorf("report: event %d: %w", i, err)
		}
		eventID := "evt:" + digest
		index = append(index, EventIndex{
			EventID: eventID, EventSeq: i + 1,
			ChangeType: e.ChangeType, ElementID: e.ElementID,
			OldValue: e.OldValue, NewValue: e.NewValue, Details: e.Details,
		})
		if e.ElementID != "" {
			byElement[e.ElementID] = append(byElement[e.ElementID], eventID)
		}
	}
	for id := range byElement {
		sort.Strings(byElement[id])
	}
	return index, byElement, nil
}

// IssueIndex is one entry in the all-details issue index: a non-change
// finding (missing binding, ambiguous binding, missing transform ref).
type IssueIndex struct {
	IssueID   string         `json:"issue_id"`
	IssueSeq  int            `json:"issue_seq"`
	IssueType string         `json:"issue_type"`
	ElementID string         `json:"element_id"`
	Details   map[string]any `json:"details"`
}

// issueKey looks up the issue id triggering a (reason, rootID) pair on a
// given affected variable.
type issueKey struct {
	issueType  string
	elementID  string
	affectedID string
}

// BuildIssuesIndex assigns a digest-derived id and sequence number to
// every non-change finding in r, in the fixed order missing bindings,
// ambiguous bindings, then missing transform refs (each sub-sorted by
// affected id then element id for determinism).
func BuildIssuesIndex(r *diffresult.DiffResult) ([]IssueIndex, map[issueKey]string, error) {
	var index []IssueIndex
	idMap := map[issueKey]string{}
	seq := 1

	addIssue := func(issueType, elementID, affectedID string, details map[string]any) error {
		core := map[string]any{"issue_type": issueType, "element_id": elementID, "details": details}
		digest, err := shortDigest(core)
		if err != nil {
			return err
		}
		issueID := "iss:" + digest
		index = append(index, IssueIndex{IssueID: issueID, IssueSeq: seq, IssueType: issueType, ElementID: elementID, Details: details})
		idMap[issueKey{issueType, elementID, affectedID}] = issueID
		seq++
		return nil
	}

	var derivedIDs []string
	for id := range r.MissingBindings {
		derivedIDs = append(derivedIDs, id)
	}
	sort.Strings(derivedIDs)
	for _, derivedID := range derivedIDs {
		sourceIDs := append([]string(nil), r.MissingBindings[derivedID]...)
		sort.Strings(sourceIDs)
		for _, sourceID := range sourceIDs {
			if err := addIssue("MISSING_BINDING", sourceID, derivedID, map[string]any{"affected_id": derivedID, "source_id": sourceID}); err != nil {
				return nil, nil, err
			}
		}
	}

	derivedIDs = nil
	for id := range r.AmbiguousBindings {
		derivedIDs = append(derivedIDs, id)
	}
	sort.Strings(derivedIDs)
	for _, derivedID := range derivedIDs {
		sourceIDs := append([]string(nil), r.AmbiguousBindings[derivedID]...)
		sort.Strings(sourceIDs)
		for _, sourceID := range sourceIDs {
			if err := addIssue("AMBIGUOUS_BINDING", sourceID, derivedID, map[string]any{"affected_id": derivedID, "source_id": sourceID}); err != nil {
				return nil, nil, err
			}
		}
	}

	derivedIDs = nil
	for id := range r.MissingTransformRefs {
		derivedIDs = append(derivedIDs, id)
	}
	sort.Strings(derivedIDs)
	for _, derivedID := range derivedIDs {
		transformIDs := append([]string(nil), r.MissingTransformRefs[derivedID]...)
		sort.Strings(transformIDs)
		for _, transformID := range transformIDs {
			if err := addIssue("MISSING_TRANSFORM_REF", transformID, derivedID, map[string]any{"affected_id": derivedID, "transform_ref": transformID}); err != nil {
				return nil, nil, err
			}
		}
	}

	return index, idMap, nil
}

// Omission records that a list in the report was truncated to a cap.
type Omission struct {
	Path         string   `json:"path"`
	Cap          int      `json:"cap"`
	Actual       int      `json:"actual"`
	OmittedCount int      `json:"omitted_count"`
	SampleIDs    []string `json:"sample_ids"`
}

func applyCap(items []string, cap int, path string, omissions *[]Omission) []string {
	if cap <= 0 || len(items) <= cap {
		return items
	}
	kept := items[:cap]
	omitted := items[cap:]
	var sample []string
	if len(omitted) > 0 {
		sample = append(sample, omitted[0])
		if len(omitted) > 1 {
			sample = append(sample, omitted[len(omitted)-1])
		}
	}
	*omissions = append(*omissions, Omission{Path: path, Cap: cap, Actual: len(items), OmittedCount: len(omitted), SampleIDs: sample})
	return kept
}

// Witness explains why one impacted variable is impacted: its reason, the
// root causes it traces back to, its distance from those roots, and the
// change/issue events that triggered it.
type Witness struct {
	Reason             string   `json:"reason"`
	RootCauseIDs       []string `json:"root_cause_ids"`
	Distance           int      `json:"distance"`
	Predecessor        *string  `json:"predecessor"`
	TriggeringEventIDs []string `json:"triggering_event_ids"`
	TriggeringIssueIDs []string `json:"triggering_issue_ids"`
}

// TransformRefLookup resolves a derived variable id to the transform_ref
// it references; callers supply whichever spec version is appropriate for
// the reason being explained.
type TransformRefLookup func(derivedID string) (transformRef string, ok bool)

var directReasons = map[string]bool{
	"DIRECT_CHANGE": true, "DIRECT_CHANGE_MISSING_INPUT": true,
	"TRANSFORM_IMPL_CHANGED": true, "TRANSFORM_REMOVED": true, "MISSING_TRANSFORM_REF": true,
}

// Witnesses computes the witness map and its summaries for r, applying
// caps and recording every truncation as an omission.
func Witnesses(r *diffresult.DiffResult, caps map[string]int, transformRefOfV1OrV2, transformRefOfV2OrV1 TransformRefLookup) (map[string]Witness, map[string]any, []EventIndex, []IssueIndex, []Omission, error) {
	var omissions []Omission

	eventIndex, eventIDsByElement, err := BuildEventIndex(r.Events)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	issuesIndex, issueIDMap, err := BuildIssuesIndex(r)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	maxWitnesses := capOr(caps, "max_witnesses", 100000)
	maxRootCauses := capOr(caps, "max_root_causes_per_node", 16)
	maxTriggerEvents := capOr(caps, "max_trigger_events_per_node", 16)
	maxTopRoots := capOr(caps, "max_top_roots", 50)

	impactedIDs := append([]string(nil), r.ImpactedIDs...)
	sort.Strings(impactedIDs)
	impactedIDs = applyCap(impactedIDs, maxWitnesses, "details.witnesses", &omissions)

	witnesses := map[string]Witness{}

	for _, varID := range impactedIDs {
		reason := r.Reasons[varID]
		if reason == "" {
			reason = "UNKNOWN"
		}
		path := r.Paths[varID]

		var rootCauseIDs []string
		switch {
		case directReasons[reason]:
			rootCauseIDs = []string{varID}
		case reason == "MISSING_INPUT":
			missingIDs := append([]string(nil), r.MissingInputs[varID]...)
			sort.Strings(missingIDs)
			switch {
			case len(missingIDs) > 0:
				rootCauseIDs = missingIDs
			case len(path) > 0:
				rootCauseIDs = []string{path[0]}
			default:
				rootCauseIDs = []string{varID}
			}
		case reason == "MISSING_BINDING":
			rootCauseIDs = append([]string(nil), r.MissingBindings[varID]...)
			sort.Strings(rootCauseIDs)
		case reason == "AMBIGUOUS_BINDING":
			rootCauseIDs = append([]string(nil), r.AmbiguousBindings[varID]...)
			sort.Strings(rootCauseIDs)
		case reason == "TRANSITIVE_DEPENDENCY":
			if len(path) > 0 {
				rootCauseIDs = []string{path[0]}
			} else {
				rootCauseIDs = []string{varID}
			}
		default:
			rootCauseIDs = []string{varID}
		}
		rootCauseIDs = applyCap(rootCauseIDs, maxRootCauses, "details.witnesses."+varID+".root_cause_ids", &omissions)

		var distance int
		var predecessor *string
		switch {
		case directReasons[reason]:
			distance = 0
		case reason == "MISSING_BINDING" || reason == "AMBIGUOUS_BINDING":
			distance = 1
			if len(rootCauseIDs) > 0 {
				predecessor = &rootCauseIDs[0]
			}
		case len(path) > 1:
			distance = len(path) - 1
			predecessor = &path[len(path)-2]
		default:
			distance = 0
		}

		var triggeringEventIDs []string
		switch reason {
		case "DIRECT_CHANGE", "DIRECT_CHANGE_MISSING_INPUT":
			triggeringEventIDs = eventIDsByElement[varID]
		case "MISSING_INPUT":
			for _, rootID := range rootCauseIDs {
				triggeringEventIDs = append(triggeringEventIDs, eventIDsByElement[rootID]...)
			}
		case "TRANSITIVE_DEPENDENCY":
			if len(rootCauseIDs) > 0 {
				triggeringEventIDs = eventIDsByElement[rootCauseIDs[0]]
			}
		case "TRANSFORM_IMPL_CHANGED", "TRANSFORM_REMOVED":
			if transformRef, ok := transformRefOfV1OrV2(varID); ok {
				triggeringEventIDs = eventIDsByElement[transformRef]
			}
		}
		triggeringEventIDs = sortedUnique(triggeringEventIDs)
		triggeringEventIDs = applyCap(triggeringEventIDs, maxTriggerEvents, "details.witnesses."+varID+".triggering_event_ids", &omissions)

		var triggeringIssueIDs []string
		switch reason {
		case "MISSING_BINDING", "AMBIGUOUS_BINDING":
			for _, rootID := range rootCauseIDs {
				if issueID, ok := issueIDMap[issueKey{reason, rootID, varID}]; ok {
					triggeringIssueIDs = append(triggeringIssueIDs, issueID)
				}
			}
		case "MISSING_TRANSFORM_REF":
			if transformRef, ok := transformRefOfV2OrV1(varID); ok {
				if issueID, ok := issueIDMap[issueKey{reason, transformRef, varID}]; ok {
					triggeringIssueIDs = append(triggeringIssueIDs, issueID)
				}
			}
		}
		triggeringIssueIDs = sortedUnique(triggeringIssueIDs)
		triggeringIssueIDs = applyCap(triggeringIssueIDs, maxTriggerEvents, "details.witnesses."+varID+".triggering_issue_ids", &omissions)

		witnesses[varID] = Witness{
			Reason: reason, RootCauseIDs: rootCauseIDs, Distance: distance,
			Predecessor: predecessor, TriggeringEventIDs: triggeringEventIDs, TriggeringIssueIDs: triggeringIssueIDs,
		}
	}

	reasonCounts := map[string]int{}
	maxDistance := 0
	rootCounts := map[string]int{}
	for _, w := range witnesses {
		reasonCounts[w.Reason]++
		if w.Distance > maxDistance {
			maxDistance = w.Distance
		}
		for _, rootID := range w.RootCauseIDs {
			rootCounts[rootID]++
		}
	}

	type rootCount struct {
		ID            string `json:"id"`
		ImpactedCount int    `json:"impacted_count"`
	}
	var topRoots []rootCount
	for id, count := range rootCounts {
		topRoots = append(topRoots, rootCount{ID: id, ImpactedCount: count})
	}
	sort.Slice(topRoots, func(i, j int) bool {
		if topRoots[i].ImpactedCount != topRoots[j].ImpactedCount {
			return topRoots[i].ImpactedCount > topRoots[j].ImpactedCount
		}
		return topRoots[i].ID < topRoots[j].ID
	})
	if len(topRoots) > maxTopRoots {
		omitted := topRoots[maxTopRoots:]
		var sample []string
		for i, o := range omitted {
			if i >= 2 {
				break
			}
			sample = append(sample, o.ID)
		}
		omissions = append(omissions, Omission{
			Path: "details.summaries.top_root_causes", Cap: maxTopRoots,
			Actual: len(topRoots), OmittedCount: len(omitted), SampleIDs: sample,
		})
		topRoots = topRoots[:maxTopRoots]
	}

	eventsByType := map[string]int{}
	for _, e := range r.Events {
		eventsByType[e.ChangeType]++
	}

	summaries := map[string]any{
		"reasons":         reasonCounts,
		"events_by_type":  eventsByType,
		"max_distance":    maxDistance,
		"top_root_causes": topRoots,
	}

	return witnesses, summaries, eventIndex, issuesIndex, omissions, nil
}

func capOr(caps map[string]int, key string, def int) int {
	if v, ok := caps[key]; ok {
		return v
	}
	return def
}

func sortedUnique(items []string) []string {
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

// AllDetailsReport is the full machine-first artifact: the core report
// plus event/issue indexes, per-node witnesses, summaries, and cap
// accounting, addressed by a digest that callers can independently
// re-derive and check.
func AllDetailsReport(
	r *diffresult.DiffResult,
	inputs map[string]*InputDigest,
	caps map[string]int,
	transformRefOfV1OrV2, transformRefOfV2OrV1 TransformRefLookup,
) (map[string]any, error) {
	mergedCaps := map[string]int{}
	for k, v := range DefaultCaps {
		mergedCaps[k] = v
	}
	for k, v := range caps {
		mergedCaps[k] = v
	}

	core := CoreReport(r)
	coreDigest, err := CoreDigest(r)
	if err != nil {
		return nil, err
	}
	witnesses, summaries, eventIndex, issuesIndex, omissions, err := Witnesses(r, mergedCaps, transformRefOfV1OrV2, transformRefOfV2OrV1)
	if err != nil {
		return nil, err
	}

	report := map[string]any{
		"report_schema_version":      AllDetailsSchemaVersion,
		"verifier_contract_version":  VerifierContractVersion,
		"canonicalization_policy_id": CanonicalizationPolicyID,
		"inputs":                     inputs,
		"core_digest":                coreDigest,
		"details": map[string]any{
			"event_index":  eventIndex,
			"issues_index": issuesIndex,
			"witnesses":    witnesses,
			"summaries":    summaries,
			"caps":         mergedCaps,
			"omissions":    omissions,
		},
	}
	for k, v := range core {
		report[k] = v
	}
	return report, nil
}
