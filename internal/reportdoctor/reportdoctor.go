// Package reportdoctor independently re-derives a diff run from raw
// inputs and checks a previously-produced all-details report against it,
// clause by clause. It never panics or stops early: every clause runs and
// records its own pass/fail, so a caller always gets a full diagnosis.
package reportdoctor

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cheshbon/cheshbon/internal/bindings"
	"github.com/cheshbon/cheshbon/internal/canon"
	"github.com/cheshbon/cheshbon/internal/diffengine"
	"github.com/cheshbon/cheshbon/internal/diffresult"
	"github.com/cheshbon/cheshbon/internal/graph"
	"github.com/cheshbon/cheshbon/internal/registry"
	"github.com/cheshbon/cheshbon/internal/report"
	"github.com/cheshbon/cheshbon/internal/spec"
)

// Clause is one ordered verification step.
type Clause struct {
	ID      string         `json:"id"`
	OK      bool           `json:"ok"`
	Details map[string]any `json:"details"`
}

// Summary tallies the clause outcomes.
type Summary struct {
	TotalClauses    int      `json:"total_clauses"`
	OKClauses       int      `json:"ok_clauses"`
	FailedClauses   int      `json:"failed_clauses"`
	FailedClauseIDs []string `json:"failed_clause_ids"`
}

// VerifyResult is the full verification outcome.
type VerifyResult struct {
	OK      bool     `json:"ok"`
	Clauses []Clause `json:"clauses"`
	Summary Summary  `json:"summary"`
}

// Inputs is the raw material the doctor recomputes a diff run from, to
// check the report's claims against ground truth rather than trusting the
// report's own self-description.
type Inputs struct {
	SpecV1      *spec.MappingSpec
	SpecV2      *spec.MappingSpec
	RegistryV1  *registry.TransformRegistry
	RegistryV2  *registry.TransformRegistry
	BindingsV2  *bindings.Bindings
	RawSchemaV2 *bindings.RawSchema
}

const (
	modeSample = "sample"
	modeStrict = "strict"
)

var zeroDistanceReasons = map[string]bool{
	"DIRECT_CHANGE": true, "DIRECT_CHANGE_MISSING_INPUT": true,
	"TRANSFORM_IMPL_CHANGED": true, "TRANSFORM_REMOVED": true, "MISSING_TRANSFORM_REF": true,
}
var noEventReasons = map[string]bool{
	"MISSING_BINDING": true, "AMBIGUOUS_BINDING": true, "MISSING_TRANSFORM_REF": true,
}

const distanceSampleN = 50

// Verify checks reportDoc (an all-details report, either decoded from JSON
// or as built by report.AllDetailsReport) against an independent
// recomputation from in. reportDoc is first normalized through a JSON round
// trip, so both forms are checked identically. mode is "sample" (bounded
// distance checking, suitable for large reports) or "strict" (checks every
// node); anything else is treated as "sample".
func Verify(reportDoc map[string]any, in Inputs, mode string) VerifyResult {
	if mode != modeStrict {
		mode = modeSample
	}
	if b, err := json.Marshal(reportDoc); err == nil {
		var decoded map[string]any
		if json.Unmarshal(b, &decoded) == nil {
			reportDoc = decoded
		}
	}

	var clauses []Clause
	clauses = append(clauses, headerContract(reportDoc))
	clauses = append(clauses, inputsDigest(reportDoc, in))

	out, diffErr := diffengine.Compute(diffengine.Inputs{
		SpecV1: in.SpecV1, SpecV2: in.SpecV2,
		RegistryV1: in.RegistryV1, RegistryV2: in.RegistryV2,
		BindingsV2: in.BindingsV2,
	}, true)

	clauses = append(clauses, coreDigestClause(reportDoc, out, diffErr))
	clauses = append(clauses, witnessInvariants(reportDoc, out, diffErr, in, mode))
	clauses = append(clauses, accountingInvariants(reportDoc, out, diffErr))

	return summarize(clauses)
}

func summarize(clauses []Clause) VerifyResult {
	summary := Summary{TotalClauses: len(clauses)}
	allOK := true
	for _, c := range clauses {
		if c.OK {
			summary.OKClauses++
		} else {
			summary.FailedClauses++
			summary.FailedClauseIDs = append(summary.FailedClauseIDs, c.ID)
			allOK = false
		}
	}
	return VerifyResult{OK: allOK, Clauses: clauses, Summary: summary}
}

func headerContract(reportDoc map[string]any) Clause {
	details := map[string]any{}
	ok := true
	if v, _ := reportDoc["report_schema_version"].(string); v != report.AllDetailsSchemaVersion {
		ok = false
		details["report_schema_version"] = reportDoc["report_schema_version"]
	}
	if v, _ := reportDoc["verifier_contract_version"].(string); v != report.VerifierContractVersion {
		ok = false
		details["verifier_contract_version"] = reportDoc["verifier_contract_version"]
	}
	if v, _ := reportDoc["canonicalization_policy_id"].(string); v != report.CanonicalizationPolicyID {
		ok = false
		details["canonicalization_policy_id"] = reportDoc["canonicalization_policy_id"]
	}
	return Clause{ID: "header_contract", OK: ok, Details: details}
}

// structDigest mirrors report_contract's canonical-JSON digest of a
// parsed document: the struct is round-tripped through encoding/json so
// the canonicalizer sees plain JSON values, matching what a reader of the
// same file from disk would hash.
func structDigest(v any) (string, error) {
	b, err := jsonRoundTrip(v)
	if err != nil {
		return "", err
	}
	decoded, err := canon.DecodeJSON(b)
	if err != nil {
		return "", err
	}
	return canon.SHA256Canonical(decoded)
}

func inputsDigest(reportDoc map[string]any, in Inputs) Clause {
	details := map[string]any{}
	ok := true

	expected := map[string]any{}
	if in.SpecV1 != nil {
		expected["spec_v1"] = in.SpecV1
	}
	if in.SpecV2 != nil {
		expected["spec_v2"] = in.SpecV2
	}
	if in.RegistryV1 != nil {
		expected["registry_v1"] = in.RegistryV1
	}
	if in.RegistryV2 != nil {
		expected["registry_v2"] = in.RegistryV2
	}
	if in.BindingsV2 != nil {
		expected["bindings_v2"] = in.BindingsV2
	}
	if in.RawSchemaV2 != nil {
		expected["raw_schema_v2"] = in.RawSchemaV2
	}

	reportedInputs, _ := reportDoc["inputs"].(map[string]any)

	var keys []string
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		expectedDigest, err := structDigest(expected[key])
		if err != nil {
			ok = false
			details["error"] = err.Error()
			continue
		}
		var reportedDigest string
		if entry, ok2 := reportedInputs[key].(map[string]any); ok2 {
			reportedDigest, _ = entry["digest"].(string)
		}
		if expectedDigest != reportedDigest {
			ok = false
			details[key] = map[string]any{"expected": expectedDigest, "reported": reportedDigest}
		}
	}
	return Clause{ID: "inputs_digest", OK: ok, Details: details}
}

func coreDigestClause(reportDoc map[string]any, out *diffengine.Output, diffErr error) Clause {
	details := map[string]any{}
	if diffErr != nil {
		return Clause{ID: "core_digest", OK: false, Details: map[string]any{"error": diffErr.Error()}}
	}
	expected, err := report.CoreDigest(out.DiffResult)
	if err != nil {
		return Clause{ID: "core_digest", OK: false, Details: map[string]any{"error": err.Error()}}
	}
	reported, _ := reportDoc["core_digest"].(string)
	ok := expected == reported
	if !ok {
		details["expected"] = expected
		details["reported"] = reported
	}
	return Clause{ID: "core_digest", OK: ok, Details: details}
}

func expectedWitnessIDs(r *diffresult.DiffResult) []string {
	var ids []string
	for _, id := range r.ImpactedIDs {
		if len(id) > 2 && id[:2] == "d:" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func selectDistanceIDs(witnesses map[string]map[string]any, mode string) []string {
	var ids []string
	for id := range witnesses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if mode == modeStrict {
		return ids
	}

	mustCheck := map[string]bool{}
	maxDistance := 0
	for varID, w := range witnesses {
		reason, _ := w["reason"].(string)
		distance := intOf(w["distance"])
		predecessor, hasPredecessor := w["predecessor"]
		if reason == "DIRECT_CHANGE" || reason == "DIRECT_CHANGE_MISSING_INPUT" {
			mustCheck[varID] = true
		}
		if distance > maxDistance {
			maxDistance = distance
		}
		if distance == 0 && !zeroDistanceReasons[reason] {
			mustCheck[varID] = true
		}
		if distance > 0 && zeroDistanceReasons[reason] {
			mustCheck[varID] = true
		}
		if distance == 0 && hasPredecessor && predecessor != nil {
			mustCheck[varID] = true
		}
	}

	var selected []string
	for id := range mustCheck {
		selected = append(selected, id)
	}
	sort.Strings(selected)

	sampleM := 10
	if sampleM > distanceSampleN/5 {
		sampleM = distanceSampleN / 5
	}
	if sampleM < 1 {
		sampleM = 1
	}
	if maxDistance > 0 {
		var maxDistanceIDs []string
		for varID, w := range witnesses {
			if intOf(w["distance"]) == maxDistance {
				maxDistanceIDs = append(maxDistanceIDs, varID)
			}
		}
		sort.Strings(maxDistanceIDs)
		for _, varID := range maxDistanceIDs {
			if !mustCheck[varID] && len(selected) < distanceSampleN+sampleM {
				selected = append(selected, varID)
			}
			if len(selected) >= len(mustCheck)+sampleM {
				break
			}
		}
	}

	selectedSet := map[string]bool{}
	for _, id := range selected {
		selectedSet[id] = true
	}
	var remaining []string
	for _, id := range ids {
		if !selectedSet[id] {
			remaining = append(remaining, id)
		}
	}
	left, right := 0, len(remaining)-1
	for len(selected) < distanceSampleN && left <= right {
		selected = append(selected, remaining[left])
		left++
		if len(selected) >= distanceSampleN || left > right {
			break
		}
		selected = append(selected, remaining[right])
		right--
	}
	return selected
}

func witnessInvariants(reportDoc map[string]any, out *diffengine.Output, diffErr error, in Inputs, mode string) Clause {
	details := map[string]any{}
	if diffErr != nil {
		return Clause{ID: "witness_invariants", OK: false, Details: map[string]any{"error": diffErr.Error()}}
	}
	ok := true

	graphV1, err := graph.Build(in.SpecV1)
	if err != nil {
		return Clause{ID: "witness_invariants", OK: false, Details: map[string]any{"error": err.Error()}}
	}
	graphV2, err := graph.Build(in.SpecV2)
	if err != nil {
		return Clause{ID: "witness_invariants", OK: false, Details: map[string]any{"error": err.Error()}}
	}

	detailsSection, _ := reportDoc["details"].(map[string]any)
	rawWitnesses, _ := detailsSection["witnesses"].(map[string]any)
	witnesses := map[string]map[string]any{}
	for id, w := range rawWitnesses {
		if wm, ok2 := w.(map[string]any); ok2 {
			witnesses[id] = wm
		}
	}

	expectedIDs := map[string]bool{}
	for _, id := range expectedWitnessIDs(out.DiffResult) {
		expectedIDs[id] = true
	}
	var unexpected []string
	for id := range witnesses {
		if !expectedIDs[id] {
			unexpected = append(unexpected, id)
		}
	}
	if len(unexpected) > 0 {
		ok = false
		sort.Strings(unexpected)
		details["unexpected_witness_ids"] = unexpected
	}

	eventIndexRaw, _ := detailsSection["event_index"].([]any)
	issueIndexRaw, _ := detailsSection["issues_index"].([]any)
	eventMap := map[string]map[string]any{}
	for _, e := range eventIndexRaw {
		if em, ok2 := e.(map[string]any); ok2 {
			if id, ok3 := em["event_id"].(string); ok3 {
				eventMap[id] = em
			}
		}
	}
	issueMap := map[string]map[string]any{}
	for _, i := range issueIndexRaw {
		if im, ok2 := i.(map[string]any); ok2 {
			if id, ok3 := im["issue_id"].(string); ok3 {
				issueMap[id] = im
			}
		}
	}

	allowedV1Reasons := map[string]bool{"MISSING_INPUT": true, "DIRECT_CHANGE_MISSING_INPUT": true, "TRANSITIVE_DEPENDENCY": true}

	distanceIDs := selectDistanceIDs(witnesses, mode)
	distanceIDSet := map[string]bool{}
	for _, id := range distanceIDs {
		distanceIDSet[id] = true
	}
	var distanceFailed []string

	var varIDs []string
	for id := range witnesses {
		varIDs = append(varIDs, id)
	}
	sort.Strings(varIDs)

	for _, varID := range varIDs {
		w := witnesses[varID]
		reason, _ := w["reason"].(string)
		if out.DiffResult.Reasons[varID] != reason {
			ok = false
			appendStr(details, "reason_mismatch", varID)
		}

		rootIDs := stringSliceOf(w["root_cause_ids"])
		var predecessor string
		if p, hasP := w["predecessor"]; hasP && p != nil {
			predecessor, _ = p.(string)
		}
		distance := intOf(w["distance"])
		trigEvents := stringSliceOf(w["triggering_event_ids"])
		trigIssues := stringSliceOf(w["triggering_issue_ids"])

		for _, rootID := range rootIDs {
			if graphV2.Nodes[rootID] {
				continue
			}
			if allowedV1Reasons[reason] && graphV1.Nodes[rootID] {
				continue
			}
			ok = false
			appendStr(details, "invalid_root_cause_id", rootID)
		}

		if noEventReasons[reason] {
			if len(trigEvents) > 0 {
				ok = false
				appendStr(details, "event_linkage", varID)
			}
		} else if len(trigIssues) > 0 {
			ok = false
			appendStr(details, "issue_linkage", varID)
		}
		if (reason == "MISSING_BINDING" || reason == "AMBIGUOUS_BINDING" || reason == "MISSING_TRANSFORM_REF") && len(trigIssues) == 0 {
			ok = false
			appendStr(details, "missing_issue_links", varID)
		}

		for _, eid := range trigEvents {
			if _, found := eventMap[eid]; !found {
				ok = false
				appendStr(details, "missing_event_ids", eid)
			}
		}
		for _, iid := range trigIssues {
			if _, found := issueMap[iid]; !found {
				ok = false
				appendStr(details, "missing_issue_ids", iid)
			}
		}

		transformRef := transformRefOf(in.SpecV2, in.SpecV1, varID)

		if len(trigEvents) > 0 {
			for _, eid := range trigEvents {
				event := eventMap[eid]
				elementID, _ := event["element_id"].(string)
				switch reason {
				case "DIRECT_CHANGE", "DIRECT_CHANGE_MISSING_INPUT":
					if elementID != varID {
						ok = false
						appendStr(details, "irrelevant_event", varID)
					}
				case "MISSING_INPUT", "TRANSITIVE_DEPENDENCY":
					if !contains(rootIDs, elementID) {
						ok = false
						appendStr(details, "irrelevant_event", varID)
					}
				case "TRANSFORM_IMPL_CHANGED", "TRANSFORM_REMOVED":
					if elementID != transformRef && elementID != varID {
						ok = false
						appendStr(details, "irrelevant_event", varID)
					}
				}
			}
		}

		if len(trigIssues) > 0 {
			for _, iid := range trigIssues {
				issue := issueMap[iid]
				issueType, _ := issue["issue_type"].(string)
				elementID, _ := issue["element_id"].(string)
				issueDetails, _ := issue["details"].(map[string]any)
				affectedID, _ := issueDetails["affected_id"].(string)
				switch reason {
				case "MISSING_BINDING", "AMBIGUOUS_BINDING":
					if issueType != reason || !contains(rootIDs, elementID) || affectedID != varID {
						ok = false
						appendStr(details, "irrelevant_issue", varID)
					}
				case "MISSING_TRANSFORM_REF":
					if issueType != reason || elementID != transformRef || affectedID != varID {
						ok = false
						appendStr(details, "irrelevant_issue", varID)
					}
				}
			}
		}

		if predecessor != "" {
			depsV2 := graphV2.GetDependencies(varID)
			depsV1 := graphV1.GetDependencies(varID)
			if !depsV2[predecessor] && !depsV1[predecessor] {
				ok = false
				appendStr(details, "invalid_predecessor", varID)
			}
		}

		if distanceIDSet[varID] {
			if zeroDistanceReasons[reason] && distance != 0 {
				ok = false
				distanceFailed = append(distanceFailed, varID)
			} else if distance > 0 {
				okDistance := false
				for _, rootID := range rootIDs {
					g := graphV2
					if !graphV2.Nodes[rootID] {
						g = graphV1
					}
					if path := g.GetDependencyPath(rootID, varID); path != nil && len(path)-1 == distance {
						okDistance = true
						break
					}
				}
				if !okDistance {
					ok = false
					distanceFailed = append(distanceFailed, varID)
				}
			}
			if distance == 1 && predecessor != "" && len(rootIDs) > 0 && !contains(rootIDs, predecessor) {
				ok = false
				appendStr(details, "root_predecessor_mismatch", varID)
			}
		}
	}

	if len(distanceIDs) > 0 {
		details["distance_check_mode"] = mode
		if mode == modeStrict {
			details["distance_check_n"] = len(distanceIDs)
			details["distance_check_rule_id"] = "strict:all"
		} else {
			details["distance_check_n"] = distanceSampleN
			details["distance_check_rule_id"] = "v1:first_last_max_suspicious"
		}
		details["distance_checked_ids_count"] = len(distanceIDs)
		if len(distanceFailed) > 0 {
			failedSorted := dedupSorted(distanceFailed)
			sample := firstLastSample(failedSorted)
			details["distance_failed_ids_sample"] = sample
		}
	}

	return Clause{ID: "witness_invariants", OK: ok, Details: details}
}

func accountingInvariants(reportDoc map[string]any, out *diffengine.Output, diffErr error) Clause {
	if diffErr != nil {
		return Clause{ID: "accounting_invariants", OK: false, Details: map[string]any{"error": diffErr.Error()}}
	}
	details := map[string]any{}
	ok := true

	detailsSection, _ := reportDoc["details"].(map[string]any)
	rawWitnesses, _ := detailsSection["witnesses"].(map[string]any)
	summaries, _ := detailsSection["summaries"].(map[string]any)
	capsRaw, _ := detailsSection["caps"].(map[string]any)
	omissionsRaw, _ := detailsSection["omissions"].([]any)

	requiredCaps := []string{"max_witnesses", "max_root_causes_per_node", "max_trigger_events_per_node", "max_top_roots"}
	for _, c := range requiredCaps {
		if _, found := capsRaw[c]; !found {
			ok = false
			details["caps_missing"] = true
		}
	}

	expectedWitnessIDs := expectedWitnessIDs(out.DiffResult)
	expectedCount := len(expectedWitnessIDs)
	var witnessKeys []string
	for k := range rawWitnesses {
		witnessKeys = append(witnessKeys, k)
	}
	sort.Strings(witnessKeys)

	maxWitnesses := intOf(capsRaw["max_witnesses"])
	capApplied := expectedCount
	if maxWitnesses > 0 && maxWitnesses < expectedCount {
		capApplied = maxWitnesses
	}
	if len(witnessKeys) != capApplied {
		ok = false
		details["witness_count_mismatch"] = true
	}

	var witnessOmission map[string]any
	for _, o := range omissionsRaw {
		if om, ok2 := o.(map[string]any); ok2 {
			if path, _ := om["path"].(string); path == "details.witnesses" {
				witnessOmission = om
				break
			}
		}
	}
	if expectedCount > capApplied && witnessOmission == nil {
		ok = false
		details["missing_witness_omission"] = true
	}

	reasonCounts := map[string]int{}
	maxDistance := 0
	for _, w := range rawWitnesses {
		wm, _ := w.(map[string]any)
		reason, _ := wm["reason"].(string)
		if reason == "" {
			reason = "UNKNOWN"
		}
		reasonCounts[reason]++
		if d := intOf(wm["distance"]); d > maxDistance {
			maxDistance = d
		}
	}
	if !reasonCountsMatch(summaries["reasons"], reasonCounts) {
		ok = false
		details["reasons_mismatch"] = true
	}
	if intOf(summaries["max_distance"]) != maxDistance {
		ok = false
		details["max_distance_mismatch"] = true
	}

	eventIndexRaw, _ := detailsSection["event_index"].([]any)
	if len(eventIndexRaw) != len(out.DiffResult.Events) {
		ok = false
		details["event_index_count_mismatch"] = true
	}
	expectedIssuesIndex, _, err := report.BuildIssuesIndex(out.DiffResult)
	if err != nil {
		ok = false
		details["error"] = err.Error()
	}
	issuesIndexRaw, _ := detailsSection["issues_index"].([]any)
	if len(issuesIndexRaw) != len(expectedIssuesIndex) {
		ok = false
		details["issues_index_count_mismatch"] = true
	}

	var omissionsInvalid, omissionsMismatch []any
	for _, o := range omissionsRaw {
		om, isMap := o.(map[string]any)
		if !isMap {
			continue
		}
		cap, hasCap := om["cap"]
		actual, hasActual := om["actual"]
		omittedCount, hasOmitted := om["omitted_count"]
		path, hasPath := om["path"]
		sampleIDs, hasSample := om["sample_ids"]
		if !hasCap || !hasActual || !hasOmitted || !hasPath || !hasSample {
			ok = false
			omissionsInvalid = append(omissionsInvalid, om)
			continue
		}
		if intOf(actual)-intOf(cap) != intOf(omittedCount) {
			ok = false
			omissionsMismatch = append(omissionsMismatch, om)
		}

		if pathStr, _ := path.(string); pathStr == "details.witnesses" {
			if maxWitnesses > 0 && intOf(cap) != maxWitnesses {
				ok = false
				details["witness_cap_mismatch"] = true
			}
			if intOf(actual) != expectedCount {
				ok = false
				details["witness_actual_mismatch"] = true
			}
			expectedOmitted := expectedCount - len(witnessKeys)
			if expectedOmitted < 0 {
				expectedOmitted = 0
			}
			if intOf(omittedCount) != expectedOmitted {
				ok = false
				details["witness_omitted_count_mismatch"] = true
			}
			witnessKeySet := map[string]bool{}
			for _, k := range witnessKeys {
				witnessKeySet[k] = true
			}
			var omittedIDs []string
			for _, id := range expectedWitnessIDs {
				if !witnessKeySet[id] {
					omittedIDs = append(omittedIDs, id)
				}
			}
			expectedSample := firstLastSample(omittedIDs)
			if !stringSlicesEqual(stringSliceOf(sampleIDs), expectedSample) {
				ok = false
				details["witness_sample_mismatch"] = true
			}
		}
	}
	if len(omissionsInvalid) > 0 {
		details["omissions_invalid"] = omissionsInvalid
	}
	if len(omissionsMismatch) > 0 {
		details["omissions_mismatch"] = omissionsMismatch
	}

	return Clause{ID: "accounting_invariants", OK: ok, Details: details}
}

func transformRefOf(specV2, specV1 *spec.MappingSpec, derivedID string) string {
	if d, ok := specV2.DerivedByID(derivedID); ok {
		return d.TransformRef
	}
	if d, ok := specV1.DerivedByID(derivedID); ok {
		return d.TransformRef
	}
	return ""
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func stringSliceOf(v any) []string {
	s, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(s))
	for _, item := range s {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

func appendStr(details map[string]any, key, value string) {
	existing, _ := details[key].([]string)
	details[key] = append(existing, value)
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

func firstLastSample(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	sample := []string{ids[0]}
	if len(ids) > 1 {
		sample = append(sample, ids[len(ids)-1])
	}
	return sample
}

func stringSlicesEqual(a, b []string) bool {
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

func reasonCountsMatch(reported any, expected map[string]int) bool {
	reportedMap, ok := reported.(map[string]any)
	if !ok {
		return len(expected) == 0
	}
	if len(reportedMap) != len(expected) {
		return false
	}
	for k, v := range expected {
		if intOf(reportedMap[k]) != v {
			return false
		}
	}
	return true
}

func jsonRoundTrip(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("reportdoctor: marshal: %w", err)
	}
	return b, nil
}
