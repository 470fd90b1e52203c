// Package bindings connects raw extract columns to stable source ids, and
// detects the two binding failure modes impact analysis must know about:
// a source id with no bound column, and a source id bound to more than one.
package bindings

import (
	"sort"
	"strings"

	"github.com/cheshbon/cheshbon/internal/spec"
)

// RawColumn is a raw column present in an extract.
type RawColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// RawSchema is a raw schema snapshot from an extract.
type RawSchema struct {
	Table   string      `json:"table"`
	Columns []RawColumn `json:"columns"`
}

// ColumnNames returns the set of all column names in the schema.
func (s *RawSchema) ColumnNames() map[string]bool {
	out := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		out[c.Name] = true
	}
	return out
}

// Bindings maps raw column names to stable source ids for one table.
type Bindings struct {
	Table    string            `json:"table"`
	Bindings map[string]string `json:"bindings"` // raw_column_name -> source_id
}

// BoundSourceIDs returns the set of source ids that have a binding.
func (b *Bindings) BoundSourceIDs() map[string]bool {
	out := make(map[string]bool, len(b.Bindings))
	for _, sourceID := range b.Bindings {
		out[sourceID] = true
	}
	return out
}

// RawColumnForSource returns the raw column name bound to sourceID, if any.
func (b *Bindings) RawColumnForSource(sourceID string) (string, bool) {
	for rawName, boundID := range b.Bindings {
		if boundID == sourceID {
			return rawName, true
		}
	}
	return "", false
}

// EventType is the closed set of binding-related change events.
type EventType string

const (
	RawColumnAdded   EventType = "RAW_COLUMN_ADDED"
	RawColumnRemoved EventType = "RAW_COLUMN_REMOVED"
	RawColumnRenamed EventType = "RAW_COLUMN_RENAMED"
	BindingAdded     EventType = "BINDING_ADDED"
	BindingRemoved   EventType = "BINDING_REMOVED"
	BindingChanged   EventType = "BINDING_CHANGED"
	BindingInvalid   EventType = "BINDING_INVALID"
)

// Event is a single binding-related change or validation finding.
type Event struct {
	EventType EventType      `json:"event_type"`
	Element   string         `json:"element"`
	OldValue  *string        `json:"old_value,omitempty"`
	NewValue  *string        `json:"new_value,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func strp(s string) *string { return &s }

// Validate checks bindings against a raw schema, reporting every binding
// whose raw column is absent from the schema, plus the set of schema
// columns left unbound (informational).
func Validate(schema *RawSchema, b *Bindings) ([]Event, map[string]bool) {
	var events []Event

	schemaColumns := schema.ColumnNames()
	boundColumns := make(map[string]bool, len(b.Bindings))
	for rawCol := range b.Bindings {
		boundColumns[rawCol] = true
	}

	var rawCols []string
	for rawCol := range b.Bindings {
		rawCols = append(rawCols, rawCol)
	}
	sort.Strings(rawCols)
	for _, rawCol := range rawCols {
		sourceID := b.Bindings[rawCol]
		if !schemaColumns[rawCol] {
			events = append(events, Event{
				EventType: BindingInvalid,
				Element:   sourceID,
				OldValue:  strp(rawCol),
				Details:   map[string]any{"reason": "raw column '" + rawCol + "' not found in schema"},
			})
		}
	}

	unmapped := map[string]bool{}
	for col := range schemaColumns {
		if !boundColumns[col] {
			unmapped[col] = true
		}
	}

	return events, unmapped
}

// CheckMissingBindings reports, for every derived variable, the set of
// required source ids that have no bound raw column.
func CheckMissingBindings(s *spec.MappingSpec, b *Bindings) map[string]map[string]bool {
	missing := map[string]map[string]bool{}
	bound := b.BoundSourceIDs()

	for _, d := range s.Derived {
		var missingSources map[string]bool
		for _, in := range d.Inputs {
			if strings.HasPrefix(in, "s:") && !bound[in] {
				if missingSources == nil {
					missingSources = map[string]bool{}
				}
				missingSources[in] = true
			}
		}
		if len(missingSources) > 0 {
			missing[d.ID] = missingSources
		}
	}

	return missing
}

// CheckAmbiguousBindings reports every source id bound to more than one raw
// column, with the raw column names sorted for stable reporting.
func CheckAmbiguousBindings(b *Bindings) map[string][]string {
	sourceToRawColumns := map[string]map[string]bool{}
	for rawCol, sourceID := range b.Bindings {
		if sourceToRawColumns[sourceID] == nil {
			sourceToRawColumns[sourceID] = map[string]bool{}
		}
		sourceToRawColumns[sourceID][rawCol] = true
	}

	var sourceIDs []string
	for id := range sourceToRawColumns {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	ambiguous := map[string][]string{}
	for _, sourceID := range sourceIDs {
		rawColumns := sourceToRawColumns[sourceID]
		if len(rawColumns) > 1 {
			var cols []string
			for c := range rawColumns {
				cols = append(cols, c)
			}
			sort.Strings(cols)
			ambiguous[sourceID] = cols
		}
	}

	return ambiguous
}

// Diff computes the binding-change events between two binding versions.
func Diff(v1, v2 *Bindings) []Event {
	var events []Event

	v1Keys := make(map[string]bool, len(v1.Bindings))
	for k := range v1.Bindings {
		v1Keys[k] = true
	}
	v2Keys := make(map[string]bool, len(v2.Bindings))
	for k := range v2.Bindings {
		v2Keys[k] = true
	}

	for rawCol := range v1Keys {
		if !v2Keys[rawCol] {
			events = append(events, Event{EventType: BindingRemoved, Element: v1.Bindings[rawCol], OldValue: strp(rawCol)})
		}
	}
	for rawCol := range v2Keys {
		if !v1Keys[rawCol] {
			events = append(events, Event{EventType: BindingAdded, Element: v2.Bindings[rawCol], NewValue: strp(rawCol)})
		}
	}
	for rawCol := range v1Keys {
		if !v2Keys[rawCol] {
			continue
		}
		sourceIDV1 := v1.Bindings[rawCol]
		sourceIDV2 := v2.Bindings[rawCol]
		if sourceIDV1 != sourceIDV2 {
			events = append(events, Event{
				EventType: BindingChanged, Element: sourceIDV1,
				OldValue: strp(rawCol), NewValue: strp(rawCol),
				Details: map[string]any{"old_source_id": sourceIDV1, "new_source_id": sourceIDV2},
			})
		}
	}

	v1BySource := map[string]string{}
	for col, sid := range v1.Bindings {
		v1BySource[sid] = col
	}
	v2BySource := map[string]string{}
	for col, sid := range v2.Bindings {
		v2BySource[sid] = col
	}
	var commonSourceIDs []string
	for sid := range v1BySource {
		if _, ok := v2BySource[sid]; ok {
			commonSourceIDs = append(commonSourceIDs, sid)
		}
	}
	sort.Strings(commonSourceIDs)
	for _, sourceID := range commonSourceIDs {
		colV1 := v1BySource[sourceID]
		colV2 := v2BySource[sourceID]
		if colV1 != colV2 {
			events = append(events, Event{
				EventType: RawColumnRenamed, Element: sourceID,
				OldValue: strp(colV1), NewValue: strp(colV2),
				Details: map[string]any{"source_id": sourceID},
			})
		}
	}

	return events
}
