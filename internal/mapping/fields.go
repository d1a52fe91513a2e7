package mapping

import (
	"fmt"
	"sort"

	"github.com/twinmind/telegraf-importer/internal/document"
)

// Target field names of a candidate point.
const (
	FieldMeasurement         = "measurement"
	FieldOriginalPointName   = "original_point_name"
	FieldNormalizedPointName = "normalized_point_name"
	FieldPointComment        = "point_comment"
	FieldDataType            = "data_type"
)

// TargetFields is the closed set of bindable fields in display order.
var TargetFields = []string{
	FieldMeasurement,
	FieldOriginalPointName,
	FieldNormalizedPointName,
	FieldPointComment,
	FieldDataType,
}

// IsTargetField reports whether name belongs to TargetFields.
func IsTargetField(name string) bool {
	for _, f := range TargetFields {
		if f == name {
			return true
		}
	}
	return false
}

// Binding points a target field at a source value. Per-row bindings resolve SourceKey against each primary list
// element; context bindings resolve it against the table at ContextPath.
type Binding struct {
	SourceKey   string `json:"source_key"`
	IsContext   bool   `json:"is_context"`
	ContextPath string `json:"context_path,omitempty"`
}

// Bindings maps target field names to their source. Unbound targets are absent.
type Bindings map[string]Binding

// Candidate is a source field offered for binding.
type Candidate struct {
	Display string
	Binding Binding
}

// CandidateFields lists the bindable source fields of the selection. The primary list offers the keys of its first
// element; every other selection offers the keys of the table at its path as context fields. Display names are
// prefixed with the selection's key, or with its full path when another selection shares that key.
func CandidateFields(doc map[string]any, sel *Selection) []Candidate {
	sources := sel.Sources()
	keyUses := make(map[string]int, len(sources))
	for _, src := range sources {
		keyUses[src.Key]++
	}
	prefixOf := func(src SelectedSource) string {
		if keyUses[src.Key] > 1 {
			return src.Path
		}
		return src.Key
	}

	var out []Candidate
	for _, src := range sources {
		if sel.IsPrimary(src.Path) {
			rows, err := document.ResolveList(doc, src.Path)
			if err != nil || len(rows) == 0 {
				continue
			}
			first, ok := rows[0].(map[string]any)
			if !ok {
				continue
			}
			for _, key := range document.FlattenKeys(first) {
				out = append(out, Candidate{
					Display: prefixOf(src) + "." + key,
					Binding: Binding{SourceKey: key},
				})
			}
			continue
		}

		table, ok := contextTable(document.Resolve(doc, src.Path))
		if !ok {
			continue
		}
		for _, key := range document.FlattenKeys(table) {
			out = append(out, Candidate{
				Display: prefixOf(src) + "." + key,
				Binding: Binding{SourceKey: key, IsContext: true, ContextPath: src.Path},
			})
		}
	}
	return out
}

// contextTable returns the table a context selection offers keys from. A list of tables offers the keys of its
// first element; resolving such a binding later fans out over every element.
func contextTable(v any) (map[string]any, bool) {
	if table, ok := v.(map[string]any); ok {
		return table, true
	}
	if list, ok := v.([]any); ok && len(list) > 0 {
		table, ok := list[0].(map[string]any)
		return table, ok
	}
	return nil, false
}

// BuildBindings resolves display-name choices into bindings. Targets without a choice are omitted.
func BuildBindings(targets []string, candidates []Candidate, choices map[string]string) (Bindings, error) {
	allowed := make(map[string]bool, len(targets))
	for _, t := range targets {
		allowed[t] = true
	}
	byDisplay := indexCandidates(candidates)

	bindings := make(Bindings, len(choices))
	for _, target := range sortedChoiceKeys(choices) {
		display := choices[target]
		if !allowed[target] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
		}
		if display == "" {
			continue
		}
		candidate, ok := byDisplay[display]
		if !ok {
			return nil, fmt.Errorf("%w: %s (for %s)", ErrUnknownSource, display, target)
		}
		bindings[target] = candidate.Binding
	}
	return bindings, nil
}

// Mapping records the chosen source field per target. It survives navigation between wizard steps.
type Mapping struct {
	choices map[string]string
}

// Bind maps target to the candidate with the given display name.
func (m *Mapping) Bind(target, display string, candidates []Candidate) error {
	if !IsTargetField(target) {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	if _, ok := indexCandidates(candidates)[display]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, display)
	}
	if m.choices == nil {
		m.choices = make(map[string]string)
	}
	m.choices[target] = display
	return nil
}

// Unbind clears the binding of target.
func (m *Mapping) Unbind(target string) {
	delete(m.choices, target)
}

// Choices returns a copy of the target to display-name choices.
func (m *Mapping) Choices() map[string]string {
	out := make(map[string]string, len(m.choices))
	for k, v := range m.choices {
		out[k] = v
	}
	return out
}

// Prune drops choices that no longer match a candidate and returns the affected targets in sorted order.
func (m *Mapping) Prune(candidates []Candidate) []string {
	byDisplay := indexCandidates(candidates)
	var dropped []string
	for _, target := range sortedChoiceKeys(m.choices) {
		if _, ok := byDisplay[m.choices[target]]; !ok {
			delete(m.choices, target)
			dropped = append(dropped, target)
		}
	}
	return dropped
}

// Bindings resolves the current choices against candidates.
func (m *Mapping) Bindings(candidates []Candidate) (Bindings, error) {
	return BuildBindings(TargetFields, candidates, m.choices)
}

// Reset clears all choices.
func (m *Mapping) Reset() {
	m.choices = nil
}

func indexCandidates(candidates []Candidate) map[string]Candidate {
	out := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		if _, exists := out[c.Display]; !exists {
			out[c.Display] = c
		}
	}
	return out
}

func sortedChoiceKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
