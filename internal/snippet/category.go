package snippet

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Component category names.
const (
	CategoryDataSource     = "data_source"
	CategoryGlobal         = "global_parameter"
	CategoryTransformation = "processing_transformation"
)

// Categories maps a component category to the snippet types it may hold.
var Categories = map[string][]string{
	CategoryDataSource:     {"inputs", "outputs"},
	CategoryGlobal:         {"agent", "global_tags"},
	CategoryTransformation: {"aggregators", "processors"},
}

// CategoryNames returns the category names in sorted order.
func CategoryNames() []string {
	names := make([]string, 0, len(Categories))
	for name := range Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CategoryFor guesses the component category of a snippet type.
func CategoryFor(snippetType string) (string, bool) {
	for category, kinds := range Categories {
		for _, kind := range kinds {
			if kind == snippetType {
				return category, true
			}
		}
	}
	return "", false
}

// ValidateCategory checks that level2 is one of the kinds allowed for level1.
func ValidateCategory(level1, level2 string) error {
	kinds, ok := Categories[level1]
	if !ok {
		return fmt.Errorf("unknown component category %q", level1)
	}
	for _, kind := range kinds {
		if kind == level2 {
			return nil
		}
	}
	return fmt.Errorf("component kind %q is not allowed in category %q (want one of %s)", level2, level1, strings.Join(kinds, ", "))
}

// DefaultComponentName suggests a component name for a snippet: type, plugin and a millisecond timestamp.
func DefaultComponentName(s Snippet, now time.Time) string {
	plugin := s.PluginName
	if plugin == "" {
		plugin = "general"
	}
	name := fmt.Sprintf("%s_%s_%d", s.Type, plugin, now.UnixMilli())
	return strings.ReplaceAll(name, ".", "_")
}
