package document

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Parsed holds a decoded document alongside its derived structure.
type Parsed struct {
	Structure Tree           `json:"structure"`
	Data      map[string]any `json:"toml_data"`
}

// Parse decodes TOML content and derives its structure tree.
func Parse(content string) (Parsed, error) {
	var data map[string]any
	if _, err := toml.Decode(content, &data); err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", ErrInvalidTOML, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	normalized, _ := normalize(data).(map[string]any)
	return Parsed{Structure: BuildStructure(normalized), Data: normalized}, nil
}

// normalize converts the decoder's typed slices to []any so that callers only see the generic JSON-like shapes.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
