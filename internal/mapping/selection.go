package mapping

import (
	"fmt"

	"github.com/twinmind/telegraf-importer/internal/document"
)

// SelectedSource is a structure node chosen as a data source.
type SelectedSource struct {
	Path string        `json:"path" yaml:"path"`
	Key  string        `json:"key" yaml:"key"`
	Kind document.Kind `json:"type" yaml:"type"`
}

// Selection is the ordered set of selected sources with at most one primary list. The zero value is empty and
// ready to use.
type Selection struct {
	sources []SelectedSource
	primary string
}

// Toggle adds the node to the selection, or removes it when already present, and reports whether it is now
// selected. Removing the primary clears the designation. Adding an array of tables while no primary is set makes
// it the primary.
func (s *Selection) Toggle(path, key string, kind document.Kind) bool {
	if idx := s.index(path); idx >= 0 {
		s.sources = append(s.sources[:idx], s.sources[idx+1:]...)
		if s.primary == path {
			s.primary = ""
		}
		return false
	}

	s.sources = append(s.sources, SelectedSource{Path: path, Key: key, Kind: kind})
	if kind == document.KindArrayOfTables && s.primary == "" {
		s.primary = path
	}
	return true
}

// SetPrimary designates a selected array of tables as the primary list.
func (s *Selection) SetPrimary(path string) error {
	idx := s.index(path)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotSelected, path)
	}
	if s.sources[idx].Kind != document.KindArrayOfTables {
		return fmt.Errorf("%w: %s is %s", ErrNotArrayOfTables, path, s.sources[idx].Kind)
	}
	s.primary = path
	return nil
}

// Primary returns the primary list source.
func (s *Selection) Primary() (SelectedSource, bool) {
	if s.primary == "" {
		return SelectedSource{}, false
	}
	idx := s.index(s.primary)
	if idx < 0 {
		return SelectedSource{}, false
	}
	return s.sources[idx], true
}

// IsPrimary reports whether path is the primary list.
func (s *Selection) IsPrimary(path string) bool {
	return s.primary != "" && s.primary == path
}

// Contains reports whether path is selected.
func (s *Selection) Contains(path string) bool {
	return s.index(path) >= 0
}

// Sources returns a copy of the selected sources in selection order.
func (s *Selection) Sources() []SelectedSource {
	out := make([]SelectedSource, len(s.sources))
	copy(out, s.sources)
	return out
}

// Len returns the number of selected sources.
func (s *Selection) Len() int {
	return len(s.sources)
}

// Reset empties the selection.
func (s *Selection) Reset() {
	s.sources = nil
	s.primary = ""
}

func (s *Selection) index(path string) int {
	for i, src := range s.sources {
		if src.Path == path {
			return i
		}
	}
	return -1
}
