package mapping

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/twinmind/telegraf-importer/internal/document"
)

// Profile is a saved selection and binding set that can be replayed against another snippet of the same shape.
type Profile struct {
	Name     string            `yaml:"name,omitempty"`
	Sources  []ProfileSource   `yaml:"sources"`
	Bindings map[string]string `yaml:"bindings,omitempty"`
}

// ProfileSource is a selected path, optionally flagged as the primary list.
type ProfileSource struct {
	Path    string `yaml:"path"`
	Primary bool   `yaml:"primary,omitempty"`
}

// LoadProfile reads a YAML profile from path.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates YAML profile data.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the profile for structural problems.
func (p *Profile) Validate() error {
	if len(p.Sources) == 0 {
		return fmt.Errorf("profile has no sources")
	}
	seen := make(map[string]bool, len(p.Sources))
	primaries := 0
	for _, src := range p.Sources {
		if src.Path == "" {
			return fmt.Errorf("profile source with empty path")
		}
		if seen[src.Path] {
			return fmt.Errorf("profile source %q listed twice", src.Path)
		}
		seen[src.Path] = true
		if src.Primary {
			primaries++
		}
	}
	if primaries > 1 {
		return fmt.Errorf("profile marks %d primary sources, want at most one", primaries)
	}
	for target := range p.Bindings {
		if !IsTargetField(target) {
			return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
		}
	}
	return nil
}

// Save writes the profile as YAML, creating parent directories as needed.
func (p *Profile) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create profile dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write profile %s: %w", path, err)
	}
	return nil
}

// ApplySelection rebuilds sel from the profile sources, looking each path up in tree.
func (p *Profile) ApplySelection(tree document.Tree, sel *Selection) error {
	sel.Reset()
	for _, src := range p.Sources {
		node, ok := tree.Find(src.Path)
		if !ok {
			return fmt.Errorf("profile source %s: %w", src.Path, document.ErrPathNotFound)
		}
		sel.Toggle(node.Path, node.Key, node.Kind)
	}
	for _, src := range p.Sources {
		if src.Primary {
			if err := sel.SetPrimary(src.Path); err != nil {
				return fmt.Errorf("profile primary: %w", err)
			}
		}
	}
	return nil
}

// ProfileFrom captures the current selection and mapping choices.
func ProfileFrom(name string, sel *Selection, m *Mapping) *Profile {
	p := &Profile{Name: name, Bindings: m.Choices()}
	for _, src := range sel.Sources() {
		p.Sources = append(p.Sources, ProfileSource{Path: src.Path, Primary: sel.IsPrimary(src.Path)})
	}
	return p
}
