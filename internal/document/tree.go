package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Node is a single entry in a structure tree.
type Node struct {
	Key      string
	Path     string
	Kind     Kind
	Children Tree
}

// Tree is an ordered list of sibling nodes. Its JSON form is the mapping {key: {path, type, children}}.
type Tree []*Node

type wireNode struct {
	Type     Kind                `json:"type"`
	Path     string              `json:"path"`
	Children map[string]wireNode `json:"children,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toWire())
}

// UnmarshalJSON implements json.Unmarshaler. Siblings are ordered by key.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var raw map[string]wireNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tree, err := fromWire(raw, "")
	if err != nil {
		return err
	}
	*t = tree
	return nil
}

func (t Tree) toWire() map[string]wireNode {
	out := make(map[string]wireNode, len(t))
	for _, n := range t {
		w := wireNode{Type: n.Kind, Path: n.Path}
		if len(n.Children) > 0 {
			w.Children = n.Children.toWire()
		}
		out[n.Key] = w
	}
	return out
}

func fromWire(raw map[string]wireNode, parent string) (Tree, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tree := make(Tree, 0, len(keys))
	for _, key := range keys {
		w := raw[key]
		path := w.Path
		if path == "" {
			path = joinPath(parent, key)
		}
		if want := joinPath(parent, key); path != want {
			return nil, fmt.Errorf("node %q: path %q does not match its position %q", key, path, want)
		}
		children, err := fromWire(w.Children, path)
		if err != nil {
			return nil, err
		}
		tree = append(tree, &Node{Key: key, Path: path, Kind: w.Type, Children: children})
	}
	return tree, nil
}

// Find returns the node at the given dotted path.
func (t Tree) Find(path string) (*Node, bool) {
	if path == "" {
		return nil, false
	}
	level := t
	var found *Node
	for _, key := range strings.Split(path, ".") {
		found = nil
		for _, n := range level {
			if n.Key == key {
				found = n
				break
			}
		}
		if found == nil {
			return nil, false
		}
		level = found.Children
	}
	return found, true
}

// Walk visits every node depth-first in order. Returning false from fn skips the node's children.
func (t Tree) Walk(fn func(n *Node, depth int) bool) {
	walk(t, 0, fn)
}

func walk(t Tree, depth int, fn func(n *Node, depth int) bool) {
	for _, n := range t {
		if fn(n, depth) {
			walk(n.Children, depth+1, fn)
		}
	}
}

// ArrayPaths lists the paths of every array_of_tables node.
func (t Tree) ArrayPaths() []string {
	var paths []string
	t.Walk(func(n *Node, _ int) bool {
		if n.Kind == KindArrayOfTables {
			paths = append(paths, n.Path)
		}
		return true
	})
	return paths
}

// BuildStructure derives a structure tree from decoded document data. Arrays of tables merge the keys of all
// their elements so that the tree shows every field that appears in any row.
func BuildStructure(data map[string]any) Tree {
	return buildStructure(data, "")
}

func buildStructure(data map[string]any, parent string) Tree {
	keys := sortedKeys(data)
	tree := make(Tree, 0, len(keys))
	for _, key := range keys {
		path := joinPath(parent, key)
		node := &Node{Key: key, Path: path, Kind: KindScalar}
		switch v := data[key].(type) {
		case map[string]any:
			node.Kind = KindTable
			node.Children = buildStructure(v, path)
		default:
			if rows, ok := tableRows(v); ok {
				merged := make(map[string]any)
				for _, row := range rows {
					for k, val := range row {
						merged[k] = val
					}
				}
				node.Kind = KindArrayOfTables
				node.Children = buildStructure(merged, path)
			}
		}
		tree = append(tree, node)
	}
	return tree
}

// tableRows reports whether v is a non-empty list whose elements are all tables.
func tableRows(v any) ([]map[string]any, bool) {
	switch list := v.(type) {
	case []map[string]any:
		return list, len(list) > 0
	case []any:
		if len(list) == 0 {
			return nil, false
		}
		rows := make([]map[string]any, 0, len(list))
		for _, item := range list {
			row, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			rows = append(rows, row)
		}
		return rows, true
	}
	return nil, false
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
