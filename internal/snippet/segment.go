package snippet

import (
	"strings"
)

// TypePreamble marks the pseudo-snippet holding text that precedes the first header.
const TypePreamble = "preamble"

// Snippet is one contiguous block of configuration text opened by a main header.
type Snippet struct {
	Type       string `json:"snippet_type"`
	PluginName string `json:"plugin_name"`
	Header     string `json:"header,omitempty"`
	Content    string `json:"content"`
}

// IsPreamble reports whether the snippet holds the text before the first header.
func (s Snippet) IsPreamble() bool {
	return s.Type == TypePreamble && s.Header == ""
}

// Segment splits configuration text into snippets. A snippet starts at a main header ([name] at level 1 or
// [[name]] up to level 2) and runs until the next one; nested sub-table headers stay in the current snippet.
// Non-blank text before the first main header becomes a preamble snippet. Blank input yields no snippets.
func Segment(text string) []Snippet {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		snippets []Snippet
		current  *Snippet
		lines    []string
		tracker  multilineTracker
	)

	flush := func() {
		content := strings.Join(lines, "\n")
		if current == nil {
			if strings.TrimSpace(content) != "" {
				snippets = append(snippets, Snippet{Type: TypePreamble, PluginName: TypePreamble, Content: content})
			}
		} else {
			current.Content = content
			snippets = append(snippets, *current)
		}
		lines = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if !tracker.inside() {
			if h, ok := ParseHeader(line); ok && h.IsMain() {
				flush()
				current = newSnippet(h, strings.TrimSpace(line))
				lines = []string{line}
				continue
			}
		}
		tracker.feed(line)
		lines = append(lines, line)
	}
	flush()

	return snippets
}

func newSnippet(h Header, headerLine string) *Snippet {
	s := &Snippet{Type: h.Segments[0], Header: headerLine}
	if len(h.Segments) > 1 {
		s.PluginName = strings.Join(h.Segments[1:], ".")
	} else {
		s.PluginName = s.Type
	}
	return s
}

// Join reassembles snippets into configuration text. Joining the output of Segment reproduces its input, except
// for a blank preamble which Segment drops.
func Join(snippets []Snippet) string {
	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, "\n")
}

// HasSubTables reports whether the snippet content contains headers nested deeper than its first header.
func HasSubTables(content string) bool {
	mainLevel, ok := firstHeaderLevel(content)
	if !ok {
		return false
	}
	first := true
	var tracker multilineTracker
	for _, line := range strings.Split(content, "\n") {
		if !tracker.inside() {
			if h, ok := ParseHeader(line); ok {
				if first {
					first = false
					continue
				}
				if h.Level() > mainLevel {
					return true
				}
			}
		}
		tracker.feed(line)
	}
	return false
}

// MainSectionOnly strips nested sub-tables from the content, keeping the first header and its own keys. Content
// without a header is returned unchanged.
func MainSectionOnly(content string) string {
	mainLevel, ok := firstHeaderLevel(content)
	if !ok {
		return content
	}

	var (
		kept     []string
		inSub    bool
		seenMain bool
		tracker  multilineTracker
	)
	for _, line := range strings.Split(content, "\n") {
		if !tracker.inside() {
			if h, ok := ParseHeader(line); ok {
				switch {
				case h.Level() > mainLevel:
					inSub = true
				case seenMain:
					return strings.TrimRight(strings.Join(kept, "\n"), "\n")
				default:
					seenMain = true
					inSub = false
				}
			}
		}
		tracker.feed(line)
		if !inSub {
			kept = append(kept, line)
		}
	}
	return strings.TrimRight(strings.Join(kept, "\n"), "\n")
}

func firstHeaderLevel(content string) (int, bool) {
	var tracker multilineTracker
	for _, line := range strings.Split(content, "\n") {
		if !tracker.inside() {
			if h, ok := ParseHeader(line); ok {
				return h.Level(), true
			}
		}
		tracker.feed(line)
	}
	return 0, false
}
