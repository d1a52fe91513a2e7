package snippet

import "strings"

// Header is a parsed table header line.
type Header struct {
	// Segments holds the dotted key parts as written, quotes included.
	Segments []string
	// Array is set for [[name]] headers.
	Array bool
}

// Name returns the header's dotted name.
func (h Header) Name() string {
	return strings.Join(h.Segments, ".")
}

// Level is the number of dotted segments in the header name.
func (h Header) Level() int {
	return len(h.Segments)
}

// IsMain reports whether the header opens a new snippet rather than a sub-table of the current one.
func (h Header) IsMain() bool {
	if h.Array {
		return h.Level() <= 2
	}
	return h.Level() <= 1
}

// ParseHeader recognises a [name] or [[name]] line, optionally followed by a comment.
func ParseHeader(line string) (Header, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "[") {
		return Header{}, false
	}

	array := strings.HasPrefix(trimmed, "[[")
	open, closing := "[", "]"
	if array {
		open, closing = "[[", "]]"
	}

	body := trimmed[len(open):]
	end := closingIndex(body, closing)
	if end < 0 {
		return Header{}, false
	}
	rest := strings.TrimSpace(body[end+len(closing):])
	if rest != "" && !strings.HasPrefix(rest, "#") {
		return Header{}, false
	}

	segments, ok := splitKey(body[:end])
	if !ok {
		return Header{}, false
	}
	return Header{Segments: segments, Array: array}, true
}

// closingIndex finds the closing bracket sequence outside quoted keys.
func closingIndex(body, closing string) int {
	var quote byte
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case strings.HasPrefix(body[i:], closing):
			return i
		case c == '[' || c == ']':
			return -1
		}
	}
	return -1
}

// splitKey splits a dotted key, keeping quoted parts intact.
func splitKey(key string) ([]string, bool) {
	var (
		segments []string
		current  strings.Builder
		quote    byte
	)
	flush := func() bool {
		seg := strings.TrimSpace(current.String())
		current.Reset()
		if !validSegment(seg) {
			return false
		}
		segments = append(segments, seg)
		return true
	}

	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case quote != 0:
			current.WriteByte(c)
			if c == '\\' && quote == '"' && i+1 < len(key) {
				i++
				current.WriteByte(key[i])
				continue
			}
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			current.WriteByte(c)
		case c == '.':
			if !flush() {
				return nil, false
			}
		default:
			current.WriteByte(c)
		}
	}
	if quote != 0 || !flush() {
		return nil, false
	}
	return segments, true
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	if len(seg) >= 2 && (seg[0] == '"' || seg[0] == '\'') {
		return seg[len(seg)-1] == seg[0]
	}
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// multilineTracker follows """ and ''' strings and open array values across lines so that bracketed text inside
// them is not mistaken for a header.
type multilineTracker struct {
	delim string
	depth int
}

func (m *multilineTracker) inside() bool {
	return m.delim != "" || m.depth > 0
}

// feed consumes one line and updates the open-string and array state. Outside an array, brackets only count once
// the line has reached a value.
func (m *multilineTracker) feed(line string) {
	value := m.depth > 0
	for i := 0; i < len(line); i++ {
		if m.delim != "" {
			idx := strings.Index(line[i:], m.delim)
			if idx < 0 {
				return
			}
			i += idx + len(m.delim) - 1
			m.delim = ""
			continue
		}

		if delim := tripleAt(line, i); delim != "" {
			m.delim = delim
			i += len(delim) - 1
			continue
		}
		switch c := line[i]; c {
		case '"', '\'':
			end := closingQuote(line, i+1, c)
			if end < 0 {
				return
			}
			i = end
		case '#':
			return
		case '=':
			value = true
		case '[':
			if value {
				m.depth++
			}
		case ']':
			if m.depth > 0 {
				m.depth--
			}
		}
	}
}

func tripleAt(s string, i int) string {
	for _, delim := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s[i:], delim) {
			return delim
		}
	}
	return ""
}

// closingQuote returns the index of the quote ending a single-line string that starts at from, or -1.
func closingQuote(s string, from int, quote byte) int {
	for i := from; i < len(s); i++ {
		if s[i] == '\\' && quote == '"' {
			i++
			continue
		}
		if s[i] == quote {
			return i
		}
	}
	return -1
}
