// Package diff computes line diffs between two revisions of a configuration file.
package diff

import (
	"fmt"
	"strings"
)

// Op classifies a diff line.
type Op byte

const (
	Equal  Op = ' '
	Delete Op = '-'
	Insert Op = '+'
)

// Line is one line of a diff. Old and New are 1-based line numbers; zero means the line is absent on that side.
type Line struct {
	Op   Op
	Text string
	Old  int
	New  int
}

// Lines diffs before against after line by line using a longest-common-subsequence table.
func Lines(before, after string) []Line {
	a, b := split(before), split(after)
	m, n := len(a), len(b)

	lcs := make([][]int, m+1)
	for i := range lcs {
		lcs[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				lcs[i][j] = lcs[i+1][j+1] + 1
			case lcs[i+1][j] >= lcs[i][j+1]:
				lcs[i][j] = lcs[i+1][j]
			default:
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	out := make([]Line, 0, m+n)
	i, j := 0, 0
	for i < m || j < n {
		switch {
		case i < m && j < n && a[i] == b[j]:
			out = append(out, Line{Op: Equal, Text: a[i], Old: i + 1, New: j + 1})
			i++
			j++
		case i < m && (j == n || lcs[i+1][j] >= lcs[i][j+1]):
			out = append(out, Line{Op: Delete, Text: a[i], Old: i + 1})
			i++
		default:
			out = append(out, Line{Op: Insert, Text: b[j], New: j + 1})
			j++
		}
	}
	return out
}

// Changed reports whether any line was inserted or deleted.
func Changed(lines []Line) bool {
	for _, l := range lines {
		if l.Op != Equal {
			return true
		}
	}
	return false
}

// Stat counts inserted and deleted lines.
func Stat(lines []Line) (inserted, deleted int) {
	for _, l := range lines {
		switch l.Op {
		case Insert:
			inserted++
		case Delete:
			deleted++
		}
	}
	return inserted, deleted
}

// Trim keeps changed lines plus up to context unchanged lines around each change. Unchanged input yields nil.
func Trim(lines []Line, context int) []Line {
	if context < 0 {
		return lines
	}
	keep := make([]bool, len(lines))
	changed := false
	for idx, l := range lines {
		if l.Op == Equal {
			continue
		}
		changed = true
		for k := max(0, idx-context); k < min(len(lines), idx+context+1); k++ {
			keep[k] = true
		}
	}
	if !changed {
		return nil
	}
	out := make([]Line, 0, len(lines))
	for idx, l := range lines {
		if keep[idx] {
			out = append(out, l)
		}
	}
	return out
}

// Render formats lines as "-12 text", "+13 text" or " 14 text". A "..." separator marks skipped lines.
func Render(lines []Line) []string {
	width := 1
	for _, l := range lines {
		width = max(width, len(fmt.Sprint(max(l.Old, l.New))))
	}
	out := make([]string, 0, len(lines))
	prevOld, prevNew := 0, 0
	for idx, l := range lines {
		if idx > 0 && (gap(prevOld, l.Old) || gap(prevNew, l.New)) {
			out = append(out, "...")
		}
		n := l.New
		if l.Op == Delete {
			n = l.Old
		}
		out = append(out, fmt.Sprintf("%c%*d %s", l.Op, width, n, l.Text))
		if l.Old > 0 {
			prevOld = l.Old
		}
		if l.New > 0 {
			prevNew = l.New
		}
	}
	return out
}

func gap(prev, cur int) bool {
	return prev > 0 && cur > 0 && cur > prev+1
}

func split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
