package console

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

var badgeColours = map[string]string{
	"new":                ansiGreen,
	"synced":             ansiGray,
	"unlinked":           ansiCyan,
	"linked":             ansiRed,
	"internal_duplicate": ansiYellow,
	"unknown":            ansiYellow,
	"invalid":            ansiRed,
}

// Badge formats a point status as "[status]", coloured when colours are enabled.
func (w *Writer) Badge(status string) string {
	text := "[" + status + "]"
	colour, ok := badgeColours[status]
	if !ok {
		return text
	}
	return w.paint(text, colour)
}

// Table prints rows under a header with columns padded to the widest cell. Cells may contain badges; padding is
// computed on the visible text.
func (w *Writer) Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = visibleWidth(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := visibleWidth(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	header := make([]string, len(headers))
	rule := make([]string, len(headers))
	for i, h := range headers {
		header[i] = w.paint(pad(h, widths[i]), ansiBold)
		rule[i] = strings.Repeat("-", widths[i])
	}
	_, _ = fmt.Fprintf(w.out, "  %s\n", strings.TrimRight(strings.Join(header, "  "), " "))
	_, _ = fmt.Fprintf(w.out, "  %s\n", w.paint(strings.Join(rule, "  "), ansiGray))
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i := range headers {
			if i < len(row) {
				cells[i] = pad(row[i], widths[i])
			} else {
				cells[i] = pad("", widths[i])
			}
		}
		_, _ = fmt.Fprintf(w.out, "  %s\n", strings.TrimRight(strings.Join(cells, "  "), " "))
	}
	w.wrote = true
}

// Diff prints rendered diff lines, deletions in red and insertions in green.
func (w *Writer) Diff(lines []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "-"):
			line = w.paint(line, ansiRed)
		case strings.HasPrefix(line, "+"):
			line = w.paint(line, ansiGreen)
		}
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	w.wrote = true
}

func pad(text string, width int) string {
	if gap := width - visibleWidth(text); gap > 0 {
		return text + strings.Repeat(" ", gap)
	}
	return text
}

// visibleWidth counts runes outside ANSI escape sequences.
func visibleWidth(text string) int {
	n := 0
	for i := 0; i < len(text); {
		if text[i] == 0x1b && i+1 < len(text) && text[i+1] == '[' {
			j := i + 2
			for j < len(text) && text[j] != 'm' {
				j++
			}
			i = j + 1
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		n++
		i += size
	}
	return n
}
