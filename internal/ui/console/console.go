package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiBlue   = "\033[34m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// level describes how a status line is marked and where it goes.
type level struct {
	icon   string
	colour string
	bold   bool
	stderr bool
}

var (
	levelInfo    = level{icon: "[i]", colour: ansiBlue}
	levelSuccess = level{icon: "[+]", colour: ansiGreen, bold: true}
	levelWarn    = level{icon: "[!]", colour: ansiYellow, stderr: true}
	levelError   = level{icon: "[x]", colour: ansiRed, bold: true, stderr: true}
)

// Writer renders importer output: headings, status lines, tables, diffs and status badges. Status lines for
// warnings and errors go to the error stream.
type Writer struct {
	out    io.Writer
	err    io.Writer
	colour bool

	mu    sync.Mutex
	wrote bool
}

// Option customises a Writer.
type Option func(*Writer)

// WithColors forces colour output on or off instead of detecting a terminal. NO_COLOR still wins.
func WithColors(enabled bool) Option {
	return func(w *Writer) {
		w.colour = enabled
	}
}

// New constructs a console writer. Nil streams discard output.
func New(out, err io.Writer, opts ...Option) *Writer {
	if out == nil {
		out = io.Discard
	}
	if err == nil {
		err = io.Discard
	}
	w := &Writer{out: out, err: err, colour: isTerminal(out)}
	for _, opt := range opts {
		opt(w)
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		w.colour = false
	}
	return w
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// Section prints a heading, separated by a blank line from earlier output.
func (w *Writer) Section(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.wrote {
		_, _ = fmt.Fprintln(w.out)
	}
	_, _ = fmt.Fprintln(w.out, w.paint("== "+strings.TrimSpace(title)+" ==", ansiBold, ansiBlue))
	w.wrote = true
}

func (w *Writer) Info(format string, args ...any) {
	w.status(levelInfo, format, args...)
}

func (w *Writer) Success(format string, args ...any) {
	w.status(levelSuccess, format, args...)
}

func (w *Writer) Warn(format string, args ...any) {
	w.status(levelWarn, format, args...)
}

func (w *Writer) Error(format string, args ...any) {
	w.status(levelError, format, args...)
}

// List prints items as an indented bulleted list.
func (w *Writer) List(items []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	bullet := w.paint("-", ansiGray)
	for _, item := range items {
		_, _ = fmt.Fprintf(w.out, "    %s %s\n", bullet, strings.TrimSpace(item))
		w.wrote = true
	}
}

// Line prints one unstyled line.
func (w *Writer) Line(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
	w.wrote = true
}

// Prompt prints a question and leaves the cursor on its line.
func (w *Writer) Prompt(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintf(w.out, format, args...)
	w.wrote = true
}

func (w *Writer) status(l level, format string, args ...any) {
	target := w.out
	if l.stderr {
		target = w.err
	}
	msg := fmt.Sprintf(format, args...)
	if l.bold {
		msg = w.paint(msg, ansiBold)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = fmt.Fprintf(target, "  %s %s\n", w.paint(l.icon, l.colour, ansiBold), msg)
	w.wrote = true
}

// paint wraps text in the given escape codes when colours are on.
func (w *Writer) paint(text string, codes ...string) string {
	if !w.colour || len(codes) == 0 {
		return text
	}
	return strings.Join(codes, "") + text + ansiReset
}
