package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/twinmind/telegraf-importer/internal/config"
	"github.com/twinmind/telegraf-importer/internal/logging"
	"github.com/twinmind/telegraf-importer/internal/platform"
	"github.com/twinmind/telegraf-importer/internal/snippet"
	"github.com/twinmind/telegraf-importer/internal/ui/console"
)

// sourceFlags selects the configuration text a command works on: a local file or a config stored in the backend.
type sourceFlags struct {
	file     *string
	configID *int64
}

func (s *sourceFlags) register(fs *flag.FlagSet) {
	s.file = fs.String("file", "", "local Telegraf configuration file")
	s.configID = fs.Int64("config-id", 0, "backend config file id (loads the file when --file is not set)")
}

// source is loaded configuration text plus the config id it belongs to, if known.
type source struct {
	name     string
	content  string
	configID int64
}

// load reads the configuration. A local file keeps --config-id, then the id remembered for its file name, then the
// default id from the environment.
func (s *sourceFlags) load(ctx context.Context, env config.Env, client *platform.Client) (source, error) {
	file := strings.TrimSpace(deref(s.file))
	configID := derefInt(s.configID)

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return source{}, fmt.Errorf("read config: %w", err)
		}
		if configID == 0 {
			if id, ok := env.LookupConfigFile(filepath.Base(file)); ok {
				configID = id
			} else {
				configID = env.ConfigID
			}
		}
		return source{name: file, content: string(data), configID: configID}, nil
	}

	if configID == 0 {
		configID = env.ConfigID
	}
	if configID == 0 {
		return source{}, errors.New("either --file or --config-id is required")
	}
	remote, err := client.GetConfigFile(ctx, configID)
	if err != nil {
		return source{}, fmt.Errorf("load config file %d: %w", configID, err)
	}
	return source{name: remote.FileName, content: remote.Content, configID: configID}, nil
}

func newClient(env config.Env) (*platform.Client, error) {
	client, err := platform.NewClient(env.BaseURL, env.Token)
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	return client, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	return logging.New(w, verbose, "cmd", "tgimport")
}

func pickSnippet(snippets []snippet.Snippet, index int) (snippet.Snippet, error) {
	if len(snippets) == 0 {
		return snippet.Snippet{}, errors.New("configuration contains no snippets")
	}
	if index < 0 || index >= len(snippets) {
		return snippet.Snippet{}, fmt.Errorf("snippet %d out of range (0-%d)", index, len(snippets)-1)
	}
	return snippets[index], nil
}

// parseIndexList parses "0,2,5" into sorted, unique indexes.
func parseIndexList(raw string) ([]int, error) {
	seen := map[int]bool{}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid snippet index %q", part)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no snippet indexes given")
	}
	sort.Ints(out)
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func derefIndex(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}

func derefBool(b *bool) bool {
	return b != nil && *b
}

// prompter reads answers to interactive questions.
type prompter struct {
	console *console.Writer
	reader  *bufio.Reader
}

func newPrompter(w *console.Writer, in io.Reader) *prompter {
	if in == nil {
		in = os.Stdin
	}
	return &prompter{console: w, reader: bufio.NewReader(in)}
}

// ask prints the question and returns the trimmed answer. io.EOF is returned once input is exhausted.
func (p *prompter) ask(format string, args ...any) (string, error) {
	p.console.Prompt(format, args...)
	text, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	if errors.Is(err, io.EOF) && text == "" {
		return "", io.EOF
	}
	return strings.TrimSpace(text), nil
}

type consoleReporter struct {
	writer *console.Writer
}

func (r consoleReporter) Infof(format string, args ...any) {
	if r.writer != nil {
		r.writer.Info(format, args...)
	}
}

func (r consoleReporter) Warnf(format string, args ...any) {
	if r.writer != nil {
		r.writer.Warn(format, args...)
	}
}

func (r consoleReporter) Successf(format string, args ...any) {
	if r.writer != nil {
		r.writer.Success(format, args...)
	}
}
