package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/twinmind/telegraf-importer/internal/config"
	"github.com/twinmind/telegraf-importer/internal/document"
	"github.com/twinmind/telegraf-importer/internal/snippet"
	"github.com/twinmind/telegraf-importer/internal/ui/console"
	"github.com/twinmind/telegraf-importer/internal/wizard"
)

const inspectConcurrency = 4

// SegmentCommand splits a configuration into plugin snippets.
type SegmentCommand struct {
	stdout   io.Writer
	stderr   io.Writer
	console  *console.Writer
	source   sourceFlags
	mainOnly *bool
	inspect  *bool
	local    *bool
	asJSON   *bool
}

// NewSegmentCommand constructs a segment command.
func NewSegmentCommand(stdout, stderr io.Writer) *SegmentCommand {
	return &SegmentCommand{
		stdout:  stdout,
		stderr:  stderr,
		console: console.New(stdout, stderr),
	}
}

func (c *SegmentCommand) Name() string {
	return "segment"
}

func (c *SegmentCommand) Summary() string {
	return "Split a Telegraf configuration into plugin snippets"
}

func (c *SegmentCommand) RegisterFlags(fs *flag.FlagSet) {
	c.source.register(fs)
	c.mainOnly = fs.Bool("main-only", false, "print snippet content without nested sub-tables")
	c.inspect = fs.Bool("inspect", false, "parse every snippet and list its array-of-tables paths")
	c.local = fs.Bool("local", false, "parse structure locally instead of calling the backend")
	c.asJSON = fs.Bool("json", false, "print snippets as JSON")
}

type inspection struct {
	arrays []string
	err    error
}

func (c *SegmentCommand) Run(ctx context.Context, _ []string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	client, err := newClient(env)
	if err != nil {
		return err
	}
	src, err := c.source.load(ctx, env, client)
	if err != nil {
		return err
	}

	snippets := snippet.Segment(src.content)
	if derefBool(c.mainOnly) {
		for i := range snippets {
			snippets[i].Content = snippet.MainSectionOnly(snippets[i].Content)
		}
	}

	if derefBool(c.asJSON) {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snippets)
	}

	var inspected []inspection
	if derefBool(c.inspect) {
		var parser wizard.StructureParser = client
		if derefBool(c.local) {
			parser = wizard.LocalParser{}
		}
		inspected, err = inspectSnippets(ctx, parser, snippets)
		if err != nil {
			return err
		}
	}

	c.console.Section(fmt.Sprintf("%s: %d snippet(s)", src.name, len(snippets)))
	rows := make([][]string, 0, len(snippets))
	for i, s := range snippets {
		subTables := ""
		if snippet.HasSubTables(s.Content) {
			subTables = "yes"
		}
		rows = append(rows, []string{strconv.Itoa(i), s.Type, s.PluginName, s.Header, subTables})
	}
	c.console.Table([]string{"#", "type", "plugin", "header", "sub-tables"}, rows)

	for i, found := range inspected {
		switch {
		case found.err != nil:
			c.console.Warn("snippet %d: %v", i, found.err)
		case len(found.arrays) > 0:
			c.console.Info("snippet %d lists:", i)
			c.console.List(found.arrays)
		}
	}
	return nil
}

// inspectSnippets parses snippets concurrently and reports the array-of-tables paths of each with their element
// counts. A snippet that fails to parse is reported in its slot; only cancellation aborts the run.
func inspectSnippets(ctx context.Context, parser wizard.StructureParser, snippets []snippet.Snippet) ([]inspection, error) {
	out := make([]inspection, len(snippets))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(inspectConcurrency)
	for i, s := range snippets {
		if s.IsPreamble() {
			continue
		}
		g.Go(func() error {
			resp, err := parser.ParseStructure(gCtx, s.Content)
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				mu.Lock()
				out[i] = inspection{err: err}
				mu.Unlock()
				return nil
			}
			var arrays []string
			for _, path := range resp.Structure.ArrayPaths() {
				items, err := document.ResolveList(resp.Data, path)
				if err != nil {
					continue
				}
				arrays = append(arrays, fmt.Sprintf("%s (%d)", path, len(items)))
			}
			mu.Lock()
			out[i] = inspection{arrays: arrays}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("inspect snippets: %w", err)
	}
	return out, nil
}

// joinedPlugins renders "type.plugin" names for log lines.
func joinedPlugins(snippets []snippet.Snippet) string {
	names := make([]string, 0, len(snippets))
	for _, s := range snippets {
		names = append(names, s.Type+"."+s.PluginName)
	}
	return strings.Join(names, ", ")
}
