package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/twinmind/telegraf-importer/internal/config"
	"github.com/twinmind/telegraf-importer/internal/document"
	"github.com/twinmind/telegraf-importer/internal/mapping"
	"github.com/twinmind/telegraf-importer/internal/platform"
	"github.com/twinmind/telegraf-importer/internal/snippet"
	"github.com/twinmind/telegraf-importer/internal/ui/console"
	"github.com/twinmind/telegraf-importer/internal/wizard"
)

// StructureCommand prints the structure tree of one snippet and the fields each list offers.
type StructureCommand struct {
	stdout  io.Writer
	stderr  io.Writer
	console *console.Writer
	source  sourceFlags
	index   *int
	local   *bool
	asJSON  *bool
}

// NewStructureCommand constructs a structure command.
func NewStructureCommand(stdout, stderr io.Writer) *StructureCommand {
	return &StructureCommand{
		stdout:  stdout,
		stderr:  stderr,
		console: console.New(stdout, stderr),
	}
}

func (c *StructureCommand) Name() string {
	return "structure"
}

func (c *StructureCommand) Summary() string {
	return "Show the structure tree and candidate fields of a snippet"
}

func (c *StructureCommand) RegisterFlags(fs *flag.FlagSet) {
	c.source.register(fs)
	c.index = fs.Int("snippet", 0, "snippet index as listed by segment")
	c.local = fs.Bool("local", false, "parse structure locally instead of calling the backend")
	c.asJSON = fs.Bool("json", false, "print the structure response as JSON")
}

func (c *StructureCommand) Run(ctx context.Context, _ []string) error {
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
	chosen, err := pickSnippet(snippet.Segment(src.content), derefIndex(c.index))
	if err != nil {
		return err
	}

	var parser wizard.StructureParser = client
	if derefBool(c.local) {
		parser = wizard.LocalParser{}
	}
	resp, err := parser.ParseStructure(ctx, chosen.Content)
	if err != nil {
		return fmt.Errorf("parse structure: %w", err)
	}

	if derefBool(c.asJSON) {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	c.printStructure(chosen, resp)
	return nil
}

func (c *StructureCommand) printStructure(chosen snippet.Snippet, resp platform.StructureResponse) {
	c.console.Section("Structure of " + chosen.Header)
	resp.Structure.Walk(func(n *document.Node, depth int) bool {
		marker := ""
		if n.Kind == document.KindArrayOfTables {
			marker = " *"
		}
		c.console.Line("  %s%s [%s]%s", strings.Repeat("  ", depth), n.Key, n.Kind, marker)
		return true
	})

	arrays := resp.Structure.ArrayPaths()
	if len(arrays) == 0 {
		c.console.Warn("No array-of-tables found; this snippet has no rows to extract")
		return
	}
	for _, path := range arrays {
		node, _ := resp.Structure.Find(path)
		var sel mapping.Selection
		sel.Toggle(node.Path, node.Key, node.Kind)
		candidates := mapping.CandidateFields(resp.Data, &sel)
		c.console.Section("Fields of " + path)
		names := make([]string, 0, len(candidates))
		for _, cand := range candidates {
			names = append(names, cand.Display)
		}
		c.console.List(names)
	}
}
