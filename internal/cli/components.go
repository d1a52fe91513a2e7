package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/twinmind/telegraf-importer/internal/config"
	"github.com/twinmind/telegraf-importer/internal/platform"
	"github.com/twinmind/telegraf-importer/internal/snippet"
	"github.com/twinmind/telegraf-importer/internal/ui/console"
)

// ComponentsCommand saves chosen snippets as reusable components.
type ComponentsCommand struct {
	stdout   io.Writer
	stderr   io.Writer
	console  *console.Writer
	now      func() time.Time
	source   sourceFlags
	indexes  *string
	level1   *string
	level2   *string
	mainOnly *bool
	prefix   *string
	verbose  *bool
}

// NewComponentsCommand constructs a components command.
func NewComponentsCommand(stdout, stderr io.Writer) *ComponentsCommand {
	return &ComponentsCommand{
		stdout:  stdout,
		stderr:  stderr,
		console: console.New(stdout, stderr),
		now:     time.Now,
	}
}

func (c *ComponentsCommand) Name() string {
	return "components"
}

func (c *ComponentsCommand) Summary() string {
	return "Save snippets as reusable components"
}

func (c *ComponentsCommand) RegisterFlags(fs *flag.FlagSet) {
	c.source.register(fs)
	c.indexes = fs.String("snippets", "", "comma-separated snippet indexes, e.g. 0,2")
	c.level1 = fs.String("level1", "", "component category ("+strings.Join(snippet.CategoryNames(), ", ")+"); guessed from the snippet type when empty")
	c.level2 = fs.String("level2", "", "component kind within the category; defaults to the snippet type")
	c.mainOnly = fs.Bool("main-only", false, "drop nested sub-tables from the saved content")
	c.prefix = fs.String("prefix", "", "name prefix; names default to type_plugin_<timestamp>")
	c.verbose = fs.Bool("verbose", false, "enable debug logging")
}

func (c *ComponentsCommand) Run(ctx context.Context, _ []string) error {
	indexes, err := parseIndexList(deref(c.indexes))
	if err != nil {
		return err
	}

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
	all := snippet.Segment(src.content)

	var chosen []snippet.Snippet
	var payload []platform.ComponentSnippet
	names := map[string]bool{}
	for _, idx := range indexes {
		s, err := pickSnippet(all, idx)
		if err != nil {
			return err
		}
		item, err := c.component(s)
		if err != nil {
			return fmt.Errorf("snippet %d: %w", idx, err)
		}
		if names[item.Name] {
			item.Name = fmt.Sprintf("%s_%d", item.Name, idx)
		}
		names[item.Name] = true
		chosen = append(chosen, s)
		payload = append(payload, item)
	}

	logger := newLogger(c.stderr, derefBool(c.verbose))
	logger.Debug("saving components", "plugins", joinedPlugins(chosen))

	resp, err := client.CreateComponents(ctx, payload)
	if err != nil {
		return fmt.Errorf("save components: %w", err)
	}
	c.console.Success("%s", resp.Message)
	for _, msg := range resp.Errors {
		c.console.Warn("%s", msg)
	}
	return nil
}

func (c *ComponentsCommand) component(s snippet.Snippet) (platform.ComponentSnippet, error) {
	if s.IsPreamble() {
		return platform.ComponentSnippet{}, fmt.Errorf("the preamble cannot be saved as a component")
	}
	level2 := strings.TrimSpace(deref(c.level2))
	if level2 == "" {
		level2 = s.Type
	}
	level1 := strings.TrimSpace(deref(c.level1))
	if level1 == "" {
		guess, ok := snippet.CategoryFor(level2)
		if !ok {
			return platform.ComponentSnippet{}, fmt.Errorf("cannot guess a category for %q; pass --level1", level2)
		}
		level1 = guess
	}
	if err := snippet.ValidateCategory(level1, level2); err != nil {
		return platform.ComponentSnippet{}, err
	}

	content := s.Content
	if derefBool(c.mainOnly) {
		content = snippet.MainSectionOnly(content)
	}
	name := snippet.DefaultComponentName(s, c.now())
	if prefix := strings.TrimSpace(deref(c.prefix)); prefix != "" {
		name = prefix + "_" + name
	}
	return platform.ComponentSnippet{Name: name, Content: content, Level1Type: level1, Level2Type: level2}, nil
}
