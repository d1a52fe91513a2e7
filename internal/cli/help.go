package cli

import (
	"context"
	"flag"
	"fmt"
)

// workflow is the order in which the commands are usually run against a new configuration file.
var workflow = []string{
	"upload      store the Telegraf configuration and remember its id",
	"segment     list the snippets of the stored file",
	"structure   inspect the tables of one snippet",
	"extract     map fields, review the preview and import the points",
}

// exampler is implemented by commands that document sample invocations.
type exampler interface {
	Examples() []string
}

// HelpCommand prints the command list and the importer workflow, or the flags and examples of named commands.
type HelpCommand struct {
	app *App
}

func (c *HelpCommand) Name() string {
	return "help"
}

func (c *HelpCommand) Summary() string {
	return "Show the workflow or the flags of a command"
}

func (c *HelpCommand) RegisterFlags(_ *flag.FlagSet) {}

func (c *HelpCommand) Run(_ context.Context, args []string) error {
	if len(args) == 0 {
		c.app.printUsage()
		_, _ = fmt.Fprintf(c.app.stderr, "\nTypical workflow:\n")
		for i, step := range workflow {
			_, _ = fmt.Fprintf(c.app.stderr, "  %d. %s\n", i+1, step)
		}
		return nil
	}

	for i, name := range args {
		target, ok := c.app.commands[name]
		if !ok {
			c.app.printUnknownCommand(name)
			return fmt.Errorf("unknown command: %s", name)
		}
		if i > 0 {
			_, _ = fmt.Fprintln(c.app.stderr)
		}
		fs := flag.NewFlagSet(target.Name(), flag.ContinueOnError)
		fs.SetOutput(c.app.stderr)
		target.RegisterFlags(fs)
		c.app.printCommandUsage(target, fs)
	}
	return nil
}
