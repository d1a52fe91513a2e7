package cli

import (
	"context"
	"flag"
)

// Command is a tgimport subcommand. RegisterFlags is called on a fresh FlagSet before Run receives the remaining
// positional arguments.
type Command interface {
	Name() string
	Summary() string
	RegisterFlags(fs *flag.FlagSet)
	Run(ctx context.Context, args []string) error
}
