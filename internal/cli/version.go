package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/twinmind/telegraf-importer/internal/version"
)

// VersionCommand prints the application's version details.
type VersionCommand struct {
	writer io.Writer
}

func (c *VersionCommand) Name() string {
	return "version"
}

func (c *VersionCommand) Summary() string {
	return "Show build version and commit"
}

func (c *VersionCommand) RegisterFlags(_ *flag.FlagSet) {}

func (c *VersionCommand) Run(_ context.Context, _ []string) error {
	_, err := fmt.Fprintf(c.writer, "tgimport %s\n", version.String())
	return err
}
