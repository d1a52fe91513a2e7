package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/twinmind/telegraf-importer/internal/config"
	"github.com/twinmind/telegraf-importer/internal/diff"
	"github.com/twinmind/telegraf-importer/internal/platform"
	"github.com/twinmind/telegraf-importer/internal/ui/console"
)

const diffContext = 2

// UploadCommand stores a local configuration file in the backend and remembers its id. When the file name was
// uploaded before, the changes against the stored copy are shown and an unchanged file is not uploaded again.
type UploadCommand struct {
	stdout   io.Writer
	stderr   io.Writer
	console  *console.Writer
	file     *string
	name     *string
	remember *bool
	force    *bool
}

// NewUploadCommand constructs an upload command.
func NewUploadCommand(stdout, stderr io.Writer) *UploadCommand {
	return &UploadCommand{
		stdout:  stdout,
		stderr:  stderr,
		console: console.New(stdout, stderr),
	}
}

func (c *UploadCommand) Name() string {
	return "upload"
}

func (c *UploadCommand) Summary() string {
	return "Store a Telegraf configuration file in the backend"
}

func (c *UploadCommand) Examples() []string {
	return []string{
		"upload --file telegraf.conf",
		"upload --file site-a.conf --name telegraf.conf --force",
	}
}

func (c *UploadCommand) RegisterFlags(fs *flag.FlagSet) {
	c.file = fs.String("file", "", "local Telegraf configuration file")
	c.name = fs.String("name", "", "file name to store (defaults to the base name of --file)")
	c.remember = fs.Bool("remember", true, "record the new id in "+config.DefaultTomlPath+" and make it the default")
	c.force = fs.Bool("force", false, "upload even when the stored copy is unchanged")
}

func (c *UploadCommand) Run(ctx context.Context, _ []string) error {
	path := strings.TrimSpace(deref(c.file))
	if path == "" {
		return errors.New("--file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	name := strings.TrimSpace(deref(c.name))
	if name == "" {
		name = filepath.Base(path)
	}

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	client, err := newClient(env)
	if err != nil {
		return err
	}
	if id, ok := env.LookupConfigFile(name); ok {
		unchanged, err := c.compare(ctx, client, id, string(data))
		if err != nil {
			return err
		}
		if unchanged && !derefBool(c.force) {
			c.console.Info("%s is unchanged from config %d; nothing uploaded", name, id)
			return nil
		}
	}

	stored, err := client.UploadConfigFile(ctx, name, string(data))
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	c.console.Success("Stored %s as config %d", stored.FileName, stored.ID)

	if c.remember == nil || *c.remember {
		if err := config.RememberConfigFile(config.DefaultTomlPath, stored.ID, stored.FileName); err != nil {
			return fmt.Errorf("remember config id: %w", err)
		}
		c.console.Info("Recorded config %d in %s", stored.ID, config.DefaultTomlPath)
	}
	return nil
}

// compare prints the changes between the stored config id and content. A config that no longer exists in the
// backend counts as changed.
func (c *UploadCommand) compare(ctx context.Context, client *platform.Client, id int64, content string) (bool, error) {
	previous, err := client.GetConfigFile(ctx, id)
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		c.console.Warn("Config %d is no longer stored; uploading a new copy", id)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load config file %d: %w", id, err)
	}

	lines := diff.Lines(previous.Content, content)
	if !diff.Changed(lines) {
		return true, nil
	}
	inserted, deleted := diff.Stat(lines)
	c.console.Section(fmt.Sprintf("Changes since config %d: +%d -%d", id, inserted, deleted))
	c.console.Diff(diff.Render(diff.Trim(lines, diffContext)))
	return false, nil
}
