package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/twinmind/telegraf-importer/internal/backend"
	"github.com/twinmind/telegraf-importer/internal/config"
	"github.com/twinmind/telegraf-importer/internal/pointstore"
	"github.com/twinmind/telegraf-importer/internal/ui/console"
)

// ServeCommand runs the development backend over a SQLite point store.
type ServeCommand struct {
	stdout  io.Writer
	stderr  io.Writer
	console *console.Writer
	listen  *string
	db      *string
	verbose *bool
}

// NewServeCommand constructs a serve command.
func NewServeCommand(stdout, stderr io.Writer) *ServeCommand {
	return &ServeCommand{
		stdout:  stdout,
		stderr:  stderr,
		console: console.New(stdout, stderr),
	}
}

func (c *ServeCommand) Name() string {
	return "serve"
}

func (c *ServeCommand) Summary() string {
	return "Run the development backend"
}

func (c *ServeCommand) RegisterFlags(fs *flag.FlagSet) {
	c.listen = fs.String("listen", "", "listen address (default from TGIMPORT_LISTEN or :5000)")
	c.db = fs.String("db", "", "SQLite database path (default from TGIMPORT_DB or points.db)")
	c.verbose = fs.Bool("verbose", false, "log every request")
}

func (c *ServeCommand) Run(ctx context.Context, _ []string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	listen := env.Listen
	if v := strings.TrimSpace(deref(c.listen)); v != "" {
		listen = v
	}
	dsn := env.Database
	if v := strings.TrimSpace(deref(c.db)); v != "" {
		dsn = v
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := pointstore.Open(ctx, pointstore.Config{DSN: dsn})
	if err != nil {
		return fmt.Errorf("open point store: %w", err)
	}
	defer closeStore()

	logger := newLogger(c.stderr, derefBool(c.verbose))
	c.console.Info("Serving %s on %s", dsn, listen)
	server := backend.NewServer(backend.Config{Addr: listen}, store, logger)
	return server.ListenAndServe(ctx)
}
