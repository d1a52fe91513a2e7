package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/twinmind/telegraf-importer/internal/cli"
)

// exitCoder is implemented by errors that carry their own process exit code.
type exitCoder interface {
	ExitCode() int
	Silent() bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	app := cli.New(stdout, stderr)
	err := app.Execute(context.Background(), args)
	if err == nil {
		return 0
	}

	var coded exitCoder
	if errors.As(err, &coded) {
		if !coded.Silent() {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return coded.ExitCode()
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}
