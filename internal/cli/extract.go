package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/twinmind/telegraf-importer/internal/classify"
	"github.com/twinmind/telegraf-importer/internal/config"
	"github.com/twinmind/telegraf-importer/internal/document"
	"github.com/twinmind/telegraf-importer/internal/mapping"
	"github.com/twinmind/telegraf-importer/internal/platform"
	"github.com/twinmind/telegraf-importer/internal/snippet"
	"github.com/twinmind/telegraf-importer/internal/ui/console"
	"github.com/twinmind/telegraf-importer/internal/wizard"
)

const exitUnresolved = 2

// ExtractCommand runs the import wizard over one snippet: select sources, bind fields, preview, resolve, commit.
type ExtractCommand struct {
	stdout      io.Writer
	stderr      io.Writer
	stdin       io.Reader
	console     *console.Writer
	source      sourceFlags
	index       *int
	profile     *string
	saveProfile *string
	interactive *bool
	dryRun      *bool
	status      *string
	local       *bool
	verbose     *bool
}

// NewExtractCommand constructs an extract command.
func NewExtractCommand(stdout, stderr io.Writer) *ExtractCommand {
	return &ExtractCommand{
		stdout:  stdout,
		stderr:  stderr,
		stdin:   os.Stdin,
		console: console.New(stdout, stderr),
	}
}

func (c *ExtractCommand) Name() string {
	return "extract"
}

func (c *ExtractCommand) Summary() string {
	return "Extract points from a snippet and import them into the point store"
}

func (c *ExtractCommand) Examples() []string {
	return []string{
		"extract --config-id 3 --snippet 2 --profile plc.yaml --dry-run",
		"extract --file telegraf.conf --snippet 2 --interactive --save-profile plc.yaml",
	}
}

func (c *ExtractCommand) RegisterFlags(fs *flag.FlagSet) {
	c.source.register(fs)
	c.index = fs.Int("snippet", 0, "snippet index as listed by segment")
	c.profile = fs.String("profile", "", "mapping profile (YAML) with sources and bindings")
	c.saveProfile = fs.String("save-profile", "", "write the final sources and bindings to this profile file")
	c.interactive = fs.Bool("interactive", false, "choose sources and fields, and resolve conflicts interactively")
	c.dryRun = fs.Bool("dry-run", false, "show the preview without importing")
	c.status = fs.String("status", "", "only list preview rows with this status")
	c.local = fs.Bool("local", false, "parse structure locally instead of calling the backend")
	c.verbose = fs.Bool("verbose", false, "enable debug logging")
}

func (c *ExtractCommand) Run(ctx context.Context, _ []string) error {
	interactive := derefBool(c.interactive)
	profilePath := strings.TrimSpace(deref(c.profile))
	if profilePath == "" && !interactive {
		return errors.New("--profile is required unless --interactive is set")
	}
	var filter classify.Status
	if raw := strings.TrimSpace(deref(c.status)); raw != "" {
		st, ok := classify.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		filter = st
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
	if src.configID == 0 {
		return errors.New("a config id is required to check points; pass --config-id or upload the file first")
	}
	chosen, err := pickSnippet(snippet.Segment(src.content), derefIndex(c.index))
	if err != nil {
		return err
	}

	var profile *mapping.Profile
	if profilePath != "" {
		profile, err = mapping.LoadProfile(resolveProfilePath(profilePath, env.ProfileDir))
		if err != nil {
			return err
		}
	}

	opts := []wizard.Option{
		wizard.WithReporter(consoleReporter{writer: c.console}),
		wizard.WithLogger(newLogger(c.stderr, derefBool(c.verbose))),
	}
	if derefBool(c.local) {
		opts = append(opts, wizard.WithParser(wizard.LocalParser{}))
	}
	session := wizard.New(client, opts...)
	onComplete := func(resp platform.ImportResponse) {
		c.console.Info("Config %d now has %d new and %d merged point(s) from %s", src.configID,
			resp.CreatedCount, resp.MergedCount, chosen.Header)
	}
	if err := session.Init(ctx, chosen.Content, src.configID, onComplete); err != nil {
		return err
	}

	ask := newPrompter(c.console, c.stdin)
	if profile != nil {
		if err := session.ApplyProfile(profile); err != nil {
			return fmt.Errorf("apply profile: %w", err)
		}
	} else if err := c.chooseSources(session, ask); err != nil {
		return err
	}
	if err := session.Next(ctx); err != nil {
		return err
	}

	if interactive && profile == nil {
		if err := c.chooseBindings(session, ask); err != nil {
			return err
		}
	}
	if path := strings.TrimSpace(deref(c.saveProfile)); path != "" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := session.Profile(name).Save(path); err != nil {
			return err
		}
		c.console.Info("Saved profile %s", path)
	}
	if err := session.Next(ctx); err != nil {
		return err
	}

	c.printPreview(session, filter)
	if interactive {
		return c.resolve(ctx, session, ask, filter)
	}
	if derefBool(c.dryRun) {
		session.Cancel()
		c.console.Info("Dry run; nothing imported")
		return nil
	}
	return c.commit(ctx, session)
}

func (c *ExtractCommand) commit(ctx context.Context, session *wizard.Session) error {
	_, err := session.Commit(ctx)
	var unresolved *wizard.UnresolvedError
	switch {
	case errors.As(err, &unresolved):
		c.console.Error("%d row(s) block the import:", len(unresolved.Issues))
		items := make([]string, 0, len(unresolved.Issues))
		for _, issue := range unresolved.Issues {
			items = append(items, issue.String())
		}
		c.console.List(items)
		return newSilentExitError(exitUnresolved)
	case errors.Is(err, wizard.ErrNothingToImport):
		c.console.Info("Everything is already synced; nothing to import")
		return nil
	}
	return err
}

// chooseSources asks for the sources to select until the user confirms a selection with a primary list.
func (c *ExtractCommand) chooseSources(session *wizard.Session, ask *prompter) error {
	var nodes []*document.Node
	session.Tree().Walk(func(n *document.Node, _ int) bool {
		if n.Kind != document.KindScalar {
			nodes = append(nodes, n)
		}
		return true
	})
	if len(nodes) == 0 {
		return errors.New("snippet has no tables to select")
	}

	for {
		selected, primary := session.Selection()
		picked := map[string]bool{}
		for _, s := range selected {
			picked[s.Path] = true
		}
		c.console.Section("Select sources")
		rows := make([][]string, 0, len(nodes))
		for i, n := range nodes {
			mark := ""
			switch {
			case n.Path == primary:
				mark = "primary"
			case picked[n.Path]:
				mark = "selected"
			}
			rows = append(rows, []string{strconv.Itoa(i), n.Path, n.Kind.String(), mark})
		}
		c.console.Table([]string{"#", "path", "kind", ""}, rows)

		answer, err := ask.ask("Toggle # / 'p #' for primary / Enter to continue: ")
		if err != nil {
			return err
		}
		if answer == "" {
			if primary == "" {
				c.console.Warn("%v", wizard.ErrNoPrimary)
				continue
			}
			return nil
		}
		setPrimary := strings.HasPrefix(answer, "p ")
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(answer, "p ")))
		if err != nil || n < 0 || n >= len(nodes) {
			c.console.Warn("Unknown choice %q", answer)
			continue
		}
		if setPrimary {
			err = session.SetPrimary(nodes[n].Path)
		} else {
			_, err = session.Toggle(nodes[n].Path)
		}
		if err != nil {
			c.console.Warn("%v", err)
		}
	}
}

// chooseBindings asks, per target field, which candidate to bind. Enter keeps the current choice.
func (c *ExtractCommand) chooseBindings(session *wizard.Session, ask *prompter) error {
	candidates := session.CandidateFields()
	if len(candidates) == 0 {
		return errors.New("the selection offers no fields to bind")
	}
	c.console.Section("Map fields")
	rows := make([][]string, 0, len(candidates))
	for i, cand := range candidates {
		kind := "row"
		if cand.Binding.IsContext {
			kind = "context"
		}
		rows = append(rows, []string{strconv.Itoa(i), cand.Display, kind})
	}
	c.console.Table([]string{"#", "field", "scope"}, rows)

	for _, target := range mapping.TargetFields {
		current := session.Bindings()[target]
		for {
			answer, err := ask.ask("%s [%s] (# / '-' to clear / Enter to keep): ", target, current)
			if err != nil {
				return err
			}
			if answer == "" {
				break
			}
			if answer == "-" {
				if err := session.Unbind(target); err != nil {
					return err
				}
				break
			}
			n, err := strconv.Atoi(answer)
			if err != nil || n < 0 || n >= len(candidates) {
				c.console.Warn("Unknown choice %q", answer)
				continue
			}
			if err := session.Bind(target, candidates[n].Display); err != nil {
				c.console.Warn("%v", err)
				continue
			}
			break
		}
	}
	return nil
}

// resolve runs the interactive preview loop until the import is committed or abandoned.
func (c *ExtractCommand) resolve(ctx context.Context, session *wizard.Session, ask *prompter, filter classify.Status) error {
	for {
		answer, err := ask.ask("r # NAME rename / m # mark duplicate / c recheck / s import / q quit: ")
		if errors.Is(err, io.EOF) {
			session.Cancel()
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(answer)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "r":
			if len(fields) < 3 {
				c.console.Warn("Usage: r # NAME")
				continue
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				c.console.Warn("Invalid row %q", fields[1])
				continue
			}
			if err := session.Rename(id, strings.Join(fields[2:], " ")); err != nil {
				c.console.Warn("%v", err)
				continue
			}
			c.console.Info("Renamed row %d; run 'c' to recheck", id)
		case "m":
			if len(fields) != 2 {
				c.console.Warn("Usage: m #")
				continue
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				c.console.Warn("Invalid row %q", fields[1])
				continue
			}
			if err := session.MarkForImport(id); err != nil {
				c.console.Warn("%v", err)
				continue
			}
			c.printPreview(session, filter)
		case "c":
			if err := session.Recheck(ctx); err != nil {
				return err
			}
			c.printPreview(session, filter)
		case "s":
			if derefBool(c.dryRun) {
				c.console.Info("Dry run; nothing imported")
				session.Cancel()
				return nil
			}
			err := c.commit(ctx, session)
			var exit exitError
			if errors.As(err, &exit) {
				continue
			}
			if err != nil {
				c.console.Error("%v", err)
				continue
			}
			return nil
		case "q":
			session.Cancel()
			c.console.Info("Import abandoned")
			return nil
		default:
			c.console.Warn("Unknown command %q", fields[0])
		}
	}
}

func (c *ExtractCommand) printPreview(session *wizard.Session, filter classify.Status) {
	counts := session.Counts()
	statuses := make([]string, 0, len(counts))
	for st, n := range counts {
		statuses = append(statuses, fmt.Sprintf("%s=%d", st, n))
	}
	sort.Strings(statuses)
	c.console.Section("Preview: " + strings.Join(statuses, " "))

	rows := session.Rows(filter)
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		mark := ""
		if row.Point.MarkedForImport {
			mark = "*"
		}
		table = append(table, []string{
			strconv.Itoa(row.Point.InternalID),
			c.console.Badge(row.Status.Status.String()) + mark,
			row.Point.Measurement,
			row.Point.OriginalPointName,
			row.Point.NormalizedPointName,
			row.Point.PointComment,
			row.Point.DataType,
		})
	}
	c.console.Table([]string{"#", "status", "measurement", "original", "normalized", "comment", "type"}, table)
}

// resolveProfilePath looks a bare profile name up in the profile directory when it is not a path to a file.
func resolveProfilePath(path, dir string) string {
	if _, err := os.Stat(path); err == nil || dir == "" || filepath.IsAbs(path) {
		return path
	}
	candidate := filepath.Join(dir, path)
	if filepath.Ext(candidate) == "" {
		candidate += ".yaml"
	}
	return candidate
}
