package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinmind/telegraf-importer/internal/backend"
	"github.com/twinmind/telegraf-importer/internal/config"
	"github.com/twinmind/telegraf-importer/internal/platform"
	"github.com/twinmind/telegraf-importer/internal/pointstore"
	"github.com/twinmind/telegraf-importer/internal/snippet"
	"github.com/twinmind/telegraf-importer/internal/testutil/httpmock"
)

const plcConfig = `[agent]
  interval = "10s"

[[inputs.modbus]]
  name = "meter"
  [[inputs.modbus.holding_registers]]
    name = "voltage"
    address = [0]
  [[inputs.modbus.holding_registers]]
    name = "current"
    address = [1]
  [inputs.modbus.tags]
    line = "a"
`

const plcProfile = `name: plc
sources:
  - path: inputs.modbus.holding_registers
    primary: true
  - path: inputs.modbus.tags
bindings:
  measurement: holding_registers.name
  original_point_name: holding_registers.name
  normalized_point_name: holding_registers.name
  point_comment: tags.line
`

// workspace is a temporary working directory wired to an in-process backend.
type workspace struct {
	dir   string
	store *pointstore.Store
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TGIMPORT_BASE_URL", httpmock.BaseURL)
	for _, key := range []string{"TGIMPORT_TOKEN", "TGIMPORT_CONFIG_ID", "TGIMPORT_LISTEN", "TGIMPORT_DB", "TGIMPORT_PROFILE_DIR"} {
		t.Setenv(key, "")
	}

	store, closeFn, err := pointstore.Open(context.Background(), pointstore.Config{DSN: filepath.Join(dir, "points.db")})
	require.NoError(t, err)
	t.Cleanup(closeFn)

	_, transport := httpmock.New(backend.NewServer(backend.Config{}, store, nil).Handler())
	t.Cleanup(platform.SetTransportForTesting(transport))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "plc.conf"), []byte(plcConfig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plc.yaml"), []byte(plcProfile), 0o644))
	return &workspace{dir: dir, store: store}
}

type output struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func run(t *testing.T, cmd Command, args ...string) error {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cmd.Run(context.Background(), fs.Args())
}

func TestAppUsage(t *testing.T) {
	var out output
	app := New(&out.stdout, &out.stderr)

	require.NoError(t, app.Execute(context.Background(), nil))
	usage := out.stderr.String()
	for _, name := range []string{"segment", "structure", "extract", "components", "upload", "serve", "version"} {
		assert.Contains(t, usage, "  "+name)
	}
	assert.Less(t, strings.Index(usage, "version"), strings.Index(usage, "help"))

	err := app.Execute(context.Background(), []string{"bogus"})
	assert.EqualError(t, err, "unknown command: bogus")
	assert.Contains(t, out.stderr.String(), `Unknown command "bogus"`)
}

func TestHelpShowsWorkflowAndExamples(t *testing.T) {
	var out output
	app := New(&out.stdout, &out.stderr)

	require.NoError(t, app.Execute(context.Background(), []string{"help"}))
	assert.Contains(t, out.stderr.String(), "Typical workflow:\n  1. upload")

	out.stderr.Reset()
	require.NoError(t, app.Execute(context.Background(), []string{"help", "upload", "extract"}))
	usage := out.stderr.String()
	assert.Contains(t, usage, "-remember")
	assert.Contains(t, usage, "-save-profile")
	assert.Contains(t, usage, "Examples:")
	assert.Contains(t, usage, "upload --file telegraf.conf\n")

	out.stderr.Reset()
	require.NoError(t, app.Execute(context.Background(), []string{"help", "serve"}))
	assert.NotContains(t, out.stderr.String(), "Examples:")

	err := app.Execute(context.Background(), []string{"help", "bogus"})
	assert.EqualError(t, err, "unknown command: bogus")
}

func TestParseIndexList(t *testing.T) {
	got, err := parseIndexList(" 3,0, 3 ,1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, got)

	_, err = parseIndexList("")
	assert.Error(t, err)
	_, err = parseIndexList("1,x")
	assert.EqualError(t, err, `invalid snippet index "x"`)
	_, err = parseIndexList("-1")
	assert.Error(t, err)
}

func TestSegmentCommandJSON(t *testing.T) {
	newWorkspace(t)
	var out output
	require.NoError(t, run(t, NewSegmentCommand(&out.stdout, &out.stderr), "--file", "plc.conf", "--json"))

	var snippets []snippet.Snippet
	require.NoError(t, json.Unmarshal(out.stdout.Bytes(), &snippets))
	require.Len(t, snippets, 2)
	assert.Equal(t, "agent", snippets[0].Type)
	assert.Equal(t, "inputs", snippets[1].Type)
	assert.Equal(t, "modbus", snippets[1].PluginName)
	assert.Equal(t, plcConfig, snippet.Join(snippets))
}

func TestSegmentCommandInspectsLocally(t *testing.T) {
	newWorkspace(t)
	var out output
	require.NoError(t, run(t, NewSegmentCommand(&out.stdout, &out.stderr), "--file", "plc.conf", "--inspect", "--local"))

	text := out.stdout.String()
	assert.Contains(t, text, "plc.conf: 2 snippet(s)")
	assert.Contains(t, text, "[[inputs.modbus]]")
	assert.Contains(t, text, "inputs.modbus.holding_registers (2)")
}

func TestStructureCommandListsFields(t *testing.T) {
	newWorkspace(t)
	var out output
	require.NoError(t, run(t, NewStructureCommand(&out.stdout, &out.stderr), "--file", "plc.conf", "--snippet", "1"))

	text := out.stdout.String()
	assert.Contains(t, text, "holding_registers [array_of_tables] *")
	assert.Contains(t, text, "Fields of inputs.modbus.holding_registers")
	assert.Contains(t, text, "holding_registers.name")
}

func TestStructureCommandRejectsMissingSource(t *testing.T) {
	newWorkspace(t)
	var out output
	err := run(t, NewStructureCommand(&out.stdout, &out.stderr))
	assert.EqualError(t, err, "either --file or --config-id is required")
}

func TestUploadRemembersConfigID(t *testing.T) {
	ws := newWorkspace(t)
	var out output
	require.NoError(t, run(t, NewUploadCommand(&out.stdout, &out.stderr), "--file", "plc.conf"))
	assert.Contains(t, out.stdout.String(), "Stored plc.conf as config 1")

	stored, err := ws.store.GetConfigFile(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, plcConfig, stored.Content)

	env, err := config.LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.ConfigID)
	id, ok := env.LookupConfigFile("PLC.conf")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
}

func TestUploadShowsChangesAgainstStoredCopy(t *testing.T) {
	ws := newWorkspace(t)
	var out output
	require.NoError(t, run(t, NewUploadCommand(&out.stdout, &out.stderr), "--file", "plc.conf"))

	out = output{}
	require.NoError(t, run(t, NewUploadCommand(&out.stdout, &out.stderr), "--file", "plc.conf"))
	assert.Contains(t, out.stdout.String(), "plc.conf is unchanged from config 1; nothing uploaded")

	edited := strings.Replace(plcConfig, `line = "a"`, `line = "b"`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(ws.dir, "plc.conf"), []byte(edited), 0o644))
	out = output{}
	require.NoError(t, run(t, NewUploadCommand(&out.stdout, &out.stderr), "--file", "plc.conf"))
	text := out.stdout.String()
	assert.Contains(t, text, "Changes since config 1: +1 -1")
	assert.Contains(t, text, `line = "b"`)
	assert.Contains(t, text, "Stored plc.conf as config 2")

	env, err := config.LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(2), env.ConfigID)
}

func TestExtractCommitsAndThenReportsSynced(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	var out output
	require.NoError(t, run(t, NewUploadCommand(&out.stdout, &out.stderr), "--file", "plc.conf"))

	out = output{}
	require.NoError(t, run(t, NewExtractCommand(&out.stdout, &out.stderr),
		"--file", "plc.conf", "--snippet", "1", "--profile", "plc.yaml"))
	assert.Contains(t, out.stdout.String(), "Config 1 now has 2 new and 0 merged point(s) from [[inputs.modbus]]")

	points, err := ws.store.ListPoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Equal(t, "a", p.PointComment)
		assert.True(t, p.Locked)
		require.NotNil(t, p.ConfigFileID)
		assert.Equal(t, int64(1), *p.ConfigFileID)
	}

	out = output{}
	require.NoError(t, run(t, NewExtractCommand(&out.stdout, &out.stderr),
		"--file", "plc.conf", "--snippet", "1", "--profile", "plc.yaml"))
	assert.Contains(t, out.stdout.String(), "synced=2")
	assert.Contains(t, out.stdout.String(), "nothing to import")
}

func TestExtractDryRunImportsNothing(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	_, err := ws.store.AddConfigFile(ctx, "plc.conf", plcConfig)
	require.NoError(t, err)

	var out output
	require.NoError(t, run(t, NewExtractCommand(&out.stdout, &out.stderr),
		"--config-id", "1", "--snippet", "1", "--profile", "plc.yaml", "--dry-run", "--status", "new", "--local"))
	assert.Contains(t, out.stdout.String(), "new=2")
	assert.Contains(t, out.stdout.String(), "voltage")
	assert.Contains(t, out.stdout.String(), "Dry run")

	points, err := ws.store.ListPoints(ctx)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestExtractBlockedByLinkedPoints(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	_, err := ws.store.AddConfigFile(ctx, "plc.conf", plcConfig)
	require.NoError(t, err)
	other, err := ws.store.AddConfigFile(ctx, "other.conf", "")
	require.NoError(t, err)
	_, err = ws.store.AddPoint(ctx, pointstore.Point{Measurement: "voltage", ConfigFileID: &other})
	require.NoError(t, err)

	var out output
	err = run(t, NewExtractCommand(&out.stdout, &out.stderr),
		"--file", "plc.conf", "--config-id", "1", "--snippet", "1", "--profile", "plc.yaml")
	var exit exitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, exitUnresolved, exit.ExitCode())
	assert.True(t, exit.Silent())
	assert.Contains(t, out.stderr.String(), "1 row(s) block the import")
	assert.Contains(t, out.stdout.String(), "linked=1")

	points, err := ws.store.ListPoints(ctx)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestExtractInteractiveQuit(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.store.AddConfigFile(context.Background(), "plc.conf", plcConfig)
	require.NoError(t, err)

	var out output
	cmd := NewExtractCommand(&out.stdout, &out.stderr)
	cmd.stdin = strings.NewReader("x\nq\n")
	require.NoError(t, run(t, cmd, "--file", "plc.conf", "--config-id", "1", "--snippet", "1", "--profile", "plc.yaml", "--interactive"))
	assert.Contains(t, out.stderr.String(), `Unknown command "x"`)
	assert.Contains(t, out.stdout.String(), "Import abandoned")
}

func TestExtractInteractiveRenameNeedsRecheckBeforeImport(t *testing.T) {
	ws := newWorkspace(t)
	ctx := context.Background()
	_, err := ws.store.AddConfigFile(ctx, "plc.conf", plcConfig)
	require.NoError(t, err)

	var out output
	cmd := NewExtractCommand(&out.stdout, &out.stderr)
	cmd.stdin = strings.NewReader("r 0 current\ns\nq\n")
	require.NoError(t, run(t, cmd, "--file", "plc.conf", "--config-id", "1", "--snippet", "1", "--profile", "plc.yaml", "--interactive"))
	assert.Contains(t, out.stderr.String(), "recheck before continuing")
	assert.Contains(t, out.stdout.String(), "Import abandoned")

	points, err := ws.store.ListPoints(ctx)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestExtractRequiresProfileOrInteractive(t *testing.T) {
	newWorkspace(t)
	var out output
	err := run(t, NewExtractCommand(&out.stdout, &out.stderr), "--file", "plc.conf")
	assert.EqualError(t, err, "--profile is required unless --interactive is set")

	err = run(t, NewExtractCommand(&out.stdout, &out.stderr), "--file", "plc.conf", "--profile", "plc.yaml", "--status", "bogus")
	assert.EqualError(t, err, `unknown status "bogus"`)
}

func TestExtractSavesProfile(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.store.AddConfigFile(context.Background(), "plc.conf", plcConfig)
	require.NoError(t, err)

	var out output
	require.NoError(t, run(t, NewExtractCommand(&out.stdout, &out.stderr),
		"--config-id", "1", "--snippet", "1", "--profile", "plc.yaml", "--save-profile", "profiles/copy.yaml", "--dry-run"))

	data, err := os.ReadFile(filepath.Join(ws.dir, "profiles", "copy.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: copy")
	assert.Contains(t, string(data), "path: inputs.modbus.holding_registers")
	assert.Contains(t, string(data), "point_comment: tags.line")
}

func TestComponentsCommandSavesSnippets(t *testing.T) {
	ws := newWorkspace(t)
	var out output
	cmd := NewComponentsCommand(&out.stdout, &out.stderr)
	cmd.now = func() time.Time { return time.UnixMilli(1700000000000) }
	require.NoError(t, run(t, cmd, "--file", "plc.conf", "--snippets", "1,0", "--prefix", "plc"))
	assert.Contains(t, out.stdout.String(), "saved 2 component(s): data_source=1, global_parameter=1")

	saved, err := ws.store.ListComponents(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 2)
	for _, c := range saved {
		assert.True(t, strings.HasPrefix(c.Name, "plc_"), c.Name)
	}
	assert.Equal(t, "inputs", saved[0].Level2Type)
	assert.Equal(t, "agent", saved[1].Level2Type)
}

func TestComponentsCommandRejectsBadCategory(t *testing.T) {
	newWorkspace(t)
	var out output
	err := run(t, NewComponentsCommand(&out.stdout, &out.stderr), "--file", "plc.conf", "--snippets", "1", "--level1", "global_parameter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `component kind "inputs" is not allowed in category "global_parameter"`)
}
