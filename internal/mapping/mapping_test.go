package mapping

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinmind/telegraf-importer/internal/document"
)

const modbusSnippet = `
[global_tags]
  site = "plant-1"

[[inputs.modbus]]
  name = "meter"
  slave_id = 1
  [[inputs.modbus.holding_registers]]
    name = "voltage"
    unit = "V"
    scale = 0.1
  [[inputs.modbus.holding_registers]]
    name = "current"
    unit = "A"
    scale = 0.01
  [inputs.modbus.tags]
    line = "a"
`

func parse(t *testing.T, content string) document.Parsed {
	t.Helper()
	parsed, err := document.Parse(content)
	require.NoError(t, err)
	return parsed
}

func TestSelectionPrimaryAutoAssignment(t *testing.T) {
	t.Parallel()

	var sel Selection
	assert.True(t, sel.Toggle("global_tags", "global_tags", document.KindTable))
	_, ok := sel.Primary()
	assert.False(t, ok)

	assert.True(t, sel.Toggle("inputs.modbus", "modbus", document.KindArrayOfTables))
	primary, ok := sel.Primary()
	require.True(t, ok)
	assert.Equal(t, "inputs.modbus", primary.Path)

	assert.True(t, sel.Toggle("inputs.modbus.holding_registers", "holding_registers", document.KindArrayOfTables))
	assert.True(t, sel.IsPrimary("inputs.modbus"), "first array keeps primacy")

	assert.False(t, sel.Toggle("inputs.modbus", "modbus", document.KindArrayOfTables))
	_, ok = sel.Primary()
	assert.False(t, ok)
	assert.Equal(t, 2, sel.Len())
	assert.True(t, sel.Contains("global_tags"))
	assert.True(t, sel.Contains("inputs.modbus.holding_registers"))
}

func TestSelectionToggleIsIdempotentPair(t *testing.T) {
	t.Parallel()

	var sel Selection
	sel.Toggle("a", "a", document.KindScalar)
	sel.Toggle("a", "a", document.KindScalar)
	assert.Equal(t, 0, sel.Len())
}

func TestSelectionSetPrimary(t *testing.T) {
	t.Parallel()

	var sel Selection
	sel.Toggle("inputs.modbus", "modbus", document.KindArrayOfTables)
	sel.Toggle("inputs.modbus.holding_registers", "holding_registers", document.KindArrayOfTables)
	sel.Toggle("global_tags", "global_tags", document.KindTable)

	require.NoError(t, sel.SetPrimary("inputs.modbus.holding_registers"))
	assert.True(t, sel.IsPrimary("inputs.modbus.holding_registers"))

	err := sel.SetPrimary("global_tags")
	assert.True(t, errors.Is(err, ErrNotArrayOfTables))

	err = sel.SetPrimary("missing")
	assert.True(t, errors.Is(err, ErrNotSelected))
	assert.True(t, sel.IsPrimary("inputs.modbus.holding_registers"))
}

func TestCandidateFields(t *testing.T) {
	t.Parallel()

	parsed := parse(t, modbusSnippet)
	var sel Selection
	sel.Toggle("inputs.modbus.holding_registers", "holding_registers", document.KindArrayOfTables)
	sel.Toggle("global_tags", "global_tags", document.KindTable)

	fields := CandidateFields(parsed.Data, &sel)
	var displays []string
	for _, f := range fields {
		displays = append(displays, f.Display)
	}
	assert.Equal(t, []string{
		"holding_registers.name",
		"holding_registers.scale",
		"holding_registers.unit",
		"global_tags.site",
	}, displays)

	assert.Equal(t, Binding{SourceKey: "name"}, fields[0].Binding)
	assert.Equal(t, Binding{SourceKey: "site", IsContext: true, ContextPath: "global_tags"}, fields[3].Binding)
}

func TestCandidateFieldsSharedKeyUsesFullPath(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"inputs": map[string]any{
			"a": map[string]any{
				"rows": []any{map[string]any{"name": "v"}},
				"tags": map[string]any{"site": "north"},
			},
			"b": map[string]any{
				"tags": map[string]any{"site": "south"},
			},
		},
	}
	var sel Selection
	sel.Toggle("inputs.a.rows", "rows", document.KindArrayOfTables)
	sel.Toggle("inputs.a.tags", "tags", document.KindTable)
	sel.Toggle("inputs.b.tags", "tags", document.KindTable)

	fields := CandidateFields(doc, &sel)
	var displays []string
	for _, f := range fields {
		displays = append(displays, f.Display)
	}
	assert.Equal(t, []string{"rows.name", "inputs.a.tags.site", "inputs.b.tags.site"}, displays)

	var m Mapping
	require.NoError(t, m.Bind(FieldPointComment, "inputs.b.tags.site", fields))
	bindings, err := m.Bindings(fields)
	require.NoError(t, err)
	assert.Equal(t, Binding{SourceKey: "site", IsContext: true, ContextPath: "inputs.b.tags"}, bindings[FieldPointComment])
	assert.ErrorIs(t, m.Bind(FieldPointComment, "tags.site", fields), ErrUnknownSource)
}

func TestCandidateFieldsEmptyPrimaryOffersContextOnly(t *testing.T) {
	t.Parallel()

	doc := map[string]any{
		"rows": []any{},
		"meta": map[string]any{"site": "x"},
	}
	var sel Selection
	sel.Toggle("rows", "rows", document.KindArrayOfTables)
	sel.Toggle("meta", "meta", document.KindTable)

	fields := CandidateFields(doc, &sel)
	require.Len(t, fields, 1)
	assert.True(t, fields[0].Binding.IsContext)
}

func TestBuildBindings(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		{Display: "rows.name", Binding: Binding{SourceKey: "name"}},
		{Display: "meta.site", Binding: Binding{SourceKey: "site", IsContext: true, ContextPath: "meta"}},
	}

	bindings, err := BuildBindings(TargetFields, candidates, map[string]string{
		FieldMeasurement:  "rows.name",
		FieldPointComment: "meta.site",
		FieldDataType:     "",
	})
	require.NoError(t, err)
	assert.Len(t, bindings, 2)
	assert.Equal(t, "name", bindings[FieldMeasurement].SourceKey)
	assert.True(t, bindings[FieldPointComment].IsContext)

	_, err = BuildBindings(TargetFields, candidates, map[string]string{"unit": "rows.name"})
	assert.True(t, errors.Is(err, ErrUnknownTarget))

	_, err = BuildBindings(TargetFields, candidates, map[string]string{FieldMeasurement: "rows.gone"})
	assert.True(t, errors.Is(err, ErrUnknownSource))
}

func TestMappingBindAndPrune(t *testing.T) {
	t.Parallel()

	candidates := []Candidate{
		{Display: "rows.name", Binding: Binding{SourceKey: "name"}},
		{Display: "meta.site", Binding: Binding{SourceKey: "site", IsContext: true, ContextPath: "meta"}},
	}

	var m Mapping
	require.NoError(t, m.Bind(FieldMeasurement, "rows.name", candidates))
	require.NoError(t, m.Bind(FieldPointComment, "meta.site", candidates))
	assert.True(t, errors.Is(m.Bind("unit", "rows.name", candidates), ErrUnknownTarget))
	assert.True(t, errors.Is(m.Bind(FieldDataType, "rows.type", candidates), ErrUnknownSource))

	dropped := m.Prune(candidates[:1])
	assert.Equal(t, []string{FieldPointComment}, dropped)

	bindings, err := m.Bindings(candidates[:1])
	require.NoError(t, err)
	assert.Equal(t, Bindings{FieldMeasurement: {SourceKey: "name"}}, bindings)

	m.Unbind(FieldMeasurement)
	assert.Empty(t, m.Choices())
}

func TestProject(t *testing.T) {
	t.Parallel()

	parsed := parse(t, modbusSnippet)
	rows, err := document.ResolveList(parsed.Data, "inputs.modbus.holding_registers")
	require.NoError(t, err)

	points := Project(parsed.Data, rows, Bindings{
		FieldMeasurement:       {SourceKey: "name"},
		FieldOriginalPointName: {SourceKey: "name"},
		FieldDataType:          {SourceKey: "scale"},
		FieldPointComment:      {SourceKey: "site", IsContext: true, ContextPath: "global_tags"},
	})
	require.Len(t, points, 2)

	assert.Equal(t, 0, points[0].InternalID)
	assert.Equal(t, "voltage", points[0].Measurement)
	assert.Equal(t, "0.1", points[0].DataType)
	assert.Equal(t, "plant-1", points[0].PointComment)
	assert.Equal(t, "", points[0].NormalizedPointName)

	assert.Equal(t, 1, points[1].InternalID)
	assert.Equal(t, "current", points[1].OriginalPointName)
	assert.Equal(t, "plant-1", points[1].PointComment)
}

func TestProjectMissingFieldDegradesToEmpty(t *testing.T) {
	t.Parallel()

	parsed := parse(t, "[[inputs.cpu]]\npercpu = true\n[[inputs.cpu.tags]]\nhost=\"a\"")
	var sel Selection
	sel.Toggle("inputs.cpu", "cpu", document.KindArrayOfTables)
	primary, ok := sel.Primary()
	require.True(t, ok)

	rows, err := document.ResolveList(parsed.Data, primary.Path)
	require.NoError(t, err)

	points := Project(parsed.Data, rows, Bindings{FieldMeasurement: {SourceKey: "type"}})
	require.Len(t, points, 1)
	assert.Equal(t, "", points[0].Measurement)
}

func TestProjectContextThroughArray(t *testing.T) {
	t.Parallel()

	parsed := parse(t, modbusSnippet)
	rows, err := document.ResolveList(parsed.Data, "inputs.modbus.holding_registers")
	require.NoError(t, err)

	points := Project(parsed.Data, rows, Bindings{
		FieldPointComment: {SourceKey: "tags.line", IsContext: true, ContextPath: "inputs.modbus"},
	})
	require.Len(t, points, 2)
	assert.Equal(t, "a", points[1].PointComment)
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "café", NormalizeName("  café "))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestProfileRoundTrip(t *testing.T) {
	t.Parallel()

	parsed := parse(t, modbusSnippet)
	var sel Selection
	sel.Toggle("global_tags", "global_tags", document.KindTable)
	sel.Toggle("inputs.modbus.holding_registers", "holding_registers", document.KindArrayOfTables)

	candidates := CandidateFields(parsed.Data, &sel)
	var m Mapping
	require.NoError(t, m.Bind(FieldMeasurement, "holding_registers.name", candidates))

	path := filepath.Join(t.TempDir(), "profiles", "modbus.yaml")
	require.NoError(t, ProfileFrom("modbus", &sel, &m).Save(path))

	loaded, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "modbus", loaded.Name)
	assert.Equal(t, map[string]string{FieldMeasurement: "holding_registers.name"}, loaded.Bindings)

	var replay Selection
	require.NoError(t, loaded.ApplySelection(parsed.Structure, &replay))
	assert.Equal(t, sel.Sources(), replay.Sources())
	assert.True(t, replay.IsPrimary("inputs.modbus.holding_registers"))
}

func TestParseProfileValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no sources":   "bindings: {measurement: a.b}\n",
		"two primary":  "sources:\n  - {path: a, primary: true}\n  - {path: b, primary: true}\n",
		"duplicate":    "sources:\n  - {path: a}\n  - {path: a}\n",
		"bad target":   "sources:\n  - {path: a}\nbindings: {unit: a.b}\n",
		"invalid yaml": "sources: [",
	}
	for name, data := range cases {
		_, err := ParseProfile([]byte(data))
		assert.Error(t, err, name)
	}
}

func TestApplySelectionUnknownPath(t *testing.T) {
	t.Parallel()

	parsed := parse(t, modbusSnippet)
	p := &Profile{Sources: []ProfileSource{{Path: "inputs.snmp", Primary: true}}}
	var sel Selection
	err := p.ApplySelection(parsed.Structure, &sel)
	assert.True(t, errors.Is(err, document.ErrPathNotFound))
}
