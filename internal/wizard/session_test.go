package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinmind/telegraf-importer/internal/classify"
	"github.com/twinmind/telegraf-importer/internal/mapping"
	"github.com/twinmind/telegraf-importer/internal/platform"
)

const modbusSnippet = `[[inputs.modbus]]
  name = "meter"
  [[inputs.modbus.holding_registers]]
    name = "voltage"
    address = [0]
  [[inputs.modbus.holding_registers]]
    name = "current"
    address = [1]
  [[inputs.modbus.holding_registers]]
    name = "power"
    address = [2]
  [inputs.modbus.tags]
    line = "a"
`

type fakeBackend struct {
	mu        sync.Mutex
	parses    int
	checks    [][]string
	commits   []platform.ImportRequest
	statuses  map[string]platform.PointStatus
	checkErr  error
	commitErr error

	// gate, when set, blocks CheckPointStatus until it is closed; started is signalled on entry.
	gate    chan struct{}
	started chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{statuses: map[string]platform.PointStatus{}}
}

func (f *fakeBackend) ParseStructure(ctx context.Context, content string) (platform.StructureResponse, error) {
	f.mu.Lock()
	f.parses++
	f.mu.Unlock()
	return LocalParser{}.ParseStructure(ctx, content)
}

func (f *fakeBackend) CheckPointStatus(_ context.Context, names []string, _ int64) (map[string]platform.PointStatus, error) {
	f.mu.Lock()
	f.checks = append(f.checks, append([]string(nil), names...))
	gate, started := f.gate, f.started
	err := f.checkErr
	out := make(map[string]platform.PointStatus, len(names))
	for _, n := range names {
		if st, ok := f.statuses[n]; ok {
			out[n] = st
		} else {
			out[n] = platform.PointStatus{Status: platform.StatusNew}
		}
	}
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeBackend) CommitImport(_ context.Context, req platform.ImportRequest) (platform.ImportResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, req)
	if f.commitErr != nil {
		return platform.ImportResponse{}, f.commitErr
	}
	return platform.ImportResponse{CreatedCount: len(req.PointsToCreate), MergedCount: len(req.PointsToMerge)}, nil
}

func (f *fakeBackend) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commits)
}

type recordingReporter struct {
	mu       sync.Mutex
	warnings []string
	success  []string
}

func (r *recordingReporter) Infof(string, ...any) {}

func (r *recordingReporter) Warnf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func (r *recordingReporter) Successf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = append(r.success, fmt.Sprintf(format, args...))
}

func id(v int64) *int64 { return &v }

// previewSession walks a session over modbusSnippet to PreviewResolve with measurement bound to the register name.
func previewSession(t *testing.T, backend *fakeBackend, opts ...Option) *Session {
	t.Helper()
	s := New(backend, append([]Option{WithBatchIDs(func() string { return "batch-test" })}, opts...)...)
	require.NoError(t, s.Init(context.Background(), modbusSnippet, 1, nil))

	selected, err := s.Toggle("inputs.modbus.holding_registers")
	require.NoError(t, err)
	require.True(t, selected)
	_, err = s.Toggle("inputs.modbus")
	require.NoError(t, err)
	require.NoError(t, s.Next(context.Background()))

	require.NoError(t, s.Bind(mapping.FieldMeasurement, "holding_registers.name"))
	require.NoError(t, s.Bind(mapping.FieldOriginalPointName, "holding_registers.name"))
	require.NoError(t, s.Bind(mapping.FieldNormalizedPointName, "holding_registers.name"))
	require.NoError(t, s.Bind(mapping.FieldPointComment, "modbus.tags.line"))
	require.NoError(t, s.Next(context.Background()))
	require.Equal(t, StatePreviewResolve, s.State())
	return s
}

func TestSessionRequiresPrimary(t *testing.T) {
	t.Parallel()

	s := New(newFakeBackend())
	require.NoError(t, s.Init(context.Background(), modbusSnippet, 1, nil))
	assert.Equal(t, StateSelectSources, s.State())

	_, err := s.Toggle("inputs.modbus.tags")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Next(context.Background()), ErrNoPrimary)
	assert.Equal(t, StateSelectSources, s.State())

	_, err = s.Toggle("inputs.missing")
	assert.Error(t, err)
}

func TestSessionPreviewRows(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	s := previewSession(t, backend)

	rows := s.Rows("")
	require.Len(t, rows, 3)
	assert.Equal(t, "voltage", rows[0].Point.Measurement)
	assert.Equal(t, "a", rows[0].Point.PointComment)
	assert.Equal(t, classify.StatusNew, rows[0].Status.Status)
	assert.Equal(t, []string{"current", "power", "voltage"}, backend.checks[0])
	assert.Equal(t, map[classify.Status]int{classify.StatusNew: 3}, s.Counts())
}

func TestSessionCommitPartitions(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.statuses["current"] = platform.PointStatus{Status: platform.StatusUnlinked, PointID: id(40)}
	backend.statuses["power"] = platform.PointStatus{Status: platform.StatusSynced, PointID: id(41)}

	var completed []platform.ImportResponse
	s := New(backend, WithBatchIDs(func() string { return "batch-1" }))
	require.NoError(t, s.Init(context.Background(), modbusSnippet, 9, func(resp platform.ImportResponse) {
		completed = append(completed, resp)
	}))
	_, err := s.Toggle("inputs.modbus.holding_registers")
	require.NoError(t, err)
	require.NoError(t, s.Next(context.Background()))
	require.NoError(t, s.Bind(mapping.FieldMeasurement, "holding_registers.name"))
	require.NoError(t, s.Next(context.Background()))

	resp, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, platform.ImportResponse{CreatedCount: 1, MergedCount: 1}, resp)

	require.Len(t, backend.commits, 1)
	req := backend.commits[0]
	assert.Equal(t, int64(9), req.ConfigFileID)
	assert.Equal(t, "batch-1", req.ImportBatch)
	assert.Equal(t, []platform.ImportPoint{{Measurement: "voltage"}}, req.PointsToCreate)
	assert.Equal(t, []platform.ImportPoint{{ID: 40, Measurement: "current"}}, req.PointsToMerge)

	assert.Equal(t, StateCommitted, s.State())
	assert.Equal(t, []platform.ImportResponse{resp}, completed)
	assert.Empty(t, s.Rows(""))
}

func TestSessionCommitGuardLinked(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.statuses["power"] = platform.PointStatus{Status: platform.StatusLinked, PointID: id(3)}
	s := previewSession(t, backend)

	_, err := s.Commit(context.Background())
	require.ErrorIs(t, err, ErrUnresolved)
	var unresolved *UnresolvedError
	require.ErrorAs(t, err, &unresolved)
	require.Len(t, unresolved.Issues, 1)
	assert.Equal(t, 2, unresolved.Issues[0].InternalID)

	assert.Zero(t, backend.commitCount())
	assert.Equal(t, StatePreviewResolve, s.State())
}

func TestSessionDuplicatesNeedOneMarkedRow(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.statuses["voltage"] = platform.PointStatus{Status: platform.StatusUnlinked, PointID: id(5)}
	s := previewSession(t, backend)

	require.NoError(t, s.Rename(1, "voltage"))
	require.NoError(t, s.Recheck(context.Background()))

	dups := s.Rows(classify.StatusInternalDuplicate)
	require.Len(t, dups, 2, "duplicates win over the remote unlinked verdict")
	assert.NotContains(t, backend.checks[len(backend.checks)-1], "voltage")

	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrUnresolved)

	require.NoError(t, s.MarkForImport(0))
	require.NoError(t, s.MarkForImport(1))
	assert.ErrorIs(t, s.MarkForImport(2), ErrNotDuplicate)
	assert.ErrorIs(t, s.MarkForImport(99), ErrUnknownRow)

	_, err = s.Commit(context.Background())
	require.NoError(t, err)
	req := backend.commits[0]
	require.Len(t, req.PointsToCreate, 2)
	assert.Equal(t, "voltage", req.PointsToCreate[0].Measurement)
	assert.Equal(t, "power", req.PointsToCreate[1].Measurement)
	assert.Empty(t, req.PointsToMerge)
}

func TestSessionRename(t *testing.T) {
	t.Parallel()

	s := previewSession(t, newFakeBackend())
	assert.ErrorIs(t, s.Rename(0, "   "), ErrEmptyRename)
	require.NoError(t, s.Rename(0, "  voltage_l1 "))
	assert.Equal(t, "voltage_l1", s.Rows("")[0].Point.Measurement)
	assert.Equal(t, classify.StatusUnknown, s.Rows("")[0].Status.Status, "stale until recheck")

	require.NoError(t, s.Recheck(context.Background()))
	assert.Equal(t, classify.StatusNew, s.Rows("")[0].Status.Status)
}

func TestSessionRenameOntoExistingNameRequiresRecheck(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.statuses["current"] = platform.PointStatus{Status: platform.StatusUnlinked, PointID: id(7)}
	s := previewSession(t, backend)

	require.NoError(t, s.Rename(2, "current"))
	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrRecheckRequired)
	assert.ErrorIs(t, s.MarkForImport(1), ErrRecheckRequired)
	assert.Zero(t, backend.commitCount())
	assert.Equal(t, StatePreviewResolve, s.State())

	require.NoError(t, s.Recheck(context.Background()))
	assert.Len(t, s.Rows(classify.StatusInternalDuplicate), 2)
	_, err = s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.Zero(t, backend.commitCount())
}

func TestSessionRenameToSameNameKeepsPreviewFresh(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	s := previewSession(t, backend)

	require.NoError(t, s.Rename(0, " voltage "))
	_, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.commitCount())
}

func TestSessionRecheckIsIdempotent(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.statuses["current"] = platform.PointStatus{Status: platform.StatusUnlinked, PointID: id(2)}
	s := previewSession(t, backend)

	require.NoError(t, s.Recheck(context.Background()))
	first := s.Result()
	require.NoError(t, s.Recheck(context.Background()))
	assert.Equal(t, first, s.Result())
}

func TestSessionLookupFailureBlocksCommit(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.checkErr = errors.New("status service unavailable")
	reporter := &recordingReporter{}
	s := previewSession(t, backend, WithReporter(reporter))

	assert.Len(t, s.Rows(classify.StatusUnknown), 3)
	require.NotEmpty(t, reporter.warnings)
	assert.Contains(t, reporter.warnings[0], "status service unavailable")

	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.Zero(t, backend.commitCount())
}

func TestSessionCommitFailureKeepsState(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.commitErr = &platform.APIError{Method: "POST", Path: platform.PathWizardImport, Status: 500}
	s := previewSession(t, backend)

	_, err := s.Commit(context.Background())
	var apiErr *platform.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, StatePreviewResolve, s.State())
	assert.Len(t, s.Rows(""), 3)

	backend.mu.Lock()
	backend.commitErr = nil
	backend.mu.Unlock()
	_, err = s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, backend.commitCount())
}

func TestSessionNothingToImport(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	for _, name := range []string{"voltage", "current", "power"} {
		backend.statuses[name] = platform.PointStatus{Status: platform.StatusSynced, PointID: id(1)}
	}
	s := previewSession(t, backend)

	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrNothingToImport)
	assert.Zero(t, backend.commitCount())
}

func TestSessionBackPreservesState(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	s := previewSession(t, backend)

	require.NoError(t, s.Back())
	assert.Equal(t, StateMapFields, s.State())
	assert.Equal(t, "holding_registers.name", s.Bindings()[mapping.FieldMeasurement])

	require.NoError(t, s.Back())
	sources, primary := s.Selection()
	assert.Len(t, sources, 2)
	assert.Equal(t, "inputs.modbus.holding_registers", primary)
	assert.ErrorIs(t, s.Back(), ErrInvalidTransition)

	require.NoError(t, s.Next(context.Background()))
	require.NoError(t, s.Next(context.Background()))
	assert.Len(t, s.Rows(""), 3)
	assert.Equal(t, 1, backend.parses, "navigation never re-parses")
}

func TestSessionBackPrunesBindingsForDroppedSources(t *testing.T) {
	t.Parallel()

	reporter := &recordingReporter{}
	s := previewSession(t, newFakeBackend(), WithReporter(reporter))
	require.NoError(t, s.Back())
	require.NoError(t, s.Back())

	_, err := s.Toggle("inputs.modbus")
	require.NoError(t, err)
	require.NoError(t, s.Next(context.Background()))

	_, bound := s.Bindings()[mapping.FieldPointComment]
	assert.False(t, bound)
	require.NotEmpty(t, reporter.warnings)
}

func TestSessionInitUsesStructureCache(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	s := New(backend)
	require.NoError(t, s.Init(context.Background(), modbusSnippet, 1, nil))
	firstID := s.ID()
	_, err := s.Toggle("inputs.modbus")
	require.NoError(t, err)

	require.NoError(t, s.Init(context.Background(), modbusSnippet, 2, nil))
	assert.Equal(t, 1, backend.parses)
	assert.NotEqual(t, firstID, s.ID())
	sources, _ := s.Selection()
	assert.Empty(t, sources, "init resets selection")
}

func TestSessionInitRejectsInvalidTOML(t *testing.T) {
	t.Parallel()

	s := New(newFakeBackend())
	err := s.Init(context.Background(), "[inputs\n", 1, nil)
	require.Error(t, err)
	assert.Equal(t, StateIdle, s.State())
}

func TestSessionCancelDiscardsInFlightResult(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	s := New(backend)
	require.NoError(t, s.Init(context.Background(), modbusSnippet, 1, nil))
	_, err := s.Toggle("inputs.modbus.holding_registers")
	require.NoError(t, err)
	require.NoError(t, s.Next(context.Background()))
	require.NoError(t, s.Bind(mapping.FieldMeasurement, "holding_registers.name"))

	backend.mu.Lock()
	backend.gate = make(chan struct{})
	backend.started = make(chan struct{}, 1)
	backend.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Next(context.Background()) }()
	<-backend.started

	assert.True(t, s.Busy())
	assert.ErrorIs(t, s.Bind(mapping.FieldOriginalPointName, "holding_registers.name"), ErrBusy)

	s.Cancel()
	close(backend.gate)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, StateCancelled, s.State())
	assert.Empty(t, s.Rows(""))
	assert.False(t, s.Busy())
}

func TestSessionConcurrentRecheckIsRejected(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	s := previewSession(t, backend)

	backend.mu.Lock()
	backend.gate = make(chan struct{})
	backend.started = make(chan struct{}, 1)
	backend.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.Recheck(context.Background()) }()
	<-backend.started

	assert.ErrorIs(t, s.Recheck(context.Background()), ErrBusy)
	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(backend.gate)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
}

func TestSessionUnboundMeasurementIsInvalid(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	s := New(backend)
	require.NoError(t, s.Init(context.Background(), "[[inputs.cpu]]\npercpu = true\n[[inputs.cpu.tags]]\nhost=\"a\"", 1, nil))
	_, err := s.Toggle("inputs.cpu")
	require.NoError(t, err)
	require.NoError(t, s.Next(context.Background()))

	var displays []string
	for _, c := range s.CandidateFields() {
		displays = append(displays, c.Display)
	}
	assert.Equal(t, []string{"cpu.percpu", "cpu.tags"}, displays)
	assert.ErrorIs(t, s.Bind(mapping.FieldMeasurement, "cpu.type"), mapping.ErrUnknownSource)

	require.NoError(t, s.Next(context.Background()))
	rows := s.Rows("")
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Point.Measurement)
	assert.Equal(t, classify.StatusInvalid, rows[0].Status.Status)
	assert.Empty(t, backend.checks)
}

func TestSessionApplyProfile(t *testing.T) {
	t.Parallel()

	profile := &mapping.Profile{
		Sources: []mapping.ProfileSource{
			{Path: "inputs.modbus"},
			{Path: "inputs.modbus.holding_registers", Primary: true},
		},
		Bindings: map[string]string{
			mapping.FieldMeasurement:  "holding_registers.name",
			mapping.FieldPointComment: "modbus.name",
		},
	}

	s := New(newFakeBackend())
	require.NoError(t, s.Init(context.Background(), modbusSnippet, 1, nil))
	require.NoError(t, s.ApplyProfile(profile))
	_, primary := s.Selection()
	assert.Equal(t, "inputs.modbus.holding_registers", primary)

	require.NoError(t, s.Next(context.Background()))
	require.NoError(t, s.Next(context.Background()))
	rows := s.Rows("")
	require.Len(t, rows, 3)
	assert.Equal(t, "meter", rows[2].Point.PointComment)

	saved := s.Profile("modbus")
	assert.Equal(t, profile.Sources, saved.Sources)
	assert.Equal(t, profile.Bindings, saved.Bindings)
}

func TestSessionOperationsRequireState(t *testing.T) {
	t.Parallel()

	s := New(newFakeBackend())
	_, err := s.Toggle("a")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, s.Next(context.Background()), ErrInvalidTransition)
	assert.ErrorIs(t, s.Rename(0, "x"), ErrInvalidTransition)
	_, err = s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	s.Cancel()
	assert.Equal(t, StateCancelled, s.State())
	assert.ErrorIs(t, s.Next(context.Background()), ErrInvalidTransition)
}
