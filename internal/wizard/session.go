package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/twinmind/telegraf-importer/internal/classify"
	"github.com/twinmind/telegraf-importer/internal/document"
	"github.com/twinmind/telegraf-importer/internal/logging"
	"github.com/twinmind/telegraf-importer/internal/mapping"
	"github.com/twinmind/telegraf-importer/internal/platform"
	"github.com/twinmind/telegraf-importer/internal/util"
)

const maxCachedStructures = 32

// StructureParser turns snippet content into a structure tree and decoded data.
type StructureParser interface {
	ParseStructure(ctx context.Context, content string) (platform.StructureResponse, error)
}

// Importer persists the final create and merge sets.
type Importer interface {
	CommitImport(ctx context.Context, req platform.ImportRequest) (platform.ImportResponse, error)
}

// Backend captures the subset of the platform client the wizard needs.
type Backend interface {
	StructureParser
	classify.Checker
	Importer
}

// Reporter provides progress hooks for the session.
type Reporter interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Successf(format string, args ...any)
}

// CompletionFunc is invoked once after a successful commit.
type CompletionFunc func(resp platform.ImportResponse)

// LocalParser parses structure in-process instead of asking the backend.
type LocalParser struct{}

// ParseStructure implements StructureParser.
func (LocalParser) ParseStructure(_ context.Context, content string) (platform.StructureResponse, error) {
	parsed, err := document.Parse(content)
	if err != nil {
		return platform.StructureResponse{}, err
	}
	return platform.StructureResponse{Structure: parsed.Structure, Data: parsed.Data}, nil
}

// Option customises a Session.
type Option func(*Session)

// WithReporter routes progress messages to r.
func WithReporter(r Reporter) Option {
	return func(s *Session) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithParser overrides where structure comes from, e.g. LocalParser.
func WithParser(p StructureParser) Option {
	return func(s *Session) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithBatchIDs overrides the import batch id generator.
func WithBatchIDs(next func() string) Option {
	return func(s *Session) {
		if next != nil {
			s.newBatchID = next
		}
	}
}

// Row is a preview row with its current verdict.
type Row struct {
	Point  mapping.CandidatePoint
	Status classify.PointStatus
}

// Session drives one import from source selection to commit. It is safe for concurrent use; operations that call
// the backend hold a busy flag for their duration and any result that arrives after Cancel or Init is discarded.
type Session struct {
	backend    Backend
	parser     StructureParser
	reporter   Reporter
	logger     *slog.Logger
	newBatchID func() string

	mu         sync.Mutex
	cache      map[uint64]platform.StructureResponse
	cacheOrder []uint64
	id         string
	state      State
	generation uint64
	busy       bool

	configID   int64
	structure  document.Tree
	data       map[string]any
	selection  mapping.Selection
	mapping    mapping.Mapping
	candidates []mapping.Candidate
	points     []mapping.CandidatePoint
	result     classify.Result
	stale      bool
	onComplete CompletionFunc
}

// New constructs an idle session.
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:    backend,
		parser:     backend,
		reporter:   noopReporter{},
		logger:     logging.Discard(),
		newBatchID: func() string { return uuid.NewString() },
		cache:      make(map[uint64]platform.StructureResponse),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init discards any previous state and loads the structure of content. Structures are cached by content hash, so
// re-initialising with the same snippet does not call the parser again.
func (s *Session) Init(ctx context.Context, content string, configID int64, onComplete CompletionFunc) error {
	s.mu.Lock()
	s.reset()
	s.generation++
	gen := s.generation
	s.id = uuid.NewString()
	s.configID = configID
	s.onComplete = onComplete
	key := util.ContentHash(content)
	cached, hit := s.cache[key]
	if hit {
		s.load(cached)
		s.mu.Unlock()
		s.logger.Debug("structure cache hit", "session", s.id, "key", util.ContentKey(content))
		return nil
	}
	s.busy = true
	s.mu.Unlock()

	resp, err := s.parser.ParseStructure(ctx, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if staleErr := s.finish(gen); staleErr != nil {
		return staleErr
	}
	if err != nil {
		s.state = StateIdle
		return fmt.Errorf("parse structure: %w", err)
	}
	s.remember(key, resp)
	s.load(resp)
	s.logger.Debug("structure loaded", "session", s.id, "arrays", len(resp.Structure.ArrayPaths()))
	return nil
}

// ID returns the identifier of the current initialisation.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current step.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a backend call is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Tree returns the structure of the loaded snippet.
func (s *Session) Tree() document.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.structure
}

// Selection returns the selected sources and the primary path, if any.
func (s *Session) Selection() ([]mapping.SelectedSource, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	primary, _ := s.selection.Primary()
	return s.selection.Sources(), primary.Path
}

// Toggle flips the selection of the node at path and reports whether it is now selected.
func (s *Session) Toggle(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.require(StateSelectSources); err != nil {
		return false, err
	}
	node, ok := s.structure.Find(path)
	if !ok {
		return false, fmt.Errorf("%w: %s", document.ErrPathNotFound, path)
	}
	return s.selection.Toggle(node.Path, node.Key, node.Kind), nil
}

// SetPrimary designates a selected array of tables as the primary list.
func (s *Session) SetPrimary(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.require(StateSelectSources); err != nil {
		return err
	}
	return s.selection.SetPrimary(path)
}

// ApplyProfile replaces the selection and bindings with those of a saved profile.
func (s *Session) ApplyProfile(p *mapping.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.require(StateSelectSources); err != nil {
		return err
	}
	if err := p.ApplySelection(s.structure, &s.selection); err != nil {
		return err
	}
	candidates := mapping.CandidateFields(s.data, &s.selection)
	s.mapping.Reset()
	for _, target := range mapping.TargetFields {
		display, ok := p.Bindings[target]
		if !ok || display == "" {
			continue
		}
		if err := s.mapping.Bind(target, display, candidates); err != nil {
			return fmt.Errorf("profile binding %s: %w", target, err)
		}
	}
	return nil
}

// Profile captures the current selection and bindings.
func (s *Session) Profile(name string) *mapping.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mapping.ProfileFrom(name, &s.selection, &s.mapping)
}

// CandidateFields lists the source fields offered for binding.
func (s *Session) CandidateFields() []mapping.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mapping.Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Bind maps a target field to a candidate source field by display name.
func (s *Session) Bind(target, display string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.require(StateMapFields); err != nil {
		return err
	}
	return s.mapping.Bind(target, display, s.candidates)
}

// Unbind clears a target field.
func (s *Session) Unbind(target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.require(StateMapFields); err != nil {
		return err
	}
	if !mapping.IsTargetField(target) {
		return fmt.Errorf("%w: %s", mapping.ErrUnknownTarget, target)
	}
	s.mapping.Unbind(target)
	return nil
}

// Bindings returns the target to display-name choices.
func (s *Session) Bindings() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping.Choices()
}

// Next advances one step. From SelectSources it requires a primary list. From MapFields it projects the preview and
// classifies it. From PreviewResolve it commits.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case StateSelectSources:
		return s.toMapFields()
	case StateMapFields:
		return s.toPreview(ctx)
	case StatePreviewResolve:
		_, err := s.Commit(ctx)
		return err
	default:
		return fmt.Errorf("%w: next from %s", ErrInvalidTransition, state)
	}
}

func (s *Session) toMapFields() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.require(StateSelectSources); err != nil {
		return err
	}
	primary, ok := s.selection.Primary()
	if !ok || primary.Kind != document.KindArrayOfTables {
		return ErrNoPrimary
	}
	s.candidates = mapping.CandidateFields(s.data, &s.selection)
	if dropped := s.mapping.Prune(s.candidates); len(dropped) > 0 {
		s.reporter.Warnf("Dropped bindings no longer offered by the selection: %v", dropped)
	}
	if !hasRowFields(s.candidates) {
		s.reporter.Warnf("Primary list %s is empty; only context fields can be bound", primary.Path)
	}
	s.state = StateMapFields
	return nil
}

func (s *Session) toPreview(ctx context.Context) error {
	s.mu.Lock()
	if err := s.require(StateMapFields); err != nil {
		s.mu.Unlock()
		return err
	}
	bindings, err := s.mapping.Bindings(s.candidates)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	primary, _ := s.selection.Primary()
	rows, err := document.ResolveList(s.data, primary.Path)
	if err != nil {
		rows = nil
	}
	points := mapping.Project(s.data, rows, bindings)
	gen, err := s.begin(StateMapFields)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	configID := s.configID
	s.mu.Unlock()

	result, err := classify.Classify(ctx, points, configID, s.backend)

	s.mu.Lock()
	defer s.mu.Unlock()
	if staleErr := s.finish(gen); staleErr != nil {
		return staleErr
	}
	if err != nil {
		return fmt.Errorf("classify preview: %w", err)
	}
	s.points = points
	s.applyResult(result)
	s.state = StatePreviewResolve
	s.logger.Debug("preview ready", "session", s.id, "rows", len(points))
	return nil
}

// Back returns to the previous step, keeping selections and bindings.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	switch s.state {
	case StateMapFields:
		s.state = StateSelectSources
	case StatePreviewResolve:
		s.points = nil
		s.result = classify.Result{}
		s.stale = false
		s.state = StateMapFields
	default:
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, s.state)
	}
	return nil
}

// Cancel abandons the session from any state. Results of calls still in flight are discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.generation++
	s.state = StateCancelled
}

// Rows returns the preview rows, optionally limited to one status.
func (s *Session) Rows(filter classify.Status) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]Row, 0, len(s.points))
	for _, p := range s.points {
		st := s.result.StatusOf(p)
		if filter != "" && st.Status != filter {
			continue
		}
		rows = append(rows, Row{Point: p, Status: st})
	}
	return rows
}

// Counts tallies preview rows per status.
func (s *Session) Counts() map[classify.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.Counts(s.points)
}

// Rename sets the measurement of a preview row. A changed name makes the whole preview stale: Commit and
// MarkForImport are refused until Recheck.
func (s *Session) Rename(id int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.require(StatePreviewResolve); err != nil {
		return err
	}
	name = mapping.NormalizeName(name)
	if name == "" {
		return ErrEmptyRename
	}
	p, err := s.row(id)
	if err != nil {
		return err
	}
	if p.Measurement != name {
		p.Measurement = name
		p.MarkedForImport = false
		s.stale = true
	}
	return nil
}

// MarkForImport picks the row of its duplicate group that will be imported.
func (s *Session) MarkForImport(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.require(StatePreviewResolve); err != nil {
		return err
	}
	if s.stale {
		return ErrRecheckRequired
	}
	p, err := s.row(id)
	if err != nil {
		return err
	}
	if s.result.StatusOf(*p).Status != classify.StatusInternalDuplicate {
		return fmt.Errorf("%w: row %d", ErrNotDuplicate, id)
	}
	for i := range s.points {
		if s.points[i].Measurement == p.Measurement {
			s.points[i].MarkedForImport = false
		}
	}
	p.MarkedForImport = true
	return nil
}

// Recheck reclassifies the whole preview, picking up renames.
func (s *Session) Recheck(ctx context.Context) error {
	s.mu.Lock()
	gen, err := s.begin(StatePreviewResolve)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	points := make([]mapping.CandidatePoint, len(s.points))
	copy(points, s.points)
	configID := s.configID
	s.mu.Unlock()

	result, err := classify.Classify(ctx, points, configID, s.backend)

	s.mu.Lock()
	defer s.mu.Unlock()
	if staleErr := s.finish(gen); staleErr != nil {
		return staleErr
	}
	if err != nil {
		return fmt.Errorf("recheck: %w", err)
	}
	s.applyResult(result)
	return nil
}

// Result returns the latest classification.
func (s *Session) Result() classify.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Issues lists the rows that currently block commit.
func (s *Session) Issues() []classify.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.Issues(s.points)
}

// Commit sends the create and merge sets to the backend. On success the session moves to Committed, the completion
// callback runs and all session data is dropped. On failure the session stays in PreviewResolve.
func (s *Session) Commit(ctx context.Context) (platform.ImportResponse, error) {
	s.mu.Lock()
	if err := s.require(StatePreviewResolve); err != nil {
		s.mu.Unlock()
		return platform.ImportResponse{}, err
	}
	if s.stale {
		s.mu.Unlock()
		return platform.ImportResponse{}, ErrRecheckRequired
	}
	if issues := s.result.Issues(s.points); len(issues) > 0 {
		s.mu.Unlock()
		return platform.ImportResponse{}, &UnresolvedError{Issues: issues}
	}
	req := s.partition()
	if len(req.PointsToCreate) == 0 && len(req.PointsToMerge) == 0 {
		s.mu.Unlock()
		return platform.ImportResponse{}, ErrNothingToImport
	}
	gen, err := s.begin(StatePreviewResolve)
	if err != nil {
		s.mu.Unlock()
		return platform.ImportResponse{}, err
	}
	req.ImportBatch = s.newBatchID()
	s.mu.Unlock()

	s.logger.Info("committing import", "config_id", req.ConfigFileID, "create", len(req.PointsToCreate),
		"merge", len(req.PointsToMerge), "batch", req.ImportBatch)
	resp, err := s.backend.CommitImport(ctx, req)

	s.mu.Lock()
	if staleErr := s.finish(gen); staleErr != nil {
		s.mu.Unlock()
		return platform.ImportResponse{}, staleErr
	}
	if err != nil {
		s.mu.Unlock()
		s.reporter.Warnf("Import failed: %v", err)
		return platform.ImportResponse{}, fmt.Errorf("commit import: %w", err)
	}
	done := s.onComplete
	s.reset()
	s.state = StateCommitted
	s.mu.Unlock()

	s.reporter.Successf("Imported %d new and merged %d existing points", resp.CreatedCount, resp.MergedCount)
	if done != nil {
		done(resp)
	}
	return resp, nil
}

// partition splits the preview into the create set (new rows and marked duplicates) and the merge set (unlinked
// rows). Synced and unmarked duplicate rows are skipped.
func (s *Session) partition() platform.ImportRequest {
	req := platform.ImportRequest{ConfigFileID: s.configID}
	for i := range s.points {
		p := &s.points[i]
		st := s.result.StatusOf(*p)
		switch {
		case st.Status == classify.StatusNew,
			st.Status == classify.StatusInternalDuplicate && p.MarkedForImport:
			req.PointsToCreate = append(req.PointsToCreate, importPoint(*p))
		case st.Status == classify.StatusUnlinked && st.PointID != nil:
			id := *st.PointID
			p.PointID = &id
			point := importPoint(*p)
			point.ID = id
			req.PointsToMerge = append(req.PointsToMerge, point)
		}
	}
	return req
}

func importPoint(p mapping.CandidatePoint) platform.ImportPoint {
	return platform.ImportPoint{
		Measurement:         p.Measurement,
		OriginalPointName:   p.OriginalPointName,
		NormalizedPointName: p.NormalizedPointName,
		PointComment:        p.PointComment,
		DataType:            p.DataType,
	}
}

func (s *Session) applyResult(result classify.Result) {
	s.result = result
	s.stale = false
	if result.Warning != nil {
		s.reporter.Warnf("Some names could not be checked and are marked unknown: %v", result.Warning)
	}
}

func (s *Session) row(id int) (*mapping.CandidatePoint, error) {
	for i := range s.points {
		if s.points[i].InternalID == id {
			return &s.points[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownRow, id)
}

// require checks the state for a synchronous operation. Callers hold mu.
func (s *Session) require(state State) error {
	if s.busy {
		return ErrBusy
	}
	if s.state != state {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidTransition, s.state, state)
	}
	return nil
}

// begin marks the session busy for a backend call and returns the generation to check afterwards. Callers hold mu.
func (s *Session) begin(state State) (uint64, error) {
	if err := s.require(state); err != nil {
		return 0, err
	}
	s.busy = true
	return s.generation, nil
}

// finish clears the busy flag unless the session moved on since begin. Callers hold mu.
func (s *Session) finish(gen uint64) error {
	if gen != s.generation {
		return ErrStale
	}
	s.busy = false
	return nil
}

func (s *Session) load(resp platform.StructureResponse) {
	s.structure = resp.Structure
	s.data = resp.Data
	if s.data == nil {
		s.data = map[string]any{}
	}
	s.state = StateSelectSources
}

func (s *Session) remember(key uint64, resp platform.StructureResponse) {
	if _, ok := s.cache[key]; ok {
		return
	}
	if len(s.cacheOrder) >= maxCachedStructures {
		oldest := s.cacheOrder[0]
		s.cacheOrder = s.cacheOrder[1:]
		delete(s.cache, oldest)
	}
	s.cache[key] = resp
	s.cacheOrder = append(s.cacheOrder, key)
}

// reset drops all per-import state. Callers hold mu.
func (s *Session) reset() {
	s.busy = false
	s.state = StateIdle
	s.configID = 0
	s.structure = nil
	s.data = nil
	s.selection.Reset()
	s.mapping.Reset()
	s.candidates = nil
	s.points = nil
	s.result = classify.Result{}
	s.stale = false
	s.onComplete = nil
}

func hasRowFields(candidates []mapping.Candidate) bool {
	for _, c := range candidates {
		if !c.Binding.IsContext {
			return true
		}
	}
	return false
}

type noopReporter struct{}

func (noopReporter) Infof(string, ...any)    {}
func (noopReporter) Warnf(string, ...any)    {}
func (noopReporter) Successf(string, ...any) {}
