package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/twinmind/telegraf-importer/internal/classify"
)

var (
	// ErrNoPrimary indicates the selection lacks a primary array of tables.
	ErrNoPrimary = errors.New("select an array of tables as the primary list")
	// ErrEmptyRename indicates a rename to a blank measurement.
	ErrEmptyRename = errors.New("measurement name cannot be empty")
	// ErrUnresolved indicates rows still block commit.
	ErrUnresolved = errors.New("unresolved conflicts")
	// ErrNothingToImport indicates the commit payload would be empty.
	ErrNothingToImport = errors.New("nothing to import")
	// ErrInvalidTransition indicates the operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrBusy indicates another operation is in flight.
	ErrBusy = errors.New("another operation is in progress")
	// ErrStale indicates a result arrived after the session was cancelled or re-initialised.
	ErrStale = errors.New("session moved on; result discarded")
	// ErrUnknownRow indicates a row id outside the preview.
	ErrUnknownRow = errors.New("unknown row")
	// ErrRecheckRequired indicates a rename since the last classification.
	ErrRecheckRequired = errors.New("rows were renamed; recheck before continuing")
	// ErrNotDuplicate indicates MarkForImport on a row that is not an internal duplicate.
	ErrNotDuplicate = errors.New("row is not an internal duplicate")
)

// UnresolvedError lists the rows that block commit.
type UnresolvedError struct {
	Issues []classify.Issue
}

func (e *UnresolvedError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return fmt.Sprintf("%s: %s", ErrUnresolved, strings.Join(parts, "; "))
}

// Is reports ErrUnresolved equivalence.
func (e *UnresolvedError) Is(target error) bool {
	return target == ErrUnresolved
}
