package mapping

import "errors"

var (
	// ErrUnknownTarget indicates a binding names a field outside the target set.
	ErrUnknownTarget = errors.New("unknown target field")
	// ErrUnknownSource indicates a binding names a source field no selection offers.
	ErrUnknownSource = errors.New("unknown source field")
	// ErrNotArrayOfTables indicates a primary designation on a node that is not an array of tables.
	ErrNotArrayOfTables = errors.New("primary list must be an array of tables")
	// ErrNotSelected indicates an operation on a path that is not in the selection.
	ErrNotSelected = errors.New("path is not selected")
)
