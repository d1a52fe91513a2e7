package document

import "errors"

var (
	// ErrPathNotFound indicates a path that resolves to nothing.
	ErrPathNotFound = errors.New("path not found")
	// ErrNotAList indicates a path that resolves to something other than a list of tables.
	ErrNotAList = errors.New("path is not a list")
	// ErrInvalidTOML wraps decoder failures.
	ErrInvalidTOML = errors.New("invalid TOML")
)
