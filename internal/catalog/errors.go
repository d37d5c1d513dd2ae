package catalog

import "errors"

var (
	// ErrMissingFile is returned when the catalog table or the matrix file does not exist.
	ErrMissingFile = errors.New("missing file")
	// ErrSchema is returned when a table or matrix is malformed, or their sizes disagree.
	ErrSchema = errors.New("schema error")
)
