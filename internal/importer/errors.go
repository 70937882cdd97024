package importer

import "errors"

var (
	// ErrStrictRunAborted indicates a strict-mode run rolled back because
	// at least one item failed.
	ErrStrictRunAborted = errors.New("strict import aborted on item error")
	// ErrEmptyDocument indicates a payload with no resource elements.
	ErrEmptyDocument = errors.New("document carries no resources")
)
