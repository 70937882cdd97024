package schema

import "errors"

// Sentinel errors returned by registry lookups. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrUnknownTable is returned when a lookup names a table that was
	// never registered.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownField is returned when an operation names a field the
	// table does not declare.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownComponent is returned when a request path names a
	// component the table does not declare.
	ErrUnknownComponent = errors.New("unknown component")
)
