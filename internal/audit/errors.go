package audit

import "errors"

var (
	// ErrRecordingEntry indicates that an audit entry could not be appended.
	ErrRecordingEntry = errors.New("error recording audit entry")
	// ErrListingEntries indicates that the audit log could not be queried.
	ErrListingEntries = errors.New("error listing audit entries")
	// ErrEncodingValues indicates that a row delta could not be serialized.
	ErrEncodingValues = errors.New("error encoding audit values")
)
