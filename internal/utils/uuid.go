package utils

import "github.com/google/uuid"

// NewRowUUID returns the identifier stamped on new rows. Version 7 keeps
// replicated rows roughly insertion-ordered across repositories; if the
// entropy source fails the id falls back to a random v4.
func NewRowUUID() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}
