// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package models

// ErrorKind classifies an item-level import failure.
type ErrorKind string

const (
	KindValidation          ErrorKind = "ValidationError"
	KindUnknownResource     ErrorKind = "UnknownResource"
	KindUnresolvedReference ErrorKind = "UnresolvedReference"
	KindIdentity            ErrorKind = "IdentityError"
	KindDuplicateNaturalKey ErrorKind = "DuplicateNaturalKey"
	KindConflict            ErrorKind = "Conflict"
	KindAuth                ErrorKind = "AuthError"
)

// ItemError describes the failure of a single payload item.
// RowIndex is the zero-based position of the item in document order.
type ItemError struct {
	RowIndex int       `json:"row_index"`
	Kind     ErrorKind `json:"kind"`
	Field    string    `json:"field,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// ImportReport is the per-run outcome of an importer invocation.
// Created/Updated/Skipped count committed actions; Errors collects the
// item-level failures of a run that still committed.
type ImportReport struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Deleted int         `json:"deleted"`
	Skipped int         `json:"skipped"`
	Errors  []ItemError `json:"errors,omitempty"`
}

// Total returns the number of committed actions.
func (r *ImportReport) Total() int {
	return r.Created + r.Updated + r.Deleted
}

// ErrorResponse is the structured error body returned by the API.
type ErrorResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Items   []ItemError `json:"items,omitempty"`
}
