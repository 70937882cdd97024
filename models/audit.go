// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package models

import "time"

// AuditOperation enumerates the row-level operations recorded in the audit log.
type AuditOperation string

const (
	AuditCreate AuditOperation = "create"
	AuditRead   AuditOperation = "read"
	AuditUpdate AuditOperation = "update"
	AuditDelete AuditOperation = "delete"
)

// AuditEntry is one immutable record of the append-only audit log.
// Entries are ordered by their monotonic ID; for updates OldValue and
// NewValue hold the JSON-encoded delta of the changed fields.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     int64          `json:"actor"`
	Table     string         `json:"table"`
	RowID     int64          `json:"row_id"`
	Operation AuditOperation `json:"operation"`
	OldValue  string         `json:"old_value,omitempty"`
	NewValue  string         `json:"new_value,omitempty"`
}
