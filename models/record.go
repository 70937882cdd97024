// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package models

import "time"

// RowMeta carries the metadata columns present on every persisted entity row.
//
// UUID is stamped on first insert and is immutable afterwards. Deleted marks
// a soft-deleted row; soft-deleted rows are excluded from selects unless the
// caller explicitly asks for them. ModifiedByPeer holds the uuid of the peer
// repository that last wrote the row and is empty for locally created edits.
type RowMeta struct {
	ID             int64     `json:"id"`
	UUID           string    `json:"uuid"`
	CreatedOn      time.Time `json:"created_on"`
	ModifiedOn     time.Time `json:"modified_on"`
	Deleted        bool      `json:"deleted"`
	OwnedByUser    int64     `json:"owned_by_user,omitempty"`
	OwnedByGroup   int64     `json:"owned_by_group,omitempty"`
	RealmEntity    int64     `json:"realm_entity,omitempty"`
	ModifiedByPeer string    `json:"modified_by_peer,omitempty"`
}

// Record is one row of an entity table: the metadata columns plus the
// table-specific field values keyed by field name. Field values are typed
// per the field's schema declaration (string, int64, float64, bool,
// time.Time, or int64 for references).
type Record struct {
	RowMeta

	Table  string         `json:"table"`
	Values map[string]any `json:"values"`
}

// Value returns the named field value and whether it is present and non-nil.
func (r *Record) Value(field string) (any, bool) {
	if r.Values == nil {
		return nil, false
	}
	v, ok := r.Values[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// SetValue stores a field value, allocating the value map on first use.
func (r *Record) SetValue(field string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[field] = value
}

// MetaTimeFormat is the wire format of created_on/modified_on attributes:
// ISO-8601 in UTC with second precision.
const MetaTimeFormat = "2006-01-02T15:04:05Z"
