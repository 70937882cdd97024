// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

// Package audit implements the append-only audit log. Every data-changing
// operation on an entity row appends one entry describing who did what to
// which row; entries are never updated or deleted. Reads are recorded only
// when opted in via configuration.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/reliefhub/reliefhub/internal/config"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/models"
)

// tableName is the backing table of the audit log. It is not part of the
// schema registry, so it is unreachable through the resource dispatcher.
const tableName = "audit_log"

// runner abstracts the statement surface shared by *sql.DB and *sql.Tx.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Recorder appends entries to and queries the audit log.
type Recorder struct {
	db     *store.DB
	run    runner
	cfg    config.Audit
	logger *logger.Logger

	now func() time.Time
}

// NewRecorder constructs a Recorder over the given connection.
func NewRecorder(db *store.DB, cfg config.Audit, log *logger.Logger) *Recorder {
	return &Recorder{
		db:     db,
		run:    db.DB,
		cfg:    cfg,
		logger: log,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// WithTx returns a copy of the recorder whose appends run inside tx, so an
// audit entry commits or rolls back together with the change it describes.
func (r *Recorder) WithTx(tx *sql.Tx) *Recorder {
	bound := *r
	bound.run = tx
	return &bound
}

// Created appends a create entry carrying the full inserted row as the new
// value.
func (r *Recorder) Created(ctx context.Context, actor int64, rec *models.Record) error {
	if !r.cfg.WriteEnabled {
		return nil
	}

	newValue, err := encodeValues(rec.Values)
	if err != nil {
		return err
	}

	return r.append(ctx, models.AuditEntry{
		Actor:     actor,
		Table:     rec.Table,
		RowID:     rec.ID,
		Operation: models.AuditCreate,
		NewValue:  newValue,
	})
}

// Updated appends an update entry holding the delta of the changed fields:
// old holds the previous values of exactly the fields present in changed.
func (r *Recorder) Updated(ctx context.Context, actor int64, table string, rowID int64, old, changed map[string]any) error {
	if !r.cfg.WriteEnabled {
		return nil
	}

	before := make(map[string]any, len(changed))
	for f := range changed {
		before[f] = old[f]
	}

	oldValue, err := encodeValues(before)
	if err != nil {
		return err
	}
	newValue, err := encodeValues(changed)
	if err != nil {
		return err
	}

	return r.append(ctx, models.AuditEntry{
		Actor:     actor,
		Table:     table,
		RowID:     rowID,
		Operation: models.AuditUpdate,
		OldValue:  oldValue,
		NewValue:  newValue,
	})
}

// Deleted appends a delete entry carrying the last known row values.
func (r *Recorder) Deleted(ctx context.Context, actor int64, rec *models.Record) error {
	if !r.cfg.WriteEnabled {
		return nil
	}

	oldValue, err := encodeValues(rec.Values)
	if err != nil {
		return err
	}

	return r.append(ctx, models.AuditEntry{
		Actor:     actor,
		Table:     rec.Table,
		RowID:     rec.ID,
		Operation: models.AuditDelete,
		OldValue:  oldValue,
	})
}

// Read appends a read entry. No-op unless read auditing is enabled.
func (r *Recorder) Read(ctx context.Context, actor int64, table string, rowID int64) error {
	if !r.cfg.ReadEnabled {
		return nil
	}

	return r.append(ctx, models.AuditEntry{
		Actor:     actor,
		Table:     table,
		RowID:     rowID,
		Operation: models.AuditRead,
	})
}

func (r *Recorder) append(ctx context.Context, entry models.AuditEntry) error {
	log := logger.FromContext(ctx)

	query, args, err := r.db.Builder().
		Insert(tableName).
		Columns("timestamp", "actor", "tablename", "row_id", "operation", "old_value", "new_value").
		Values(r.now(), entry.Actor, entry.Table, entry.RowID, string(entry.Operation), entry.OldValue, entry.NewValue).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecordingEntry, err)
	}

	if _, err = r.run.ExecContext(ctx, query, args...); err != nil {
		log.Err(err).
			Str("func", "Recorder.append").
			Str("table", entry.Table).
			Int64("row_id", entry.RowID).
			Msg("failed to append audit entry")
		return fmt.Errorf("%w: %w", ErrRecordingEntry, err)
	}

	return nil
}

// Filter narrows a List query. Zero values match everything.
type Filter struct {
	Table string
	RowID int64
	Since time.Time
	Limit uint64
}

// List returns audit entries matching the filter in ascending id order.
func (r *Recorder) List(ctx context.Context, f Filter) ([]models.AuditEntry, error) {
	log := logger.FromContext(ctx)

	builder := r.db.Builder().
		Select("id", "timestamp", "actor", "tablename", "row_id", "operation", "old_value", "new_value").
		From(tableName).
		OrderBy("id ASC")

	if f.Table != "" {
		builder = builder.Where(squirrel.Eq{"tablename": f.Table})
	}
	if f.RowID != 0 {
		builder = builder.Where(squirrel.Eq{"row_id": f.RowID})
	}
	if !f.Since.IsZero() {
		builder = builder.Where(squirrel.Gt{"timestamp": f.Since})
	}
	if f.Limit > 0 {
		builder = builder.Limit(f.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListingEntries, err)
	}

	rows, err := r.run.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "Recorder.List").
			Str("table", f.Table).
			Msg("failed to query audit log")
		return nil, fmt.Errorf("%w: %w", ErrListingEntries, err)
	}
	defer rows.Close()

	entries := make([]models.AuditEntry, 0, 50)
	for rows.Next() {
		var (
			entry    models.AuditEntry
			op       string
			oldValue sql.NullString
			newValue sql.NullString
		)
		if err = rows.Scan(&entry.ID, &entry.Timestamp, &entry.Actor, &entry.Table,
			&entry.RowID, &op, &oldValue, &newValue); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrListingEntries, err)
		}
		entry.Timestamp = entry.Timestamp.UTC()
		entry.Operation = models.AuditOperation(op)
		entry.OldValue = oldValue.String
		entry.NewValue = newValue.String
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListingEntries, err)
	}

	return entries, nil
}

// encodeValues serializes field values for storage in an audit entry.
// time.Time values are normalized to the wire format so entries read back
// the same on every driver.
func encodeValues(values map[string]any) (string, error) {
	if len(values) == 0 {
		return "", nil
	}

	normalized := make(map[string]any, len(values))
	for f, v := range values {
		if t, ok := v.(time.Time); ok {
			normalized[f] = t.UTC().Format(models.MetaTimeFormat)
			continue
		}
		normalized[f] = v
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncodingValues, err)
	}
	return string(data), nil
}
