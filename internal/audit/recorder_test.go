package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/reliefhub/reliefhub/internal/config"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/models"
)

func newTestRecorder(t *testing.T, cfg config.Audit) (*Recorder, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	l := logger.NewLogger("test")
	rec := NewRecorder(store.NewFromConn(db, "pgx", l), cfg, l)
	rec.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return rec, mock, db
}

func TestCreated_AppendsEntry(t *testing.T) {
	rec, mock, db := newTestRecorder(t, config.Audit{WriteEnabled: true})
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), int64(7), "org_organisation", int64(42), "create", "", `{"name":"IFRC"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.Record{
		RowMeta: models.RowMeta{ID: 42},
		Table:   "org_organisation",
		Values:  map[string]any{"name": "IFRC"},
	}
	if err := rec.Created(context.Background(), 7, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreated_DisabledIsNoop(t *testing.T) {
	rec, mock, db := newTestRecorder(t, config.Audit{WriteEnabled: false})
	defer db.Close()

	record := &models.Record{Table: "org_organisation", Values: map[string]any{"name": "IFRC"}}
	if err := rec.Created(context.Background(), 7, record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no statement should run when write auditing is off: %v", err)
	}
}

func TestUpdated_RecordsDeltaOnly(t *testing.T) {
	rec, mock, db := newTestRecorder(t, config.Audit{WriteEnabled: true})
	defer db.Close()

	// old carries the full row; the entry must hold only the changed field.
	old := map[string]any{"name": "IFRC", "acronym": "IF"}
	changed := map[string]any{"name": "ICRC"}

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), int64(7), "org_organisation", int64(42), "update", `{"name":"IFRC"}`, `{"name":"ICRC"}`).
		WillReturnResult(sqlmock.NewResult(2, 1))

	if err := rec.Updated(context.Background(), 7, "org_organisation", 42, old, changed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRead_OnlyWhenEnabled(t *testing.T) {
	rec, mock, db := newTestRecorder(t, config.Audit{ReadEnabled: true})
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), int64(3), "pr_person", int64(9), "read", "", "").
		WillReturnResult(sqlmock.NewResult(3, 1))

	if err := rec.Read(context.Background(), 3, "pr_person", 9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAppend_ExecError(t *testing.T) {
	rec, mock, db := newTestRecorder(t, config.Audit{WriteEnabled: true})
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnError(errors.New("db network error"))

	record := &models.Record{RowMeta: models.RowMeta{ID: 1}, Table: "pr_person"}
	err := rec.Created(context.Background(), 1, record)
	if !errors.Is(err, ErrRecordingEntry) {
		t.Fatalf("expected ErrRecordingEntry, got %v", err)
	}
}

func TestList_FiltersAndOrder(t *testing.T) {
	rec, mock, db := newTestRecorder(t, config.Audit{})
	defer db.Close()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.
		NewRows([]string{"id", "timestamp", "actor", "tablename", "row_id", "operation", "old_value", "new_value"}).
		AddRow(1, ts, 7, "org_organisation", 42, "create", nil, `{"name":"IFRC"}`).
		AddRow(2, ts, 7, "org_organisation", 42, "update", `{"name":"IFRC"}`, `{"name":"ICRC"}`)

	mock.ExpectQuery("SELECT id, timestamp, actor, tablename, row_id, operation, old_value, new_value FROM audit_log").
		WithArgs("org_organisation", int64(42)).
		WillReturnRows(rows)

	entries, err := rec.List(context.Background(), Filter{Table: "org_organisation", RowID: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Operation != models.AuditCreate || entries[1].Operation != models.AuditUpdate {
		t.Errorf("unexpected operations: %v, %v", entries[0].Operation, entries[1].Operation)
	}
	if entries[1].OldValue != `{"name":"IFRC"}` {
		t.Errorf("unexpected old value: %s", entries[1].OldValue)
	}
}
