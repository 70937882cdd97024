package resource

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/reliefhub/reliefhub/internal/audit"
	"github.com/reliefhub/reliefhub/internal/config"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/models"
)

var (
	editor    = models.Actor{UserID: 7, Login: "editor", Roles: []string{models.RoleEditor}}
	reader    = models.Actor{UserID: 3, Login: "reader", Roles: []string{models.RoleReader}}
	anonymous = models.Actor{}
)

func newTestFactory(t *testing.T) (*Factory, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	l := logger.NewLogger("test")
	conn := store.NewFromConn(db, "pgx", l)
	rows := store.NewRowStore(conn, l)
	recorder := audit.NewRecorder(conn, config.Audit{WriteEnabled: true}, l)
	return NewFactory(schema.DefaultRegistry(), rows, recorder, l), mock, db
}

func orgRow(id int64, name string) *sqlmock.Rows {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "uuid", "created_on", "modified_on", "deleted",
		"owned_by_user", "owned_by_group", "realm_entity", "modified_by_peer",
		"name", "acronym", "organisation_type", "website", "country", "parent_id", "comments",
	}).AddRow(id, "org-uuid", now, now, false, 7, nil, nil, "", name, nil, nil, nil, nil, nil, nil)
}

func TestCreate_RequiredFieldMissing(t *testing.T) {
	f, _, db := newTestFactory(t)
	defer db.Close()

	res, err := f.Resource("org", "organisation")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := models.Record{Values: map[string]any{"acronym": "HO"}}
	err = res.Create(context.Background(), editor, &rec)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Fields["name"] != "value required" {
		t.Errorf("expected required failure on name, got %v", vErr.Fields)
	}
}

func TestCreate_DeclaredValidatorRejectsValue(t *testing.T) {
	f, _, db := newTestFactory(t)
	defer db.Close()

	res, _ := f.Resource("org", "organisation")

	rec := models.Record{Values: map[string]any{
		"name":              "Help Org",
		"organisation_type": "circus",
	}}
	err := res.Create(context.Background(), editor, &rec)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.Fields["organisation_type"]; !ok {
		t.Errorf("expected failure on organisation_type, got %v", vErr.Fields)
	}
}

func TestCreate_UnknownFieldRejected(t *testing.T) {
	f, _, db := newTestFactory(t)
	defer db.Close()

	res, _ := f.Resource("org", "organisation")

	rec := models.Record{Values: map[string]any{"name": "Help Org", "hat_size": 7}}
	err := res.Create(context.Background(), editor, &rec)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Fields["hat_size"] != "unknown field" {
		t.Errorf("expected unknown field failure, got %v", vErr.Fields)
	}
}

func TestCreate_PermissionDenied(t *testing.T) {
	f, _, db := newTestFactory(t)
	defer db.Close()

	res, _ := f.Resource("org", "organisation")

	rec := models.Record{Values: map[string]any{"name": "Help Org"}}
	if err := res.Create(context.Background(), reader, &rec); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if err := res.Create(context.Background(), anonymous, &rec); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestSelect_AnonymousAccess(t *testing.T) {
	f, mock, db := newTestFactory(t)
	defer db.Close()

	// pr_person does not allow anonymous reads.
	person, _ := f.Resource("pr", "person")
	if _, err := person.Select(context.Background(), anonymous, models.Query{}); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}

	// org_organisation does.
	org, _ := f.Resource("org", "organisation")
	mock.ExpectQuery("SELECT (.+) FROM org_organisation").
		WillReturnRows(orgRow(1, "Help Org"))

	records, err := org.Select(context.Background(), anonymous, models.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Values["name"] != "Help Org" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestCreate_Success(t *testing.T) {
	f, mock, db := newTestFactory(t)
	defer db.Close()

	res, _ := f.Resource("org", "organisation")

	mock.ExpectQuery("INSERT INTO org_organisation").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false,
			int64(7), int64(0), int64(0), "", "Help Org", "HO").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), int64(7), "org_organisation", int64(42), "create",
			"", `{"acronym":"HO","name":"Help Org"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := models.Record{Values: map[string]any{"name": "Help Org", "acronym": "HO"}}
	if err := res.Create(context.Background(), editor, &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != 42 {
		t.Errorf("expected id 42, got %d", rec.ID)
	}
	if rec.UUID == "" {
		t.Error("expected uuid to be stamped")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreate_SuperEntityRowFirst(t *testing.T) {
	f, mock, db := newTestFactory(t)
	defer db.Close()

	res, _ := f.Resource("org", "office")

	// Umbrella row carries the concrete instance type.
	mock.ExpectQuery("INSERT INTO org_site").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false,
			int64(7), int64(0), int64(0), "", "org_office").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO org_office").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false,
			int64(7), int64(0), int64(0), "", int64(5), "Field Office").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectExec("INSERT INTO audit_log").
		WillReturnResult(sqlmock.NewResult(2, 1))

	rec := models.Record{Values: map[string]any{"name": "Field Office"}}
	if err := res.Create(context.Background(), editor, &rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := rec.Value("site_id"); got != int64(5) {
		t.Errorf("expected site_id 5, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdate_OnlyChangedFieldsWritten(t *testing.T) {
	f, mock, db := newTestFactory(t)
	defer db.Close()

	res, _ := f.Resource("org", "organisation")

	mock.ExpectQuery("SELECT (.+) FROM org_organisation").
		WillReturnRows(orgRow(42, "Old Name"))
	mock.ExpectExec("UPDATE org_organisation").
		WithArgs(sqlmock.AnyArg(), "", "New Name", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), int64(7), "org_organisation", int64(42), "update",
			`{"name":"Old Name"}`, `{"name":"New Name"}`).
		WillReturnResult(sqlmock.NewResult(3, 1))

	values := map[string]any{"name": "New Name"}
	if err := res.Update(context.Background(), editor, 42, values, store.UpdateOpts{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdate_NoopWhenNothingChanged(t *testing.T) {
	f, mock, db := newTestFactory(t)
	defer db.Close()

	res, _ := f.Resource("org", "organisation")

	mock.ExpectQuery("SELECT (.+) FROM org_organisation").
		WillReturnRows(orgRow(42, "Same Name"))

	values := map[string]any{"name": "Same Name"}
	if err := res.Update(context.Background(), editor, 42, values, store.UpdateOpts{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no update should run when nothing changed: %v", err)
	}
}

func TestDelete_SoftWithComponentCascade(t *testing.T) {
	f, mock, db := newTestFactory(t)
	defer db.Close()

	res, _ := f.Resource("org", "organisation")

	mock.ExpectQuery("SELECT (.+) FROM org_organisation").
		WillReturnRows(orgRow(42, "Help Org"))
	// component cascade finds no offices
	mock.ExpectQuery("SELECT (.+) FROM org_office").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "uuid", "created_on", "modified_on", "deleted",
			"owned_by_user", "owned_by_group", "realm_entity", "modified_by_peer",
			"site_id", "name", "organisation_id", "office_type", "address", "lat", "lon",
		}))
	// soft delete blanks the identifying fields
	mock.ExpectExec("UPDATE org_organisation").
		WithArgs(true, sqlmock.AnyArg(), nil, nil, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), int64(7), "org_organisation", int64(42), "delete",
			`{"name":"Help Org"}`, "").
		WillReturnResult(sqlmock.NewResult(4, 1))

	if err := res.Delete(context.Background(), editor, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestComponent_Unknown(t *testing.T) {
	f, _, db := newTestFactory(t)
	defer db.Close()

	res, _ := f.Resource("org", "organisation")
	if _, _, err := res.Component("garage"); !errors.Is(err, ErrUnknownComponent) {
		t.Fatalf("expected ErrUnknownComponent, got %v", err)
	}
}
