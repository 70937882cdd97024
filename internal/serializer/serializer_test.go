package serializer

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/models"
)

const repoUUID = "11111111-1111-1111-1111-111111111111"

func newTestSerializer(t *testing.T) (*Serializer, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	l := logger.NewLogger("test")
	conn := store.NewFromConn(db, "pgx", l)
	s := NewSerializer(schema.DefaultRegistry(), store.NewRowStore(conn, l), repoUUID, l)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, mock, db
}

func supplyItemRecord() models.Record {
	created := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	return models.Record{
		RowMeta: models.RowMeta{
			ID:         1,
			UUID:       "22222222-2222-2222-2222-222222222222",
			CreatedOn:  created,
			ModifiedOn: created,
		},
		Table: "supply_item",
		Values: map[string]any{
			"name":     "Water purification tablets",
			"um":       "kit",
			"comments": "chlorine based",
		},
	}
}

func TestExport_DataFieldsAndMetadata(t *testing.T) {
	s, _, db := newTestSerializer(t)
	defer db.Close()

	tbl, _ := s.registry.Lookup("supply_item")
	rec := supplyItemRecord()

	doc, err := s.Export(context.Background(), tbl, []models.Record{rec}, ExportOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.ExportTime != "2026-03-01T12:00:00Z" {
		t.Errorf("unexpected export_time: %s", doc.ExportTime)
	}
	if doc.Repository != repoUUID {
		t.Errorf("unexpected repository: %s", doc.Repository)
	}
	if len(doc.Resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(doc.Resources))
	}

	elem := doc.Resources[0]
	if elem.Name != "supply_item" || elem.UUID != rec.UUID {
		t.Errorf("unexpected element identity: %+v", elem)
	}
	if elem.ModifiedOn != "2026-02-01T08:30:00Z" {
		t.Errorf("unexpected modified_on: %s", elem.ModifiedOn)
	}
	if v, _ := elem.DataValue("um"); v != "kit" {
		t.Errorf("unexpected um: %s", v)
	}
	// text fields carry their value as element text
	if v, _ := elem.DataValue("comments"); v != "chlorine based" {
		t.Errorf("unexpected comments: %s", v)
	}
}

func TestExport_ReferenceResolvesToUUID(t *testing.T) {
	s, mock, db := newTestSerializer(t)
	defer db.Close()

	orgCols := []string{
		"id", "uuid", "created_on", "modified_on", "deleted",
		"owned_by_user", "owned_by_group", "realm_entity", "modified_by_peer",
		"name", "acronym", "organisation_type", "website", "country", "parent_id", "comments",
	}
	now := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM org_organisation").
		WillReturnRows(sqlmock.NewRows(orgCols).
			AddRow(3, "33333333-3333-3333-3333-333333333333", now, now, false,
				nil, nil, nil, "", "Help Org", nil, nil, nil, nil, nil, nil))

	tbl, _ := s.registry.Lookup("hms_hospital")
	rec := models.Record{
		RowMeta: models.RowMeta{ID: 9, UUID: "h-uuid", CreatedOn: now, ModifiedOn: now},
		Table:   "hms_hospital",
		Values:  map[string]any{"name": "Central Hospital", "organisation_id": int64(3)},
	}

	doc, err := s.Export(context.Background(), tbl, []models.Record{rec}, ExportOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refs := doc.Resources[0].References
	if len(refs) != 1 {
		t.Fatalf("expected 1 reference, got %d", len(refs))
	}
	if refs[0].Field != "organisation_id" || refs[0].Resource != "org_organisation" {
		t.Errorf("unexpected reference: %+v", refs[0])
	}
	if refs[0].UUID != "33333333-3333-3333-3333-333333333333" {
		t.Errorf("expected reference by uuid, got %+v", refs[0])
	}
}

func TestExport_DanglingReferenceKeepsID(t *testing.T) {
	s, mock, db := newTestSerializer(t)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM org_organisation").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tbl, _ := s.registry.Lookup("hms_hospital")
	now := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	rec := models.Record{
		RowMeta: models.RowMeta{ID: 9, UUID: "h-uuid", CreatedOn: now, ModifiedOn: now},
		Table:   "hms_hospital",
		Values:  map[string]any{"name": "Central Hospital", "organisation_id": int64(404)},
	}

	doc, err := s.Export(context.Background(), tbl, []models.Record{rec}, ExportOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refs := doc.Resources[0].References
	if len(refs) != 1 || refs[0].ID != 404 || refs[0].UUID != "" {
		t.Errorf("expected raw-id reference, got %+v", refs)
	}
}

func TestRoundTrip_MarshalParseDecode(t *testing.T) {
	s, _, db := newTestSerializer(t)
	defer db.Close()

	tbl, _ := s.registry.Lookup("supply_item")
	rec := supplyItemRecord()

	doc, err := s.Export(context.Background(), tbl, []models.Record{rec}, ExportOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.ExportTime != doc.ExportTime || len(parsed.Resources) != 1 {
		t.Fatalf("round trip lost document shape: %+v", parsed)
	}

	values, err := DecodeData(tbl, &parsed.Resources[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values["name"] != "Water purification tablets" {
		t.Errorf("unexpected name: %v", values["name"])
	}
	if values["comments"] != "chlorine based" {
		t.Errorf("unexpected comments: %v", values["comments"])
	}
	if mt, ok := parsed.Resources[0].ModifiedTime(); !ok || !mt.Equal(rec.ModifiedOn) {
		t.Errorf("modified_on did not round trip: %v %v", mt, ok)
	}
}

func TestDecodeValue_Types(t *testing.T) {
	cases := []struct {
		ft   schema.FieldType
		in   string
		want any
	}{
		{schema.TypeInteger, "42", int64(42)},
		{schema.TypeFloat, "3.5", 3.5},
		{schema.TypeBoolean, "true", true},
		{schema.TypeDate, "2026-02-01", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{schema.TypeDateTime, "2026-02-01T08:30:00Z", time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)},
		{schema.TypeString, "plain", "plain"},
	}

	for _, c := range cases {
		got, err := DecodeValue(c.ft, c.in)
		if err != nil {
			t.Errorf("%s %q: unexpected error %v", c.ft, c.in, err)
			continue
		}
		if ts, ok := c.want.(time.Time); ok {
			if !got.(time.Time).Equal(ts) {
				t.Errorf("%s %q: got %v", c.ft, c.in, got)
			}
			continue
		}
		if got != c.want {
			t.Errorf("%s %q: got %v, want %v", c.ft, c.in, got, c.want)
		}
	}

	if _, err := DecodeValue(schema.TypeInteger, "forty-two"); !errors.Is(err, ErrBadValue) {
		t.Errorf("expected ErrBadValue, got %v", err)
	}
}

func TestTransform_RegistryAndApply(t *testing.T) {
	RegisterTransform("strip-comments", TransformFunc(func(doc *models.Document) (*models.Document, error) {
		for i := range doc.Resources {
			data := doc.Resources[i].Data[:0]
			for _, d := range doc.Resources[i].Data {
				if d.Field != "comments" {
					data = append(data, d)
				}
			}
			doc.Resources[i].Data = data
		}
		return doc, nil
	}))

	s, _, db := newTestSerializer(t)
	defer db.Close()

	tbl, _ := s.registry.Lookup("supply_item")
	doc, err := s.Export(context.Background(), tbl, []models.Record{supplyItemRecord()},
		ExportOpts{Transform: "strip-comments"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := doc.Resources[0].DataValue("comments"); ok {
		t.Error("transform should have stripped comments")
	}

	if _, err = LookupTransform("no-such-transform"); !errors.Is(err, ErrUnknownTransform) {
		t.Errorf("expected ErrUnknownTransform, got %v", err)
	}
}

func TestEncodeCSV_FlatProjection(t *testing.T) {
	s, _, db := newTestSerializer(t)
	defer db.Close()

	tbl, _ := s.registry.Lookup("supply_item")
	doc, err := s.Export(context.Background(), tbl, []models.Record{supplyItemRecord()}, ExportOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err = EncodeCSV(&buf, tbl, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if lines[0] != "uuid,created_on,modified_on,name,um,comments" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "Water purification tablets") {
		t.Errorf("unexpected row: %s", lines[1])
	}
}

func TestEncodeJSON_Projection(t *testing.T) {
	s, _, db := newTestSerializer(t)
	defer db.Close()

	tbl, _ := s.registry.Lookup("supply_item")
	doc, err := s.Export(context.Background(), tbl, []models.Record{supplyItemRecord()}, ExportOpts{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err = EncodeJSON(&buf, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"resource": "supply_item"`, `"um": "kit"`, `"export_time": "2026-03-01T12:00:00Z"`} {
		if !strings.Contains(out, want) {
			t.Errorf("projection missing %s:\n%s", want, out)
		}
	}
}
