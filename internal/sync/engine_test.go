package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/reliefhub/reliefhub/internal/audit"
	"github.com/reliefhub/reliefhub/internal/config"
	"github.com/reliefhub/reliefhub/internal/importer"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/resource"
	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/serializer"
	dbstore "github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/models"
)

const (
	localRepo = "11111111-1111-1111-1111-111111111111"
	peerRepo  = "22222222-2222-2222-2222-222222222222"
)

// fakePeer is an in-memory PeerClient recording what the engine sent.
type fakePeer struct {
	uuid string
	name string

	pullDoc *models.Document
	pullErr error
	pushErr error

	pulledResource string
	pulledSince    time.Time
	pushed         *models.Document
}

func (f *fakePeer) Handshake(_ context.Context) (string, string, error) {
	return f.uuid, f.name, nil
}

func (f *fakePeer) Pull(_ context.Context, resourceName string, msince time.Time) (*models.Document, error) {
	f.pulledResource = resourceName
	f.pulledSince = msince
	return f.pullDoc, f.pullErr
}

func (f *fakePeer) Push(_ context.Context, doc *models.Document) (*models.ImportReport, error) {
	f.pushed = doc
	return &models.ImportReport{}, f.pushErr
}

func newTestEngine(t *testing.T, peer PeerClient) (*Engine, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	l := logger.NewLogger("test")
	conn := dbstore.NewFromConn(db, "pgx", l)
	rows := dbstore.NewRowStore(conn, l)
	recorder := audit.NewRecorder(conn, config.Audit{WriteEnabled: true}, l)
	registry := schema.DefaultRegistry()
	factory := resource.NewFactory(registry, rows, recorder, l)
	im := importer.NewImporter(registry, factory, rows, localRepo, l)
	ser := serializer.NewSerializer(registry, rows, localRepo, l)
	peers := NewStore(conn, l)

	cfg := config.Sync{RepositoryUUID: localRepo, RepositoryName: "hq",
		SchedulerPeriod: time.Minute, MaxRetries: 1, Backoff: time.Millisecond}
	engine := NewEngine(peers, im, ser, rows, registry, recorder, cfg, l)
	engine.newClient = func(models.SyncRepository) PeerClient { return peer }
	return engine, mock, db
}

var repoCols = []string{
	"id", "uuid", "name", "url", "username", "password", "apitype",
	"accept_push", "last_pull_on", "last_push_on",
}

func peerRepoRow(acceptPush bool) *sqlmock.Rows {
	return sqlmock.NewRows(repoCols).
		AddRow(3, peerRepo, "field-office", "http://peer.example", "", "", "native",
			acceptPush, nil, nil)
}

var orgCols = []string{
	"id", "uuid", "created_on", "modified_on", "deleted",
	"owned_by_user", "owned_by_group", "realm_entity", "modified_by_peer",
	"name", "acronym", "organisation_type", "website", "country", "parent_id", "comments",
}

var auditCols = []string{
	"id", "timestamp", "actor", "tablename", "row_id", "operation", "old_value", "new_value",
}

func orgTask() models.SyncTask {
	return models.SyncTask{
		ID:           7,
		RepositoryID: 3,
		ResourceName: "org_organisation",
		Strategy:     models.SyncStrategy{Create: true, Update: true, Delete: true},
		UpdatePolicy: models.PolicyNewer,
		Period:       time.Hour,
	}
}

func TestEngine_Register(t *testing.T) {
	peer := &fakePeer{uuid: peerRepo, name: "field-office"}
	engine, mock, db := newTestEngine(t, peer)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO sync_repository").
		WithArgs(peerRepo, "field-office", "http://peer.example", "u", "p", "native", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	repo, err := engine.Register(context.Background(), "http://peer.example", "u", "p", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.ID != 3 || repo.UUID != peerRepo || repo.Name != "field-office" {
		t.Errorf("unexpected repository: %+v", repo)
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEngine_RunImportsPulledRowsAndAdvancesWatermark(t *testing.T) {
	peer := &fakePeer{
		pullDoc: &models.Document{
			ExportTime: "2026-03-01T12:00:00Z",
			Repository: peerRepo,
			Resources: []models.ResourceElement{{
				Name:       "org_organisation",
				UUID:       "U1",
				ModifiedOn: "2026-02-01T00:00:00Z",
				Data:       []models.DataElement{{Field: "name", Value: "ACME"}},
			}},
		},
	}
	engine, mock, db := newTestEngine(t, peer)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM sync_repository").WillReturnRows(peerRepoRow(true))
	// pull: the document runs through the importer in one transaction
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM org_organisation").WillReturnRows(sqlmock.NewRows(orgCols))
	mock.ExpectQuery("SELECT (.+) FROM org_organisation").WillReturnRows(sqlmock.NewRows(orgCols))
	mock.ExpectQuery("INSERT INTO org_organisation").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO sync_log").WillReturnResult(sqlmock.NewResult(1, 1))
	// push: nothing changed locally
	mock.ExpectQuery("SELECT (.+) FROM audit_log").WillReturnRows(sqlmock.NewRows(auditCols))
	mock.ExpectExec("INSERT INTO sync_log").WillReturnResult(sqlmock.NewResult(2, 1))

	task, err := engine.Run(context.Background(), orgTask())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !task.LastPullOn.Equal(want) {
		t.Errorf("LastPullOn = %v, want %v", task.LastPullOn, want)
	}
	if task.LastPushOn.IsZero() {
		t.Error("LastPushOn must advance after a clean push direction")
	}
	if peer.pulledResource != "org_organisation" {
		t.Errorf("pulled resource = %q", peer.pulledResource)
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEngine_RunPushesChangedRows(t *testing.T) {
	peer := &fakePeer{
		pullDoc: &models.Document{ExportTime: "2026-03-01T12:00:00Z", Repository: peerRepo},
	}
	engine, mock, db := newTestEngine(t, peer)
	defer db.Close()

	changed := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM sync_repository").WillReturnRows(peerRepoRow(true))
	// pull: empty document, nothing to import
	mock.ExpectExec("INSERT INTO sync_log").WillReturnResult(sqlmock.NewResult(1, 1))
	// push: one audited change, row reloaded and exported
	mock.ExpectQuery("SELECT (.+) FROM audit_log").
		WillReturnRows(sqlmock.NewRows(auditCols).
			AddRow(10, changed, 1, "org_organisation", 5, "update", nil, nil).
			AddRow(11, changed, 1, "org_organisation", 5, "update", nil, nil))
	mock.ExpectQuery("SELECT (.+) FROM org_organisation").
		WillReturnRows(sqlmock.NewRows(orgCols).
			AddRow(5, "U2", changed, changed, false, nil, nil, nil, "",
				"ICRC", nil, nil, nil, nil, nil, nil))
	mock.ExpectExec("INSERT INTO sync_log").WillReturnResult(sqlmock.NewResult(2, 1))

	task, err := engine.Run(context.Background(), orgTask())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if peer.pushed == nil {
		t.Fatal("expected a document pushed to the peer")
	}
	if peer.pushed.Repository != localRepo {
		t.Errorf("pushed document repository = %q, want local uuid", peer.pushed.Repository)
	}
	if len(peer.pushed.Resources) != 1 || peer.pushed.Resources[0].UUID != "U2" {
		t.Errorf("unexpected pushed resources: %+v", peer.pushed.Resources)
	}
	if task.LastPushOn.IsZero() {
		t.Error("LastPushOn must advance after a successful push")
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEngine_RunPushStillRunsAfterPullFailure(t *testing.T) {
	peer := &fakePeer{
		pullErr: fmt.Errorf("%w: connection refused", ErrPeerUnavailable),
	}
	engine, mock, db := newTestEngine(t, peer)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM sync_repository").WillReturnRows(peerRepoRow(true))
	mock.ExpectExec("INSERT INTO sync_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT (.+) FROM audit_log").WillReturnRows(sqlmock.NewRows(auditCols))
	mock.ExpectExec("INSERT INTO sync_log").WillReturnResult(sqlmock.NewResult(2, 1))

	task, err := engine.Run(context.Background(), orgTask())
	if !errors.Is(err, ErrPeerUnavailable) {
		t.Fatalf("expected ErrPeerUnavailable, got %v", err)
	}
	if !task.LastPullOn.IsZero() {
		t.Error("LastPullOn must not advance on a failed pull")
	}
	if task.LastPushOn.IsZero() {
		t.Error("push direction must still run and advance")
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

var peerActor = models.Actor{UserID: 9, Login: "field-office", Roles: []string{models.RoleSync}}

func TestEngine_ServePullRequiresAuthForClosedResources(t *testing.T) {
	engine, _, db := newTestEngine(t, &fakePeer{})
	defer db.Close()

	_, err := engine.ServePull(context.Background(), models.Actor{}, "pr_person", time.Time{})
	if !errors.Is(err, resource.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired for anonymous pull of pr_person, got %v", err)
	}
}

func TestEngine_ServePullAnonymousOpenResource(t *testing.T) {
	engine, mock, db := newTestEngine(t, &fakePeer{})
	defer db.Close()

	changed := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM org_organisation").
		WillReturnRows(sqlmock.NewRows(orgCols).
			AddRow(5, "U2", changed, changed, false, nil, nil, nil, "",
				"ICRC", nil, nil, nil, nil, nil, nil))

	doc, err := engine.ServePull(context.Background(), models.Actor{}, "org_organisation", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Resources) != 1 || doc.Resources[0].UUID != "U2" {
		t.Errorf("unexpected exported resources: %+v", doc.Resources)
	}
	if err = mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEngine_ServePushRequiresSyncRole(t *testing.T) {
	engine, _, db := newTestEngine(t, &fakePeer{})
	defer db.Close()

	doc := &models.Document{ExportTime: "2026-03-01T12:00:00Z", Repository: peerRepo}

	_, err := engine.ServePush(context.Background(), models.Actor{}, peerRepo, doc)
	if !errors.Is(err, resource.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired for anonymous push, got %v", err)
	}

	editor := models.Actor{UserID: 2, Login: "editor", Roles: []string{models.RoleEditor}}
	_, err = engine.ServePush(context.Background(), editor, peerRepo, doc)
	if !errors.Is(err, resource.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied without the sync role, got %v", err)
	}
}

func TestEngine_ServePushRejectedWhenPushDisabled(t *testing.T) {
	engine, mock, db := newTestEngine(t, &fakePeer{})
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM sync_repository").WillReturnRows(peerRepoRow(false))

	doc := &models.Document{ExportTime: "2026-03-01T12:00:00Z", Repository: peerRepo}
	_, err := engine.ServePush(context.Background(), peerActor, peerRepo, doc)
	if !errors.Is(err, ErrPushNotAccepted) {
		t.Fatalf("expected ErrPushNotAccepted, got %v", err)
	}
}

func TestEngine_ServePushUnknownPeer(t *testing.T) {
	engine, mock, db := newTestEngine(t, &fakePeer{})
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM sync_repository").WillReturnError(sql.ErrNoRows)

	doc := &models.Document{ExportTime: "2026-03-01T12:00:00Z", Repository: "nobody"}
	_, err := engine.ServePush(context.Background(), peerActor, "nobody", doc)
	if !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
}
