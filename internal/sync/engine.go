// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

// Package sync implements peer-to-peer replication of selected resources.
// The engine pulls and pushes canonical documents against registered peers
// under per-task policies; the scheduler drives due tasks serially and
// retries transient failures with exponential backoff.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

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

// Engine exchanges resources with registered peer repositories.
type Engine struct {
	peers    *Store
	importer *importer.Importer
	ser      *serializer.Serializer
	rows     *dbstore.RowStore
	registry *schema.Registry
	audit    *audit.Recorder
	cfg      config.Sync
	logger   *logger.Logger

	// newClient is injectable so tests can wire an in-memory peer.
	newClient func(models.SyncRepository) PeerClient

	// actor is the identity sync runs write under.
	actor models.Actor

	now func() time.Time
}

// NewEngine constructs the sync engine.
func NewEngine(peers *Store, im *importer.Importer, ser *serializer.Serializer, rows *dbstore.RowStore,
	registry *schema.Registry, recorder *audit.Recorder, cfg config.Sync, log *logger.Logger) *Engine {
	e := &Engine{
		peers:    peers,
		importer: im,
		ser:      ser,
		rows:     rows,
		registry: registry,
		audit:    recorder,
		cfg:      cfg,
		logger:   log,
		actor:    models.Actor{Login: "sync", Roles: []string{models.RoleSync}},
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
	e.newClient = func(repo models.SyncRepository) PeerClient {
		return NewPeerClient(repo, cfg.RepositoryUUID, 0)
	}
	return e
}

// Register performs the uuid handshake against a peer URL and records the
// peer repository.
func (e *Engine) Register(ctx context.Context, url, username, password string, acceptPush bool) (models.SyncRepository, error) {
	log := logger.FromContext(ctx)

	probe := models.SyncRepository{URL: url, Username: username, Password: password}
	uuid, name, err := e.newClient(probe).Handshake(ctx)
	if err != nil {
		return models.SyncRepository{}, err
	}

	repo := models.SyncRepository{
		UUID:       uuid,
		Name:       name,
		URL:        url,
		Username:   username,
		Password:   password,
		APIType:    "native",
		AcceptPush: acceptPush,
	}
	repo, err = e.peers.RegisterRepository(ctx, repo)
	if err != nil {
		return models.SyncRepository{}, err
	}

	log.Info().
		Str("func", "Engine.Register").
		Str("peer", uuid).
		Str("url", url).
		Msg("peer repository registered")
	return repo, nil
}

// Run executes one task: pull then push. Failure of one direction does not
// skip the other; each direction appends its own log entry. The returned
// task carries the advanced bookkeeping timestamps.
func (e *Engine) Run(ctx context.Context, task models.SyncTask) (models.SyncTask, error) {
	repo, err := e.peers.GetRepository(ctx, task.RepositoryID)
	if err != nil {
		return task, err
	}
	client := e.newClient(repo)

	pullErr := e.pull(ctx, client, repo, &task)
	pushErr := e.push(ctx, client, repo, &task)

	return task, errors.Join(pullErr, pushErr)
}

// pull fetches rows modified at the peer since the last pull and runs them
// through the importer under the task's policy.
func (e *Engine) pull(ctx context.Context, client PeerClient, repo models.SyncRepository, task *models.SyncTask) error {
	log := logger.FromContext(ctx)
	entry := models.SyncLog{TaskID: task.ID, Direction: models.SyncIn, Started: e.now()}

	doc, err := client.Pull(ctx, task.ResourceName, task.LastPullOn)
	if err != nil {
		return errors.Join(err, e.finishLog(ctx, entry, models.SyncError, err.Error()))
	}

	var report *models.ImportReport
	if len(doc.Resources) > 0 {
		report, err = e.importer.Run(ctx, e.actor, doc, importer.Options{
			Policy:   task.UpdatePolicy,
			Strategy: task.Strategy,
			Peer:     repo.UUID,
			Master:   task.UpdatePolicy == models.PolicyMaster,
		})
		if err != nil {
			return errors.Join(err, e.finishLog(ctx, entry, models.SyncError, err.Error()))
		}
		entry.RecordsReceived = len(doc.Resources)
	}

	if exportTime, tsErr := doc.ExportTimestamp(); tsErr == nil {
		task.LastPullOn = exportTime
	}

	result := models.SyncSuccess
	message := ""
	if report != nil && len(report.Errors) > 0 {
		result = models.SyncWarning
		message = fmt.Sprintf("%d item errors", len(report.Errors))
	}

	log.Info().
		Str("func", "Engine.pull").
		Str("peer", repo.UUID).
		Str("resource", task.ResourceName).
		Int("received", entry.RecordsReceived).
		Msg("pull finished")
	return e.finishLog(ctx, entry, result, message)
}

// push exports rows changed locally since the last push, as detected
// through the audit log, and delivers them to the peer.
func (e *Engine) push(ctx context.Context, client PeerClient, repo models.SyncRepository, task *models.SyncTask) error {
	log := logger.FromContext(ctx)
	entry := models.SyncLog{TaskID: task.ID, Direction: models.SyncOut, Started: e.now()}

	tbl, err := e.registry.Lookup(task.ResourceName)
	if err != nil {
		return errors.Join(err, e.finishLog(ctx, entry, models.SyncError, err.Error()))
	}

	records, err := e.changedRows(ctx, tbl, task.LastPushOn)
	if err != nil {
		return errors.Join(err, e.finishLog(ctx, entry, models.SyncError, err.Error()))
	}

	doc, err := e.ser.Export(ctx, tbl, records, serializer.ExportOpts{})
	if err != nil {
		return errors.Join(err, e.finishLog(ctx, entry, models.SyncError, err.Error()))
	}

	if len(records) > 0 {
		if _, err = client.Push(ctx, doc); err != nil {
			return errors.Join(err, e.finishLog(ctx, entry, models.SyncError, err.Error()))
		}
		entry.RecordsSent = len(records)
	}

	if exportTime, tsErr := doc.ExportTimestamp(); tsErr == nil {
		task.LastPushOn = exportTime
	}

	log.Info().
		Str("func", "Engine.push").
		Str("peer", repo.UUID).
		Str("resource", task.ResourceName).
		Int("sent", entry.RecordsSent).
		Msg("push finished")
	return e.finishLog(ctx, entry, models.SyncSuccess, "")
}

// changedRows resolves the audit entries since the watermark into current
// row states, one per row, in first-change order. Rows written by a peer
// pull are included; the receiving side's policy decides what to keep.
func (e *Engine) changedRows(ctx context.Context, tbl *schema.Table, since time.Time) ([]models.Record, error) {
	entries, err := e.audit.List(ctx, audit.Filter{Table: tbl.Name, Since: since})
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(entries))
	records := make([]models.Record, 0, len(entries))
	for _, entry := range entries {
		if seen[entry.RowID] {
			continue
		}
		seen[entry.RowID] = true

		row, loadErr := e.rows.Load(ctx, tbl, entry.RowID)
		if loadErr != nil {
			if dbstore.IsNotFound(loadErr) {
				continue
			}
			return nil, loadErr
		}
		records = append(records, *row)
	}
	return records, nil
}

// finishLog closes and persists one direction's log entry. The caller keeps
// the original failure; only the AppendLog error is returned from here.
func (e *Engine) finishLog(ctx context.Context, entry models.SyncLog, result models.SyncResult, message string) error {
	entry.Finished = e.now()
	entry.Result = result
	entry.Message = message
	return e.peers.AppendLog(ctx, entry)
}

// ServePull is the server side of a peer's pull: export the named
// resource's rows modified strictly after msince, tombstones included.
// Tables not open to anonymous reads require an authenticated caller.
func (e *Engine) ServePull(ctx context.Context, actor models.Actor, resourceName string, msince time.Time) (*models.Document, error) {
	tbl, err := e.registry.Lookup(resourceName)
	if err != nil {
		return nil, err
	}
	if actor.Anonymous() && !tbl.AnonymousRead {
		return nil, fmt.Errorf("%w: %s", resource.ErrAuthRequired, tbl.Name)
	}

	records, err := e.rows.ModifiedSince(ctx, tbl, msince)
	if err != nil {
		return nil, err
	}

	return e.ser.Export(ctx, tbl, records, serializer.ExportOpts{})
}

// ServePush is the server side of a peer's push: the caller must hold the
// sync role, and the peer must be registered and flagged accept_push. The
// document is imported under the default policy with the peer recorded as
// the source.
func (e *Engine) ServePush(ctx context.Context, actor models.Actor, peerUUID string, doc *models.Document) (*models.ImportReport, error) {
	if actor.Anonymous() {
		return nil, fmt.Errorf("%w: push requires peer credentials", resource.ErrAuthRequired)
	}
	if !actor.HasRole(models.RoleSync) {
		return nil, fmt.Errorf("%w: push requires the sync role", resource.ErrPermissionDenied)
	}

	repo, err := e.peers.GetRepositoryByUUID(ctx, peerUUID)
	if err != nil {
		return nil, err
	}
	if !repo.AcceptPush {
		return nil, fmt.Errorf("%w: %s", ErrPushNotAccepted, peerUUID)
	}

	return e.importer.Run(ctx, actor, doc, importer.Options{Peer: peerUUID})
}

// RepositoryUUID returns the identity of the local repository.
func (e *Engine) RepositoryUUID() string {
	return e.cfg.RepositoryUUID
}

// RepositoryName returns the announced name of the local repository.
func (e *Engine) RepositoryName() string {
	return e.cfg.RepositoryName
}
