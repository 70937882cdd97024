// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/models"
)

// Store persists the sync bookkeeping tables: registered peer repositories,
// replication tasks, and per-run logs. Like the audit log, these tables are
// outside the schema registry and unreachable through the dispatcher.
type Store struct {
	db     *store.DB
	logger *logger.Logger

	now func() time.Time
}

// NewStore constructs a sync bookkeeping store.
func NewStore(db *store.DB, log *logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// RegisterRepository inserts a peer repository row and returns it with the
// assigned id.
func (s *Store) RegisterRepository(ctx context.Context, repo models.SyncRepository) (models.SyncRepository, error) {
	query, args, err := s.db.Builder().
		Insert("sync_repository").
		Columns("uuid", "name", "url", "username", "password", "apitype", "accept_push").
		Values(repo.UUID, repo.Name, repo.URL, repo.Username, repo.Password, repo.APIType, repo.AcceptPush).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return repo, fmt.Errorf("%w: %w", store.ErrBuildingSQLQuery, err)
	}

	if err = s.db.QueryRowContext(ctx, query, args...).Scan(&repo.ID); err != nil {
		return repo, fmt.Errorf("%w: %w", store.ErrExecutingStatement, err)
	}
	return repo, nil
}

// GetRepository returns the peer repository with the given id.
func (s *Store) GetRepository(ctx context.Context, id int64) (models.SyncRepository, error) {
	return s.getRepositoryWhere(ctx, squirrel.Eq{"id": id})
}

// GetRepositoryByUUID returns the peer repository with the given uuid.
func (s *Store) GetRepositoryByUUID(ctx context.Context, uuid string) (models.SyncRepository, error) {
	return s.getRepositoryWhere(ctx, squirrel.Eq{"uuid": uuid})
}

func (s *Store) getRepositoryWhere(ctx context.Context, pred squirrel.Sqlizer) (models.SyncRepository, error) {
	query, args, err := s.db.Builder().
		Select("id", "uuid", "name", "url", "username", "password", "apitype",
			"accept_push", "last_pull_on", "last_push_on").
		From("sync_repository").
		Where(pred).
		ToSql()
	if err != nil {
		return models.SyncRepository{}, fmt.Errorf("%w: %w", store.ErrBuildingSQLQuery, err)
	}

	var (
		repo     models.SyncRepository
		lastPull sql.NullTime
		lastPush sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&repo.ID, &repo.UUID, &repo.Name, &repo.URL, &repo.Username, &repo.Password,
			&repo.APIType, &repo.AcceptPush, &lastPull, &lastPush)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.SyncRepository{}, ErrUnknownPeer
		}
		return models.SyncRepository{}, fmt.Errorf("%w: %w", store.ErrScanningRow, err)
	}
	repo.LastPullOn = lastPull.Time.UTC()
	repo.LastPushOn = lastPush.Time.UTC()
	return repo, nil
}

// CreateTask inserts a replication task scheduled to run immediately.
func (s *Store) CreateTask(ctx context.Context, task models.SyncTask) (models.SyncTask, error) {
	if task.NextRunOn.IsZero() {
		task.NextRunOn = s.now()
	}
	if task.UpdatePolicy == "" {
		task.UpdatePolicy = models.PolicyNewer
	}

	query, args, err := s.db.Builder().
		Insert("sync_task").
		Columns("repository_id", "resource_name",
			"strategy_create", "strategy_update", "strategy_delete",
			"update_policy", "period_seconds", "next_run_on", "running", "errored").
		Values(task.RepositoryID, task.ResourceName,
			task.Strategy.Create, task.Strategy.Update, task.Strategy.Delete,
			string(task.UpdatePolicy), int64(task.Period/time.Second), task.NextRunOn, false, false).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return task, fmt.Errorf("%w: %w", store.ErrBuildingSQLQuery, err)
	}

	if err = s.db.QueryRowContext(ctx, query, args...).Scan(&task.ID); err != nil {
		return task, fmt.Errorf("%w: %w", store.ErrExecutingStatement, err)
	}
	return task, nil
}

// DueTasks returns the tasks due at the given instant, oldest first,
// excluding errored tasks and tasks already running.
func (s *Store) DueTasks(ctx context.Context, at time.Time) ([]models.SyncTask, error) {
	query, args, err := s.db.Builder().
		Select("id", "repository_id", "resource_name",
			"strategy_create", "strategy_update", "strategy_delete",
			"update_policy", "period_seconds", "next_run_on", "running", "errored",
			"last_pull_on", "last_push_on").
		From("sync_task").
		Where(squirrel.And{
			squirrel.LtOrEq{"next_run_on": at},
			squirrel.Eq{"running": false},
			squirrel.Eq{"errored": false},
		}).
		OrderBy("next_run_on ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBuildingSQLQuery, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrExecutingQuery, err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tasks = append(tasks, task)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrScanningRows, err)
	}
	return tasks, nil
}

// GetTask returns the task with the given id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.SyncTask, error) {
	query, args, err := s.db.Builder().
		Select("id", "repository_id", "resource_name",
			"strategy_create", "strategy_update", "strategy_delete",
			"update_policy", "period_seconds", "next_run_on", "running", "errored",
			"last_pull_on", "last_push_on").
		From("sync_task").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.SyncTask{}, fmt.Errorf("%w: %w", store.ErrBuildingSQLQuery, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.SyncTask{}, fmt.Errorf("%w: %w", store.ErrExecutingQuery, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return models.SyncTask{}, fmt.Errorf("%w: sync_task id=%d", store.ErrNotFound, id)
	}
	return scanTask(rows)
}

func scanTask(rows *sql.Rows) (models.SyncTask, error) {
	var (
		task          models.SyncTask
		policy        string
		periodSeconds int64
		lastPull      sql.NullTime
		lastPush      sql.NullTime
	)
	err := rows.Scan(&task.ID, &task.RepositoryID, &task.ResourceName,
		&task.Strategy.Create, &task.Strategy.Update, &task.Strategy.Delete,
		&policy, &periodSeconds, &task.NextRunOn, &task.Running, &task.Errored,
		&lastPull, &lastPush)
	if err != nil {
		return models.SyncTask{}, fmt.Errorf("%w: %w", store.ErrScanningRow, err)
	}
	task.UpdatePolicy = models.UpdatePolicy(policy)
	task.Period = time.Duration(periodSeconds) * time.Second
	task.NextRunOn = task.NextRunOn.UTC()
	task.LastPullOn = lastPull.Time.UTC()
	task.LastPushOn = lastPush.Time.UTC()
	return task, nil
}

// MarkRunning sets the task's running flag. Setting it on a task that is
// already running fails with ErrTaskAlreadyRunning.
func (s *Store) MarkRunning(ctx context.Context, taskID int64, running bool) error {
	builder := s.db.Builder().
		Update("sync_task").
		Set("running", running).
		Where(squirrel.Eq{"id": taskID})
	if running {
		builder = builder.Where(squirrel.Eq{"running": false})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrBuildingSQLQuery, err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrExecutingStatement, err)
	}
	if affected, _ := res.RowsAffected(); running && affected == 0 {
		return fmt.Errorf("%w: id=%d", ErrTaskAlreadyRunning, taskID)
	}
	return nil
}

// MarkErrored flags a permanently failed task so the scheduler stops
// picking it up until operator action.
func (s *Store) MarkErrored(ctx context.Context, taskID int64) error {
	query, args, err := s.db.Builder().
		Update("sync_task").
		Set("errored", true).
		Set("running", false).
		Where(squirrel.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrBuildingSQLQuery, err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", store.ErrExecutingStatement, err)
	}
	return nil
}

// Reschedule records the task's next due time and, when non-zero, advances
// the bookkeeping timestamps.
func (s *Store) Reschedule(ctx context.Context, task models.SyncTask, nextRun time.Time) error {
	builder := s.db.Builder().
		Update("sync_task").
		Set("next_run_on", nextRun).
		Set("running", false)
	if !task.LastPullOn.IsZero() {
		builder = builder.Set("last_pull_on", task.LastPullOn)
	}
	if !task.LastPushOn.IsZero() {
		builder = builder.Set("last_push_on", task.LastPushOn)
	}

	query, args, err := builder.Where(squirrel.Eq{"id": task.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrBuildingSQLQuery, err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", store.ErrExecutingStatement, err)
	}
	return nil
}

// AppendLog records the outcome of one direction of one task run.
func (s *Store) AppendLog(ctx context.Context, entry models.SyncLog) error {
	query, args, err := s.db.Builder().
		Insert("sync_log").
		Columns("task_id", "direction", "started", "finished", "result",
			"records_sent", "records_received", "message").
		Values(entry.TaskID, string(entry.Direction), entry.Started, entry.Finished,
			string(entry.Result), entry.RecordsSent, entry.RecordsReceived, entry.Message).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrBuildingSQLQuery, err)
	}
	if _, err = s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", store.ErrExecutingStatement, err)
	}
	return nil
}

// ListLogs returns the log entries of one task, oldest first.
func (s *Store) ListLogs(ctx context.Context, taskID int64) ([]models.SyncLog, error) {
	query, args, err := s.db.Builder().
		Select("id", "task_id", "direction", "started", "finished", "result",
			"records_sent", "records_received", "message").
		From("sync_log").
		Where(squirrel.Eq{"task_id": taskID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBuildingSQLQuery, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrExecutingQuery, err)
	}
	defer rows.Close()

	var logs []models.SyncLog
	for rows.Next() {
		var (
			entry     models.SyncLog
			direction string
			result    string
		)
		if err = rows.Scan(&entry.ID, &entry.TaskID, &direction, &entry.Started, &entry.Finished,
			&result, &entry.RecordsSent, &entry.RecordsReceived, &entry.Message); err != nil {
			return nil, fmt.Errorf("%w: %w", store.ErrScanningRow, err)
		}
		entry.Direction = models.SyncDirection(direction)
		entry.Result = models.SyncResult(result)
		logs = append(logs, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrScanningRows, err)
	}
	return logs, nil
}
