// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/utils"
	"github.com/reliefhub/reliefhub/models"
)

// metaColumns are the bookkeeping columns present on every entity table,
// in scan order, ahead of the declared fields.
var metaColumns = []string{
	"id", "uuid", "created_on", "modified_on", "deleted",
	"owned_by_user", "owned_by_group", "realm_entity", "modified_by_peer",
}

// runner abstracts the query surface shared by *sql.DB and *sql.Tx so the
// row store can run either directly on the pool or inside a transaction.
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RowStore is the generic, schema-driven repository over the entity tables.
// One instance serves all registered tables; per-request transactional
// copies are obtained via [RowStore.WithTx].
type RowStore struct {
	db     *DB
	run    runner
	logger *logger.Logger

	// now and newUUID are injectable for tests. now truncates to second
	// precision so stored timestamps round-trip exactly through the wire
	// format.
	now     func() time.Time
	newUUID func() string
}

// NewRowStore constructs a RowStore over the given connection.
func NewRowStore(db *DB, log *logger.Logger) *RowStore {
	return &RowStore{
		db:      db,
		run:     db.DB,
		logger:  log,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Second) },
		newUUID: utils.NewRowUUID,
	}
}

// Begin opens a transaction on the underlying pool.
func (s *RowStore) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	return tx, nil
}

// WithTx returns a copy of the store whose operations run inside tx.
func (s *RowStore) WithTx(tx *sql.Tx) *RowStore {
	bound := *s
	bound.run = tx
	return &bound
}

// Select returns the rows of tbl matching q, in stable id order when no
// sort is requested. Soft-deleted rows are excluded unless
// q.IncludeDeleted is set.
func (s *RowStore) Select(ctx context.Context, tbl *schema.Table, q models.Query) ([]models.Record, error) {
	log := logger.FromContext(ctx)

	fields, err := selectedFields(tbl, q.Fields)
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(metaColumns)+len(fields))
	columns = append(columns, metaColumns...)
	for _, f := range fields {
		columns = append(columns, f.Name)
	}

	builder := s.db.Builder().Select(columns...).From(tbl.Name)

	if !q.IncludeDeleted {
		builder = builder.Where(squirrel.Eq{"deleted": false})
	}

	filter, err := s.expandHierarchy(ctx, tbl, q.Filter)
	if err != nil {
		return nil, err
	}
	if filter != nil {
		pred, predErr := toSqlizer(filter)
		if predErr != nil {
			return nil, predErr
		}
		builder = builder.Where(pred)
	}

	if len(q.Sort) == 0 {
		builder = builder.OrderBy("id ASC")
	} else {
		for _, srt := range q.Sort {
			dir := "ASC"
			if srt.Desc {
				dir = "DESC"
			}
			builder = builder.OrderBy(srt.Field + " " + dir)
		}
	}

	if q.Page.Limit > 0 {
		builder = builder.Limit(q.Page.Limit)
	}
	if q.Page.Start > 0 {
		builder = builder.Offset(q.Page.Start)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := s.run.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "RowStore.Select").
			Str("table", tbl.Name).
			Msg("failed to execute select")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	records := make([]models.Record, 0, 50)
	for rows.Next() {
		rec, scanErr := scanRecord(rows, tbl, fields)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "RowStore.Select").
				Str("table", tbl.Name).
				Msg("failed to scan row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}
		records = append(records, *rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "RowStore.Select").
			Str("table", tbl.Name).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return records, nil
}

// Load returns the row of tbl with the given id, including soft-deleted rows.
func (s *RowStore) Load(ctx context.Context, tbl *schema.Table, id int64) (*models.Record, error) {
	return s.loadWhere(ctx, tbl, squirrel.Eq{"id": id})
}

// LoadByUUID returns the row of tbl with the given uuid.
func (s *RowStore) LoadByUUID(ctx context.Context, tbl *schema.Table, uuid string) (*models.Record, error) {
	return s.loadWhere(ctx, tbl, squirrel.Eq{"uuid": uuid})
}

// FindByFields returns the first non-deleted row matching all the given
// field values, or ErrNotFound. Used for natural-key lookups.
func (s *RowStore) FindByFields(ctx context.Context, tbl *schema.Table, values map[string]any) (*models.Record, error) {
	pred := squirrel.And{squirrel.Eq{"deleted": false}}
	for f, v := range values {
		pred = append(pred, squirrel.Eq{f: v})
	}
	return s.loadWhere(ctx, tbl, pred)
}

func (s *RowStore) loadWhere(ctx context.Context, tbl *schema.Table, pred squirrel.Sqlizer) (*models.Record, error) {
	fields := tbl.Fields

	columns := make([]string, 0, len(metaColumns)+len(fields))
	columns = append(columns, metaColumns...)
	for _, f := range fields {
		columns = append(columns, f.Name)
	}

	query, args, err := s.db.Builder().
		Select(columns...).
		From(tbl.Name).
		Where(pred).
		OrderBy("id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := s.run.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tbl.Name)
	}

	rec, err := scanRecord(rows, tbl, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return rec, nil
}

// Insert persists a new row. Zero metadata fields are stamped: uuid is
// generated, created_on/modified_on default to now. The populated RowMeta
// is written back into rec.
func (s *RowStore) Insert(ctx context.Context, tbl *schema.Table, rec *models.Record) error {
	log := logger.FromContext(ctx)

	if rec.UUID == "" {
		rec.UUID = s.newUUID()
	}
	now := s.now()
	if rec.CreatedOn.IsZero() {
		rec.CreatedOn = now
	}
	if rec.ModifiedOn.IsZero() {
		rec.ModifiedOn = now
	}

	columns := []string{
		"uuid", "created_on", "modified_on", "deleted",
		"owned_by_user", "owned_by_group", "realm_entity", "modified_by_peer",
	}
	args := []any{
		rec.UUID, rec.CreatedOn, rec.ModifiedOn, rec.Deleted,
		rec.OwnedByUser, rec.OwnedByGroup, rec.RealmEntity, rec.ModifiedByPeer,
	}

	for _, f := range tbl.Fields {
		if v, ok := rec.Value(f.Name); ok {
			columns = append(columns, f.Name)
			args = append(args, v)
		}
	}

	query, sqlArgs, err := s.db.Builder().
		Insert(tbl.Name).
		Columns(columns...).
		Values(args...).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	if err = s.run.QueryRowContext(ctx, query, sqlArgs...).Scan(&rec.ID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUniqueViolation, tbl.Name)
		}
		log.Err(err).
			Str("func", "RowStore.Insert").
			Str("table", tbl.Name).
			Str("uuid", rec.UUID).
			Msg("failed to insert row")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	rec.Table = tbl.Name
	return nil
}

// UpdateOpts adjusts the metadata stamping of an update.
type UpdateOpts struct {
	// Peer records the uuid of the peer repository the change came from;
	// empty for local edits.
	Peer string

	// ModifiedOn overrides the modified_on stamp; zero means now. Imports
	// preserve the payload's timestamp so replicas converge on identical
	// metadata.
	ModifiedOn time.Time
}

// Update writes the given field values to the row with the given id and
// stamps modified_on. Returns ErrNotFound when the row does not exist.
func (s *RowStore) Update(ctx context.Context, tbl *schema.Table, id int64, values map[string]any, opts UpdateOpts) error {
	log := logger.FromContext(ctx)

	modifiedOn := opts.ModifiedOn
	if modifiedOn.IsZero() {
		modifiedOn = s.now()
	}

	builder := s.db.Builder().
		Update(tbl.Name).
		Set("modified_on", modifiedOn).
		Set("modified_by_peer", opts.Peer)

	for _, f := range tbl.Fields {
		if v, ok := values[f.Name]; ok {
			builder = builder.Set(f.Name, v)
		}
	}

	query, args, err := builder.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := s.run.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUniqueViolation, tbl.Name)
		}
		log.Err(err).
			Str("func", "RowStore.Update").
			Str("table", tbl.Name).
			Int64("id", id).
			Msg("failed to update row")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s id=%d", ErrNotFound, tbl.Name, id)
	}

	return nil
}

// SoftDelete marks the row deleted, blanks the table's configured
// identifying fields, and stamps modified_on.
func (s *RowStore) SoftDelete(ctx context.Context, tbl *schema.Table, id int64) error {
	builder := s.db.Builder().
		Update(tbl.Name).
		Set("deleted", true).
		Set("modified_on", s.now())

	for _, f := range tbl.BlankOnDelete {
		builder = builder.Set(f, nil)
	}

	query, args, err := builder.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := s.run.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s id=%d", ErrNotFound, tbl.Name, id)
	}

	return nil
}

// HardDelete removes the row entirely. Reserved for admin tooling and for
// tables that declare hard-delete semantics.
func (s *RowStore) HardDelete(ctx context.Context, tbl *schema.Table, id int64) error {
	query, args, err := s.db.Builder().
		Delete(tbl.Name).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := s.run.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s id=%d", ErrNotFound, tbl.Name, id)
	}

	return nil
}

// ModifiedSince returns the rows of tbl with modified_on strictly after
// since, including soft-deleted rows so deletions replicate.
func (s *RowStore) ModifiedSince(ctx context.Context, tbl *schema.Table, since time.Time) ([]models.Record, error) {
	q := models.Query{IncludeDeleted: true}
	if !since.IsZero() {
		q.Filter = models.Filter("modified_on", models.OpGreater, since)
	}
	return s.Select(ctx, tbl, q)
}

// expandHierarchy rewrites belongs-to-hierarchy nodes into plain IN nodes
// by walking the table's parent references breadth-first. The remaining
// tree is returned unchanged.
func (s *RowStore) expandHierarchy(ctx context.Context, tbl *schema.Table, node *models.FilterNode) (*models.FilterNode, error) {
	if node == nil {
		return nil, nil
	}

	if !node.Leaf() {
		children := node.And
		if len(children) == 0 {
			children = node.Or
		}
		expanded := make([]*models.FilterNode, 0, len(children))
		for _, child := range children {
			e, err := s.expandHierarchy(ctx, tbl, child)
			if err != nil {
				return nil, err
			}
			expanded = append(expanded, e)
		}
		if len(node.And) > 0 {
			return &models.FilterNode{And: expanded}, nil
		}
		return &models.FilterNode{Or: expanded}, nil
	}

	if node.Op != models.OpBelongs {
		return node, nil
	}

	if tbl.HierarchyField == "" {
		return nil, fmt.Errorf("%w: %s", ErrHierarchyUnsupported, tbl.Name)
	}

	root, ok := node.Value.(int64)
	if !ok {
		return nil, fmt.Errorf("%w: hierarchy root must be an id", ErrUnknownOperator)
	}

	ids, err := s.descendants(ctx, tbl, root)
	if err != nil {
		return nil, err
	}

	return models.Filter("id", models.OpIn, ids), nil
}

// descendants collects root and every row reachable through the table's
// hierarchy field. A visited set guards against reference cycles.
func (s *RowStore) descendants(ctx context.Context, tbl *schema.Table, root int64) ([]int64, error) {
	visited := map[int64]bool{root: true}
	ids := []int64{root}
	frontier := []int64{root}

	for len(frontier) > 0 {
		query, args, err := s.db.Builder().
			Select("id").
			From(tbl.Name).
			Where(squirrel.Eq{tbl.HierarchyField: frontier, "deleted": false}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
		}

		rows, err := s.run.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}

		var next []int64
		for rows.Next() {
			var id int64
			if err = rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
			}
			if !visited[id] {
				visited[id] = true
				ids = append(ids, id)
				next = append(next, id)
			}
		}
		if err = rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		rows.Close()

		frontier = next
	}

	return ids, nil
}

// selectedFields resolves the requested field names against the table,
// returning all declared fields when none are requested.
func selectedFields(tbl *schema.Table, requested []string) ([]schema.Field, error) {
	if len(requested) == 0 {
		return tbl.Fields, nil
	}

	fields := make([]schema.Field, 0, len(requested))
	for _, name := range requested {
		f, ok := tbl.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownField, tbl.Name, name)
		}
		fields = append(fields, *f)
	}
	return fields, nil
}

// scanRecord scans the current row of rows into a Record. The column order
// must be metaColumns followed by fields.
func scanRecord(rows *sql.Rows, tbl *schema.Table, fields []schema.Field) (*models.Record, error) {
	var (
		ownedByUser  sql.NullInt64
		ownedByGroup sql.NullInt64
		realmEntity  sql.NullInt64
		peer         sql.NullString
	)

	rec := models.Record{Table: tbl.Name, Values: make(map[string]any, len(fields))}

	targets := []any{
		&rec.ID, &rec.UUID, &rec.CreatedOn, &rec.ModifiedOn, &rec.Deleted,
		&ownedByUser, &ownedByGroup, &realmEntity, &peer,
	}

	fieldTargets := make([]any, len(fields))
	for i, f := range fields {
		fieldTargets[i] = scanTarget(f.Type)
		targets = append(targets, fieldTargets[i])
	}

	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}

	rec.CreatedOn = rec.CreatedOn.UTC()
	rec.ModifiedOn = rec.ModifiedOn.UTC()
	rec.OwnedByUser = ownedByUser.Int64
	rec.OwnedByGroup = ownedByGroup.Int64
	rec.RealmEntity = realmEntity.Int64
	rec.ModifiedByPeer = peer.String

	for i, f := range fields {
		if v := targetValue(fieldTargets[i]); v != nil {
			rec.Values[f.Name] = v
		}
	}

	return &rec, nil
}

// IsNotFound reports whether err denotes a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
