// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

// Package resource implements the CRUD surface over registered entity
// tables. A Resource is constructed per dispatch for one (prefix, name)
// pair; it enforces field flags, declared validators, and permissions, and
// writes audit entries for every successful change.
package resource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reliefhub/reliefhub/internal/audit"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/models"
)

// Factory builds Resource instances over the shared registry and storage.
type Factory struct {
	registry *schema.Registry
	rows     *store.RowStore
	audit    *audit.Recorder
	logger   *logger.Logger
}

// NewFactory constructs a resource factory.
func NewFactory(registry *schema.Registry, rows *store.RowStore, recorder *audit.Recorder, log *logger.Logger) *Factory {
	return &Factory{
		registry: registry,
		rows:     rows,
		audit:    recorder,
		logger:   log,
	}
}

// Registry returns the schema registry the factory serves.
func (f *Factory) Registry() *schema.Registry {
	return f.registry
}

// Resource resolves a (prefix, name) request pair into a Resource.
func (f *Factory) Resource(prefix, name string) (*Resource, error) {
	tbl, err := f.registry.LookupResource(prefix, name)
	if err != nil {
		return nil, err
	}
	return f.ForTable(tbl), nil
}

// ForTable wraps an already resolved table descriptor.
func (f *Factory) ForTable(tbl *schema.Table) *Resource {
	return &Resource{
		table:   tbl,
		factory: f,
		rows:    f.rows,
		audit:   f.audit,
	}
}

// Resource is the operation surface over one entity table.
type Resource struct {
	table   *schema.Table
	factory *Factory
	rows    *store.RowStore
	audit   *audit.Recorder
}

// Table returns the table descriptor the resource serves.
func (r *Resource) Table() *schema.Table {
	return r.table
}

// WithTx returns a copy of the resource whose storage and audit writes run
// inside tx.
func (r *Resource) WithTx(tx *sql.Tx) *Resource {
	bound := *r
	bound.rows = r.rows.WithTx(tx)
	bound.audit = r.audit.WithTx(tx)
	return &bound
}

// Begin opens a transaction on the underlying pool.
func (r *Resource) Begin(ctx context.Context) (*sql.Tx, error) {
	return r.rows.Begin(ctx)
}

// Select returns the rows matching q. Requested fields are checked against
// the readable flags; when no fields are requested, all readable fields are
// returned.
func (r *Resource) Select(ctx context.Context, actor models.Actor, q models.Query) ([]models.Record, error) {
	if err := r.checkRead(actor); err != nil {
		return nil, err
	}

	if len(q.Fields) == 0 {
		q.Fields = r.table.ReadableFields()
	} else {
		for _, name := range q.Fields {
			f, ok := r.table.Field(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", schema.ErrUnknownField, r.table.Name, name)
			}
			if !f.Readable {
				return nil, fmt.Errorf("%w: field %s.%s", ErrPermissionDenied, r.table.Name, name)
			}
		}
	}

	return r.rows.Select(ctx, r.table, q)
}

// Load returns the row with the given id and records the read when read
// auditing is enabled.
func (r *Resource) Load(ctx context.Context, actor models.Actor, id int64) (*models.Record, error) {
	if err := r.checkRead(actor); err != nil {
		return nil, err
	}

	rec, err := r.rows.Load(ctx, r.table, id)
	if err != nil {
		return nil, err
	}

	if err = r.audit.Read(ctx, actor.UserID, r.table.Name, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// LoadByUUID returns the row with the given uuid.
func (r *Resource) LoadByUUID(ctx context.Context, actor models.Actor, uuid string) (*models.Record, error) {
	if err := r.checkRead(actor); err != nil {
		return nil, err
	}

	rec, err := r.rows.LoadByUUID(ctx, r.table, uuid)
	if err != nil {
		return nil, err
	}

	if err = r.audit.Read(ctx, actor.UserID, r.table.Name, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindByNaturalKey locates a row by the table's declared natural key using
// the values present in rec. Returns store.ErrNotFound when the table has
// no natural key or rec lacks a key field.
func (r *Resource) FindByNaturalKey(ctx context.Context, rec *models.Record) (*models.Record, error) {
	if len(r.table.NaturalKey) == 0 {
		return nil, fmt.Errorf("%w: %s has no natural key", store.ErrNotFound, r.table.Name)
	}

	key := make(map[string]any, len(r.table.NaturalKey))
	for _, f := range r.table.NaturalKey {
		v, ok := rec.Value(f)
		if !ok {
			return nil, fmt.Errorf("%w: %s natural key field %s missing", store.ErrNotFound, r.table.Name, f)
		}
		key[f] = v
	}

	return r.rows.FindByFields(ctx, r.table, key)
}

// Create validates and inserts a new row. The super-entity row is created
// first when the table declares a super link, and the populated RowMeta is
// written back into rec. One audit entry is recorded.
func (r *Resource) Create(ctx context.Context, actor models.Actor, rec *models.Record) error {
	if err := r.checkWrite(actor); err != nil {
		return err
	}
	if err := r.validate(rec.Values, true); err != nil {
		return err
	}

	rec.Table = r.table.Name
	if rec.OwnedByUser == 0 {
		rec.OwnedByUser = actor.UserID
	}

	if r.table.Super != nil {
		superID, err := r.createSuperRow(ctx, actor)
		if err != nil {
			return err
		}
		rec.SetValue(r.table.Super.Key, superID)
	}

	if err := r.rows.Insert(ctx, r.table, rec); err != nil {
		return err
	}

	return r.audit.Created(ctx, actor.UserID, rec)
}

// Update validates and writes the given field values to the row with the
// given id. Values for unknown fields are rejected; values for fields not
// writable are ignored. The audit entry carries the old/new delta of the
// fields that changed.
func (r *Resource) Update(ctx context.Context, actor models.Actor, id int64, values map[string]any, opts store.UpdateOpts) error {
	if err := r.checkWrite(actor); err != nil {
		return err
	}

	writable, err := r.writableValues(values)
	if err != nil {
		return err
	}
	if err = r.validate(writable, false); err != nil {
		return err
	}

	old, err := r.rows.Load(ctx, r.table, id)
	if err != nil {
		return err
	}

	changed := make(map[string]any, len(writable))
	for f, v := range writable {
		if prev, ok := old.Value(f); !ok || prev != v {
			changed[f] = v
		}
	}
	if len(changed) == 0 {
		return nil
	}

	if err = r.rows.Update(ctx, r.table, id, changed, opts); err != nil {
		return err
	}

	return r.audit.Updated(ctx, actor.UserID, r.table.Name, id, old.Values, changed)
}

// Delete removes the row with the given id: soft by default, hard when the
// table declares hard-delete semantics. Component rows cascade, and the
// super-entity row is deleted together with its instance.
func (r *Resource) Delete(ctx context.Context, actor models.Actor, id int64) error {
	if err := r.checkWrite(actor); err != nil {
		return err
	}

	rec, err := r.rows.Load(ctx, r.table, id)
	if err != nil {
		return err
	}

	for i := range r.table.Components {
		if err = r.deleteComponentRows(ctx, actor, &r.table.Components[i], id); err != nil {
			return err
		}
	}

	if r.table.HardDelete {
		err = r.rows.HardDelete(ctx, r.table, id)
	} else {
		err = r.rows.SoftDelete(ctx, r.table, id)
	}
	if err != nil {
		return err
	}

	if r.table.Super != nil {
		if err = r.deleteSuperRow(ctx, actor, rec); err != nil {
			return err
		}
	}

	return r.audit.Deleted(ctx, actor.UserID, rec)
}

// Component resolves the named component into its own Resource plus the
// join declaration.
func (r *Resource) Component(name string) (*Resource, *schema.Component, error) {
	comp, ok := r.table.Component(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownComponent, r.table.Name, name)
	}

	tbl, err := r.factory.registry.Lookup(comp.Table)
	if err != nil {
		return nil, nil, err
	}

	child := r.factory.ForTable(tbl)
	child.rows = r.rows
	child.audit = r.audit
	return child, comp, nil
}

// ComponentRecords returns the component rows attached to the parent row
// with the given id, narrowed further by q's filter.
func (r *Resource) ComponentRecords(ctx context.Context, actor models.Actor, comp *schema.Component, parentID int64, q models.Query) ([]models.Record, error) {
	child, _, err := r.Component(comp.Name)
	if err != nil {
		return nil, err
	}

	if comp.JoinField == "" {
		return nil, fmt.Errorf("%w: %s.%s has no direct join", ErrUnknownComponent, r.table.Name, comp.Name)
	}

	join := models.Filter(comp.JoinField, models.OpEqual, parentID)
	if q.Filter == nil {
		q.Filter = join
	} else {
		q.Filter = models.AllOf(join, q.Filter)
	}

	return child.Select(ctx, actor, q)
}

// createSuperRow inserts the umbrella row recording this table as the
// concrete instance type.
func (r *Resource) createSuperRow(ctx context.Context, actor models.Actor) (int64, error) {
	superTbl, err := r.factory.registry.Lookup(r.table.Super.Table)
	if err != nil {
		return 0, err
	}

	superRec := models.Record{
		Table:  superTbl.Name,
		Values: map[string]any{"instance_type": r.table.Name},
	}
	superRec.OwnedByUser = actor.UserID

	if err = r.rows.Insert(ctx, superTbl, &superRec); err != nil {
		return 0, err
	}
	if err = r.audit.Created(ctx, actor.UserID, &superRec); err != nil {
		return 0, err
	}
	return superRec.ID, nil
}

// deleteSuperRow removes the umbrella row of a deleted instance. Exactly
// one instance exists per super row, so the row always goes with it.
func (r *Resource) deleteSuperRow(ctx context.Context, actor models.Actor, rec *models.Record) error {
	superID, ok := rec.Value(r.table.Super.Key)
	if !ok {
		return nil
	}
	id, ok := superID.(int64)
	if !ok || id == 0 {
		return nil
	}

	superTbl, err := r.factory.registry.Lookup(r.table.Super.Table)
	if err != nil {
		return err
	}

	superRec, err := r.rows.Load(ctx, superTbl, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}

	if err = r.rows.SoftDelete(ctx, superTbl, id); err != nil {
		return err
	}
	return r.audit.Deleted(ctx, actor.UserID, superRec)
}

// deleteComponentRows soft-deletes the live component rows joined to the
// parent row. Link-table components are detached rather than deleted.
func (r *Resource) deleteComponentRows(ctx context.Context, actor models.Actor, comp *schema.Component, parentID int64) error {
	if comp.JoinField == "" {
		return nil
	}

	child, _, err := r.Component(comp.Name)
	if err != nil {
		return err
	}

	children, err := r.rows.Select(ctx, child.table, models.Query{
		Filter: models.Filter(comp.JoinField, models.OpEqual, parentID),
	})
	if err != nil {
		return err
	}

	for i := range children {
		if err = child.Delete(ctx, actor, children[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// writableValues splits values into those declared writable. Unknown fields
// are a validation error; declared but read-only fields are dropped.
func (r *Resource) writableValues(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for name, v := range values {
		f, ok := r.table.Field(name)
		if !ok {
			return nil, newValidationError(name, "unknown field")
		}
		if !f.Writable {
			continue
		}
		out[name] = v
	}
	return out, nil
}

// validate runs the declared validators over the present values and, on
// create, checks required fields. All failures are collected into one
// ValidationError.
func (r *Resource) validate(values map[string]any, create bool) error {
	failures := make(map[string]string)

	for _, f := range r.table.Fields {
		v, present := values[f.Name]
		if !present || v == nil {
			if create && f.Required {
				failures[f.Name] = "value required"
			}
			continue
		}
		for _, check := range f.Validators {
			if err := check(v); err != nil {
				failures[f.Name] = err.Error()
				break
			}
		}
	}

	for name := range values {
		if _, ok := r.table.Field(name); !ok {
			failures[name] = "unknown field"
		}
	}

	if len(failures) > 0 {
		return &ValidationError{Fields: failures}
	}
	return nil
}

// checkRead gates read operations: anonymous actors are admitted only where
// the table opts in.
func (r *Resource) checkRead(actor models.Actor) error {
	if actor.Anonymous() && !r.table.AnonymousRead {
		return fmt.Errorf("%w: %s", ErrAuthRequired, r.table.Name)
	}
	return nil
}

// checkWrite gates data-changing operations behind the editor role. Peer
// repositories and the scheduler write through the sync role, which is not
// tied to an account row.
func (r *Resource) checkWrite(actor models.Actor) error {
	if actor.HasRole(models.RoleSync) {
		return nil
	}
	if actor.Anonymous() {
		return fmt.Errorf("%w: %s", ErrAuthRequired, r.table.Name)
	}
	if !actor.HasRole(models.RoleEditor) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, r.table.Name)
	}
	return nil
}
