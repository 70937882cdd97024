// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

// Package importer ingests canonical documents into storage. Items are
// processed in document order inside one transaction: identify the table,
// locate an existing row by uuid or natural key, resolve references (with
// one retry pass for forward declarations), validate, decide the action
// under the update policy, execute through the resource layer, and report a
// per-item outcome. By default item failures are collected and the run
// still commits; strict mode rolls back on the first collected error.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/resource"
	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/serializer"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/models"
)

// Importer materializes canonical documents into storage.
type Importer struct {
	registry *schema.Registry
	factory  *resource.Factory
	rows     *store.RowStore
	logger   *logger.Logger

	// repository is the uuid of the local repository; numeric reference ids
	// are trusted only in payloads exported by this same repository.
	repository string
}

// NewImporter constructs an Importer.
func NewImporter(registry *schema.Registry, factory *resource.Factory, rows *store.RowStore, repositoryUUID string, log *logger.Logger) *Importer {
	return &Importer{
		registry:   registry,
		factory:    factory,
		rows:       rows,
		logger:     log,
		repository: repositoryUUID,
	}
}

// Options adjust one import run.
type Options struct {
	// Policy decides update-vs-skip for rows that already exist locally.
	// Zero means PolicyNewer.
	Policy models.UpdatePolicy

	// Strategy restricts which row operations the run may perform. The zero
	// strategy permits everything.
	Strategy models.SyncStrategy

	// Strict rolls the whole run back when any item fails.
	Strict bool

	// Peer is the uuid of the source repository; empty for API imports.
	Peer string

	// Master marks the source repository as the designated master for the
	// imported resources, unlocking updates under PolicyMaster.
	Master bool
}

func (o *Options) normalize() {
	if o.Policy == "" {
		o.Policy = models.PolicyNewer
	}
	if !o.Strategy.Create && !o.Strategy.Update && !o.Strategy.Delete {
		o.Strategy = models.SyncStrategy{Create: true, Update: true, Delete: true}
	}
}

// item is one resource element in flattened document order.
type item struct {
	index int
	elem  *models.ResourceElement
	tbl   *schema.Table

	parent *item
	comp   *schema.Component

	rec    *models.Record
	done   bool
	failed bool
}

// run carries the per-invocation state of one import.
type run struct {
	im     *Importer
	actor  models.Actor
	doc    *models.Document
	opts   Options
	report *models.ImportReport

	items  []*item
	byTUID map[string]*item
	byUUID map[string]*item

	// naturalKeys maps table+key to the uuid that first claimed it, for
	// in-payload duplicate detection.
	naturalKeys map[string]string

	resources map[string]*resource.Resource
	rows      *store.RowStore
	tx        *sql.Tx
}

// Run imports a canonical document. The returned report is non-nil even on
// error; in strict mode a failed run returns ErrStrictRunAborted and the
// transaction is rolled back.
func (im *Importer) Run(ctx context.Context, actor models.Actor, doc *models.Document, opts Options) (*models.ImportReport, error) {
	log := logger.FromContext(ctx)
	opts.normalize()

	report := &models.ImportReport{}
	if len(doc.Resources) == 0 {
		return report, ErrEmptyDocument
	}

	tx, err := im.rows.Begin(ctx)
	if err != nil {
		return report, err
	}
	defer tx.Rollback()

	r := &run{
		im:          im,
		actor:       actor,
		doc:         doc,
		opts:        opts,
		report:      report,
		byTUID:      make(map[string]*item),
		byUUID:      make(map[string]*item),
		naturalKeys: make(map[string]string),
		resources:   make(map[string]*resource.Resource),
		rows:        im.rows.WithTx(tx),
		tx:          tx,
	}

	r.flatten()

	if err = r.process(ctx); err != nil {
		return report, err
	}

	if opts.Strict && len(report.Errors) > 0 {
		return report, ErrStrictRunAborted
	}

	if err = tx.Commit(); err != nil {
		return report, fmt.Errorf("%w: %w", store.ErrCommitingTransaction, err)
	}

	log.Info().
		Str("func", "Importer.Run").
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("deleted", report.Deleted).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Msg("import run finished")
	return report, nil
}

// flatten walks the document tree in pre-order, binding each element to its
// table and its parent join. Unknown tables and uuid collisions across
// tables fail the item during the walk.
func (r *run) flatten() {
	index := 0
	var walk func(elem *models.ResourceElement, parent *item)
	walk = func(elem *models.ResourceElement, parent *item) {
		it := &item{index: index, elem: elem, parent: parent}
		index++

		tbl, err := r.im.registry.Lookup(elem.Name)
		if err != nil {
			r.fail(it, models.KindUnknownResource, "", elem.Name)
			return
		}
		it.tbl = tbl

		if parent != nil {
			it.comp = componentByTable(parent.tbl, elem.Name)
		}

		if elem.UUID != "" {
			if prev, seen := r.byUUID[elem.UUID]; seen && prev.tbl.Name != tbl.Name {
				r.fail(it, models.KindIdentity,
					"", fmt.Sprintf("uuid %s already claimed by %s", elem.UUID, prev.tbl.Name))
				return
			}
			if _, seen := r.byUUID[elem.UUID]; !seen {
				r.byUUID[elem.UUID] = it
			}
		}
		if elem.TUID != "" {
			if _, seen := r.byTUID[elem.TUID]; seen {
				r.fail(it, models.KindIdentity, "", fmt.Sprintf("tuid %s declared twice", elem.TUID))
				return
			}
			r.byTUID[elem.TUID] = it
		}

		r.items = append(r.items, it)
		for i := range elem.Resources {
			walk(&elem.Resources[i], it)
		}
	}

	for i := range r.doc.Resources {
		walk(&r.doc.Resources[i], nil)
	}
}

// process runs the item queue twice: the second pass resolves forward
// declarations; whatever is still deferred afterwards is reported as
// unresolved.
func (r *run) process(ctx context.Context) error {
	pending := r.items

	for pass := 0; pass < 2 && len(pending) > 0; pass++ {
		var deferred []*item
		for _, it := range pending {
			wait, err := r.processItem(ctx, it)
			if err != nil {
				return err
			}
			if wait {
				deferred = append(deferred, it)
			}
		}
		pending = deferred
	}

	for _, it := range pending {
		r.fail(it, models.KindUnresolvedReference, "", "unresolved after retry pass")
	}
	return nil
}

// processItem handles one element. The wait return asks for a retry in the
// next pass; a non-nil error aborts the whole run.
func (r *run) processItem(ctx context.Context, it *item) (bool, error) {
	if it.done || it.failed {
		return false, nil
	}

	if it.parent != nil {
		if it.parent.failed {
			r.fail(it, models.KindUnresolvedReference, "", "parent item failed")
			return false, nil
		}
		if !it.parent.done {
			return true, nil
		}
		if it.parent.rec == nil {
			r.fail(it, models.KindUnresolvedReference, "", "parent item not materialized")
			return false, nil
		}
	}

	values, err := serializer.DecodeData(it.tbl, it.elem)
	if err != nil {
		r.fail(it, models.KindValidation, "", err.Error())
		return false, nil
	}

	wait, ok := r.resolveReferences(ctx, it, values)
	if wait {
		return true, nil
	}
	if !ok {
		return false, nil
	}

	if it.parent != nil && it.comp != nil && it.comp.JoinField != "" {
		values[it.comp.JoinField] = it.parent.rec.ID
	}

	existing, err := r.locate(ctx, it, values)
	if errors.Is(err, errSkipItem) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if it.elem.Deleted {
		return false, r.executeDelete(ctx, it, existing)
	}

	if existing == nil {
		return false, r.executeCreate(ctx, it, values)
	}
	return false, r.executeUpdate(ctx, it, existing, values)
}

// resolveReferences rewrites reference elements into field values. The wait
// return defers the item for the retry pass.
func (r *run) resolveReferences(ctx context.Context, it *item, values map[string]any) (wait bool, ok bool) {
	for _, ref := range it.elem.References {
		switch {
		case ref.UUID != "":
			target, err := r.im.registry.Lookup(ref.Resource)
			if err != nil {
				r.fail(it, models.KindUnresolvedReference, ref.Field, "unknown target "+ref.Resource)
				return false, false
			}
			row, err := r.rows.LoadByUUID(ctx, target, ref.UUID)
			if err == nil {
				values[ref.Field] = row.ID
				continue
			}
			if !store.IsNotFound(err) {
				r.fail(it, models.KindUnresolvedReference, ref.Field, err.Error())
				return false, false
			}
			// referent may appear later in this payload
			if other, inPayload := r.byUUID[ref.UUID]; inPayload && other != it {
				if other.failed {
					r.fail(it, models.KindUnresolvedReference, ref.Field, "referent item failed")
					return false, false
				}
				return true, false
			}
			r.fail(it, models.KindUnresolvedReference, ref.Field, "uuid "+ref.UUID+" not found")
			return false, false

		case ref.TUID != "":
			other, inPayload := r.byTUID[ref.TUID]
			if !inPayload {
				r.fail(it, models.KindUnresolvedReference, ref.Field, "tuid "+ref.TUID+" not declared")
				return false, false
			}
			if other.failed {
				r.fail(it, models.KindUnresolvedReference, ref.Field, "referent item failed")
				return false, false
			}
			if !other.done {
				return true, false
			}
			values[ref.Field] = other.rec.ID

		case ref.ID != 0:
			if r.doc.Repository == "" || r.doc.Repository != r.im.repository {
				r.fail(it, models.KindUnresolvedReference, ref.Field, "numeric id from foreign repository")
				return false, false
			}
			values[ref.Field] = ref.ID

		default:
			r.fail(it, models.KindUnresolvedReference, ref.Field, "reference carries no identity")
			return false, false
		}
	}
	return false, true
}

// locate finds the existing row the element addresses: by uuid first, then
// by the declared natural key. Payload-internal natural-key duplicates fail
// the later item before it can be mistaken for an update.
func (r *run) locate(ctx context.Context, it *item, values map[string]any) (*models.Record, error) {
	if it.elem.UUID != "" {
		row, err := r.rows.LoadByUUID(ctx, it.tbl, it.elem.UUID)
		if err == nil {
			r.claimNaturalKey(it, row.UUID)
			return row, nil
		}
		if !store.IsNotFound(err) {
			return nil, err
		}
	}

	if len(it.tbl.NaturalKey) == 0 {
		return nil, nil
	}

	key, complete := naturalKeyOf(it.tbl, values)
	if !complete {
		return nil, nil
	}

	claimedBy, claimed := r.naturalKeys[key]
	if claimed && claimedBy != it.elem.UUID {
		r.fail(it, models.KindDuplicateNaturalKey, it.tbl.NaturalKey[0],
			"natural key already claimed in payload")
		return nil, errSkipItem
	}

	fields := make(map[string]any, len(it.tbl.NaturalKey))
	for _, f := range it.tbl.NaturalKey {
		fields[f] = values[f]
	}
	row, err := r.rows.FindByFields(ctx, it.tbl, fields)
	if err == nil {
		r.naturalKeys[key] = row.UUID
		return row, nil
	}
	if !store.IsNotFound(err) {
		return nil, err
	}
	return nil, nil
}

// errSkipItem is an internal marker: the item already failed and the run
// should continue with the next one.
var errSkipItem = errors.New("item skipped")

func (r *run) executeCreate(ctx context.Context, it *item, values map[string]any) error {
	if !r.opts.Strategy.Create {
		r.report.Skipped++
		it.done = true
		return nil
	}

	rec := &models.Record{Table: it.tbl.Name, Values: values}
	rec.UUID = it.elem.UUID
	rec.ModifiedByPeer = r.opts.Peer
	if t, ok := parseTime(it.elem.CreatedOn); ok {
		rec.CreatedOn = t
	}
	if t, ok := it.elem.ModifiedTime(); ok {
		rec.ModifiedOn = t
	}

	if err := r.resource(it.tbl).Create(ctx, r.actor, rec); err != nil {
		return r.failOnExecute(it, err)
	}

	r.claimNaturalKey(it, it.elem.UUID)
	it.rec = rec
	it.done = true
	r.report.Created++
	return nil
}

func (r *run) executeUpdate(ctx context.Context, it *item, existing *models.Record, values map[string]any) error {
	payloadMod, hasMod := it.elem.ModifiedTime()

	update, conflict := r.decideUpdate(payloadMod, hasMod, existing)
	if !update {
		if conflict {
			r.fail(it, models.KindConflict, "",
				fmt.Sprintf("policy %s keeps local row", r.opts.Policy))
		} else {
			r.report.Skipped++
		}
		it.rec = existing
		it.done = !conflict
		return nil
	}

	if !r.opts.Strategy.Update {
		r.report.Skipped++
		it.rec = existing
		it.done = true
		return nil
	}

	opts := store.UpdateOpts{Peer: r.opts.Peer}
	if hasMod {
		opts.ModifiedOn = payloadMod
	}
	if err := r.resource(it.tbl).Update(ctx, r.actor, existing.ID, values, opts); err != nil {
		return r.failOnExecute(it, err)
	}

	it.rec = existing
	it.done = true
	r.report.Updated++
	return nil
}

func (r *run) executeDelete(ctx context.Context, it *item, existing *models.Record) error {
	if existing == nil || existing.Deleted {
		r.report.Skipped++
		it.done = true
		return nil
	}
	if !r.opts.Strategy.Delete {
		r.report.Skipped++
		it.rec = existing
		it.done = true
		return nil
	}

	if err := r.resource(it.tbl).Delete(ctx, r.actor, existing.ID); err != nil {
		return r.failOnExecute(it, err)
	}

	it.rec = existing
	it.done = true
	r.report.Deleted++
	return nil
}

// decideUpdate applies the update policy. conflict is set when an
// otherwise-valid update (payload strictly newer) is rejected by policy.
func (r *run) decideUpdate(payloadMod time.Time, hasMod bool, existing *models.Record) (update bool, conflict bool) {
	newer := hasMod && payloadMod.After(existing.ModifiedOn)

	switch r.opts.Policy {
	case models.PolicyThis:
		return false, newer
	case models.PolicyMaster:
		if r.opts.Master {
			return true, false
		}
		return false, newer
	case models.PolicyOther:
		if r.opts.Peer != existing.ModifiedByPeer {
			return true, false
		}
		return false, newer
	default:
		return newer, false
	}
}

// failOnExecute classifies a resource-layer failure into an item error.
// Storage failures abort the run: the transaction may already be poisoned.
func (r *run) failOnExecute(it *item, err error) error {
	var vErr *resource.ValidationError
	switch {
	case errors.As(err, &vErr):
		for field, msg := range vErr.Fields {
			r.fail(it, models.KindValidation, field, msg)
		}
		return nil
	case errors.Is(err, resource.ErrAuthRequired) || errors.Is(err, resource.ErrPermissionDenied):
		r.fail(it, models.KindAuth, "", err.Error())
		return nil
	default:
		return err
	}
}

func (r *run) fail(it *item, kind models.ErrorKind, field, detail string) {
	it.failed = true
	r.report.Errors = append(r.report.Errors, models.ItemError{
		RowIndex: it.index,
		Kind:     kind,
		Field:    field,
		Detail:   detail,
	})
}

func (r *run) claimNaturalKey(it *item, uuid string) {
	if len(it.tbl.NaturalKey) == 0 {
		return
	}
	values := make(map[string]any, len(it.tbl.NaturalKey))
	for _, f := range it.tbl.NaturalKey {
		if v, ok := it.elem.DataValue(f); ok {
			values[f] = v
		}
	}
	if key, complete := naturalKeyOf(it.tbl, values); complete {
		if _, claimed := r.naturalKeys[key]; !claimed {
			r.naturalKeys[key] = uuid
		}
	}
}

// resource returns the tx-bound resource for tbl, constructing it once per
// run.
func (r *run) resource(tbl *schema.Table) *resource.Resource {
	if res, ok := r.resources[tbl.Name]; ok {
		return res
	}
	res := r.im.factory.ForTable(tbl).WithTx(r.tx)
	r.resources[tbl.Name] = res
	return res
}

// componentByTable finds the parent's component declaration whose child
// table matches the nested element.
func componentByTable(parent *schema.Table, table string) *schema.Component {
	for i := range parent.Components {
		if parent.Components[i].Table == table {
			return &parent.Components[i]
		}
	}
	return nil
}

// naturalKeyOf renders the natural-key tuple of values into a map key.
// complete is false when any key field is absent.
func naturalKeyOf(tbl *schema.Table, values map[string]any) (string, bool) {
	parts := make([]string, 0, len(tbl.NaturalKey)+1)
	parts = append(parts, tbl.Name)
	for _, f := range tbl.NaturalKey {
		v, ok := values[f]
		if !ok || v == nil {
			return "", false
		}
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return strings.Join(parts, "\x00"), true
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(models.MetaTimeFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
