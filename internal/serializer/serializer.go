// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

// Package serializer translates between stored rows and the canonical XML
// document form exchanged by repositories. Export walks rows and their
// components into a Document tree; Parse is the inverse. Datetimes are
// ISO-8601 UTC with second precision, and reference fields are exported by
// target uuid so documents stay portable across repositories.
package serializer

import (
	"context"
	"fmt"
	"time"

	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/internal/schema"
	"github.com/reliefhub/reliefhub/internal/store"
	"github.com/reliefhub/reliefhub/models"
)

// Serializer renders rows of registered tables into canonical documents.
type Serializer struct {
	registry *schema.Registry
	rows     *store.RowStore
	logger   *logger.Logger

	// repository is the uuid of the local repository, stamped on every
	// exported document.
	repository string

	now func() time.Time
}

// NewSerializer constructs a Serializer for the local repository.
func NewSerializer(registry *schema.Registry, rows *store.RowStore, repositoryUUID string, log *logger.Logger) *Serializer {
	return &Serializer{
		registry:   registry,
		rows:       rows,
		logger:     log,
		repository: repositoryUUID,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// ExportOpts adjusts an export run.
type ExportOpts struct {
	// Components includes component rows as nested resource elements.
	Components bool

	// Transform names a registered transform applied to the finished tree;
	// empty means none.
	Transform string
}

// Export renders the given rows of tbl into a canonical document.
// Reference fields resolve to the target row's uuid; uuid lookups are
// cached for the duration of the run.
func (s *Serializer) Export(ctx context.Context, tbl *schema.Table, records []models.Record, opts ExportOpts) (*models.Document, error) {
	doc := models.NewDocument(s.repository, s.now())

	cache := newUUIDCache()
	for i := range records {
		elem, err := s.exportRecord(ctx, tbl, &records[i], opts.Components, cache)
		if err != nil {
			return nil, err
		}
		doc.Resources = append(doc.Resources, *elem)
	}

	if opts.Transform != "" {
		transform, err := LookupTransform(opts.Transform)
		if err != nil {
			return nil, err
		}
		return transform.Apply(doc)
	}

	return doc, nil
}

func (s *Serializer) exportRecord(ctx context.Context, tbl *schema.Table, rec *models.Record, components bool, cache *uuidCache) (*models.ResourceElement, error) {
	elem := models.ResourceElement{
		Name:       tbl.Name,
		UUID:       rec.UUID,
		CreatedOn:  rec.CreatedOn.UTC().Format(models.MetaTimeFormat),
		ModifiedOn: rec.ModifiedOn.UTC().Format(models.MetaTimeFormat),
		Deleted:    rec.Deleted,
	}

	if rec.Deleted {
		// tombstones carry identity only
		return &elem, nil
	}

	for _, f := range tbl.Fields {
		if !f.Readable {
			continue
		}
		v, ok := rec.Value(f.Name)
		if !ok {
			continue
		}

		if f.Type == schema.TypeReference {
			ref, err := s.exportReference(ctx, &f, v, cache)
			if err != nil {
				return nil, err
			}
			if ref != nil {
				elem.References = append(elem.References, *ref)
			}
			continue
		}

		data := models.DataElement{Field: f.Name}
		if f.Type == schema.TypeText {
			data.Text = FormatValue(f.Type, v)
		} else {
			data.Value = FormatValue(f.Type, v)
		}
		elem.Data = append(elem.Data, data)
	}

	if components {
		for i := range tbl.Components {
			comp := &tbl.Components[i]
			if comp.JoinField == "" {
				continue
			}
			children, err := s.componentRows(ctx, comp, rec.ID)
			if err != nil {
				return nil, err
			}
			childTbl, err := s.registry.Lookup(comp.Table)
			if err != nil {
				return nil, err
			}
			for j := range children {
				childElem, err := s.exportRecord(ctx, childTbl, &children[j], false, cache)
				if err != nil {
					return nil, err
				}
				// the nesting itself carries the parent join
				childElem.References = dropReference(childElem.References, comp.JoinField)
				elem.Resources = append(elem.Resources, *childElem)
			}
		}
	}

	return &elem, nil
}

// exportReference renders a reference field by the target row's uuid.
// References to rows that no longer resolve are exported by raw id so the
// receiving side can flag them instead of silently dropping the field.
func (s *Serializer) exportReference(ctx context.Context, f *schema.Field, v any, cache *uuidCache) (*models.ReferenceElement, error) {
	id, ok := v.(int64)
	if !ok || id == 0 {
		return nil, nil
	}

	ref := models.ReferenceElement{Field: f.Name, Resource: f.References}

	if uuid, hit := cache.get(f.References, id); hit {
		ref.UUID = uuid
		return &ref, nil
	}

	target, err := s.registry.Lookup(f.References)
	if err != nil {
		return nil, err
	}

	row, err := s.rows.Load(ctx, target, id)
	if err != nil {
		if store.IsNotFound(err) {
			ref.ID = id
			return &ref, nil
		}
		return nil, fmt.Errorf("resolving reference %s: %w", f.Name, err)
	}

	cache.put(f.References, id, row.UUID)
	ref.UUID = row.UUID
	return &ref, nil
}

func (s *Serializer) componentRows(ctx context.Context, comp *schema.Component, parentID int64) ([]models.Record, error) {
	childTbl, err := s.registry.Lookup(comp.Table)
	if err != nil {
		return nil, err
	}
	return s.rows.Select(ctx, childTbl, models.Query{
		Filter: models.Filter(comp.JoinField, models.OpEqual, parentID),
	})
}

func dropReference(refs []models.ReferenceElement, field string) []models.ReferenceElement {
	out := refs[:0]
	for _, r := range refs {
		if r.Field != field {
			out = append(out, r)
		}
	}
	return out
}

// uuidCache memoizes reference-target uuid lookups within one export run.
type uuidCache struct {
	byTable map[string]map[int64]string
}

func newUUIDCache() *uuidCache {
	return &uuidCache{byTable: make(map[string]map[int64]string)}
}

func (c *uuidCache) get(table string, id int64) (string, bool) {
	uuid, ok := c.byTable[table][id]
	return uuid, ok
}

func (c *uuidCache) put(table string, id int64, uuid string) {
	if c.byTable[table] == nil {
		c.byTable[table] = make(map[int64]string)
	}
	c.byTable[table][id] = uuid
}
