// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

// Package schema holds the static registry of entity tables: typed field
// descriptors, declared validators, natural keys, components, and
// super-entity links. The registry is built once at startup; resource
// construction consults it and unknown table names fail fast.
package schema

import (
	"fmt"
	"strings"
)

// FieldType enumerates the value types a field may carry.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeText      FieldType = "text"
	TypeInteger   FieldType = "integer"
	TypeFloat     FieldType = "float"
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeDateTime  FieldType = "datetime"
	TypeReference FieldType = "reference"
)

// Validator checks one field value. Validators run on create and update
// before any write is attempted.
type Validator func(value any) error

// Field describes one column of an entity table.
type Field struct {
	Name     string
	Type     FieldType
	Readable bool
	Writable bool
	Required bool
	Unique   bool

	// References names the target table of a reference field.
	References string

	Validators []Validator
}

// Component declares a child resource reachable from a parent table.
// A direct join sets JoinField (the FK column on the child pointing at the
// parent id); a link-table join sets Link instead.
type Component struct {
	// Name is the component segment used in request paths, e.g. "contact".
	Name  string
	Table string

	JoinField string
	Link      *LinkJoin
}

// LinkJoin describes an indirect component join through a link table:
// primary.id = link.LeftField and link.RightField = secondary.id.
type LinkJoin struct {
	Table      string
	LeftField  string
	RightField string
}

// SuperLink binds a concrete table to its polymorphic super-entity table.
// The instance row carries the super-row id in Key; exactly one concrete
// instance exists per super-key, and the super-row shares the instance's
// lifetime.
type SuperLink struct {
	Table string
	Key   string
}

// Table is the descriptor of one entity table.
type Table struct {
	// Name is the fully-qualified table name, "prefix_name".
	Name string

	Fields []Field

	// NaturalKey lists the fields forming the declared natural key, used
	// by the importer to locate existing rows when no uuid matches.
	NaturalKey []string

	Components []Component

	// Super links the table to its super-entity umbrella table, if any.
	Super *SuperLink

	// HierarchyField names the self-reference field used to expand
	// belongs-to-hierarchy filters.
	HierarchyField string

	// AnonymousRead permits unauthenticated reads of this table.
	AnonymousRead bool

	// HardDelete switches delete semantics from soft to hard for this
	// table (default soft).
	HardDelete bool

	// BlankOnDelete lists identifying fields cleared when a row is
	// soft-deleted.
	BlankOnDelete []string
}

// Prefix returns the module prefix part of the table name
// ("org" for "org_organisation").
func (t *Table) Prefix() string {
	if i := strings.Index(t.Name, "_"); i > 0 {
		return t.Name[:i]
	}
	return t.Name
}

// Field returns the descriptor of the named field.
func (t *Table) Field(name string) (*Field, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// Component returns the declared component with the given name.
func (t *Table) Component(name string) (*Component, bool) {
	for i := range t.Components {
		if t.Components[i].Name == name {
			return &t.Components[i], true
		}
	}
	return nil, false
}

// ReadableFields returns the names of all readable fields in declaration
// order.
func (t *Table) ReadableFields() []string {
	fields := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Readable {
			fields = append(fields, f.Name)
		}
	}
	return fields
}

// Registry maps fully-qualified table names to their descriptors.
type Registry struct {
	tables map[string]*Table
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*Table)}
}

// Register adds a table descriptor. Re-registering a name or registering a
// descriptor with an invalid declaration is a programming error and panics
// during startup rather than surfacing at request time.
func (r *Registry) Register(t *Table) {
	if t.Name == "" {
		panic("schema: table with empty name")
	}
	if _, exists := r.tables[t.Name]; exists {
		panic(fmt.Sprintf("schema: table %q registered twice", t.Name))
	}
	for _, nk := range t.NaturalKey {
		if _, ok := t.Field(nk); !ok {
			panic(fmt.Sprintf("schema: table %q natural key field %q not declared", t.Name, nk))
		}
	}
	for _, c := range t.Components {
		if c.JoinField == "" && c.Link == nil {
			panic(fmt.Sprintf("schema: table %q component %q has no join", t.Name, c.Name))
		}
	}
	r.tables[t.Name] = t
}

// Lookup returns the descriptor for the named table.
func (r *Registry) Lookup(name string) (*Table, error) {
	t, ok := r.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// LookupResource resolves a (prefix, name) request pair, e.g.
// ("org", "organisation") -> org_organisation.
func (r *Registry) LookupResource(prefix, name string) (*Table, error) {
	return r.Lookup(prefix + "_" + name)
}

// Tables returns all registered descriptors keyed by name.
func (r *Registry) Tables() map[string]*Table {
	return r.tables
}
