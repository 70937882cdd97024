// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package models

// Operator enumerates the comparison operators accepted in a filter node.
type Operator string

const (
	OpEqual      Operator = "eq"
	OpNotEqual   Operator = "ne"
	OpLess       Operator = "lt"
	OpLessEq     Operator = "le"
	OpGreater    Operator = "gt"
	OpGreaterEq  Operator = "ge"
	OpIn         Operator = "in"
	OpLike       Operator = "like"
	OpStartsWith Operator = "sw"
	// OpBelongs matches rows whose hierarchy field places them under the
	// given ancestor id (the table must declare a parent field).
	OpBelongs Operator = "belongs"
)

// FilterNode is one node of a filter tree: either a leaf comparison
// (Field, Op, Value) or a boolean combination of child nodes.
type FilterNode struct {
	Field string
	Op    Operator
	Value any

	And []*FilterNode
	Or  []*FilterNode
}

// Leaf reports whether the node is a plain comparison.
func (n *FilterNode) Leaf() bool {
	return len(n.And) == 0 && len(n.Or) == 0
}

// Filter builds a leaf comparison node.
func Filter(field string, op Operator, value any) *FilterNode {
	return &FilterNode{Field: field, Op: op, Value: value}
}

// AllOf combines nodes conjunctively.
func AllOf(nodes ...*FilterNode) *FilterNode {
	return &FilterNode{And: nodes}
}

// AnyOf combines nodes disjunctively.
func AnyOf(nodes ...*FilterNode) *FilterNode {
	return &FilterNode{Or: nodes}
}

// SortSpec orders a selection by one field.
type SortSpec struct {
	Field string
	Desc  bool
}

// Page limits a selection. A zero Limit means no limit.
type Page struct {
	Start uint64
	Limit uint64
}

// Query bundles the select arguments of a resource operation.
// IncludeDeleted lifts the default non-deleted filter.
type Query struct {
	Fields         []string
	Filter         *FilterNode
	Sort           []SortSpec
	Page           Page
	IncludeDeleted bool
}
