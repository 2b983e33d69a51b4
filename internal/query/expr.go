// Package query builds store-agnostic filter expressions for log listings.
//
// An expression is a tree of Cond leaves joined by And / Or nodes. Each store
// backend translates the tree into its own dialect (SQL, BSON, in-memory match)
// so tenant scoping and filter composition live in exactly one place.
package query

import "time"

// Field names a queryable attribute of a log entry using its API spelling.
type Field string

// Queryable fields.
const (
	FieldID             Field = "id"
	FieldOrganizationID Field = "organizationId"
	FieldAction         Field = "action"
	FieldEventType      Field = "eventType"
	FieldDescription    Field = "description"
	FieldActorID        Field = "actor.id"
	FieldActorName      Field = "actor.name"
	FieldActorEmail     Field = "actor.email"
	FieldTimestamp      Field = "timestamp"
	FieldCreatedAt      Field = "createdAt"
)

// Op is a comparison operator.
type Op int

// Comparison operators.
const (
	OpEq Op = iota
	OpContainsFold
	OpGt
	OpLt
	OpGte
)

// String returns the operator's symbol.
func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpContainsFold:
		return "~*"
	case OpGt:
		return ">"
	case OpLt:
		return "<"
	case OpGte:
		return ">="
	}

	return "?"
}

// Expr is a node of a filter expression tree.
type Expr interface {
	expr()
}

// Cond compares one field against a value.
type Cond struct {
	Field Field
	Op    Op
	Value any
}

// And matches when every child matches. An empty And matches everything.
type And []Expr

// Or matches when any child matches. An empty Or matches nothing.
type Or []Expr

func (Cond) expr() {}
func (And) expr()  {}
func (Or) expr()   {}

// Eq returns field == value.
func Eq(field Field, value any) Cond { return Cond{Field: field, Op: OpEq, Value: value} }

// ContainsFold returns a case-insensitive substring match.
func ContainsFold(field Field, value string) Cond {
	return Cond{Field: field, Op: OpContainsFold, Value: value}
}

// Gt returns field > value.
func Gt(field Field, value any) Cond { return Cond{Field: field, Op: OpGt, Value: value} }

// Lt returns field < value.
func Lt(field Field, value any) Cond { return Cond{Field: field, Op: OpLt, Value: value} }

// Gte returns field >= value.
func Gte(field Field, value any) Cond { return Cond{Field: field, Op: OpGte, Value: value} }

// Since returns createdAt >= t, the anomaly window predicate.
func Since(t time.Time) Cond { return Gte(FieldCreatedAt, t) }

// Sort orders results by one field.
type Sort struct {
	Field Field
	Desc  bool
}

// FindOptions carries sort, skip and limit for a find call.
type FindOptions struct {
	Sort  []Sort
	Skip  int
	Limit int
}
