package queryir

import (
	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
)

// Predicate is a single condition in a clause list.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Clause joins a predicate to the clause before it.
type Clause struct {
	Boolean   filter.Boolean
	Predicate Predicate
}

// Select is a filtered read of one source.
//
// Semantics:
//
//	SELECT <from>.* FROM <from> WHERE <where> ORDER BY <from>.<primary key>
//	LIMIT <limit> OFFSET <offset>
//
// Limit 0 means no limit.
type Select struct {
	From       string
	PrimaryKey string
	Where      []Clause
	Limit      uint64
	Offset     uint64
}

// Comparison compares a column with a literal.
//
// Operator is one of =, !=, <, <=, >, >=, like.
type Comparison struct {
	Column   string
	Operator filter.Operator
	Value    ir.IRValue
}

func (Comparison) predicateNode() {}

// Membership tests a column against a list of literals.
//
// An empty list never matches; an empty negated list always matches.
type Membership struct {
	Column  string
	Values  ir.IRArray
	Negated bool
}

func (Membership) predicateNode() {}

// Group parenthesizes a clause list.
//
// An empty group contributes nothing and is dropped by backends.
type Group struct {
	Clauses []Clause
}

func (Group) predicateNode() {}

// Exists quantifies over the rows reachable through a relation.
//
// Semantics:
//
//	(SELECT COUNT(*) FROM <target> WHERE <target>.<fk> = <parent>.<lk> AND <clauses>) <comparator> <count>
//
// Comparator ">=" with Count 1 is plain existence.
type Exists struct {
	Link       Link
	Comparator filter.Operator
	Count      int
	Clauses    []Clause
}

func (Exists) predicateNode() {}

// Link describes how a relation joins its parent to its target.
// Rows match when target.ForeignKey = parent.LocalKey.
type Link struct {
	Name       string
	LocalKey   string
	ForeignKey string
	Target     Source
}

// Source is an entity backed by a table.
type Source interface {
	filter.Entity

	// Table returns the table name.
	Table() string

	// PrimaryKey returns the column used for stable ordering.
	PrimaryKey() string

	// Column maps an API field name to a column.
	Column(field string) (string, bool)

	// Relation looks up a relation by name.
	Relation(name string) (Link, bool)
}
