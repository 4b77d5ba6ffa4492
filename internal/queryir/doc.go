// Package queryir provides a backend-neutral intermediate representation of
// compiled filters.
//
// QueryIR is the abstraction boundary between the filter compiler and the
// query backends. The compiler emits against filter.QueryAdapter; the Builder
// in this package implements that adapter and records what it receives as IR.
// Backends (see querysql) render the IR.
//
//	[filter tree] → filter.Compiler → [Builder] → [Query IR] → [SQL Backend]
//
// FIELDS AND RELATIONS:
//
// The Builder resolves every API field name to a column, and every relation
// name to a Link, through its Source. Unknown names fail with
// filter.ErrUnknownField or filter.ErrUnknownRelation, which the compiler
// reports as disallowed keys. A key that passed the whitelist but has no
// column is therefore still rejected; the IR never carries a client string
// as an identifier.
//
// BOOLEAN SEQUENCES:
//
// A clause list is a flat sequence in which every clause carries the boolean
// joining it to its predecessor. The first clause's boolean is ignored.
// Groups parenthesize their clauses:
//
//	[a =1 (and), Group{b=2 (or), c=3 (or)} (or)]
//
// renders as
//
//	a = ? OR (b = ? OR c = ?)
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only types
// in this package implement it, which keeps backend type switches exhaustive:
//
//	switch p := pred.(type) {
//	case Comparison:
//	case Membership:
//	case Group:
//	case Exists:
//	}
//
// Literal values are ir.IRValue primitives; backends convert them to
// parameters and never interpolate them.
package queryir
