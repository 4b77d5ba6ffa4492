package filter

import (
	"errors"

	"github.com/roach88/sieve/internal/ir"
)

// Entity is anything a filter can be applied to.
type Entity interface {
	// Name identifies the entity type, e.g. "users".
	Name() string
}

// Searchable entities restrict filtering to a whitelist of keys.
// Entities that do not implement it accept any key.
type Searchable interface {
	Entity

	// SearchAttributes returns the effective whitelist.
	SearchAttributes() []string

	// AddSearchAttribute whitelists name for this entity.
	AddSearchAttribute(name string)
}

// RelationResolver is implemented by entities whose relations are resolved
// and can validate relation-qualified keys against the related entity's own
// whitelist.
type RelationResolver interface {
	ResolvedRelation(name string) (Entity, bool)
}

// QueryAdapter receives the predicates a filter compiles to.
//
// Every call joins its predicate to the preceding ones with boolean.
// WhereGroup and HasRelation pass a nested adapter to build; the nested
// adapter's Entity is the related entity for HasRelation.
type QueryAdapter interface {
	Entity() Entity
	Where(field string, op Operator, value ir.IRValue, boolean Boolean) error
	WhereIn(field string, values ir.IRArray, boolean Boolean) error
	WhereNotIn(field string, values ir.IRArray, boolean Boolean) error
	WhereGroup(boolean Boolean, build func(QueryAdapter) error) error
	HasRelation(relation string, cmp Operator, count int, boolean Boolean, build func(QueryAdapter) error) error
}

// Adapters return these when a field or relation has no mapping. The
// compiler reports them as disallowed keys.
var (
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownRelation = errors.New("unknown relation")
)
