package testutil

import "github.com/roach88/sieve/internal/filter"

// PlainEntity is an entity without a whitelist.
type PlainEntity struct {
	EntityName string
}

// Name implements filter.Entity.
func (e PlainEntity) Name() string {
	return e.EntityName
}

// SearchableEntity is an in-memory searchable entity for tests.
//
// Relations listed in Resolved are treated as loaded, so keys through them
// are validated against the related entity's whitelist.
type SearchableEntity struct {
	EntityName string
	Attributes *filter.Attributes
	Resolved   map[string]filter.Entity
}

// NewSearchableEntity creates an entity whose instance whitelist is names.
func NewSearchableEntity(name string, names ...string) *SearchableEntity {
	return &SearchableEntity{
		EntityName: name,
		Attributes: filter.NewInstanceAttributes(nil, names...),
		Resolved:   map[string]filter.Entity{},
	}
}

// WithRelation marks relation as resolved to related.
func (e *SearchableEntity) WithRelation(relation string, related filter.Entity) *SearchableEntity {
	e.Resolved[relation] = related
	return e
}

// Name implements filter.Entity.
func (e *SearchableEntity) Name() string {
	return e.EntityName
}

// SearchAttributes implements filter.Searchable.
func (e *SearchableEntity) SearchAttributes() []string {
	return e.Attributes.Effective()
}

// AddSearchAttribute implements filter.Searchable.
func (e *SearchableEntity) AddSearchAttribute(name string) {
	e.Attributes.Add(name)
}

// ResolvedRelation implements filter.RelationResolver.
func (e *SearchableEntity) ResolvedRelation(name string) (filter.Entity, bool) {
	related, ok := e.Resolved[name]
	return related, ok
}
