package queryir

import (
	"fmt"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
)

// Builder records filter predicates as IR. It implements filter.QueryAdapter.
//
// A Builder is not safe for concurrent use; create one per compilation.
type Builder struct {
	src     Source
	clauses []Clause
}

var _ filter.QueryAdapter = (*Builder)(nil)

// NewBuilder creates a builder over src.
func NewBuilder(src Source) *Builder {
	return &Builder{src: src}
}

// Entity implements filter.QueryAdapter.
func (b *Builder) Entity() filter.Entity {
	return b.src
}

// Clauses returns the recorded clauses.
func (b *Builder) Clauses() []Clause {
	return b.clauses
}

// Select returns an unpaged select of the source with the recorded clauses.
func (b *Builder) Select() Select {
	return Select{
		From:       b.src.Table(),
		PrimaryKey: b.src.PrimaryKey(),
		Where:      b.clauses,
	}
}

// Where implements filter.QueryAdapter.
func (b *Builder) Where(field string, op filter.Operator, value ir.IRValue, boolean filter.Boolean) error {
	switch op {
	case filter.OpEq, filter.OpNeq, filter.OpLt, filter.OpLte, filter.OpGt, filter.OpGte, filter.OpLike:
	default:
		return fmt.Errorf("operator %q is not a comparison", op)
	}
	col, err := b.column(field)
	if err != nil {
		return err
	}
	b.add(boolean, Comparison{Column: col, Operator: op, Value: value})
	return nil
}

// WhereIn implements filter.QueryAdapter.
func (b *Builder) WhereIn(field string, values ir.IRArray, boolean filter.Boolean) error {
	return b.membership(field, values, false, boolean)
}

// WhereNotIn implements filter.QueryAdapter.
func (b *Builder) WhereNotIn(field string, values ir.IRArray, boolean filter.Boolean) error {
	return b.membership(field, values, true, boolean)
}

// WhereGroup implements filter.QueryAdapter.
func (b *Builder) WhereGroup(boolean filter.Boolean, build func(filter.QueryAdapter) error) error {
	nested := NewBuilder(b.src)
	if err := build(nested); err != nil {
		return err
	}
	b.add(boolean, Group{Clauses: nested.clauses})
	return nil
}

// HasRelation implements filter.QueryAdapter. The nested builder's source is
// the relation's target.
func (b *Builder) HasRelation(relation string, cmp filter.Operator, count int, boolean filter.Boolean, build func(filter.QueryAdapter) error) error {
	link, ok := b.src.Relation(relation)
	if !ok {
		return fmt.Errorf("%s.%s: %w", b.src.Name(), relation, filter.ErrUnknownRelation)
	}
	switch cmp {
	case filter.OpEq, filter.OpNeq, filter.OpLt, filter.OpLte, filter.OpGt, filter.OpGte:
	default:
		return fmt.Errorf("operator %q cannot compare counts", cmp)
	}

	nested := NewBuilder(link.Target)
	if err := build(nested); err != nil {
		return err
	}
	b.add(boolean, Exists{
		Link:       link,
		Comparator: cmp,
		Count:      count,
		Clauses:    nested.clauses,
	})
	return nil
}

func (b *Builder) membership(field string, values ir.IRArray, negated bool, boolean filter.Boolean) error {
	col, err := b.column(field)
	if err != nil {
		return err
	}
	b.add(boolean, Membership{Column: col, Values: values, Negated: negated})
	return nil
}

func (b *Builder) column(field string) (string, error) {
	col, ok := b.src.Column(field)
	if !ok {
		return "", fmt.Errorf("%s.%s: %w", b.src.Name(), field, filter.ErrUnknownField)
	}
	return col, nil
}

func (b *Builder) add(boolean filter.Boolean, p Predicate) {
	b.clauses = append(b.clauses, Clause{Boolean: boolean, Predicate: p})
}
