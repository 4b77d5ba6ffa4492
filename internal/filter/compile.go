package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/sieve/internal/ir"
)

// DefaultMaxDepth bounds filter nesting when no limit is configured.
const DefaultMaxDepth = 32

// Compiler turns client filters into QueryAdapter calls.
//
// A Compiler holds no per-call state and is safe for concurrent use.
type Compiler struct {
	// MaxDepth is the deepest object/array nesting accepted.
	// Zero or negative means DefaultMaxDepth.
	MaxDepth int
}

// NewCompiler creates a compiler with the given depth limit.
func NewCompiler(maxDepth int) *Compiler {
	return &Compiler{MaxDepth: maxDepth}
}

func (c *Compiler) maxDepth() int {
	if c == nil || c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}

// Prepare checks depth and whitelist, then returns the canonical form of
// filters. Nothing is emitted.
func (c *Compiler) Prepare(entity Entity, filters ir.IRObject) (ir.IRObject, error) {
	max := c.maxDepth()
	if ir.Depth(filters, max) > max {
		return nil, DepthExceeded(max)
	}
	if err := ValidateSearchKeys(entity, filters); err != nil {
		return nil, err
	}
	return Normalize(filters), nil
}

// Apply compiles filters directly into q. On a validation error nothing has
// been emitted.
func (c *Compiler) Apply(q QueryAdapter, filters ir.IRObject) error {
	normalized, err := c.Prepare(q.Entity(), filters)
	if err != nil {
		return err
	}
	return compileFilter(q, normalized, And, "")
}

// ApplyOnQuery compiles filters inside one and-joined group on q, isolating
// them from predicates q already carries.
func (c *Compiler) ApplyOnQuery(q QueryAdapter, filters ir.IRObject) error {
	normalized, err := c.Prepare(q.Entity(), filters)
	if err != nil {
		return err
	}
	return q.WhereGroup(And, func(nested QueryAdapter) error {
		return compileFilter(nested, normalized, And, "")
	})
}

// compileFilter walks a filter object with no field context.
func compileFilter(q QueryAdapter, filters ir.IRObject, boolean Boolean, path string) error {
	for _, p := range filters {
		at := join(path, p.Key)

		op, isOp := Canonicalize(p.Key)
		switch {
		case isOp && op.IsLogical():
			if err := checkShape(op, p.Value, at); err != nil {
				return err
			}
			value := p.Value
			err := q.WhereGroup(Boolean(op), func(nested QueryAdapter) error {
				return compileLogical(nested, value, Boolean(op), at)
			})
			if err != nil {
				return err
			}
		case isOp:
			return missingSearchKey(at, p.Key)
		default:
			if err := compileField(q, p.Key, p.Value, boolean, at); err != nil {
				return err
			}
		}
	}
	return nil
}

func compileLogical(q QueryAdapter, value ir.IRValue, boolean Boolean, path string) error {
	switch v := value.(type) {
	case ir.IRArray:
		for i, elem := range v {
			obj, ok := elem.(ir.IRObject)
			if !ok {
				return invalidValue(index(path, i))
			}
			if err := compileFilter(q, obj, boolean, index(path, i)); err != nil {
				return err
			}
		}
		return nil
	case ir.IRObject:
		return compileFilter(q, v, boolean, path)
	default:
		return notAnArray(path)
	}
}

// compileField walks the operator object under field.
func compileField(q QueryAdapter, field string, value ir.IRValue, boolean Boolean, path string) error {
	ops, ok := value.(ir.IRObject)
	if !ok {
		return applyField(q, field, OpEq, value, boolean, path)
	}

	for _, p := range ops {
		op, ok := Canonicalize(p.Key)
		if !ok {
			return invalidOperator(join(path, p.Key), p.Key)
		}
		if !op.IsLogical() {
			if err := applyField(q, field, op, p.Value, boolean, path); err != nil {
				return err
			}
			continue
		}

		at := join(path, p.Key)
		if err := checkShape(op, p.Value, at); err != nil {
			return err
		}
		operand := p.Value
		err := q.WhereGroup(Boolean(op), func(nested QueryAdapter) error {
			return compileFieldLogical(nested, field, operand, Boolean(op), at)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func compileFieldLogical(q QueryAdapter, field string, value ir.IRValue, boolean Boolean, path string) error {
	switch v := value.(type) {
	case ir.IRArray:
		for i, elem := range v {
			if err := compileField(q, field, elem, boolean, index(path, i)); err != nil {
				return err
			}
		}
		return nil
	case ir.IRObject:
		return compileField(q, field, v, boolean, path)
	default:
		return notAnArray(path)
	}
}

// applyField emits the predicate for one field operator. A relation-qualified
// field becomes an existence test on the relation, compiled recursively
// against the remainder of the path.
func applyField(q QueryAdapter, field string, op Operator, value ir.IRValue, boolean Boolean, path string) error {
	if err := checkShape(op, value, path); err != nil {
		return err
	}

	if relation, rest, ok := strings.Cut(field, ":"); ok {
		err := q.HasRelation(relation, OpGte, 1, boolean, func(nested QueryAdapter) error {
			return applyField(nested, rest, op, value, And, path)
		})
		return adapterError(err, path, field)
	}

	var err error
	switch op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpLike:
		err = q.Where(field, op, value, boolean)
	case OpStartsWith, OpContains, OpEndsWith:
		s, convErr := ir.PrimitiveString(value)
		if convErr != nil {
			return invalidValue(path)
		}
		err = q.Where(field, OpLike, ir.IRString(likePattern(op, s)), boolean)
	case OpIn:
		err = q.WhereIn(field, value.(ir.IRArray), boolean)
	case OpNin:
		err = q.WhereNotIn(field, value.(ir.IRArray), boolean)
	default:
		return invalidOperator(path, string(op))
	}
	return adapterError(err, path, field)
}

// likePattern wraps s in wildcards. Wildcards inside s are left as is.
func likePattern(op Operator, s string) string {
	switch op {
	case OpStartsWith:
		return s + "%"
	case OpEndsWith:
		return "%" + s
	default:
		return "%" + s + "%"
	}
}

// adapterError reports unmapped fields and relations as disallowed keys.
func adapterError(err error, path, field string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsValidationError(err); ok {
		return err
	}
	if errors.Is(err, ErrUnknownField) || errors.Is(err, ErrUnknownRelation) {
		return disallowedKey(path, field)
	}
	return fmt.Errorf("apply %s: %w", field, err)
}
