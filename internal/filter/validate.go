package filter

import (
	"strings"

	"github.com/roach88/sieve/internal/ir"
)

// ValidateSearchKeys checks every key of filters against the entity's
// whitelist and the operator grammar, stopping at the first violation.
//
// Entities that are not Searchable are not checked at all.
//
// A relation-qualified key ("orders:status") is checked against the related
// entity's whitelist when the entity resolves the relation; otherwise the
// full key must be whitelisted literally.
func ValidateSearchKeys(entity Entity, filters ir.IRObject) error {
	s, ok := entity.(Searchable)
	if !ok {
		return nil
	}
	return validateFilter(s, filters, "")
}

func validateFilter(entity Searchable, filters ir.IRObject, path string) error {
	for _, p := range filters {
		at := join(path, p.Key)

		op, isOp := Canonicalize(p.Key)
		switch {
		case isOp && op.IsLogical():
			if err := validateLogical(entity, op, p.Value, at); err != nil {
				return err
			}
		case isOp:
			return missingSearchKey(at, p.Key)
		default:
			if !keyAllowed(entity, p.Key) {
				return disallowedKey(at, p.Key)
			}
			if err := validateFieldValue(p.Value, at); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateLogical checks the operand of a top-level and/or: an array of
// filters, or an object whose members are each a filter.
func validateLogical(entity Searchable, op Operator, value ir.IRValue, path string) error {
	if err := checkShape(op, value, path); err != nil {
		return err
	}
	switch v := value.(type) {
	case ir.IRArray:
		for i, elem := range v {
			obj, ok := elem.(ir.IRObject)
			if !ok {
				return invalidValue(index(path, i))
			}
			if err := validateFilter(entity, obj, index(path, i)); err != nil {
				return err
			}
		}
	case ir.IRObject:
		return validateFilter(entity, v, path)
	}
	return nil
}

// validateFieldValue checks the value under a field key. A non-object is
// shorthand for eq; an object may only contain operators.
func validateFieldValue(value ir.IRValue, path string) error {
	obj, ok := value.(ir.IRObject)
	if !ok {
		return checkShape(OpEq, value, path)
	}

	for _, p := range obj {
		op, ok := Canonicalize(p.Key)
		if !ok {
			return invalidOperator(join(path, p.Key), p.Key)
		}
		if !op.IsLogical() {
			if err := checkShape(op, p.Value, path); err != nil {
				return err
			}
			continue
		}

		at := join(path, p.Key)
		if err := checkShape(op, p.Value, at); err != nil {
			return err
		}
		switch v := p.Value.(type) {
		case ir.IRArray:
			for i, elem := range v {
				if err := validateFieldValue(elem, index(at, i)); err != nil {
					return err
				}
			}
		case ir.IRObject:
			if err := validateFieldValue(v, at); err != nil {
				return err
			}
		}
	}
	return nil
}

func keyAllowed(entity Searchable, key string) bool {
	if relation, rest, ok := strings.Cut(key, ":"); ok {
		if resolver, ok := entity.(RelationResolver); ok {
			if related, ok := resolver.ResolvedRelation(relation); ok {
				s, ok := related.(Searchable)
				if !ok {
					return true
				}
				return keyAllowed(s, rest)
			}
		}
	}
	for _, name := range entity.SearchAttributes() {
		if name == key {
			return true
		}
	}
	return false
}
