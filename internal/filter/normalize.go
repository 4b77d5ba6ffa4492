package filter

import "github.com/roach88/sieve/internal/ir"

// Normalize rewrites filters into canonical form and returns a new tree.
//
// Every field value becomes an operator object ({"name": "bob"} becomes
// {"name": {"eq": "bob"}}), and in every object the and/or entries move to
// the end, keeping their relative order. Primitive elements of in/nin lists
// are never wrapped. Normalize is pure and idempotent.
func Normalize(filters ir.IRObject) ir.IRObject {
	return normalizeFilter(filters)
}

func normalizeFilter(filters ir.IRObject) ir.IRObject {
	out := make(ir.IRObject, 0, len(filters))
	var late ir.IRObject
	for _, p := range filters {
		switch {
		case IsLogicalToken(p.Key):
			late = append(late, ir.O(p.Key, normalizeLogical(p.Value)))
		case IsOperator(p.Key):
			out = append(out, p)
		default:
			out = append(out, ir.O(p.Key, normalizeFieldValue(p.Value)))
		}
	}
	return append(out, late...)
}

func normalizeLogical(value ir.IRValue) ir.IRValue {
	switch v := value.(type) {
	case ir.IRArray:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			if obj, ok := elem.(ir.IRObject); ok {
				arr[i] = normalizeFilter(obj)
			} else {
				arr[i] = elem
			}
		}
		return arr
	case ir.IRObject:
		return normalizeFilter(v)
	default:
		return value
	}
}

func normalizeFieldValue(value ir.IRValue) ir.IRValue {
	obj, ok := value.(ir.IRObject)
	if !ok {
		return ir.IRObject{ir.O("eq", value)}
	}
	return normalizeOperators(obj)
}

func normalizeOperators(ops ir.IRObject) ir.IRObject {
	out := make(ir.IRObject, 0, len(ops))
	var late ir.IRObject
	for _, p := range ops {
		if IsLogicalToken(p.Key) {
			late = append(late, ir.O(p.Key, normalizeFieldLogical(p.Value)))
			continue
		}
		out = append(out, p)
	}
	return append(out, late...)
}

// normalizeFieldLogical handles and/or under a field, where each element is
// itself a field value.
func normalizeFieldLogical(value ir.IRValue) ir.IRValue {
	switch v := value.(type) {
	case ir.IRArray:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			arr[i] = normalizeFieldValue(elem)
		}
		return arr
	case ir.IRObject:
		return normalizeOperators(v)
	default:
		return value
	}
}
