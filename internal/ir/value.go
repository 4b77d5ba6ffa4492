package ir

import (
	"fmt"
	"strconv"
)

// IRValue is a sealed interface representing filter values.
// Only IRNull, IRString, IRInt, IRFloat, IRBool, IRArray and IRObject
// implement it.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a JSON null value.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integral number.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a number with a fractional part or exponent.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray represents an ordered sequence of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRPair is a single key/value member of an IRObject.
type IRPair struct {
	Key   string
	Value IRValue
}

// IRObject represents a mapping of string keys to values in document order.
//
// Keys are unique. Use Get for lookups and range over the slice for ordered
// iteration.
type IRObject []IRPair

func (IRObject) irValue() {}

// O is a shorthand for IRPair for ergonomic construction.
// Example: NewIRObjectFromPairs(O("name", IRString("bob")), O("age", IRInt(5)))
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// NewIRObjectFromPairs creates an IRObject from key-value pairs.
// A repeated key keeps its first position and takes the last value.
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	b := newObjectBuilder(len(pairs))
	for _, p := range pairs {
		b.set(p.Key, p.Value)
	}
	return b.obj
}

// objectBuilder assembles an IRObject key by key with the same duplicate
// rule as NewIRObjectFromPairs. Lookups go through an index, so building an
// object costs time linear in its key count.
type objectBuilder struct {
	obj   IRObject
	index map[string]int
}

func newObjectBuilder(size int) *objectBuilder {
	return &objectBuilder{
		obj:   make(IRObject, 0, size),
		index: make(map[string]int, size),
	}
}

func (b *objectBuilder) set(key string, value IRValue) {
	if i, ok := b.index[key]; ok {
		b.obj[i].Value = value
		return
	}
	b.index[key] = len(b.obj)
	b.obj = append(b.obj, IRPair{Key: key, Value: value})
}

// NewIRArray creates an IRArray from values.
func NewIRArray(vals ...IRValue) IRArray {
	return IRArray(vals)
}

// Get returns the value stored under key.
func (obj IRObject) Get(key string) (IRValue, bool) {
	for _, p := range obj {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in document order.
func (obj IRObject) Keys() []string {
	keys := make([]string, len(obj))
	for i, p := range obj {
		keys[i] = p.Key
	}
	return keys
}

// With returns obj with key set to value. An existing key is replaced in
// place; a new key is appended. It scans obj, so decoders use an
// objectBuilder instead. The receiver's backing array may be reused,
// so callers building a fresh object should start from a fresh slice.
func (obj IRObject) With(key string, value IRValue) IRObject {
	for i, p := range obj {
		if p.Key == key {
			obj[i].Value = value
			return obj
		}
	}
	return append(obj, IRPair{Key: key, Value: value})
}

// IsPrimitive reports whether v is a string or a number.
func IsPrimitive(v IRValue) bool {
	switch v.(type) {
	case IRString, IRInt, IRFloat:
		return true
	default:
		return false
	}
}

// PrimitiveString renders a primitive as text, e.g. for building LIKE
// patterns. It fails for non-primitive values.
func PrimitiveString(v IRValue) (string, error) {
	switch val := v.(type) {
	case IRString:
		return string(val), nil
	case IRInt:
		return strconv.FormatInt(int64(val), 10), nil
	case IRFloat:
		return strconv.FormatFloat(float64(val), 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("not a primitive value: %T", v)
	}
}

// ToNative converts a primitive to the Go type used as a query parameter.
func ToNative(v IRValue) (any, error) {
	switch val := v.(type) {
	case IRString:
		return string(val), nil
	case IRInt:
		return int64(val), nil
	case IRFloat:
		return float64(val), nil
	case IRBool:
		return bool(val), nil
	case IRNull:
		return nil, nil
	case IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as a query parameter directly")
	case IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as a query parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for query parameter: %T", v)
	}
}

// FromNative converts a query parameter back to an IR value. It is the
// inverse of ToNative.
func FromNative(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case string:
		return IRString(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case float64:
		return IRFloat(val), nil
	case bool:
		return IRBool(val), nil
	default:
		return nil, fmt.Errorf("unsupported query parameter type: %T", v)
	}
}

// TypeName returns a short human-readable name of the value's kind.
func TypeName(v IRValue) string {
	switch v.(type) {
	case IRNull:
		return "null"
	case IRString:
		return "string"
	case IRInt:
		return "int"
	case IRFloat:
		return "float"
	case IRBool:
		return "bool"
	case IRArray:
		return "array"
	case IRObject:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Equal reports deep equality of two values, honoring object key order.
func Equal(a, b IRValue) bool {
	switch av := a.(type) {
	case IRArray:
		bv, ok := b.(IRArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case IRObject:
		bv, ok := b.(IRObject)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Key != bv[i].Key || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// Depth returns the nesting depth of v, counting each array or object level.
// Scalars have depth 0. Counting stops once limit is exceeded, so the cost is
// bounded by limit rather than by the input.
func Depth(v IRValue, limit int) int {
	return depth(v, 0, limit)
}

func depth(v IRValue, current, limit int) int {
	if current > limit {
		return current
	}
	deepest := current
	switch val := v.(type) {
	case IRArray:
		deepest = current + 1
		for _, elem := range val {
			if d := depth(elem, current+1, limit); d > deepest {
				deepest = d
			}
			if deepest > limit {
				return deepest
			}
		}
	case IRObject:
		deepest = current + 1
		for _, p := range val {
			if d := depth(p.Value, current+1, limit); d > deepest {
				deepest = d
			}
			if deepest > limit {
				return deepest
			}
		}
	}
	return deepest
}
