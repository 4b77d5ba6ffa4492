package filter

import (
	"strconv"

	"github.com/roach88/sieve/internal/ir"
)

// checkShape verifies value against op's contract. Errors are reported at
// path; array elements append their index.
func checkShape(op Operator, value ir.IRValue, path string) error {
	contract, ok := ValueContract(op)
	if !ok {
		return invalidOperator(path, string(op))
	}

	switch contract {
	case ContractPrimitive:
		return requirePrimitive(value, path)
	case ContractArrayOfPrimitive:
		arr, ok := value.(ir.IRArray)
		if !ok {
			return notAnArray(path)
		}
		for i, elem := range arr {
			if err := requirePrimitive(elem, index(path, i)); err != nil {
				return err
			}
		}
		return nil
	case ContractLogicalArray:
		switch value.(type) {
		case ir.IRArray, ir.IRObject:
			return nil
		default:
			return notAnArray(path)
		}
	default:
		return invalidOperator(path, string(op))
	}
}

func requirePrimitive(value ir.IRValue, path string) error {
	if !ir.IsPrimitive(value) {
		return invalidValue(path)
	}
	return nil
}

// join appends key to a dotted path.
func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func index(path string, i int) string {
	return join(path, strconv.Itoa(i))
}
