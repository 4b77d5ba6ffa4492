package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/roach88/sieve/internal/ir"
)

// Executor runs a compiled statement and returns its rows.
type Executor interface {
	Query(ctx context.Context, query string, args ...any) ([]ir.IRObject, error)
	Close() error
}

// toIR converts a driver value to an IR value.
func toIR(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case string:
		return ir.IRString(val), nil
	case []byte:
		return ir.IRString(val), nil
	case bool:
		return ir.IRBool(val), nil
	case int64:
		return ir.IRInt(val), nil
	case int32:
		return ir.IRInt(val), nil
	case int16:
		return ir.IRInt(val), nil
	case int:
		return ir.IRInt(val), nil
	case float64:
		return ir.IRFloat(val), nil
	case float32:
		return ir.IRFloat(val), nil
	case time.Time:
		return ir.IRString(val.UTC().Format(time.RFC3339Nano)), nil
	case [16]byte:
		return ir.IRString(uuid.UUID(val).String()), nil
	case uuid.UUID:
		return ir.IRString(val.String()), nil
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil {
			return nil, fmt.Errorf("numeric: %w", err)
		}
		if !f.Valid {
			return ir.IRNull{}, nil
		}
		if f.Float64 == math.Trunc(f.Float64) && math.Abs(f.Float64) < 1<<53 {
			return ir.IRInt(int64(f.Float64)), nil
		}
		return ir.IRFloat(f.Float64), nil
	case fmt.Stringer:
		return ir.IRString(val.String()), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", v)
	}
}

// rowObject pairs column names with converted values.
func rowObject(columns []string, values []any) (ir.IRObject, error) {
	pairs := make([]ir.IRPair, len(columns))
	for i, col := range columns {
		v, err := toIR(values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		pairs[i] = ir.O(col, v)
	}
	return ir.NewIRObjectFromPairs(pairs...), nil
}
