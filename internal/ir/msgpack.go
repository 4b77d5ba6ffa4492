package ir

import (
	"bytes"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// UnmarshalMsgpackValue decodes a MessagePack document into an IRValue,
// preserving map key order. Maps and arrays may nest at most maxDepth levels.
func UnmarshalMsgpackValue(data []byte, maxDepth int) (IRValue, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty MessagePack data")
	}
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	v, err := decodeMsgpack(dec, 0, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MessagePack: %w", err)
	}
	return v, nil
}

// sizeHint bounds preallocation by a length header the input has not yet
// backed with elements. Nil maps and arrays report -1.
func sizeHint(n int) int {
	const maxHint = 1024
	switch {
	case n < 0:
		return 0
	case n > maxHint:
		return maxHint
	}
	return n
}

func decodeMsgpack(dec *msgpack.Decoder, depth, maxDepth int) (IRValue, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32:
		if depth >= maxDepth {
			return nil, fmt.Errorf("%w (%d)", ErrTooDeep, maxDepth)
		}
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		b := newObjectBuilder(sizeHint(n))
		for i := 0; i < n; i++ {
			rawKey, err := dec.DecodeInterfaceLoose()
			if err != nil {
				return nil, err
			}
			var key string
			switch k := rawKey.(type) {
			case string:
				key = k
			case []byte:
				key = string(k)
			default:
				return nil, fmt.Errorf("map keys must be strings, got %T", rawKey)
			}
			val, err := decodeMsgpack(dec, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			b.set(key, val)
		}
		return b.obj, nil

	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		if depth >= maxDepth {
			return nil, fmt.Errorf("%w (%d)", ErrTooDeep, maxDepth)
		}
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		arr := make(IRArray, 0, sizeHint(n))
		for i := 0; i < n; i++ {
			val, err := decodeMsgpack(dec, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		return arr, nil
	}

	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case nil:
		return IRNull{}, nil
	case string:
		return IRString(v), nil
	case []byte:
		return IRString(v), nil
	case bool:
		return IRBool(v), nil
	case int64:
		return IRInt(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return IRFloat(float64(v)), nil
		}
		return IRInt(int64(v)), nil
	case float64:
		return IRFloat(v), nil
	default:
		return nil, fmt.Errorf("unsupported MessagePack value: %T", raw)
	}
}

// MarshalMsgpackValue encodes an IRValue as MessagePack, writing object keys
// in document order.
func MarshalMsgpackValue(v IRValue) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encodeMsgpack(enc, v); err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeMsgpack(enc *msgpack.Encoder, v IRValue) error {
	switch val := v.(type) {
	case IRNull, nil:
		return enc.EncodeNil()
	case IRString:
		return enc.EncodeString(string(val))
	case IRInt:
		return enc.EncodeInt(int64(val))
	case IRFloat:
		return enc.EncodeFloat64(float64(val))
	case IRBool:
		return enc.EncodeBool(bool(val))
	case IRArray:
		if err := enc.EncodeArrayLen(len(val)); err != nil {
			return err
		}
		for _, elem := range val {
			if err := encodeMsgpack(enc, elem); err != nil {
				return err
			}
		}
		return nil
	case IRObject:
		if err := enc.EncodeMapLen(len(val)); err != nil {
			return err
		}
		for _, p := range val {
			if err := enc.EncodeString(p.Key); err != nil {
				return err
			}
			if err := encodeMsgpack(enc, p.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported IRValue type: %T", v)
	}
}
