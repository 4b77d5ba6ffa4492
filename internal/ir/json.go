package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrTooDeep is returned by decoders when input nests beyond the allowed depth.
var ErrTooDeep = errors.New("value exceeds maximum nesting depth")

// UnmarshalJSONValue decodes JSON into an IRValue, preserving object key
// order. Arrays and objects may nest at most maxDepth levels.
//
// Integral numbers decode to IRInt, all other numbers to IRFloat.
func UnmarshalJSONValue(data []byte, maxDepth int) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeJSON(dec, 0, maxDepth)
	if err != nil {
		return nil, err
	}

	// Trailing content is a syntax error, not a second document
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("unexpected data after top-level value")
		}
		return nil, err
	}
	return v, nil
}

// UnmarshalJSONObject decodes JSON that must be an object at the top level.
func UnmarshalJSONObject(data []byte, maxDepth int) (IRObject, error) {
	v, err := UnmarshalJSONValue(data, maxDepth)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(IRObject)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %s", TypeName(v))
	}
	return obj, nil
}

func decodeJSON(dec *json.Decoder, depth, maxDepth int) (IRValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		if depth >= maxDepth {
			return nil, fmt.Errorf("%w (%d)", ErrTooDeep, maxDepth)
		}
		switch t {
		case '{':
			return decodeJSONObject(dec, depth+1, maxDepth)
		case '[':
			return decodeJSONArray(dec, depth+1, maxDepth)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return IRString(t), nil
	case json.Number:
		return numberValue(t)
	case bool:
		return IRBool(t), nil
	case nil:
		return IRNull{}, nil
	default:
		return nil, fmt.Errorf("unsupported JSON token: %T", tok)
	}
}

func decodeJSONObject(dec *json.Decoder, depth, maxDepth int) (IRValue, error) {
	b := newObjectBuilder(0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		val, err := decodeJSON(dec, depth, maxDepth)
		if err != nil {
			return nil, err
		}
		b.set(key, val)
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return b.obj, nil
}

func decodeJSONArray(dec *json.Decoder, depth, maxDepth int) (IRValue, error) {
	arr := IRArray{}
	for dec.More() {
		val, err := decodeJSON(dec, depth, maxDepth)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func numberValue(n json.Number) (IRValue, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return IRInt(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return IRFloat(f), nil
}

// MarshalJSON encodes the object with keys in document order.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return MarshalJSONValue(obj)
}

// MarshalJSONValue encodes any IRValue as JSON, preserving object key order.
func MarshalJSONValue(v IRValue) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v IRValue) error {
	switch val := v.(type) {
	case IRArray:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case IRObject:
		buf.WriteByte('{')
		for i, p := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(p.Key)
			if err != nil {
				return err
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeJSON(buf, p.Value); err != nil {
				return fmt.Errorf("[%q]: %w", p.Key, err)
			}
		}
		buf.WriteByte('}')
		return nil
	case IRNull, nil:
		buf.WriteString("null")
		return nil
	default:
		native, err := ToNative(val)
		if err != nil {
			return err
		}
		b, err := json.Marshal(native)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
