package ir

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalJSONValuePreservesOrder(t *testing.T) {
	v, err := UnmarshalJSONValue([]byte(`{"z":1,"a":{"y":"b","x":"c"},"m":[1,2]}`), 32)
	require.NoError(t, err)

	obj, ok := v.(IRObject)
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())

	inner, _ := obj.Get("a")
	assert.Equal(t, []string{"y", "x"}, inner.(IRObject).Keys())
}

func TestUnmarshalJSONValueNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  IRValue
	}{
		{`1`, IRInt(1)},
		{`-12`, IRInt(-12)},
		{`1.5`, IRFloat(1.5)},
		{`1e3`, IRFloat(1000)},
		{`99999999999999999999`, IRFloat(1e20)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := UnmarshalJSONValue([]byte(tt.input), 32)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestUnmarshalJSONValueScalars(t *testing.T) {
	v, err := UnmarshalJSONValue([]byte(`[true,null,"s"]`), 32)
	require.NoError(t, err)
	assert.Equal(t, IRArray{IRBool(true), IRNull{}, IRString("s")}, v)
}

func TestUnmarshalJSONValueDuplicateKeys(t *testing.T) {
	v, err := UnmarshalJSONValue([]byte(`{"a":1,"b":2,"a":3}`), 32)
	require.NoError(t, err)
	assert.Equal(t, NewIRObjectFromPairs(O("a", IRInt(3)), O("b", IRInt(2))), v)
}

func TestUnmarshalJSONValueDepthLimit(t *testing.T) {
	deep := strings.Repeat("[", 40) + strings.Repeat("]", 40)

	_, err := UnmarshalJSONValue([]byte(deep), 32)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooDeep))

	_, err = UnmarshalJSONValue([]byte(deep), 40)
	assert.NoError(t, err)
}

func TestUnmarshalJSONValueRejectsTrailingData(t *testing.T) {
	_, err := UnmarshalJSONValue([]byte(`{"a":1} {"b":2}`), 32)
	assert.Error(t, err)
}

func TestUnmarshalJSONObjectRequiresObject(t *testing.T) {
	_, err := UnmarshalJSONObject([]byte(`[1]`), 32)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected JSON object")
}

func TestMarshalJSONValuePreservesOrder(t *testing.T) {
	obj := NewIRObjectFromPairs(
		O("name", IRString("bob")),
		O("age", NewIRObjectFromPairs(O("gte", IRInt(18)))),
		O("tags", IRArray{IRString("a"), IRFloat(1.5)}),
		O("none", IRNull{}),
	)

	data, err := MarshalJSONValue(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"bob","age":{"gte":18},"tags":["a",1.5],"none":null}`, string(data))
}

// wideObject returns {"name":{"eq":"x"},"k0":0,...} with n padding keys and
// the first padding key repeated at the end.
func wideObject(n int) []byte {
	var b strings.Builder
	b.WriteString(`{"name":{"eq":"x"}`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `,"k%d":%d`, i, i)
	}
	b.WriteString(`,"k0":-1}`)
	return []byte(b.String())
}

func TestUnmarshalJSONObjectManyKeysIsLinear(t *testing.T) {
	const keys = 100000
	data := wideObject(keys)

	start := time.Now()
	obj, err := UnmarshalJSONObject(data, 32)
	elapsed := time.Since(start)
	require.NoError(t, err)

	require.Len(t, obj, keys+1)
	assert.Equal(t, "name", obj[0].Key)
	assert.Equal(t, "k0", obj[1].Key)
	assert.Equal(t, IRInt(-1), obj[1].Value)
	assert.Equal(t, fmt.Sprintf("k%d", keys-1), obj[keys].Key)
	assert.Less(t, elapsed, 5*time.Second, "decoding %d keys took %s", keys, elapsed)
}
