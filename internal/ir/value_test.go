package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIRObjectFromPairsKeepsFirstPosition(t *testing.T) {
	obj := NewIRObjectFromPairs(
		O("a", IRInt(1)),
		O("b", IRInt(2)),
		O("a", IRInt(3)),
	)

	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	v, ok := obj.Get("a")
	require.True(t, ok)
	assert.Equal(t, IRInt(3), v)
}

func TestIRObjectGetMissing(t *testing.T) {
	obj := NewIRObjectFromPairs(O("a", IRInt(1)))
	_, ok := obj.Get("b")
	assert.False(t, ok)
}

func TestIsPrimitive(t *testing.T) {
	tests := []struct {
		name string
		v    IRValue
		want bool
	}{
		{"string", IRString("x"), true},
		{"int", IRInt(1), true},
		{"float", IRFloat(1.5), true},
		{"bool", IRBool(true), false},
		{"null", IRNull{}, false},
		{"array", IRArray{}, false},
		{"object", IRObject{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPrimitive(tt.v))
		})
	}
}

func TestPrimitiveString(t *testing.T) {
	s, err := PrimitiveString(IRInt(42))
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	s, err = PrimitiveString(IRFloat(2.5))
	require.NoError(t, err)
	assert.Equal(t, "2.5", s)

	_, err = PrimitiveString(IRBool(true))
	assert.Error(t, err)
}

func TestToNative(t *testing.T) {
	v, err := ToNative(IRString("a"))
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, err = ToNative(IRInt(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	_, err = ToNative(IRArray{})
	assert.Error(t, err)
}

func TestFromNativeInvertsToNative(t *testing.T) {
	for _, v := range []IRValue{IRString("a"), IRInt(-3), IRFloat(1.5), IRBool(true), IRNull{}} {
		native, err := ToNative(v)
		require.NoError(t, err)
		back, err := FromNative(native)
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}

	_, err := FromNative([]string{"x"})
	assert.Error(t, err)
}

func TestEqualHonorsOrder(t *testing.T) {
	a := NewIRObjectFromPairs(O("x", IRInt(1)), O("y", IRInt(2)))
	b := NewIRObjectFromPairs(O("y", IRInt(2)), O("x", IRInt(1)))

	assert.True(t, Equal(a, a))
	assert.False(t, Equal(a, b))
	assert.True(t, Equal(IRArray{IRString("a")}, IRArray{IRString("a")}))
	assert.False(t, Equal(IRInt(1), IRFloat(1)))
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 0, Depth(IRString("x"), 10))
	assert.Equal(t, 1, Depth(IRObject{}, 10))

	nested := NewIRObjectFromPairs(
		O("a", NewIRObjectFromPairs(O("b", IRArray{IRInt(1)}))),
	)
	assert.Equal(t, 3, Depth(nested, 10))
}

func TestDepthStopsPastLimit(t *testing.T) {
	var v IRValue = IRString("leaf")
	for i := 0; i < 100; i++ {
		v = IRArray{v}
	}
	assert.Greater(t, Depth(v, 5), 5)
	assert.LessOrEqual(t, Depth(v, 5), 7)
}
