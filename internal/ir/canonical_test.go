package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    IRValue
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"float", IRFloat(1.5), "1.5"},
		{"integral float", IRFloat(2), "2.0"},
		{"bool", IRBool(true), "true"},
		{"null", IRNull{}, "null"},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"html not escaped", IRString("<a&b>"), `"<a&b>"`},
		{"control escaped", IRString("a\nb\x01"), `"a\nb\u0001"`},
		{"line separator literal", IRString("a\u2028b"), "\"a\u2028b\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalKeepsDocumentOrder(t *testing.T) {
	obj := NewIRObjectFromPairs(O("zebra", IRInt(1)), O("alpha", IRInt(2)))

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"zebra":1,"alpha":2}`, string(result))
}

func TestMarshalCanonicalKeepsStringBytes(t *testing.T) {
	// decomposed (e + U+0301) and precomposed (U+00E9)
	decomposed, err := MarshalCanonical(IRString("e\u0301"))
	require.NoError(t, err)
	precomposed, err := MarshalCanonical(IRString("\u00e9"))
	require.NoError(t, err)
	assert.NotEqual(t, precomposed, decomposed)
	assert.Equal(t, "\"e\u0301\"", string(decomposed))
}

func TestFilterHashDistinguishesNormalizationForms(t *testing.T) {
	composed, err := FilterHash("users", NewIRObjectFromPairs(O("name", IRString("caf\u00e9"))))
	require.NoError(t, err)
	decomposed, err := FilterHash("users", NewIRObjectFromPairs(O("name", IRString("cafe\u0301"))))
	require.NoError(t, err)
	assert.NotEqual(t, composed, decomposed)

	key, err := FilterHash("users", NewIRObjectFromPairs(O("caf\u00e9", IRInt(1))))
	require.NoError(t, err)
	decomposedKey, err := FilterHash("users", NewIRObjectFromPairs(O("cafe\u0301", IRInt(1))))
	require.NoError(t, err)
	assert.NotEqual(t, key, decomposedKey)
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(IRArray{IRFloat(math.Inf(1))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array[0]")
}

func TestFilterHash(t *testing.T) {
	f1 := NewIRObjectFromPairs(O("name", IRString("bob")))
	f2 := NewIRObjectFromPairs(O("name", IRString("bob")))
	f3 := NewIRObjectFromPairs(O("name", IRString("alice")))

	h1, err := FilterHash("users", f1)
	require.NoError(t, err)
	h2, err := FilterHash("users", f2)
	require.NoError(t, err)
	h3, err := FilterHash("users", f3)
	require.NoError(t, err)
	h4, err := FilterHash("orders", f1)
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.NotEqual(t, h1, h4)
}
