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
		input    any
		expected string
	}{
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"number", Number(42), "42"},
		{"negative number", Number(-100), "-100"},
		{"fraction", Number(1.5), "1.5"},
		{"negative zero", Number(math.Copysign(0, -1)), "0"},
		{"large integral", Number(1e20), "100000000000000000000"},
		{"exponent above 1e21", Number(1e21), "1e+21"},
		{"small", Number(1e-7), "1e-07"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"big int", BigIntFromInt64(7), `"7"`},
		{"bytes", Bytes{0xde, 0xad}, `"0xdead"`},
		{"empty array", Array{}, "[]"},
		{"array of numbers", Array{Number(1), Number(2), Number(3)}, "[1,2,3]"},
		{"empty properties", Properties{}, "{}"},
		{"simple properties", Properties{"a": Number(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	for _, n := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := MarshalCanonical(Properties{"x": Number(n)})
		assert.Error(t, err, "%v", n)
	}
}

func TestMarshalCanonicalRecord(t *testing.T) {
	r := MustParseRecord("0x01")
	result, err := MarshalCanonical(r)
	require.NoError(t, err)
	assert.Equal(t, `"0x0000000000000000000000000000000000000000000000000000000000000001"`, string(result))
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	props := Properties{
		"zebra": Number(1),
		"alpha": Number(2),
		"beta":  Number(3),
	}

	result, err := MarshalCanonical(props)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+E000 vs U+10000 - UTF-16 order differs from UTF-8
	props := Properties{
		"\uE000":     Number(1),
		"\U00010000": Number(2),
	}

	result, err := MarshalCanonical(props)
	require.NoError(t, err)

	// UTF-16 order: 0xD800 < 0xE000, so U+10000 comes first
	expected := `{"` + "\U00010000" + `":2,"` + "\uE000" + `":1}`
	assert.Equal(t, expected, string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(String("<a & b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	result, err := MarshalCanonical(String("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(result))

	// A literal backslash followed by u2028 text stays escaped
	result, err = MarshalCanonical(String(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	decomposed, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	composed, err := MarshalCanonical(String("\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, string(composed), string(decomposed))
}

func TestMarshalCanonicalRejectsNil(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(Properties(nil))
	assert.Error(t, err)

	_, err = MarshalCanonical(Properties{"a": nil})
	assert.Error(t, err)

	_, err = MarshalCanonical(3.14)
	assert.Error(t, err)
}
