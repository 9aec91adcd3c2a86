package schema

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recs/internal/ir"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input   string
		want    Type
		wantErr bool
	}{
		{"number", Type{Kind: KindNumber}, false},
		{"int", Type{Kind: KindNumber}, false},
		{"boolean", Type{Kind: KindBool}, false},
		{"string[]", Type{Kind: KindString, Array: true}, false},
		{"record?", Type{Kind: KindRecord, Optional: true}, false},
		{"bigint[]?", Type{Kind: KindBigInt, Array: true, Optional: true}, false},
		{" bytes ", Type{Kind: KindBytes}, false},
		{"float", Type{}, true},
		{"number?[]", Type{}, true},
		{"", Type{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeStringRoundTrip(t *testing.T) {
	for _, s := range []string{"bool", "number[]", "record?", "bigint[]?", "bytes"} {
		assert.Equal(t, s, MustParseType(s).String())
	}
}

func TestTypeCheck(t *testing.T) {
	rec := ir.RecordFromName("a")

	tests := []struct {
		name  string
		typ   string
		value ir.Value
		ok    bool
	}{
		{"number", "number", ir.Number(1), true},
		{"fractional number", "number", ir.Number(-0.5), true},
		{"number rejects nan", "number", ir.Number(math.NaN()), false},
		{"number rejects infinity", "number[]", ir.Array{ir.Number(math.Inf(-1))}, false},
		{"number rejects bigint", "number", ir.BigIntFromInt64(1), false},
		{"bigint", "bigint", ir.BigIntFromInt64(1), true},
		{"string", "string", ir.String("x"), true},
		{"bool rejects string", "bool", ir.String("true"), false},
		{"bytes", "bytes", ir.Bytes{1}, true},
		{"record", "record", rec, true},
		{"record rejects string", "record", ir.String(rec.String()), false},
		{"array", "number[]", ir.Array{ir.Number(1), ir.Number(2)}, true},
		{"empty array", "record[]", ir.Array{}, true},
		{"array element mismatch", "number[]", ir.Array{ir.Number(1), ir.String("2")}, false},
		{"scalar for array", "number[]", ir.Number(1), false},
		{"array for scalar", "number", ir.Array{}, false},
		{"optional is still typed", "number?", ir.String("1"), false},
		{"nil", "number?", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MustParseType(tt.typ).Check(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestTypeIsRelation(t *testing.T) {
	assert.True(t, MustParseType("record").IsRelation())
	assert.True(t, MustParseType("record?").IsRelation())
	assert.False(t, MustParseType("record[]").IsRelation())
	assert.False(t, MustParseType("string").IsRelation())
}
