package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertiesHashDeterminism(t *testing.T) {
	props := Properties{
		"x": Number(10),
		"y": Number(10),
	}

	h1, err := PropertiesHash(props)
	require.NoError(t, err)
	h2, err := PropertiesHash(props.Clone())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "PropertiesHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestPropertiesHashChangesWithValues(t *testing.T) {
	h1 := MustPropertiesHash(Properties{"x": Number(10)})
	h2 := MustPropertiesHash(Properties{"x": Number(11)})
	h3 := MustPropertiesHash(Properties{"y": Number(10)})

	assert.NotEqual(t, h1, h2, "different values should produce different hashes")
	assert.NotEqual(t, h1, h3, "different keys should produce different hashes")
}

func TestRecordFromNameDomainSeparated(t *testing.T) {
	// The record for a name is not the plain SHA-256 of the name
	r := RecordFromName("A")
	assert.Equal(t, RecordFromName("A"), r)
	assert.NotEqual(t, RecordFromName("B"), r)
	assert.False(t, r.IsZero())
}

func TestPropertiesHashAgreesWithEqual(t *testing.T) {
	zero := Properties{"x": Number(0)}
	negZero := Properties{"x": Number(math.Copysign(0, -1))}
	require.True(t, zero.Equal(negZero))
	assert.Equal(t, MustPropertiesHash(zero), MustPropertiesHash(negZero))

	assert.NotEqual(t,
		MustPropertiesHash(Properties{"x": Number(0.1)}),
		MustPropertiesHash(Properties{"x": Number(0.2)}))
}
