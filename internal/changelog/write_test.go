package changelog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/schema"
)

var (
	recA = ir.RecordFromName("a")
	recB = ir.RecordFromName("b")
)

func mustSetEntry(t *testing.T, seq int64, table string, r ir.Record, props ir.Properties) Entry {
	t.Helper()
	e, err := SetEntry(seq, table, r, props)
	require.NoError(t, err)
	return e
}

func TestAppendAndRead(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	entries := []Entry{
		mustSetEntry(t, 1, "Position", recA, ir.Properties{"x": ir.Number(1), "y": ir.Number(2)}),
		mustSetEntry(t, 2, "Position", recB, ir.Properties{"x": ir.Number(3), "y": ir.Number(4)}),
		RemoveEntry(3, "Position", recA),
	}
	for _, e := range entries {
		inserted, err := l.Append(ctx, e)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	got, err := l.Read(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, e := range got {
		assert.Equal(t, entries[i].Seq, e.Seq)
		assert.Equal(t, entries[i].Table, e.Table)
		assert.Equal(t, entries[i].Record, e.Record)
		assert.Equal(t, entries[i].Op, e.Op)
		assert.Equal(t, entries[i].Data, e.Data)
		assert.NotZero(t, e.ID)
	}
	assert.Equal(t, `{"x":1,"y":2}`, string(got[0].Data))
	assert.Nil(t, got[2].Data)

	after, err := l.Read(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, after, 2)
	assert.Equal(t, int64(2), after[0].Seq)
}

func TestAppend_Idempotent(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	e := mustSetEntry(t, 7, "Tag", recA, ir.Properties{})

	inserted, err := l.Append(ctx, e)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = l.Append(ctx, e)
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppend_Invalid(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry Entry
	}{
		{"unknown op", Entry{Seq: 1, Table: "T", Record: recA, Op: "upsert"}},
		{"set without data", Entry{Seq: 1, Table: "T", Record: recA, Op: OpSet}},
		{"no table", RemoveEntry(1, "", recA)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Append(ctx, tt.entry)
			assert.Error(t, err)
		})
	}
}

func TestRead_OrderedBySeq(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	for _, seq := range []int64{5, 2, 9} {
		_, err := l.Append(ctx, RemoveEntry(seq, "T", recA))
		require.NoError(t, err)
	}

	got, err := l.Read(ctx, 0)
	require.NoError(t, err)
	seqs := make([]int64, 0, len(got))
	for _, e := range got {
		seqs = append(seqs, e.Seq)
	}
	assert.Equal(t, []int64{2, 5, 9}, seqs)

	last, err := l.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), last)
}

func TestRead_Empty(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	got, err := l.Read(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	last, err := l.LastSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestEntryDecode(t *testing.T) {
	sch := schema.MustNew(
		schema.F("name", "string"),
		schema.F("big", "bigint"),
		schema.F("blob", "bytes?"),
		schema.F("parent", "record?"),
		schema.F("tags", "string[]"),
	)
	props := ir.Properties{
		"name":   ir.String("n\u00e9"),
		"big":    ir.BigIntFromInt64(1 << 62),
		"blob":   ir.Bytes{0xde, 0xad},
		"parent": recB,
		"tags":   ir.Array{ir.String("a"), ir.String("b")},
	}

	e := mustSetEntry(t, 1, "Item", recA, props)
	got, err := e.Decode(sch)
	require.NoError(t, err)
	assert.True(t, props.Equal(got), "got %v", got)

	removed, err := RemoveEntry(2, "Item", recA).Decode(sch)
	require.NoError(t, err)
	assert.Nil(t, removed)
}
