package changelog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/schema"
	"github.com/roach88/recs/internal/store"
)

// newSessionStore registers the tables used by the replay tests.
func newSessionStore(t *testing.T) (*store.Store, *store.Table, *store.Table) {
	t.Helper()
	st := store.New()
	pos := st.MustRegisterTable("Position", schema.MustNew(schema.F("x", "number"), schema.F("y", "number")))
	node := st.MustRegisterTable("Node", schema.MustNew(
		schema.F("label", "string"),
		schema.F("weight", "bigint?"),
		schema.F("parent", "record?"),
	))
	return st, pos, node
}

func snapshot(st *store.Store) map[string]map[ir.Record]ir.Properties {
	out := make(map[string]map[ir.Record]ir.Properties)
	for _, t := range st.Tables() {
		rows := make(map[ir.Record]ir.Properties)
		for _, r := range st.GetAll(t) {
			rows[r] = st.Get(t, r)
		}
		out[t.ID()] = rows
	}
	return out
}

func TestRecorderAndReplay(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	st, pos, node := newSessionStore(t)
	rec := NewRecorder(ctx, st, l)

	c := ir.RecordFromName("c")
	steps := []func() error{
		func() error { _, err := st.Set(pos, recA, ir.Properties{"x": ir.Number(1.5), "y": ir.Number(-0.25)}); return err },
		func() error { _, err := st.Set(pos, recA, ir.Properties{"x": ir.Number(1.5), "y": ir.Number(-0.25)}); return err },
		func() error { _, err := st.Set(pos, recB, ir.Properties{"x": ir.Number(2), "y": ir.Number(2)}); return err },
		func() error { _, err := st.Set(node, recA, ir.Properties{"label": ir.String("root")}); return err },
		func() error {
			_, err := st.Set(node, recB, ir.Properties{
				"label":  ir.String("leaf"),
				"weight": ir.BigIntFromInt64(-42),
				"parent": recA,
			})
			return err
		},
		func() error { _, err := st.Update(pos, recB, ir.Properties{"y": ir.Number(5)}, nil); return err },
		func() error { _, err := st.Remove(pos, recA); return err },
		func() error { _, err := st.Set(node, c, ir.Properties{"weight": ir.BigIntFromInt64(1)}); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
	}
	require.NoError(t, rec.Close())

	// The repeated Set and the incomplete node write are noops.
	assert.Equal(t, 6, rec.Recorded())
	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	replayed, _, _ := newSessionStore(t)
	res, err := Replay(ctx, l, replayed)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Applied)
	assert.Zero(t, res.Skipped)

	last, err := l.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, last, res.LastSeq)

	want, got := snapshot(st), snapshot(replayed)
	require.Equal(t, len(want), len(got))
	for table, rows := range want {
		require.Len(t, got[table], len(rows), "table %s", table)
		for r, props := range rows {
			assert.True(t, props.Equal(got[table][r]), "table %s record %s", table, r.Short())
		}
	}
}

func TestRecorderStopsAfterClose(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	st, pos, _ := newSessionStore(t)

	rec := NewRecorder(ctx, st, l)
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	_, err := st.Set(pos, recA, ir.Properties{"x": ir.Number(1), "y": ir.Number(1)})
	require.NoError(t, err)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecorderSkipsUnnotifiedWrites(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()
	st, pos, _ := newSessionStore(t)
	rec := NewRecorder(ctx, st, l)

	_, err := st.Set(pos, recA, ir.Properties{"x": ir.Number(1), "y": ir.Number(1)})
	require.NoError(t, err)
	_, err = st.Set(pos, recB, ir.Properties{"x": ir.Number(2), "y": ir.Number(2)}, store.SkipNotify())
	require.NoError(t, err)
	require.NoError(t, rec.Close())
	assert.Equal(t, 1, rec.Recorded())

	replayed, rpos, _ := newSessionStore(t)
	_, err = Replay(ctx, l, replayed)
	require.NoError(t, err)
	assert.Equal(t, []ir.Record{recA}, replayed.GetAll(rpos))
	assert.ElementsMatch(t, []ir.Record{recA, recB}, st.GetAll(pos))
}

func TestRecorderReportsAppendError(t *testing.T) {
	l := openTestLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, pos, _ := newSessionStore(t)

	var buf bytes.Buffer
	rec := NewRecorder(ctx, st, l, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	_, err := st.Set(pos, recA, ir.Properties{"x": ir.Number(1), "y": ir.Number(1)})
	require.NoError(t, err, "store mutations never fail because of the log")

	assert.Error(t, rec.Err())
	assert.Zero(t, rec.Recorded())
	assert.Contains(t, buf.String(), "change log append failed")
	assert.Error(t, rec.Close())
}

func TestReplaySkipsUnknownTables(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	_, err := l.Append(ctx, mustSetEntry(t, 1, "Ghost", recA, ir.Properties{"boo": ir.Bool(true)}))
	require.NoError(t, err)
	_, err = l.Append(ctx, mustSetEntry(t, 2, "Position", recA, ir.Properties{"x": ir.Number(3), "y": ir.Number(4)}))
	require.NoError(t, err)

	var buf bytes.Buffer
	st, pos, _ := newSessionStore(t)
	res, err := Replay(ctx, l, st, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)

	assert.Equal(t, ReplayResult{Applied: 1, Skipped: 1, LastSeq: 2}, res)
	assert.Contains(t, buf.String(), "skipping change for unknown table")
	assert.Equal(t, ir.Properties{"x": ir.Number(3), "y": ir.Number(4)}, st.Get(pos, recA))
}

func TestReplayDecodeError(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	// Logged under an older schema where x was a string.
	_, err := l.Append(ctx, mustSetEntry(t, 1, "Position", recA, ir.Properties{"x": ir.String("1"), "y": ir.Number(1)}))
	require.NoError(t, err)

	st, _, _ := newSessionStore(t)
	res, err := Replay(ctx, l, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seq 1")
	assert.Zero(t, res.Applied)
}

func TestReplayWithRecorderOnSameLog(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	_, err := l.Append(ctx, mustSetEntry(t, 1, "Position", recA, ir.Properties{"x": ir.Number(1), "y": ir.Number(1)}))
	require.NoError(t, err)

	// A store whose clock continues after the log re-records under new seqs.
	last, err := l.LastSeq(ctx)
	require.NoError(t, err)
	st := store.New(store.WithClock(store.NewClockAt(last)))
	st.MustRegisterTable("Position", schema.MustNew(schema.F("x", "number"), schema.F("y", "number")))
	rec := NewRecorder(ctx, st, l)
	defer rec.Close()

	_, err = Replay(ctx, l, st)
	require.NoError(t, err)
	require.NoError(t, rec.Err())

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
