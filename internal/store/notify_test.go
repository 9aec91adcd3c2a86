package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/schema"
)

func TestSubscribeOrderAndSeq(t *testing.T) {
	s, pos := setupPositionStore(t)

	var order []string
	_, err := s.Subscribe(pos, func(Update) { order = append(order, "table-1") })
	require.NoError(t, err)
	_, err = s.Subscribe(pos, func(Update) { order = append(order, "table-2") })
	require.NoError(t, err)
	s.SubscribeAll(func(Update) { order = append(order, "global") })

	u1 := mustSet(t, s, pos, recA, xy(1, 1))
	u2 := mustSet(t, s, pos, recA, xy(1, 1))

	assert.Equal(t, []string{"global", "table-1", "table-2", "global", "table-1", "table-2"}, order)
	assert.Equal(t, int64(1), u1.Seq)
	assert.Equal(t, int64(2), u2.Seq, "noop updates are dispatched and stamped too")
	assert.Equal(t, int64(2), s.Clock().Current())
}

func TestSubscribeOtherTableNotNotified(t *testing.T) {
	s, pos := setupPositionStore(t)
	vel := s.MustRegisterTable("Velocity", pos.Schema())
	var got []Update
	_, err := s.Subscribe(vel, func(u Update) { got = append(got, u) })
	require.NoError(t, err)

	mustSet(t, s, pos, recA, xy(1, 1))
	assert.Empty(t, got)

	mustSet(t, s, vel, recA, xy(1, 1))
	require.Len(t, got, 1)
	assert.Same(t, vel, got[0].Table)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	s, pos := setupPositionStore(t)

	count := 0
	unsub, err := s.Subscribe(pos, func(Update) { count++ })
	require.NoError(t, err)

	mustSet(t, s, pos, recA, xy(1, 1))
	unsub()
	unsub()
	mustSet(t, s, pos, recA, xy(2, 2))
	assert.Equal(t, 1, count)
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	s, pos := setupPositionStore(t)

	var unsubSecond func()
	secondCalls := 0
	_, err := s.Subscribe(pos, func(Update) { unsubSecond() })
	require.NoError(t, err)
	unsubSecond, err = s.Subscribe(pos, func(Update) { secondCalls++ })
	require.NoError(t, err)

	mustSet(t, s, pos, recA, xy(1, 1))
	assert.Equal(t, 0, secondCalls, "unsubscribed listener is skipped in the current dispatch")
}

func TestNestedMutationIsDepthFirst(t *testing.T) {
	s, pos := setupPositionStore(t)

	var trace []string
	_, err := s.Subscribe(pos, func(u Update) {
		trace = append(trace, "first:"+string(u.Type)+":"+u.Record.Short())
		if u.Record == recA && u.Type == Enter {
			mustSet(t, s, pos, recB, xy(2, 2))
		}
	})
	require.NoError(t, err)
	_, err = s.Subscribe(pos, func(u Update) {
		trace = append(trace, "second:"+string(u.Type)+":"+u.Record.Short())
	})
	require.NoError(t, err)

	mustSet(t, s, pos, recA, xy(1, 1))

	assert.Equal(t, []string{
		"first:enter:" + recA.Short(),
		"first:enter:" + recB.Short(),
		"second:enter:" + recB.Short(),
		"second:enter:" + recA.Short(),
	}, trace)
}

func TestSkipNotify(t *testing.T) {
	s, pos := setupPositionStore(t)

	count := 0
	_, err := s.Subscribe(pos, func(Update) { count++ })
	require.NoError(t, err)

	u, err := s.Set(pos, recA, xy(1, 1), SkipNotify())
	require.NoError(t, err)
	assert.Equal(t, Enter, u.Type)
	assert.Equal(t, 0, count)
	assert.True(t, s.Has(pos, recA))

	_, err = s.Remove(pos, recA, SkipNotify())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSharedClock(t *testing.T) {
	clock := NewClockAt(100)
	s1 := New(WithClock(clock))
	s2 := New(WithClock(clock))
	t1 := s1.MustRegisterTable("A", schema.MustNew(schema.F("x", "number")))
	t2 := s2.MustRegisterTable("A", schema.MustNew(schema.F("x", "number")))

	u1, err := s1.Set(t1, recA, ir.Properties{"x": ir.Number(1)})
	require.NoError(t, err)
	u2, err := s2.Set(t2, recA, ir.Properties{"x": ir.Number(1)})
	require.NoError(t, err)

	assert.Equal(t, int64(101), u1.Seq)
	assert.Equal(t, int64(102), u2.Seq)
}
