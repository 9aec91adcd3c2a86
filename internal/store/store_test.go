package store

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/schema"
)

var (
	recA = ir.RecordFromName("a")
	recB = ir.RecordFromName("b")
	recC = ir.RecordFromName("c")
)

func xy(x, y int64) ir.Properties {
	return ir.Properties{"x": ir.Number(x), "y": ir.Number(y)}
}

func setupPositionStore(t *testing.T, opts ...TableOption) (*Store, *Table) {
	t.Helper()
	s := New()
	pos, err := s.RegisterTable("Position", schema.MustNew(
		schema.F("x", "number"),
		schema.F("y", "number"),
	), opts...)
	require.NoError(t, err)
	return s, pos
}

func setupNodeStore(t *testing.T) (*Store, *Table) {
	t.Helper()
	s := New()
	node, err := s.RegisterTable("Node", schema.MustNew(
		schema.F("label", "string"),
		schema.F("parent", "record?"),
	))
	require.NoError(t, err)
	return s, node
}

func mustSet(t *testing.T, s *Store, tbl *Table, r ir.Record, p ir.Properties) Update {
	t.Helper()
	u, err := s.Set(tbl, r, p)
	require.NoError(t, err)
	return u
}

func TestRegisterTable(t *testing.T) {
	s, pos := setupPositionStore(t)

	got, ok := s.Table("Position")
	require.True(t, ok)
	assert.Same(t, pos, got)
	assert.Equal(t, "Position", pos.ID())
	assert.Equal(t, []*Table{pos}, s.Tables())

	_, err := s.RegisterTable("Position", schema.MustNew())
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))

	_, err = s.RegisterTable("bad id", schema.MustNew())
	assert.True(t, IsConfigurationError(err))
}

func TestRegisterTableRelation(t *testing.T) {
	s := New()

	node, err := s.RegisterTable("Node", schema.MustNew(
		schema.F("parent", "record"),
		schema.F("tags", "record[]"),
	), WithMetadata("owner", "world"))
	require.NoError(t, err)
	rel, ok := node.Relation()
	assert.True(t, ok)
	assert.Equal(t, "parent", rel, "sole single record field is the default relation")
	assert.Equal(t, map[string]string{"owner": "world"}, node.Metadata())

	two, err := s.RegisterTable("Two", schema.MustNew(
		schema.F("a", "record"),
		schema.F("b", "record"),
	))
	require.NoError(t, err)
	_, ok = two.Relation()
	assert.False(t, ok, "ambiguous relation is not guessed")

	_, err = s.RegisterTable("Three", schema.MustNew(schema.F("a", "record")), WithRelationField("missing"))
	assert.True(t, IsConfigurationError(err))

	_, err = s.RegisterTable("Four", schema.MustNew(schema.F("a", "record[]")), WithRelationField("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single record")
}

func TestSetEmitsTypedUpdates(t *testing.T) {
	s, pos := setupPositionStore(t)

	u := mustSet(t, s, pos, recA, xy(1, 1))
	assert.Equal(t, Enter, u.Type)
	assert.Nil(t, u.Prev)
	assert.Equal(t, xy(1, 1), u.Current)

	u = mustSet(t, s, pos, recA, xy(1, 1))
	assert.Equal(t, Noop, u.Type)

	u = mustSet(t, s, pos, recA, xy(2, 1))
	assert.Equal(t, Change, u.Type)
	assert.Equal(t, xy(1, 1), u.Prev)
	assert.Equal(t, xy(2, 1), u.Current)

	u = mustSet(t, s, pos, recA, ir.Properties{"x": ir.Number(2)})
	assert.Equal(t, Exit, u.Type, "clearing a required field removes the record")
	assert.False(t, s.Has(pos, recA))
	assert.Nil(t, s.Get(pos, recA))

	u = mustSet(t, s, pos, recA, ir.Properties{"x": ir.Number(3)})
	assert.Equal(t, Noop, u.Type, "both states incomplete")
}

func TestSetOptionalFields(t *testing.T) {
	s, node := setupNodeStore(t)

	u := mustSet(t, s, node, recA, ir.Properties{"label": ir.String("root")})
	assert.Equal(t, Enter, u.Type)

	u = mustSet(t, s, node, recB, ir.Properties{"label": ir.String("kid"), "parent": recA})
	assert.Equal(t, Enter, u.Type)

	u = mustSet(t, s, node, recB, ir.Properties{"label": ir.String("kid")})
	assert.Equal(t, Change, u.Type, "clearing an optional field keeps the record")
	assert.Equal(t, ir.Properties{"label": ir.String("kid")}, s.Get(node, recB))
}

func TestSetTypeMismatchWritesNothing(t *testing.T) {
	s, pos := setupPositionStore(t)
	mustSet(t, s, pos, recA, xy(1, 1))

	var events []Update
	_, err := s.Subscribe(pos, func(u Update) { events = append(events, u) })
	require.NoError(t, err)

	_, err = s.Set(pos, recA, ir.Properties{"x": ir.String("2"), "y": ir.Number(2)})
	require.Error(t, err)
	assert.True(t, IsTypeMismatchError(err))
	assert.Contains(t, err.Error(), "field x")

	assert.Equal(t, xy(1, 1), s.Get(pos, recA))
	assert.Empty(t, events)
}

func TestSetDropsUndeclaredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	s := New(WithLogger(logger))
	pos := s.MustRegisterTable("Position", schema.MustNew(schema.F("x", "number"), schema.F("y", "number")))

	props := xy(1, 2)
	props["z"] = ir.Number(3)
	u, err := s.Set(pos, recA, props)
	require.NoError(t, err)

	assert.Equal(t, Enter, u.Type)
	assert.Equal(t, xy(1, 2), s.Get(pos, recA))
	assert.Contains(t, buf.String(), "dropping undeclared fields")
	assert.Contains(t, buf.String(), "table=Position")
}

func TestUpdate(t *testing.T) {
	s, pos := setupPositionStore(t)

	_, err := s.Update(pos, recA, ir.Properties{"x": ir.Number(1)}, nil)
	require.Error(t, err)
	assert.True(t, IsMutationError(err))
	assert.False(t, s.Has(pos, recA))

	u, err := s.Update(pos, recA, ir.Properties{"x": ir.Number(1)}, xy(0, 0))
	require.NoError(t, err)
	assert.Equal(t, Enter, u.Type)
	assert.Equal(t, xy(1, 0), s.Get(pos, recA))

	u, err = s.Update(pos, recA, ir.Properties{"y": ir.Number(5)}, xy(9, 9))
	require.NoError(t, err)
	assert.Equal(t, Change, u.Type)
	assert.Equal(t, xy(1, 5), s.Get(pos, recA), "fallback ignored when properties exist")
}

func TestRemove(t *testing.T) {
	s, pos := setupPositionStore(t)
	mustSet(t, s, pos, recA, xy(1, 1))

	u, err := s.Remove(pos, recA)
	require.NoError(t, err)
	assert.Equal(t, Exit, u.Type)
	assert.Equal(t, xy(1, 1), u.Prev)
	assert.Nil(t, u.Current)

	u, err = s.Remove(pos, recA)
	require.NoError(t, err)
	assert.Equal(t, Noop, u.Type)
}

func TestPresenceIsAllOrNothing(t *testing.T) {
	s, pos := setupPositionStore(t)

	mustSet(t, s, pos, recA, ir.Properties{"x": ir.Number(1)})
	assert.False(t, s.Has(pos, recA))
	assert.Nil(t, s.Get(pos, recA))
	assert.Empty(t, s.GetAll(pos))

	// The merge starts from the fallback, not from the hidden partial columns.
	u, err := s.Update(pos, recA, ir.Properties{"y": ir.Number(1)}, ir.Properties{})
	require.NoError(t, err)
	assert.Equal(t, Noop, u.Type)
	assert.False(t, s.Has(pos, recA))

	u = mustSet(t, s, pos, recA, xy(1, 1))
	assert.Equal(t, Enter, u.Type)
	assert.Equal(t, []ir.Record{recA}, s.GetAll(pos))
}

func TestForeignTableRejected(t *testing.T) {
	s1, pos := setupPositionStore(t)
	s2 := New()

	_, err := s2.Set(pos, recA, xy(1, 1))
	assert.True(t, IsConfigurationError(err))
	assert.False(t, s2.Has(pos, recA))

	_, err = s1.Set(nil, recA, xy(1, 1))
	assert.True(t, IsConfigurationError(err))
}

func TestErrorMessages(t *testing.T) {
	err := &Error{Code: ErrCodeMutation, Message: "boom", Table: "T", Record: ir.MustParseRecord("0xff")}
	assert.Contains(t, err.Error(), "MUTATION: boom (table=T, record=0x")

	err = &Error{Code: ErrCodeConfiguration, Message: "bad", Table: "T"}
	assert.Equal(t, "CONFIGURATION: bad (table=T)", err.Error())

	err = &Error{Code: ErrCodeConfiguration, Message: "bad"}
	assert.Equal(t, "CONFIGURATION: bad", err.Error())
}
