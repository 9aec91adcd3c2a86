package store

import (
	"log/slog"

	"github.com/roach88/recs/internal/ir"
	"github.com/roach88/recs/internal/schema"
)

// Store holds a set of tables and dispatches their updates.
//
// A Store is an explicit handle: there is no package-level registry, and
// every query, watcher and recorder is given the store it works on.
//
// Thread-safety model: none. All mutations, reads and notifications run
// synchronously on the caller's goroutine.
type Store struct {
	tables map[string]*Table
	order  []*Table
	clock  *Clock
	logger *slog.Logger

	global []*listener
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for schema drift warnings and debug
// output. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock sets the logical clock stamping updates. Default: a new clock
// starting at 0.
func WithClock(c *Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		tables: make(map[string]*Table),
		clock:  NewClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clock returns the store's logical clock.
func (s *Store) Clock() *Clock {
	return s.clock
}

// RegisterTable creates a table. Registration fails with a configuration
// error for a duplicate or malformed id, or an unusable relation field.
func (s *Store) RegisterTable(id string, sch schema.Schema, opts ...TableOption) (*Table, error) {
	if !schema.ValidName(id) {
		return nil, newConfigurationError(id, "invalid table id %q", id)
	}
	if _, dup := s.tables[id]; dup {
		return nil, newConfigurationError(id, "table already registered")
	}

	cfg := tableConfig{metadata: make(map[string]string)}
	for _, opt := range opts {
		opt(&cfg)
	}

	relation := cfg.relation
	if relation != "" {
		f, ok := sch.Lookup(relation)
		if !ok {
			return nil, newConfigurationError(id, "relation field %q is not declared", relation)
		}
		if !f.Type.IsRelation() {
			return nil, newConfigurationError(id, "relation field %q must be a single record, got %s", relation, f.Type)
		}
	} else if rels := sch.Relations(); len(rels) == 1 {
		relation = rels[0]
	}

	t := &Table{
		store:     s,
		id:        id,
		schema:    sch,
		required:  sch.Required(),
		metadata:  cfg.metadata,
		columns:   make(map[string]map[ir.Record]ir.Value, sch.Len()),
		rows:      ir.NewRecordSet(),
		present:   ir.NewRecordSet(),
		relation:  relation,
		children:  make(map[ir.Record]ir.RecordSet),
		valueIdx:  make(map[string]ir.RecordSet),
		indexVals: cfg.valueIndex,
	}
	for _, f := range sch.Fields() {
		t.columns[f.Name] = make(map[ir.Record]ir.Value)
	}

	s.tables[id] = t
	s.order = append(s.order, t)

	s.logger.Debug("table registered",
		"table", id,
		"schema", sch.String(),
		"relation", relation,
		"value_index", cfg.valueIndex,
	)
	return t, nil
}

// MustRegisterTable is like RegisterTable but panics on error.
// Use only in tests or when inputs are known to be valid.
func (s *Store) MustRegisterTable(id string, sch schema.Schema, opts ...TableOption) *Table {
	t, err := s.RegisterTable(id, sch, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Table returns the table registered under id.
func (s *Store) Table(id string) (*Table, bool) {
	t, ok := s.tables[id]
	return t, ok
}

// Tables returns all tables in registration order.
func (s *Store) Tables() []*Table {
	out := make([]*Table, len(s.order))
	copy(out, s.order)
	return out
}

// owns rejects nil tables and tables registered with another store.
func (s *Store) owns(t *Table) error {
	if t == nil {
		return newConfigurationError("", "nil table")
	}
	if t.store != s {
		return newConfigurationError(t.id, "table belongs to another store")
	}
	return nil
}
