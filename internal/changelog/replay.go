package changelog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/recs/internal/store"
)

// Recorder mirrors every store update into a log.
//
// Enter and change updates are logged as OpSet with the record's full
// properties, exits as OpRemove. Noop updates change nothing observable
// and are not logged. Writes made with store.SkipNotify emit no update and
// are therefore not logged either: a replay reproduces the recorded store
// only when the session made no such writes. Listeners cannot fail a mutation, so the first append
// error is kept and reported by Err; later updates are still attempted.
type Recorder struct {
	ctx    context.Context
	log    *Log
	logger *slog.Logger
	unsub  func()
	err    error
	n      int
}

// Option configures a Recorder or a Replay.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts []Option) config {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRecorder starts recording st's updates into log. Appends use ctx.
func NewRecorder(ctx context.Context, st *store.Store, log *Log, opts ...Option) *Recorder {
	rec := &Recorder{ctx: ctx, log: log, logger: newConfig(opts).logger}
	rec.unsub = st.SubscribeAll(rec.record)
	return rec
}

func (rec *Recorder) record(u store.Update) {
	var (
		e   Entry
		err error
	)
	switch u.Type {
	case store.Enter, store.Change:
		e, err = SetEntry(u.Seq, u.Table.ID(), u.Record, u.Current)
	case store.Exit:
		e = RemoveEntry(u.Seq, u.Table.ID(), u.Record)
	default:
		return
	}
	if err == nil {
		_, err = rec.log.Append(rec.ctx, e)
	}
	if err != nil {
		rec.logger.Error("change log append failed",
			"table", u.Table.ID(),
			"record", u.Record.Short(),
			"seq", u.Seq,
			"error", err,
		)
		if rec.err == nil {
			rec.err = err
		}
		return
	}
	rec.n++
}

// Recorded returns the number of entries appended.
func (rec *Recorder) Recorded() int {
	return rec.n
}

// Err returns the first append error, if any.
func (rec *Recorder) Err() error {
	return rec.err
}

// Close stops recording and returns Err. Close is idempotent.
func (rec *Recorder) Close() error {
	if rec.unsub != nil {
		rec.unsub()
		rec.unsub = nil
	}
	return rec.err
}

// ReplayResult summarizes a Replay.
type ReplayResult struct {
	Applied int   // entries applied to the store
	Skipped int   // entries for tables the store does not have
	LastSeq int64 // seq of the last entry read, 0 for an empty log
}

// Replay applies every logged entry to st in log order using the store's
// mutation primitives, so st's listeners observe the session again.
// Entries for tables st does not have are skipped with a warning. Replay
// stops at the first entry that fails to decode or apply.
//
// Replaying a recorded session into an empty store with the same tables
// reproduces the recorded store contents.
func Replay(ctx context.Context, log *Log, st *store.Store, opts ...Option) (ReplayResult, error) {
	logger := newConfig(opts).logger

	entries, err := log.Read(ctx, 0)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	// Entries are read up front: the log holds a single connection, and a
	// listener on st may append to it while we apply.
	var res ReplayResult
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("replay: %w", err)
		}
		if err := apply(st, e, &res, logger); err != nil {
			return res, fmt.Errorf("replay: change %d (seq %d): %w", e.ID, e.Seq, err)
		}
	}

	logger.Debug("replay complete", "applied", res.Applied, "skipped", res.Skipped, "last_seq", res.LastSeq)
	return res, nil
}

func apply(st *store.Store, e Entry, res *ReplayResult, logger *slog.Logger) error {
	res.LastSeq = e.Seq

	t, ok := st.Table(e.Table)
	if !ok {
		logger.Warn("skipping change for unknown table",
			"table", e.Table,
			"record", e.Record.Short(),
			"seq", e.Seq,
		)
		res.Skipped++
		return nil
	}

	switch e.Op {
	case OpSet:
		props, err := e.Decode(t.Schema())
		if err != nil {
			return err
		}
		if _, err := st.Set(t, e.Record, props); err != nil {
			return err
		}
	case OpRemove:
		if _, err := st.Remove(t, e.Record); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown op %q", e.Op)
	}
	res.Applied++
	return nil
}
