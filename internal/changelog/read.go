package changelog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/recs/internal/ir"
)

// Each calls fn for every entry with seq greater than after, ordered by
// seq ASC, id ASC. Iteration stops at the first error from fn.
func (l *Log) Each(ctx context.Context, after int64, fn func(Entry) error) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, seq, table_id, record, op, properties
		FROM changes
		WHERE seq > ?
		ORDER BY seq ASC, id ASC
	`, after)
	if err != nil {
		return fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate changes: %w", err)
	}
	return nil
}

// Read returns every entry with seq greater than after, in log order.
// Returns an empty slice (not nil) when there are none.
func (l *Log) Read(ctx context.Context, after int64) ([]Entry, error) {
	entries := []Entry{}
	err := l.Each(ctx, after, func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LastSeq returns the highest logged seq, or 0 for an empty log. A store
// that continues a logged session starts its clock here.
func (l *Log) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := l.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM changes").Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// Count returns the number of entries.
func (l *Log) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM changes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count changes: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e      Entry
		record string
		op     string
		props  sql.NullString
	)
	if err := rows.Scan(&e.ID, &e.Seq, &e.Table, &record, &op, &props); err != nil {
		return Entry{}, fmt.Errorf("scan change: %w", err)
	}

	r, err := ir.ParseRecord(record)
	if err != nil {
		return Entry{}, fmt.Errorf("change %d: %w", e.ID, err)
	}
	e.Record = r
	e.Op = Op(op)
	if props.Valid {
		e.Data = []byte(props.String)
	}
	return e, nil
}
