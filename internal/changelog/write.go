package changelog

import (
	"context"
	"fmt"
)

// Append inserts e and returns whether a new row was written.
//
// Uses ON CONFLICT(seq, table_id, record) DO NOTHING for idempotency: an
// entry already logged for the same store update is silently ignored.
func (l *Log) Append(ctx context.Context, e Entry) (bool, error) {
	if err := e.validate(); err != nil {
		return false, fmt.Errorf("append: %w", err)
	}

	var props any
	if e.Op == OpSet {
		props = string(e.Data)
	}

	result, err := l.db.ExecContext(ctx, `
		INSERT INTO changes (seq, table_id, record, op, properties)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(seq, table_id, record) DO NOTHING
	`,
		e.Seq,
		e.Table,
		e.Record.String(),
		string(e.Op),
		props,
	)
	if err != nil {
		return false, fmt.Errorf("append: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append: rows affected: %w", err)
	}
	return n > 0, nil
}
