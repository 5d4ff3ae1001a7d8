package recording

import (
	"context"
	"database/sql"
)

// Reader reads recorded barriers back.
type Reader struct {
	*sql.DB
}

// NewReader opens a recording database file.
func NewReader(filename string) (*Reader, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return &Reader{DB: db}, nil
}

// Barriers returns the barriers recorded for a command buffer, in emission
// order.
func (r *Reader) Barriers(
	ctx context.Context,
	buffer string,
) ([]BarrierEntry, error) {
	rows, err := r.QueryContext(ctx,
		`SELECT ID, Buffer, Mode, Flush, Invalidate, Stall, Emitted,
			PostSyncValue, Reason
		FROM `+TableBarriers+` WHERE Buffer = ? ORDER BY rowid`, buffer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []BarrierEntry{}

	for rows.Next() {
		e := BarrierEntry{}

		err := rows.Scan(&e.ID, &e.Buffer, &e.Mode, &e.Flush, &e.Invalidate,
			&e.Stall, &e.Emitted, &e.PostSyncValue, &e.Reason)
		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CountRows returns the number of rows in a table.
func (r *Reader) CountRows(ctx context.Context, table string) (int, error) {
	var n int

	err := r.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)

	return n, err
}
