package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type MethodMemoryRow struct {
	Isbn string
	Tier string
}

const listMethodMemory = `
SELECT isbn, tier FROM method_memory
`

func (q *Queries) ListMethodMemory(ctx context.Context) ([]MethodMemoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listMethodMemory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MethodMemoryRow
	for rows.Next() {
		var i MethodMemoryRow
		if err := rows.Scan(&i.Isbn, &i.Tier); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertMethodMemory = `
INSERT INTO method_memory (isbn, tier) VALUES (?, ?)
ON CONFLICT (isbn) DO UPDATE SET tier = excluded.tier
`

type UpsertMethodMemoryParams struct {
	Isbn string
	Tier string
}

func (q *Queries) UpsertMethodMemory(ctx context.Context, arg UpsertMethodMemoryParams) error {
	_, err := q.db.ExecContext(ctx, upsertMethodMemory, arg.Isbn, arg.Tier)
	return err
}

type HistoryRow struct {
	Isbn      string
	Date      string
	Available int64
	Price     sql.NullString
	Title     string
}

const listHistory = `
SELECT isbn, date, available, price, title FROM history
`

func (q *Queries) ListHistory(ctx context.Context) ([]HistoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listHistory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []HistoryRow
	for rows.Next() {
		var i HistoryRow
		if err := rows.Scan(&i.Isbn, &i.Date, &i.Available, &i.Price, &i.Title); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const clearHistory = `
DELETE FROM history
`

func (q *Queries) ClearHistory(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, clearHistory)
	return err
}

const createHistory = `
INSERT INTO history (isbn, date, available, price, title) VALUES (?, ?, ?, ?, ?)
`

type CreateHistoryParams struct {
	Isbn      string
	Date      string
	Available int64
	Price     sql.NullString
	Title     string
}

func (q *Queries) CreateHistory(ctx context.Context, arg CreateHistoryParams) error {
	_, err := q.db.ExecContext(ctx, createHistory, arg.Isbn, arg.Date, arg.Available, arg.Price, arg.Title)
	return err
}
