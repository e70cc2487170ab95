package postgresql

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.llib.dev/frameless/pkg/flsql"
)

// Connection is a pgx pool that keeps the current transaction in the context.
// Nested BeginTx calls share the outermost transaction.
type Connection struct {
	flsql.ConnectionAdapter[pgxpool.Pool, pgx.Tx]
}

// Connect opens a pool for the database URL and checks that the server answers.
func Connect(ctx context.Context, databaseURL string) (Connection, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return Connection{}, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return Connection{}, err
	}
	return Connection{ConnectionAdapter: flsql.ConnectionAdapter[pgxpool.Pool, pgx.Tx]{
		DB:        pool,
		DBAdapter: func(p *pgxpool.Pool) flsql.Queryable { return queryable[*pgxpool.Pool]{q: p} },
		TxAdapter: func(tx *pgx.Tx) flsql.Queryable { return queryable[pgx.Tx]{q: *tx} },
		Begin:     begin,
		Commit:    func(ctx context.Context, tx *pgx.Tx) error { return (*tx).Commit(ctx) },
		Rollback:  func(ctx context.Context, tx *pgx.Tx) error { return (*tx).Rollback(ctx) },
		OnClose: func() error {
			pool.Close()
			return nil
		},
		ErrTxDone: pgx.ErrTxClosed,
	}}, nil
}

func begin(ctx context.Context, pool *pgxpool.Pool) (*pgx.Tx, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// Ping verifies that the database is reachable.
func (c Connection) Ping(ctx context.Context) error {
	return c.DB.Ping(ctx)
}

// pgxQuerier is what a pool and a transaction have in common.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queryable presents a pgxQuerier through the database/sql shaped flsql.Queryable.
type queryable[Q pgxQuerier] struct{ q Q }

func (a queryable[Q]) ExecContext(ctx context.Context, query string, args ...any) (flsql.Result, error) {
	tag, err := a.q.Exec(ctx, query, args...)
	return result{tag: tag}, err
}

func (a queryable[Q]) QueryContext(ctx context.Context, query string, args ...any) (flsql.Rows, error) {
	rs, err := a.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows{Rows: rs}, nil
}

func (a queryable[Q]) QueryRowContext(ctx context.Context, query string, args ...any) flsql.Row {
	return a.q.QueryRow(ctx, query, args...)
}

type result struct{ tag pgconn.CommandTag }

func (r result) RowsAffected() (int64, error) { return r.tag.RowsAffected(), nil }

// rows reports the iteration error on Close, pgx.Rows.Close has no return value.
type rows struct{ pgx.Rows }

func (r rows) Close() error {
	r.Rows.Close()
	return r.Rows.Err()
}
