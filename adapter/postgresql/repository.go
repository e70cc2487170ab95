package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/binaryburst/entitykit/internal/sqlcrud"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.llib.dev/frameless/pkg/flsql"
)

// Mapping describes how an entity is laid out in its PostgreSQL table.
// IDs generated by the database must come from a serial or identity column.
type Mapping[ENT any, ID comparable] = sqlcrud.Mapping[ENT, ID]

// Repository is a crud.Repository over a PostgreSQL table.
type Repository[ENT any, ID comparable] = sqlcrud.Repository[ENT, ID]

func NewRepository[ENT any, ID comparable](conn Connection, m Mapping[ENT, ID]) Repository[ENT, ID] {
	return Repository[ENT, ID]{Connection: conn, Mapping: m, Dialect: Dialect}
}

// uniqueViolation is the SQLSTATE of a unique key violation.
const uniqueViolation = "23505"

var Dialect = sqlcrud.Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },

	InsertReturningID: func(ctx context.Context, c flsql.Queryable, query, idColumn string, args []any, dst any) error {
		return c.QueryRowContext(ctx, query+" RETURNING "+idColumn, args...).Scan(dst)
	},

	// Inserting a row with an explicit ID doesn't advance the column's sequence,
	// so it is moved past the highest stored ID to keep generated IDs free.
	AfterExplicitInsert: func(ctx context.Context, c flsql.Queryable, table, idColumn string) error {
		query := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%s', '%s'), GREATEST((SELECT MAX(%s) FROM %s), 1))`,
			table, idColumn, idColumn, table)
		var v sql.NullInt64
		return c.QueryRowContext(ctx, query).Scan(&v)
	},

	IsUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
	},

	IsNoRows: func(err error) bool {
		return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
	},
}
