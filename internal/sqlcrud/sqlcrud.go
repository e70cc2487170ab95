// Package sqlcrud implements crud.Repository on top of a transaction aware flsql.Connection.
// The SQL adapters supply a Dialect for the parts where their databases differ.
package sqlcrud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/binaryburst/entitykit/port/crud"
	"go.llib.dev/frameless/pkg/flsql"
	"go.llib.dev/frameless/port/comproto"
)

type Dialect struct {
	// Placeholder returns the n-th (1 based) query argument placeholder.
	Placeholder func(n int) string
	// InsertReturningID runs an insert and scans the store generated identifier into dst.
	InsertReturningID func(ctx context.Context, c flsql.Queryable, query, idColumn string, args []any, dst any) error
	// AfterExplicitInsert [optional] runs after a row was inserted with a caller supplied ID.
	AfterExplicitInsert func(ctx context.Context, c flsql.Queryable, table, idColumn string) error
	// IsUniqueViolation reports whether err is a unique key violation.
	IsUniqueViolation func(err error) bool
	// IsNoRows reports whether err means an empty result for a single row query.
	IsNoRows func(err error) bool
}

// Mapping describes how an entity is laid out in its table.
type Mapping[ENT any, ID comparable] struct {
	// Table is the entity's table name
	Table string
	// ID is the entity's id column name
	ID string
	// Columns hold the entity's non-id column names.
	// The order of the column names is the order of ToArgs and Scan.
	Columns []string
	// ToArgs maps the entity's non-id fields into query arguments, following the order of Columns.
	ToArgs func(ent ENT) []any
	// Scan reads a row of the id column followed by Columns.
	Scan func(s flsql.Scanner) (ENT, error)
	// IDA is the entity's ID Accessor.
	IDA crud.IDAccessor[ENT, ID]
	// NewID [optional] generates the ID of a new entity on the client side.
	//
	// default: the id column's own default, like a serial or auto increment column
	NewID func(context.Context) (ID, error)
}

// Repository is a stateless crud.Repository over an SQL table.
type Repository[ENT any, ID comparable] struct {
	Connection flsql.Connection
	Mapping    Mapping[ENT, ID]
	Dialect    Dialect
}

func (r Repository[ENT, ID]) FindAll(ctx context.Context) (_ []ENT, rErr error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s`, r.selectList(), r.Mapping.Table, r.Mapping.ID)
	rows, err := r.Connection.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { rErr = errors.Join(rErr, rows.Close()) }()
	out := make([]ENT, 0)
	for rows.Next() {
		ent, err := r.Mapping.Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	return out, rows.Err()
}

func (r Repository[ENT, ID]) FindByID(ctx context.Context, id ID) (ENT, bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = %s`, r.selectList(), r.Mapping.Table, r.Mapping.ID, r.Dialect.Placeholder(1))
	ent, err := r.Mapping.Scan(r.Connection.QueryRowContext(ctx, query, id))
	if r.Dialect.IsNoRows(err) {
		return *new(ENT), false, nil
	}
	if err != nil {
		return *new(ENT), false, err
	}
	return ent, true, nil
}

func (r Repository[ENT, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE %s = %s`, r.Mapping.Table, r.Mapping.ID, r.Dialect.Placeholder(1))
	var one int
	err := r.Connection.QueryRowContext(ctx, query, id).Scan(&one)
	if r.Dialect.IsNoRows(err) {
		return false, nil
	}
	return err == nil, err
}

// Save updates the row of an entity with an ID, or inserts it when no row is there.
// Without ID the entity is inserted and receives the generated identifier.
func (r Repository[ENT, ID]) Save(ctx context.Context, ent ENT) (ENT, error) {
	if err := ctx.Err(); err != nil {
		return *new(ENT), err
	}
	id, ok := r.Mapping.IDA.Lookup(ent)
	if !ok && r.Mapping.NewID != nil {
		newID, err := r.Mapping.NewID(ctx)
		if err != nil {
			return *new(ENT), err
		}
		r.Mapping.IDA.Set(&ent, newID)
		return ent, r.insertWithID(ctx, newID, ent)
	}
	if !ok {
		return r.insertWithoutID(ctx, ent)
	}
	updated, err := r.update(ctx, id, ent)
	if err != nil || updated {
		return ent, err
	}
	if err := r.insertWithID(ctx, id, ent); err != nil {
		return *new(ENT), err
	}
	if r.Dialect.AfterExplicitInsert != nil && r.Mapping.NewID == nil {
		if err := r.Dialect.AfterExplicitInsert(ctx, r.Connection, r.Mapping.Table, r.Mapping.ID); err != nil {
			return *new(ENT), err
		}
	}
	return ent, nil
}

func (r Repository[ENT, ID]) SaveAll(ctx context.Context, ents []ENT) (_ []ENT, rErr error) {
	ctx, err := r.Connection.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer comproto.FinishOnePhaseCommit(&rErr, r.Connection, ctx)
	out := make([]ENT, 0, len(ents))
	for _, ent := range ents {
		saved, err := r.Save(ctx, ent)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (r Repository[ENT, ID]) DeleteByID(ctx context.Context, id ID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = %s`, r.Mapping.Table, r.Mapping.ID, r.Dialect.Placeholder(1))
	result, err := r.Connection.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	count, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return crud.NotFound[ENT](id)
	}
	return nil
}

func (r Repository[ENT, ID]) DeleteAll(ctx context.Context) error {
	_, err := r.Connection.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, r.Mapping.Table))
	return err
}

func (r Repository[ENT, ID]) BeginTx(ctx context.Context) (context.Context, error) {
	return r.Connection.BeginTx(ctx)
}

func (r Repository[ENT, ID]) CommitTx(ctx context.Context) error {
	return r.Connection.CommitTx(ctx)
}

func (r Repository[ENT, ID]) RollbackTx(ctx context.Context) error {
	return r.Connection.RollbackTx(ctx)
}

func (r Repository[ENT, ID]) update(ctx context.Context, id ID, ent ENT) (bool, error) {
	var sets []string
	for i, col := range r.Mapping.Columns {
		sets = append(sets, fmt.Sprintf(`%s = %s`, col, r.Dialect.Placeholder(i+2)))
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = %s`,
		r.Mapping.Table, strings.Join(sets, `, `), r.Mapping.ID, r.Dialect.Placeholder(1))
	args := append([]any{id}, r.Mapping.ToArgs(ent)...)
	result, err := r.Connection.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	count, err := result.RowsAffected()
	return count > 0, err
}

func (r Repository[ENT, ID]) insertWithID(ctx context.Context, id ID, ent ENT) error {
	columns := append([]string{r.Mapping.ID}, r.Mapping.Columns...)
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		r.Mapping.Table, strings.Join(columns, `, `), r.placeholders(len(columns)))
	args := append([]any{id}, r.Mapping.ToArgs(ent)...)
	if _, err := r.Connection.ExecContext(ctx, query, args...); err != nil {
		if r.Dialect.IsUniqueViolation(err) {
			return crud.AlreadyExists[ENT](id)
		}
		return err
	}
	return nil
}

func (r Repository[ENT, ID]) insertWithoutID(ctx context.Context, ent ENT) (ENT, error) {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		r.Mapping.Table, strings.Join(r.Mapping.Columns, `, `), r.placeholders(len(r.Mapping.Columns)))
	var id ID
	if err := r.Dialect.InsertReturningID(ctx, r.Connection, query, r.Mapping.ID, r.Mapping.ToArgs(ent), &id); err != nil {
		if r.Dialect.IsUniqueViolation(err) {
			return *new(ENT), crud.ErrIDAlreadyExists.Wrap(err)
		}
		return *new(ENT), err
	}
	r.Mapping.IDA.Set(&ent, id)
	return ent, nil
}

func (r Repository[ENT, ID]) placeholders(n int) string {
	phs := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		phs = append(phs, r.Dialect.Placeholder(i))
	}
	return strings.Join(phs, `, `)
}

func (r Repository[ENT, ID]) selectList() string {
	return strings.Join(append([]string{r.Mapping.ID}, r.Mapping.Columns...), `, `)
}
