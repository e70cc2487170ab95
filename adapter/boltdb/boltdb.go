// Package boltdb stores entities in a single bolt database file, one bucket per entity type.
package boltdb

import (
	"context"
	"time"

	"github.com/boltdb/bolt"
	"go.llib.dev/frameless/pkg/errorkit"
	"go.llib.dev/frameless/port/comproto"
)

const (
	errTxDone errorkit.Error = "boltdb: transaction is already done"
	errNoTx   errorkit.Error = "boltdb: no transaction found in the context"
)

// Open opens or creates the database file at path.
// The file is locked while it is open, a second Open of the same file waits up to a second.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &DB{DB: db}, nil
}

// DB is a bolt database that keeps the current transaction in the context.
//
// Bolt allows a single writer, so a transaction holds the write lock until it is finished.
// Calls made with a context that has no transaction open their own short one.
type DB struct {
	*bolt.DB
}

var _ comproto.OnePhaseCommitProtocol = &DB{}

// Ping reports whether the database file is still open.
func (db *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.DB.View(func(*bolt.Tx) error { return nil })
}

type ctxKeyTx struct{ db *bolt.DB }

// Tx is a transaction carried in the context.
// Nested transactions share the bolt transaction of their root.
type Tx struct {
	tx     *bolt.Tx
	parent *Tx
	done   bool
}

func (tx *Tx) root() *Tx {
	for tx.parent != nil {
		tx = tx.parent
	}
	return tx
}

func (tx *Tx) isDone() bool {
	return tx.done || tx.root().done
}

func (db *DB) BeginTx(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return ctx, err
	}
	if parent, ok := db.lookupTx(ctx); ok {
		if parent.isDone() {
			return ctx, errTxDone
		}
		return context.WithValue(ctx, ctxKeyTx{db: db.DB}, &Tx{tx: parent.tx, parent: parent}), nil
	}
	btx, err := db.DB.Begin(true)
	if err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, ctxKeyTx{db: db.DB}, &Tx{tx: btx}), nil
}

// CommitTx commits the transaction of the context.
// Committing a nested transaction leaves its changes to the root transaction.
func (db *DB) CommitTx(ctx context.Context) error {
	tx, ok := db.lookupTx(ctx)
	if !ok {
		return errNoTx
	}
	if tx.isDone() {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		return errorkit.Merge(err, db.RollbackTx(ctx))
	}
	tx.done = true
	if tx.parent != nil {
		return nil
	}
	return tx.tx.Commit()
}

// RollbackTx discards the transaction of the context.
// A nested rollback discards the whole root transaction.
func (db *DB) RollbackTx(ctx context.Context) error {
	tx, ok := db.lookupTx(ctx)
	if !ok {
		return errNoTx
	}
	if tx.isDone() {
		return errTxDone
	}
	tx.done = true
	root := tx.root()
	root.done = true
	return root.tx.Rollback()
}

func (db *DB) lookupTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(ctxKeyTx{db: db.DB}).(*Tx)
	return tx, ok
}

func (db *DB) view(ctx context.Context, fn func(*bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := db.lookupTx(ctx); ok {
		if tx.isDone() {
			return errTxDone
		}
		return fn(tx.tx)
	}
	return db.DB.View(fn)
}

func (db *DB) update(ctx context.Context, fn func(*bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := db.lookupTx(ctx); ok {
		if tx.isDone() {
			return errTxDone
		}
		return fn(tx.tx)
	}
	return db.DB.Update(fn)
}
