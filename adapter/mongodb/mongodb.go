// Package mongodb stores entities as documents, one collection per entity type.
//
// Transactions are backed by mongo sessions and need a replica set deployment.
package mongodb

import (
	"context"
	"time"

	"go.llib.dev/frameless/pkg/errorkit"
	"go.llib.dev/frameless/port/comproto"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	errTxDone errorkit.Error = "mongodb: transaction is already done"
	errNoTx   errorkit.Error = "mongodb: no transaction found in the context"
)

const connectTimeout = 10 * time.Second

func Connect(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, errorkit.Merge(err, client.Disconnect(context.Background()))
	}
	return &Client{Client: client, Database: client.Database(database)}, nil
}

// Client is a mongo client bound to a database that keeps the current transaction in the context.
type Client struct {
	Client   *mongo.Client
	Database *mongo.Database
}

var _ comproto.OnePhaseCommitProtocol = &Client{}

func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx, readpref.Primary())
}

func (c *Client) Close() error {
	return c.Client.Disconnect(context.Background())
}

type ctxKeyTx struct{ c *mongo.Client }

// Tx is a session transaction carried in the context.
// Nested transactions share the session of their root.
type Tx struct {
	session mongo.Session
	parent  *Tx
	done    bool
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

func (c *Client) BeginTx(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return ctx, err
	}
	if parent, ok := c.lookupTx(ctx); ok {
		if parent.isDone() {
			return ctx, errTxDone
		}
		return context.WithValue(ctx, ctxKeyTx{c: c.Client}, &Tx{session: parent.session, parent: parent}), nil
	}
	session, err := c.Client.StartSession()
	if err != nil {
		return ctx, err
	}
	if err := session.StartTransaction(); err != nil {
		session.EndSession(ctx)
		return ctx, err
	}
	ctx = mongo.NewSessionContext(ctx, session)
	return context.WithValue(ctx, ctxKeyTx{c: c.Client}, &Tx{session: session}), nil
}

func (c *Client) CommitTx(ctx context.Context) error {
	tx, ok := c.lookupTx(ctx)
	if !ok {
		return errNoTx
	}
	if tx.isDone() {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		return errorkit.Merge(err, c.RollbackTx(ctx))
	}
	tx.done = true
	if tx.parent != nil {
		return nil
	}
	defer tx.session.EndSession(context.WithoutCancel(ctx))
	return tx.session.CommitTransaction(ctx)
}

// RollbackTx aborts the transaction of the context.
// A nested rollback aborts the whole root transaction.
func (c *Client) RollbackTx(ctx context.Context) error {
	tx, ok := c.lookupTx(ctx)
	if !ok {
		return errNoTx
	}
	if tx.isDone() {
		return errTxDone
	}
	tx.done = true
	root := tx.root()
	root.done = true
	ctx = context.WithoutCancel(ctx)
	defer root.session.EndSession(ctx)
	return root.session.AbortTransaction(ctx)
}

func (c *Client) lookupTx(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(ctxKeyTx{c: c.Client}).(*Tx)
	return tx, ok
}

func (c *Client) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := c.lookupTx(ctx); ok && tx.isDone() {
		return errTxDone
	}
	return nil
}
