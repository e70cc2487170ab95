package catalog

import (
	"context"

	"github.com/binaryburst/entitykit/adapter/boltdb"
	"github.com/binaryburst/entitykit/adapter/memory"
	"github.com/binaryburst/entitykit/adapter/mongodb"
	"github.com/binaryburst/entitykit/adapter/mysql"
	"github.com/binaryburst/entitykit/adapter/postgresql"
	"github.com/binaryburst/entitykit/internal/sqlcrud"
	"github.com/binaryburst/entitykit/port/crud"
	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	"go.llib.dev/frameless/pkg/flsql"
)

const (
	productsTable = "products"
	tagsTable     = "tags"
	// migrationNamespace owns the catalog schema steps.
	migrationNamespace = "catalog"
)

// Store gives the catalog repositories over one backing store.
type Store struct {
	Products crud.Repository[ProductRecord, int64]
	Tags     crud.Repository[TagRecord, uuid.UUID]
	// Ping reports whether the store can serve requests.
	Ping func(context.Context) error
	// Migrate prepares the store's schema, it is safe to call repeatedly.
	Migrate func(context.Context) error
	Close   func() error
}

func nop(context.Context) error { return nil }

func MemoryStore(m *memory.Memory) Store {
	return Store{
		Products: memory.NewRepositoryWithNamespace(m, productsTable, ProductIDA),
		Tags:     memory.NewRepositoryWithNamespace(m, tagsTable, TagIDA),
		Ping:     nop,
		Migrate:  nop,
		Close:    func() error { return nil },
	}
}

var productMapping = sqlcrud.Mapping[ProductRecord, int64]{
	Table:   productsTable,
	ID:      "id",
	Columns: []string{"name", "supplier_name"},
	ToArgs:  func(r ProductRecord) []any { return []any{r.Name, r.Supplier.Name} },
	Scan: func(s flsql.Scanner) (ProductRecord, error) {
		var r ProductRecord
		return r, s.Scan(&r.ID, &r.Name, &r.Supplier.Name)
	},
	IDA: ProductIDA,
}

var tagMapping = sqlcrud.Mapping[TagRecord, uuid.UUID]{
	Table:   tagsTable,
	ID:      "id",
	Columns: []string{"label"},
	ToArgs:  func(r TagRecord) []any { return []any{r.Label} },
	Scan: func(s flsql.Scanner) (TagRecord, error) {
		var r TagRecord
		return r, s.Scan(&r.ID, &r.Label)
	},
	IDA:   TagIDA,
	NewID: func(context.Context) (uuid.UUID, error) { return uuid.New(), nil },
}

var postgresqlSteps = []postgresql.Step{
	{Version: "0", Up: `CREATE TABLE IF NOT EXISTS products (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		supplier_name TEXT NOT NULL DEFAULT ''
	)`},
	{Version: "1", Up: `CREATE TABLE IF NOT EXISTS tags (
		id    UUID PRIMARY KEY,
		label TEXT NOT NULL
	)`},
}

func PostgresStore(conn postgresql.Connection) Store {
	return Store{
		Products: postgresql.NewRepository(conn, productMapping),
		Tags:     postgresql.NewRepository(conn, tagMapping),
		Ping:     conn.Ping,
		Migrate: func(ctx context.Context) error {
			return postgresql.Migrate(ctx, conn, migrationNamespace, postgresqlSteps...)
		},
		Close: conn.Close,
	}
}

var mysqlSteps = []mysql.Step{
	{Version: "0", Up: `CREATE TABLE IF NOT EXISTS products (
		id            BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name          VARCHAR(255) NOT NULL,
		supplier_name VARCHAR(255) NOT NULL DEFAULT ''
	)`},
	{Version: "1", Up: `CREATE TABLE IF NOT EXISTS tags (
		id    CHAR(36)     NOT NULL PRIMARY KEY,
		label VARCHAR(255) NOT NULL
	)`},
}

func MySQLStore(conn mysql.Connection) Store {
	return Store{
		Products: mysql.NewRepository(conn, productMapping),
		Tags:     mysql.NewRepository(conn, tagMapping),
		Ping:     conn.Ping,
		Migrate: func(ctx context.Context) error {
			return mysql.Migrate(ctx, conn, migrationNamespace, mysqlSteps...)
		},
		Close: conn.Close,
	}
}

func BoltStore(db *boltdb.DB) Store {
	products := boltdb.NewRepository(db, ProductIDA)
	products.Bucket = productsTable
	tags := boltdb.NewRepository(db, TagIDA)
	tags.Bucket = tagsTable
	return Store{
		Products: products,
		Tags:     tags,
		Ping:     db.Ping,
		Migrate: func(ctx context.Context) error {
			return db.Update(func(tx *bolt.Tx) error {
				for _, name := range []string{productsTable, tagsTable} {
					if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
						return err
					}
				}
				return nil
			})
		},
		Close: db.Close,
	}
}

// MongoStore keeps each resource in its own collection.
// Collections are created on first write, so there is nothing to migrate.
func MongoStore(c *mongodb.Client) Store {
	return Store{
		Products: mongodb.NewRepository(c, productsTable, ProductIDA),
		Tags:     mongodb.NewRepository(c, tagsTable, TagIDA),
		Ping:     c.Ping,
		Migrate:  nop,
		Close:    c.Close,
	}
}
