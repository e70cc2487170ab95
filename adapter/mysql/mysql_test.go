package mysql_test

import (
	"context"
	"sync"
	"testing"

	"github.com/binaryburst/entitykit/adapter/mysql"
	"github.com/binaryburst/entitykit/port/crud"
	"github.com/binaryburst/entitykit/port/crud/crudcontract"
	"go.llib.dev/frameless/pkg/env"
	"go.llib.dev/frameless/pkg/flsql"
	"go.llib.dev/testcase"
	"go.llib.dev/testcase/assert"
)

type Entity struct {
	ID  int64
	Foo string
	Bar int
}

var entityIDA = crud.IDAccessor[Entity, int64]{
	Get: func(e Entity) int64 { return e.ID },
	Set: func(e *Entity, id int64) { e.ID = id },
}

var EntityMapping = mysql.Mapping[Entity, int64]{
	Table:   "test_entities",
	ID:      "id",
	Columns: []string{"foo", "bar"},
	ToArgs:  func(e Entity) []any { return []any{e.Foo, e.Bar} },
	Scan: func(s flsql.Scanner) (Entity, error) {
		var e Entity
		return e, s.Scan(&e.ID, &e.Foo, &e.Bar)
	},
	IDA: entityIDA,
}

const entityMigrateUP = `
CREATE TABLE IF NOT EXISTS test_entities (
	id	BIGINT		NOT NULL AUTO_INCREMENT PRIMARY KEY,
	foo	TEXT		NOT NULL,
	bar	INTEGER		NOT NULL
);`

const entityMigrateDOWN = `DROP TABLE IF EXISTS test_entities;`

var (
	connection      mysql.Connection
	connectionOnce  sync.Once
	connectionError error
)

func DatabaseDSN(tb testing.TB) string {
	const envKey = "MYSQL_DSN"
	dsn, ok, err := env.Lookup[string](envKey)
	assert.NoError(tb, err)
	if !ok {
		tb.Skipf("%s is not set", envKey)
	}
	return dsn
}

func GetConnection(tb testing.TB) mysql.Connection {
	dsn := DatabaseDSN(tb)
	connectionOnce.Do(func() {
		connection, connectionError = mysql.Connect(dsn)
	})
	assert.NoError(tb, connectionError)
	return connection
}

func MigrateEntity(tb testing.TB, c mysql.Connection) {
	ctx := context.Background()
	_, err := c.ExecContext(ctx, entityMigrateDOWN)
	assert.NoError(tb, err)
	_, err = c.ExecContext(ctx, entityMigrateUP)
	assert.NoError(tb, err)
	tb.Cleanup(func() {
		_, err := c.ExecContext(ctx, entityMigrateDOWN)
		assert.NoError(tb, err)
	})
}

func TestRepository(t *testing.T) {
	cm := GetConnection(t)
	MigrateEntity(t, cm)

	s := testcase.NewSpec(t)
	crudcontract.Repository(s, func(testing.TB) crud.Repository[Entity, int64] {
		return mysql.NewRepository(cm, EntityMapping)
	}, crudcontract.Config[Entity, int64]{
		MakeEntity: func(tb testing.TB) Entity {
			t := tb.(*testcase.T)
			return Entity{Foo: t.Random.String(), Bar: t.Random.IntBetween(0, 1000)}
		},
		ChangeEntity: func(tb testing.TB, e *Entity) { e.Foo = tb.(*testcase.T).Random.String() },
		IDA:          entityIDA,
	})
}

func TestRepository_savingUnchangedEntityKeepsTheRow(t *testing.T) {
	cm := GetConnection(t)
	MigrateEntity(t, cm)
	ctx := context.Background()
	repo := mysql.NewRepository(cm, EntityMapping)

	ent, err := repo.Save(ctx, Entity{Foo: "same", Bar: 1})
	assert.NoError(t, err)
	_, err = repo.Save(ctx, ent)
	assert.NoError(t, err)

	vs, err := repo.FindAll(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []Entity{ent}, vs)
}

func TestDialect_IsUniqueViolation(t *testing.T) {
	cm := GetConnection(t)
	MigrateEntity(t, cm)
	ctx := context.Background()
	repo := mysql.NewRepository(cm, EntityMapping)

	ent, err := repo.Save(ctx, Entity{Foo: "a"})
	assert.NoError(t, err)

	_, err = cm.ExecContext(ctx, `INSERT INTO test_entities (id, foo, bar) VALUES (?, 'b', 0)`, ent.ID)
	assert.Error(t, err)
	assert.True(t, mysql.Dialect.IsUniqueViolation(err))
}
