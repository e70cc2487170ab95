package mongodb_test

import (
	"context"
	"sync"
	"testing"

	"github.com/binaryburst/entitykit/adapter/mongodb"
	"github.com/binaryburst/entitykit/port/crud"
	"github.com/binaryburst/entitykit/port/crud/crudcontract"
	"github.com/google/uuid"
	"go.llib.dev/frameless/pkg/env"
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

var (
	client      *mongodb.Client
	clientOnce  sync.Once
	clientError error
)

// DatabaseURI points to a replica set, transactions are not available on a standalone server.
func DatabaseURI(tb testing.TB) string {
	const envKey = "MONGODB_URI"
	uri, ok, err := env.Lookup[string](envKey)
	assert.NoError(tb, err)
	if !ok {
		tb.Skipf("%s is not set", envKey)
	}
	return uri
}

func GetClient(tb testing.TB) *mongodb.Client {
	uri := DatabaseURI(tb)
	clientOnce.Do(func() {
		client, clientError = mongodb.Connect(context.Background(), uri, "entitykit_test")
	})
	assert.NoError(tb, clientError)
	return client
}

func TestRepository(t *testing.T) {
	c := GetClient(t)
	s := testcase.NewSpec(t)
	crudcontract.Repository(s, func(testing.TB) crud.Repository[Entity, int64] {
		return mongodb.NewRepository(c, "test_entities", entityIDA)
	}, crudcontract.Config[Entity, int64]{
		MakeEntity: func(tb testing.TB) Entity {
			t := tb.(*testcase.T)
			return Entity{Foo: t.Random.String(), Bar: t.Random.IntBetween(0, 1000)}
		},
		ChangeEntity: func(tb testing.TB, e *Entity) { e.Foo = tb.(*testcase.T).Random.String() },
		IDA:          entityIDA,
	})
}

type Label struct {
	ID   uuid.UUID
	Text string
}

func TestRepository_uuidID(t *testing.T) {
	c := GetClient(t)
	ctx := context.Background()
	repo := mongodb.NewRepository(c, "test_labels", crud.IDAccessor[Label, uuid.UUID]{
		Get: func(l Label) uuid.UUID { return l.ID },
		Set: func(l *Label, id uuid.UUID) { l.ID = id },
	})
	assert.NoError(t, repo.DeleteAll(ctx))
	t.Cleanup(func() { _ = repo.DeleteAll(ctx) })

	saved, err := repo.Save(ctx, Label{Text: "x"})
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, saved.ID)

	got, found, err := repo.FindByID(ctx, saved.ID)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, saved, got)
}

func TestRepository_generatedIDSkipsClientSuppliedIDs(t *testing.T) {
	c := GetClient(t)
	ctx := context.Background()
	repo := mongodb.NewRepository(c, "test_skip_entities", entityIDA)
	assert.NoError(t, repo.DeleteAll(ctx))
	t.Cleanup(func() { _ = repo.DeleteAll(ctx) })

	a, err := repo.Save(ctx, Entity{Foo: "a"})
	assert.NoError(t, err)
	_, err = repo.Save(ctx, Entity{ID: a.ID + 1, Foo: "client"})
	assert.NoError(t, err)

	b, err := repo.Save(ctx, Entity{Foo: "b"})
	assert.NoError(t, err)
	assert.Equal(t, a.ID+2, b.ID)
}

func TestRepository_concurrentInsertOfTheSameID(t *testing.T) {
	c := GetClient(t)
	ctx := context.Background()
	repo := mongodb.NewRepository(c, "test_conflict_entities", entityIDA)
	assert.NoError(t, repo.DeleteAll(ctx))
	t.Cleanup(func() { _ = repo.DeleteAll(ctx) })

	tx1, err := repo.BeginTx(ctx)
	assert.NoError(t, err)
	tx2, err := repo.BeginTx(ctx)
	assert.NoError(t, err)

	_, err = repo.Save(tx1, Entity{ID: 42, Foo: "first"})
	assert.NoError(t, err)
	_, err = repo.Save(tx2, Entity{ID: 42, Foo: "second"})
	assert.ErrorIs(t, crud.ErrIDAlreadyExists, err)

	assert.NoError(t, repo.CommitTx(tx1))
	assert.NoError(t, repo.RollbackTx(tx2))

	got, found, err := repo.FindByID(ctx, 42)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "first", got.Foo)
}
