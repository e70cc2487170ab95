// Package crud holds the storage contract that the generic service depends on.
//
// A Repository is the only collaborator that knows how records are stored.
// The service never issues raw queries; indexing, caching or query optimisation
// all live behind this interface.
package crud

import (
	"context"

	"go.llib.dev/frameless/port/comproto"
)

// Repository is the minimal capability set a store must supply for an entity type.
type Repository[ENT any, ID comparable] interface {
	AllFinder[ENT]
	ByIDFinder[ENT, ID]
	Saver[ENT]
	Deleter[ID]
}

type AllFinder[ENT any] interface {
	// FindAll returns every stored entity.
	// The order follows the store's iteration order and is otherwise unspecified.
	// An empty store yields an empty, non-nil slice.
	FindAll(ctx context.Context) ([]ENT, error)
}

type ByIDFinder[ENT any, ID comparable] interface {
	// FindByID tries to find an ENT using its ID.
	// Instead of using an error to represent a "not found" situation,
	// the found bool return value is used to provide this information explicitly.
	FindByID(ctx context.Context, id ID) (ent ENT, found bool, err error)
	// ExistsByID reports whether an entity is stored under the given ID.
	ExistsByID(ctx context.Context, id ID) (bool, error)
}

type Saver[ENT any] interface {
	// Save stores the entity.
	// When the entity has no ID, the store assigns one and the returned ENT carries it.
	// When the ID is present, the stored record is created or overwritten.
	// A uniqueness violation on the identifier must be reported as ErrIDAlreadyExists.
	Save(ctx context.Context, ent ENT) (ENT, error)
	// SaveAll stores the whole batch as a single unit of work.
	// Either every entity is persisted or none of them are.
	SaveAll(ctx context.Context, ents []ENT) ([]ENT, error)
}

type Deleter[ID comparable] interface {
	// DeleteByID removes the entity stored under id.
	// It returns ErrNotFound when nothing was stored with that ID.
	DeleteByID(ctx context.Context, id ID) error
	// DeleteAll removes every entity of the repository.
	DeleteAll(ctx context.Context) error
}

// IDAccessor gives typed access to an entity's identifier field.
// The zero value of ID is the sentinel for "not yet assigned".
type IDAccessor[ENT any, ID comparable] struct {
	Get func(ENT) ID
	Set func(*ENT, ID)
}

// Lookup returns the entity's ID and whether it is set.
func (a IDAccessor[ENT, ID]) Lookup(ent ENT) (ID, bool) {
	id := a.Get(ent)
	var zero ID
	return id, id != zero
}

// InTx runs fn inside a transaction when the repository supports the one phase commit protocol.
// The transaction is committed when fn succeeds and rolled back otherwise.
// Repositories without transaction support run fn with the original context.
func InTx(ctx context.Context, repo any, fn func(ctx context.Context) error) (rErr error) {
	cm, ok := repo.(comproto.OnePhaseCommitProtocol)
	if !ok {
		return fn(ctx)
	}
	tx, err := cm.BeginTx(ctx)
	if err != nil {
		return ErrStoreFailure.Wrap(err)
	}
	defer comproto.FinishOnePhaseCommit(&rErr, cm, tx)
	return fn(tx)
}
