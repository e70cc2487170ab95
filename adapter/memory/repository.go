package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/binaryburst/entitykit/port/crud"
	"github.com/google/uuid"
	"go.llib.dev/frameless/port/comproto"
)

func NewRepository[ENT any, ID comparable](m *Memory, ida crud.IDAccessor[ENT, ID]) *Repository[ENT, ID] {
	return &Repository[ENT, ID]{Memory: m, IDA: ida}
}

func NewRepositoryWithNamespace[ENT any, ID comparable](m *Memory, ns string, ida crud.IDAccessor[ENT, ID]) *Repository[ENT, ID] {
	return &Repository[ENT, ID]{Memory: m, Namespace: ns, IDA: ida}
}

type Repository[ENT any, ID comparable] struct {
	// Memory [optional] is the backing store for this Repository.
	//
	// default: NewMemory()
	Memory *Memory
	// Namespace [optional]
	//
	// default: the full type name of ENT
	Namespace string
	// IDA is the ID Accessor that maps the ID to the ENT field.
	IDA crud.IDAccessor[ENT, ID]
	// MakeID [optional] is an optional field if you need a specific way of generating new IDs during creation.
	//
	// default: a namespace sequence for integer and string IDs, uuid.New for uuid.UUID
	MakeID func(context.Context) (ID, error)

	m sync.Mutex
}

var _ crud.Repository[struct{ ID int }, int] = &Repository[struct{ ID int }, int]{}
var _ comproto.OnePhaseCommitProtocol = &Repository[struct{ ID int }, int]{}

func (r *Repository[ENT, ID]) FindAll(ctx context.Context) ([]ENT, error) {
	if err := r.ready(ctx); err != nil {
		return nil, err
	}
	vs := r.memory().All(ctx, r.namespace())
	out := make([]ENT, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.(ENT))
	}
	return out, nil
}

func (r *Repository[ENT, ID]) FindByID(ctx context.Context, id ID) (ENT, bool, error) {
	if err := r.ready(ctx); err != nil {
		return *new(ENT), false, err
	}
	v, ok := r.memory().Get(ctx, r.namespace(), r.IDToMemoryKey(id))
	if !ok {
		return *new(ENT), false, nil
	}
	return v.(ENT), true, nil
}

func (r *Repository[ENT, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	_, found, err := r.FindByID(ctx, id)
	return found, err
}

func (r *Repository[ENT, ID]) Save(ctx context.Context, ent ENT) (ENT, error) {
	if err := r.ready(ctx); err != nil {
		return *new(ENT), err
	}
	id, ok := r.IDA.Lookup(ent)
	if !ok {
		newID, err := r.newID(ctx)
		if err != nil {
			return *new(ENT), err
		}
		r.IDA.Set(&ent, newID)
		id = newID
	}
	r.memory().Set(ctx, r.namespace(), r.IDToMemoryKey(id), ent)
	return ent, nil
}

func (r *Repository[ENT, ID]) SaveAll(ctx context.Context, ents []ENT) (_ []ENT, rErr error) {
	ctx, err := r.memory().BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer comproto.FinishOnePhaseCommit(&rErr, r.memory(), ctx)
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

func (r *Repository[ENT, ID]) DeleteByID(ctx context.Context, id ID) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	if r.memory().Del(ctx, r.namespace(), r.IDToMemoryKey(id)) {
		return nil
	}
	return crud.NotFound[ENT](id)
}

func (r *Repository[ENT, ID]) DeleteAll(ctx context.Context) error {
	if err := r.ready(ctx); err != nil {
		return err
	}
	for _, key := range r.memory().Keys(ctx, r.namespace()) {
		_ = r.memory().Del(ctx, r.namespace(), key)
	}
	return nil
}

func (r *Repository[ENT, ID]) BeginTx(ctx context.Context) (context.Context, error) {
	return r.memory().BeginTx(ctx)
}

func (r *Repository[ENT, ID]) CommitTx(ctx context.Context) error {
	return r.memory().CommitTx(ctx)
}

func (r *Repository[ENT, ID]) RollbackTx(ctx context.Context) error {
	return r.memory().RollbackTx(ctx)
}

func (r *Repository[ENT, ID]) IDToMemoryKey(id ID) string {
	return fmt.Sprintf(`%#v`, id)
}

// newID generates an identifier that is not taken yet.
// Client supplied IDs share the key space with generated ones, so a taken value is skipped.
func (r *Repository[ENT, ID]) newID(ctx context.Context) (ID, error) {
	for {
		id, err := r.mkID(ctx)
		if err != nil {
			return id, err
		}
		if _, taken := r.memory().Get(ctx, r.namespace(), r.IDToMemoryKey(id)); !taken {
			return id, nil
		}
	}
}

func (r *Repository[ENT, ID]) mkID(ctx context.Context) (ID, error) {
	if r.MakeID != nil {
		return r.MakeID(ctx)
	}
	var id ID
	if _, ok := any(id).(uuid.UUID); ok {
		return any(uuid.New()).(ID), nil
	}
	rv := reflect.ValueOf(&id).Elem()
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		rv.SetInt(r.memory().NextSequence(r.namespace()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		rv.SetUint(uint64(r.memory().NextSequence(r.namespace())))
	case reflect.String:
		rv.SetString(fmt.Sprintf("%d", r.memory().NextSequence(r.namespace())))
	default:
		const format = "%T id type is not supported by default, please provide id generator in the .MakeID field"
		return id, fmt.Errorf(format, id)
	}
	return id, nil
}

func (r *Repository[ENT, ID]) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := r.memory().LookupTx(ctx); ok && tx.isDone() {
		return errTxDone
	}
	return nil
}

func (r *Repository[ENT, ID]) namespace() string {
	if r.Namespace != "" {
		return r.Namespace
	}
	return reflect.TypeFor[ENT]().String()
}

func (r *Repository[ENT, ID]) memory() *Memory {
	r.m.Lock()
	defer r.m.Unlock()
	if r.Memory == nil {
		r.Memory = NewMemory()
	}
	return r.Memory
}
