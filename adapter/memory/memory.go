package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/binaryburst/entitykit/port/crud"
	"go.llib.dev/frameless/pkg/errorkit"
)

const (
	errTxDone errorkit.Error = "memory: transaction is already done"
	errNoTx   errorkit.Error = "memory: no transaction found in the context"
)

func NewMemory() *Memory {
	return &Memory{}
}

// Memory is an in-process key-value storage split into namespaces.
// Writes made through a transactional context stay in the transaction's change set
// until the transaction is committed.
type Memory struct {
	m         sync.Mutex
	tables    map[string]MemoryNamespace
	sequences map[string]int64

	seq atomic.Int64
}

type MemoryNamespace map[string]memoryEntry

// memoryEntry keeps the insertion order of a value, so listing is stable.
type memoryEntry struct {
	Seq   int64
	Value any
}

type memoryActions interface {
	all(namespace string) MemoryNamespace
	lookup(namespace, key string) (memoryEntry, bool)
	put(namespace, key string, e memoryEntry)
	del(namespace, key string) bool
}

func (m *Memory) Get(ctx context.Context, namespace, key string) (any, bool) {
	e, ok := m.actions(ctx).lookup(namespace, key)
	return e.Value, ok
}

// All returns the values of a namespace in insertion order.
func (m *Memory) All(ctx context.Context, namespace string) []any {
	vs := m.actions(ctx).all(namespace)
	entries := make([]memoryEntry, 0, len(vs))
	for _, e := range vs {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b memoryEntry) int { return cmp.Compare(a.Seq, b.Seq) })
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Value)
	}
	return out
}

func (m *Memory) Keys(ctx context.Context, namespace string) []string {
	vs := m.actions(ctx).all(namespace)
	keys := make([]string, 0, len(vs))
	for k := range vs {
		keys = append(keys, k)
	}
	return keys
}

func (m *Memory) Set(ctx context.Context, namespace, key string, value any) {
	ma := m.actions(ctx)
	e, ok := ma.lookup(namespace, key)
	if !ok {
		e.Seq = m.seq.Add(1)
	}
	e.Value = value
	ma.put(namespace, key, e)
}

func (m *Memory) Del(ctx context.Context, namespace, key string) bool {
	return m.actions(ctx).del(namespace, key)
}

// NextSequence returns the next value of the namespace's counter.
// Sequences are not part of transactions, a rolled back transaction leaves a gap.
func (m *Memory) NextSequence(namespace string) int64 {
	m.m.Lock()
	defer m.m.Unlock()
	if m.sequences == nil {
		m.sequences = make(map[string]int64)
	}
	m.sequences[namespace]++
	return m.sequences[namespace]
}

func (m *Memory) actions(ctx context.Context) memoryActions {
	if tx, ok := m.LookupTx(ctx); ok && !tx.isDone() {
		return tx
	}
	return m
}

func (m *Memory) all(namespace string) MemoryNamespace {
	m.m.Lock()
	defer m.m.Unlock()
	vs := make(MemoryNamespace)
	for k, v := range m.namespace(namespace) {
		vs[k] = v
	}
	return vs
}

func (m *Memory) lookup(namespace, key string) (memoryEntry, bool) {
	m.m.Lock()
	defer m.m.Unlock()
	e, ok := m.namespace(namespace)[key]
	return e, ok
}

func (m *Memory) put(namespace, key string, e memoryEntry) {
	m.m.Lock()
	defer m.m.Unlock()
	m.namespace(namespace)[key] = e
}

func (m *Memory) del(namespace, key string) bool {
	m.m.Lock()
	defer m.m.Unlock()
	ns := m.namespace(namespace)
	if _, ok := ns[key]; !ok {
		return false
	}
	delete(ns, key)
	return true
}

// apply writes a root transaction's change set in one step.
// Every key the transaction writes is checked against what the transaction saw when it read that key.
// A key that was absent and got stored meanwhile fails with crud.ErrIDAlreadyExists,
// a key that was present and got deleted meanwhile fails with crud.ErrNotFound.
// On failure nothing is written.
func (m *Memory) apply(seen map[string]map[string]bool, changes map[string]memoryTxChanges) error {
	m.m.Lock()
	defer m.m.Unlock()
	for namespace, cs := range changes {
		ns := m.namespace(namespace)
		for key := range cs.Values {
			found, ok := seen[namespace][key]
			if !ok {
				continue
			}
			_, exists := ns[key]
			switch {
			case !found && exists:
				return crud.ErrIDAlreadyExists.F("%s: key %s was stored by a concurrent transaction", namespace, key)
			case found && !exists:
				return crud.ErrNotFound.F("%s: key %s was deleted by a concurrent transaction", namespace, key)
			}
		}
	}
	for namespace, cs := range changes {
		ns := m.namespace(namespace)
		for key := range cs.Deleted {
			delete(ns, key)
		}
		for key, e := range cs.Values {
			ns[key] = e
		}
	}
	return nil
}

func (m *Memory) namespace(name string) MemoryNamespace {
	if m.tables == nil {
		m.tables = make(map[string]MemoryNamespace)
	}
	if _, ok := m.tables[name]; !ok {
		m.tables[name] = make(MemoryNamespace)
	}
	return m.tables[name]
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

type MemoryTx struct {
	m       sync.Mutex
	done    bool
	super   memoryActions
	changes map[string]memoryTxChanges
	// seen records for each key read from the parent whether it was present at that time.
	seen map[string]map[string]bool

	cancelContext func()
}

type memoryTxChanges struct {
	Values  MemoryNamespace
	Deleted map[string]struct{}
}

func (tx *MemoryTx) isDone() bool {
	tx.m.Lock()
	defer tx.m.Unlock()
	return tx.done
}

func (tx *MemoryTx) all(namespace string) MemoryNamespace {
	svs := tx.super.all(namespace)
	tx.m.Lock()
	defer tx.m.Unlock()
	changes := tx.getChanges(namespace)
	for k := range changes.Deleted {
		delete(svs, k)
	}
	for k, v := range changes.Values {
		svs[k] = v
	}
	return svs
}

func (tx *MemoryTx) lookup(namespace, key string) (memoryEntry, bool) {
	tx.m.Lock()
	changes := tx.getChanges(namespace)
	if e, ok := changes.Values[key]; ok {
		tx.m.Unlock()
		return e, true
	}
	_, isDeleted := changes.Deleted[key]
	tx.m.Unlock()
	if isDeleted {
		return memoryEntry{}, false
	}
	e, ok := tx.super.lookup(namespace, key)
	tx.see(namespace, key, ok)
	return e, ok
}

// see keeps the first observation of a key.
func (tx *MemoryTx) see(namespace, key string, found bool) {
	tx.m.Lock()
	defer tx.m.Unlock()
	if tx.seen == nil {
		tx.seen = make(map[string]map[string]bool)
	}
	if tx.seen[namespace] == nil {
		tx.seen[namespace] = make(map[string]bool)
	}
	if _, ok := tx.seen[namespace][key]; !ok {
		tx.seen[namespace][key] = found
	}
}

func (tx *MemoryTx) put(namespace, key string, e memoryEntry) {
	tx.m.Lock()
	defer tx.m.Unlock()
	changes := tx.getChanges(namespace)
	delete(changes.Deleted, key)
	changes.Values[key] = e
}

func (tx *MemoryTx) del(namespace, key string) bool {
	if _, ok := tx.lookup(namespace, key); !ok {
		return false
	}
	tx.m.Lock()
	defer tx.m.Unlock()
	changes := tx.getChanges(namespace)
	delete(changes.Values, key)
	changes.Deleted[key] = struct{}{}
	return true
}

func (tx *MemoryTx) commit() error {
	tx.m.Lock()
	defer tx.m.Unlock()
	if tx.done {
		return errTxDone
	}
	tx.done = true
	tx.cancelContext()
	if m, ok := tx.super.(*Memory); ok {
		return m.apply(tx.seen, tx.changes)
	}
	// a nested transaction hands its changes over to the parent, the root checks them on commit
	for namespace, changes := range tx.changes {
		for key := range changes.Deleted {
			tx.super.del(namespace, key)
		}
		for key, e := range changes.Values {
			tx.super.put(namespace, key, e)
		}
	}
	return nil
}

func (tx *MemoryTx) rollback() error {
	tx.m.Lock()
	if tx.done {
		tx.m.Unlock()
		return errTxDone
	}
	tx.done = true
	tx.cancelContext()
	tx.m.Unlock()
	super, ok := tx.super.(*MemoryTx)
	if !ok {
		return nil
	}
	// nested transactions are not savepoints, the whole chain is rolled back
	return super.rollback()
}

func (tx *MemoryTx) getChanges(name string) memoryTxChanges {
	if tx.changes == nil {
		tx.changes = make(map[string]memoryTxChanges)
	}
	if _, ok := tx.changes[name]; !ok {
		tx.changes[name] = memoryTxChanges{
			Values:  make(MemoryNamespace),
			Deleted: make(map[string]struct{}),
		}
	}
	return tx.changes[name]
}

type ctxKeyMemoryTx struct{ m *Memory }

func (m *Memory) BeginTx(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return ctx, err
	}
	var super memoryActions = m
	if tx, ok := m.LookupTx(ctx); ok {
		if tx.isDone() {
			return ctx, errTxDone
		}
		super = tx
	}
	ctx, cancel := context.WithCancel(ctx)
	return context.WithValue(ctx, ctxKeyMemoryTx{m: m}, &MemoryTx{
		super:         super,
		cancelContext: cancel,
	}), nil
}

func (m *Memory) CommitTx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := m.LookupTx(ctx); ok {
		return tx.commit()
	}
	return errNoTx
}

func (m *Memory) RollbackTx(ctx context.Context) error {
	tx, ok := m.LookupTx(ctx)
	if !ok {
		return errNoTx
	}
	return tx.rollback()
}

func (m *Memory) LookupTx(ctx context.Context) (*MemoryTx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(ctxKeyMemoryTx{m: m}).(*MemoryTx)
	return tx, ok
}
