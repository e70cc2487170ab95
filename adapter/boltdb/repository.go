package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"reflect"
	"strconv"

	"github.com/binaryburst/entitykit/port/crud"
	"github.com/boltdb/bolt"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.llib.dev/frameless/port/comproto"
)

func NewRepository[ENT any, ID comparable](db *DB, ida crud.IDAccessor[ENT, ID]) Repository[ENT, ID] {
	return Repository[ENT, ID]{DB: db, IDA: ida}
}

// Repository is a crud.Repository that keeps ENT values as JSON documents in a bolt bucket.
// FindAll lists the entities in key order.
type Repository[ENT any, ID comparable] struct {
	DB *DB
	// Bucket [optional]
	//
	// default: the full type name of ENT
	Bucket string
	// IDA is the ID Accessor that maps the ID to the ENT field.
	IDA crud.IDAccessor[ENT, ID]
	// MakeID [optional] generates the ID of a new entity.
	//
	// default: the bucket sequence for integer and string IDs, uuid.New for uuid.UUID
	MakeID func(context.Context) (ID, error)
}

var _ crud.Repository[struct{ ID int }, int] = Repository[struct{ ID int }, int]{}
var _ comproto.OnePhaseCommitProtocol = Repository[struct{ ID int }, int]{}

func (r Repository[ENT, ID]) FindAll(ctx context.Context) ([]ENT, error) {
	out := make([]ENT, 0)
	err := r.DB.view(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket())
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var ent ENT
			if err := json.Unmarshal(v, &ent); err != nil {
				return err
			}
			out = append(out, ent)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r Repository[ENT, ID]) FindByID(ctx context.Context, id ID) (ENT, bool, error) {
	key, err := r.key(id)
	if err != nil {
		return *new(ENT), false, err
	}
	var (
		ent   ENT
		found bool
	)
	err = r.DB.view(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket())
		if b == nil {
			return nil
		}
		v := b.Get(key)
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &ent)
	})
	if err != nil {
		return *new(ENT), false, err
	}
	return ent, found, nil
}

func (r Repository[ENT, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	_, found, err := r.FindByID(ctx, id)
	return found, err
}

func (r Repository[ENT, ID]) Save(ctx context.Context, ent ENT) (ENT, error) {
	err := r.DB.update(ctx, func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(r.bucket())
		if err != nil {
			return err
		}
		id, ok := r.IDA.Lookup(ent)
		if !ok {
			id, err = r.newID(ctx, b)
			if err != nil {
				return err
			}
			r.IDA.Set(&ent, id)
		}
		key, err := r.key(id)
		if err != nil {
			return err
		}
		value, err := json.Marshal(ent)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
	if err != nil {
		return *new(ENT), err
	}
	return ent, nil
}

func (r Repository[ENT, ID]) SaveAll(ctx context.Context, ents []ENT) (_ []ENT, rErr error) {
	ctx, err := r.DB.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer comproto.FinishOnePhaseCommit(&rErr, r.DB, ctx)
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
	key, err := r.key(id)
	if err != nil {
		return err
	}
	return r.DB.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket())
		if b == nil || b.Get(key) == nil {
			return crud.NotFound[ENT](id)
		}
		return b.Delete(key)
	})
}

// DeleteAll removes every entity but keeps the bucket, so its sequence never hands out a used ID again.
func (r Repository[ENT, ID]) DeleteAll(ctx context.Context) error {
	return r.DB.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket(r.bucket())
		if b == nil {
			return nil
		}
		var keys [][]byte
		if err := b.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r Repository[ENT, ID]) BeginTx(ctx context.Context) (context.Context, error) {
	return r.DB.BeginTx(ctx)
}

func (r Repository[ENT, ID]) CommitTx(ctx context.Context) error {
	return r.DB.CommitTx(ctx)
}

func (r Repository[ENT, ID]) RollbackTx(ctx context.Context) error {
	return r.DB.RollbackTx(ctx)
}

// newID generates an identifier whose key is free in the bucket.
func (r Repository[ENT, ID]) newID(ctx context.Context, b *bolt.Bucket) (ID, error) {
	for {
		id, err := r.mkID(ctx, b)
		if err != nil {
			return id, err
		}
		key, err := r.key(id)
		if err != nil {
			return id, err
		}
		if b.Get(key) == nil {
			return id, nil
		}
	}
}

func (r Repository[ENT, ID]) mkID(ctx context.Context, b *bolt.Bucket) (ID, error) {
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
		seq, err := b.NextSequence()
		if err != nil {
			return id, err
		}
		rv.SetInt(int64(seq))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		seq, err := b.NextSequence()
		if err != nil {
			return id, err
		}
		rv.SetUint(seq)
	case reflect.String:
		seq, err := b.NextSequence()
		if err != nil {
			return id, err
		}
		rv.SetString(strconv.FormatUint(seq, 10))
	default:
		const format = "%T id type is not supported by default, please provide id generator in the .MakeID field"
		return id, fmt.Errorf(format, id)
	}
	return id, nil
}

// key encodes integer IDs big endian so the bucket iterates them in numeric order.
func (r Repository[ENT, ID]) key(id ID) ([]byte, error) {
	rv := reflect.ValueOf(id)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return binary.BigEndian.AppendUint64(nil, uint64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return binary.BigEndian.AppendUint64(nil, rv.Uint()), nil
	case reflect.String:
		return []byte(rv.String()), nil
	default:
		return json.Marshal(id)
	}
}

func (r Repository[ENT, ID]) bucket() []byte {
	if r.Bucket != "" {
		return []byte(r.Bucket)
	}
	return []byte(reflect.TypeFor[ENT]().String())
}
