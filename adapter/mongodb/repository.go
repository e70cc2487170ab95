package mongodb

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/binaryburst/entitykit/port/crud"
	"github.com/google/uuid"
	"go.llib.dev/frameless/port/comproto"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CountersCollection holds the sequences used for generated integer IDs.
const CountersCollection = "counters"

func NewRepository[ENT any, ID comparable](c *Client, collection string, ida crud.IDAccessor[ENT, ID]) Repository[ENT, ID] {
	return Repository[ENT, ID]{Client: c, Collection: collection, IDA: ida}
}

// Repository is a crud.Repository over a mongo collection.
// Each entity is kept in the "entity" field of a document whose _id is the entity ID.
type Repository[ENT any, ID comparable] struct {
	Client     *Client
	Collection string
	// IDA is the ID Accessor that maps the ID to the ENT field.
	IDA crud.IDAccessor[ENT, ID]
	// MakeID [optional] generates the ID of a new entity.
	//
	// default: a counter sequence for integer and string IDs, uuid.New for uuid.UUID
	MakeID func(context.Context) (ID, error)
}

var _ crud.Repository[struct{ ID int }, int] = Repository[struct{ ID int }, int]{}
var _ comproto.OnePhaseCommitProtocol = Repository[struct{ ID int }, int]{}

type document[ENT any, ID comparable] struct {
	ID     ID  `bson:"_id"`
	Entity ENT `bson:"entity"`
}

type counter struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

func (r Repository[ENT, ID]) FindAll(ctx context.Context) (_ []ENT, rErr error) {
	if err := r.Client.ready(ctx); err != nil {
		return nil, err
	}
	cursor, err := r.collection().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { rErr = errors.Join(rErr, cursor.Close(ctx)) }()
	out := make([]ENT, 0)
	for cursor.Next(ctx) {
		var doc document[ENT, ID]
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.Entity)
	}
	return out, cursor.Err()
}

func (r Repository[ENT, ID]) FindByID(ctx context.Context, id ID) (ENT, bool, error) {
	if err := r.Client.ready(ctx); err != nil {
		return *new(ENT), false, err
	}
	var doc document[ENT, ID]
	err := r.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return *new(ENT), false, nil
	}
	if err != nil {
		return *new(ENT), false, err
	}
	return doc.Entity, true, nil
}

func (r Repository[ENT, ID]) ExistsByID(ctx context.Context, id ID) (bool, error) {
	if err := r.Client.ready(ctx); err != nil {
		return false, err
	}
	n, err := r.collection().CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r Repository[ENT, ID]) Save(ctx context.Context, ent ENT) (ENT, error) {
	if err := r.Client.ready(ctx); err != nil {
		return *new(ENT), err
	}
	id, ok := r.IDA.Lookup(ent)
	if !ok {
		newID, err := r.newID(ctx)
		if err != nil {
			return *new(ENT), err
		}
		r.IDA.Set(&ent, newID)
		return ent, r.insert(ctx, newID, ent)
	}
	result, err := r.collection().ReplaceOne(ctx, bson.M{"_id": id}, document[ENT, ID]{ID: id, Entity: ent})
	if err != nil {
		return *new(ENT), err
	}
	if result.MatchedCount > 0 {
		return ent, nil
	}
	if err := r.insert(ctx, id, ent); err != nil {
		return *new(ENT), err
	}
	return ent, nil
}

// writeConflictCode is reported when a transaction writes a document
// that a concurrent transaction has already written.
const writeConflictCode = 112

func (r Repository[ENT, ID]) insert(ctx context.Context, id ID, ent ENT) error {
	_, err := r.collection().InsertOne(ctx, document[ENT, ID]{ID: id, Entity: ent})
	if isInsertConflict(err) {
		return crud.AlreadyExists[ENT](id)
	}
	return err
}

// isInsertConflict tells if an insert lost against another writer of the same _id.
// Outside of transactions that is a duplicate key error,
// inside a transaction the server reports a write conflict instead.
func isInsertConflict(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(writeConflictCode)
}

func (r Repository[ENT, ID]) SaveAll(ctx context.Context, ents []ENT) (_ []ENT, rErr error) {
	ctx, err := r.Client.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer comproto.FinishOnePhaseCommit(&rErr, r.Client, ctx)
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
	if err := r.Client.ready(ctx); err != nil {
		return err
	}
	result, err := r.collection().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return crud.NotFound[ENT](id)
	}
	return nil
}

func (r Repository[ENT, ID]) DeleteAll(ctx context.Context) error {
	if err := r.Client.ready(ctx); err != nil {
		return err
	}
	_, err := r.collection().DeleteMany(ctx, bson.M{})
	return err
}

func (r Repository[ENT, ID]) BeginTx(ctx context.Context) (context.Context, error) {
	return r.Client.BeginTx(ctx)
}

func (r Repository[ENT, ID]) CommitTx(ctx context.Context) error {
	return r.Client.CommitTx(ctx)
}

func (r Repository[ENT, ID]) RollbackTx(ctx context.Context) error {
	return r.Client.RollbackTx(ctx)
}

// newID generates an identifier that no stored document uses yet.
func (r Repository[ENT, ID]) newID(ctx context.Context) (ID, error) {
	for {
		id, err := r.mkID(ctx)
		if err != nil {
			return id, err
		}
		taken, err := r.ExistsByID(ctx, id)
		if err != nil {
			return id, err
		}
		if !taken {
			return id, nil
		}
	}
}

func (r Repository[ENT, ID]) mkID(ctx context.Context) (ID, error) {
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
		seq, err := r.nextSequence(ctx)
		if err != nil {
			return id, err
		}
		rv.SetInt(seq)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		seq, err := r.nextSequence(ctx)
		if err != nil {
			return id, err
		}
		rv.SetUint(uint64(seq))
	case reflect.String:
		seq, err := r.nextSequence(ctx)
		if err != nil {
			return id, err
		}
		rv.SetString(strconv.FormatInt(seq, 10))
	default:
		const format = "%T id type is not supported by default, please provide id generator in the .MakeID field"
		return id, fmt.Errorf(format, id)
	}
	return id, nil
}

func (r Repository[ENT, ID]) nextSequence(ctx context.Context) (int64, error) {
	var c counter
	err := r.Client.Database.Collection(CountersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": r.Collection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	return c.Seq, err
}

func (r Repository[ENT, ID]) collection() *mongo.Collection {
	return r.Client.Database.Collection(r.Collection)
}
