// Package service implements the CRUD lifecycle once for any resource.
//
// A Service orchestrates a crud.Repository and a mapping.Mapper.
// It owns the validation rules (ID conflict on create, ID required on update, not found detection),
// batch atomicity and the error taxonomy of the crud package.
// It keeps no state between calls.
package service

import (
	"context"
	"errors"
	"io"

	"github.com/binaryburst/entitykit/port/crud"
	"github.com/binaryburst/entitykit/port/mapping"
	"go.llib.dev/frameless/pkg/logging"
)

type Service[ID comparable, M, E, I, O any] struct {
	Repository crud.Repository[E, ID]
	Mapper     mapping.Mapper[ID, M, E, I, O]
	// Validate [optional] is the resource specific business rule check.
	// It runs before every create and update, in input order for batches.
	// Errors not already classified are reported as crud.ErrValidationFailed.
	Validate func(ctx context.Context, model M) error
	// Logger [optional]
	//
	// default: discards log entries
	Logger *logging.Logger
}

func New[ID comparable, M, E, I, O any](repo crud.Repository[E, ID], mapper mapping.Mapper[ID, M, E, I, O], l *logging.Logger) Service[ID, M, E, I, O] {
	return Service[ID, M, E, I, O]{Repository: repo, Mapper: mapper, Logger: l}
}

func (s Service[ID, M, E, I, O]) FindAll(ctx context.Context) ([]M, error) {
	s.logger().Debug(ctx, "finding all entities", s.entityField())
	ents, err := s.Repository.FindAll(ctx)
	if err != nil {
		return nil, s.fail(ctx, "findAll", err)
	}
	models := mapping.Slice(ents, s.Mapper.EntityToModel)
	s.logger().Debug(ctx, "entities retrieved", s.entityField(), logging.Field("count", len(models)))
	return models, nil
}

func (s Service[ID, M, E, I, O]) FindByID(ctx context.Context, id ID) (M, error) {
	s.logger().Debug(ctx, "finding entity by id", s.entityField(), logging.Field("id", id))
	ent, found, err := s.Repository.FindByID(ctx, id)
	if err != nil {
		return *new(M), s.fail(ctx, "findById", err)
	}
	if !found {
		return *new(M), s.fail(ctx, "findById", crud.NotFound[E](id))
	}
	return s.Mapper.EntityToModel(ent), nil
}

// Create persists a new entity.
// A model carrying an ID that is already stored fails with crud.ErrIDAlreadyExists before any write.
func (s Service[ID, M, E, I, O]) Create(ctx context.Context, model M) (M, error) {
	s.logger().Debug(ctx, "creating entity", s.entityField())
	if err := s.validate(ctx, model); err != nil {
		return *new(M), s.fail(ctx, "create", err)
	}
	var created M
	err := crud.InTx(ctx, s.Repository, func(ctx context.Context) error {
		if id, ok := s.Mapper.ExtractID(model); ok {
			if err := s.checkNewID(ctx, id); err != nil {
				return err
			}
		}
		saved, err := s.Repository.Save(ctx, s.Mapper.ModelToEntity(model))
		if err != nil {
			return crud.StoreFailure(err)
		}
		created = s.Mapper.EntityToModel(saved)
		return nil
	})
	if err != nil {
		return *new(M), s.fail(ctx, "create", err)
	}
	s.logger().Debug(ctx, "entity created", s.entityField(), s.modelIDField(created))
	return created, nil
}

// Update applies the model onto the stored entity with the same ID.
// The ID is checked before the validation rules.
func (s Service[ID, M, E, I, O]) Update(ctx context.Context, model M) (M, error) {
	s.logger().Debug(ctx, "updating entity", s.entityField(), s.modelIDField(model))
	id, ok := s.Mapper.ExtractID(model)
	if !ok {
		return *new(M), s.fail(ctx, "update", crud.IDRequired("update"))
	}
	if err := s.validate(ctx, model); err != nil {
		return *new(M), s.fail(ctx, "update", err)
	}
	var updated M
	err := crud.InTx(ctx, s.Repository, func(ctx context.Context) error {
		ent, err := s.loadForUpdate(ctx, id, model)
		if err != nil {
			return err
		}
		saved, err := s.Repository.Save(ctx, ent)
		if err != nil {
			return crud.StoreFailure(err)
		}
		updated = s.Mapper.EntityToModel(saved)
		return nil
	})
	if err != nil {
		return *new(M), s.fail(ctx, "update", err)
	}
	s.logger().Debug(ctx, "entity updated", s.entityField(), s.modelIDField(updated))
	return updated, nil
}

// DeleteByID removes the entity with the given id.
// A missing entity is reported as crud.ErrNotFound.
func (s Service[ID, M, E, I, O]) DeleteByID(ctx context.Context, id ID) error {
	s.logger().Debug(ctx, "deleting entity", s.entityField(), logging.Field("id", id))
	if err := s.Repository.DeleteByID(ctx, id); err != nil {
		return s.fail(ctx, "deleteById", err)
	}
	return nil
}

func (s Service[ID, M, E, I, O]) DeleteAll(ctx context.Context) error {
	s.logger().Debug(ctx, "deleting all entities", s.entityField())
	if err := s.Repository.DeleteAll(ctx); err != nil {
		return s.fail(ctx, "deleteAll", err)
	}
	return nil
}

// AddAll inserts every model as one atomic batch.
// Unlike Create, it doesn't check for pre-existing IDs,
// entities are handed to Repository.SaveAll as they are.
func (s Service[ID, M, E, I, O]) AddAll(ctx context.Context, models []M) ([]M, error) {
	s.logger().Debug(ctx, "adding entities", s.entityField(), logging.Field("count", len(models)))
	if len(models) == 0 {
		return []M{}, nil
	}
	ents := make([]E, 0, len(models))
	for _, model := range models {
		if err := s.validate(ctx, model); err != nil {
			return nil, s.fail(ctx, "addAll", err)
		}
		ents = append(ents, s.Mapper.ModelToEntity(model))
	}
	saved, err := s.Repository.SaveAll(ctx, ents)
	if err != nil {
		return nil, s.fail(ctx, "addAll", err)
	}
	out := mapping.Slice(saved, s.Mapper.EntityToModel)
	s.logger().Debug(ctx, "entities added", s.entityField(), logging.Field("count", len(out)))
	return out, nil
}

// UpdateAll updates every model as one atomic batch.
// Each model needs an ID and an existing target.
// The first failing element, in input order, aborts the batch before anything is written.
func (s Service[ID, M, E, I, O]) UpdateAll(ctx context.Context, models []M) ([]M, error) {
	s.logger().Debug(ctx, "updating entities", s.entityField(), logging.Field("count", len(models)))
	if len(models) == 0 {
		return []M{}, nil
	}
	var out []M
	err := crud.InTx(ctx, s.Repository, func(ctx context.Context) error {
		ents := make([]E, 0, len(models))
		for _, model := range models {
			id, ok := s.Mapper.ExtractID(model)
			if !ok {
				return crud.IDRequired("updateAll")
			}
			if err := s.validate(ctx, model); err != nil {
				return err
			}
			ent, err := s.loadForUpdate(ctx, id, model)
			if err != nil {
				return err
			}
			ents = append(ents, ent)
		}
		saved, err := s.Repository.SaveAll(ctx, ents)
		if err != nil {
			return crud.StoreFailure(err)
		}
		out = mapping.Slice(saved, s.Mapper.EntityToModel)
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "updateAll", err)
	}
	s.logger().Debug(ctx, "entities updated", s.entityField(), logging.Field("count", len(out)))
	return out, nil
}

func (s Service[ID, M, E, I, O]) loadForUpdate(ctx context.Context, id ID, model M) (E, error) {
	ent, found, err := s.Repository.FindByID(ctx, id)
	if err != nil {
		return *new(E), crud.StoreFailure(err)
	}
	if !found {
		return *new(E), crud.NotFound[E](id)
	}
	return s.Mapper.ApplyModel(ent, model), nil
}

func (s Service[ID, M, E, I, O]) checkNewID(ctx context.Context, id ID) error {
	s.logger().Debug(ctx, "validating new entity id", s.entityField(), logging.Field("id", id))
	exists, err := s.Repository.ExistsByID(ctx, id)
	if err != nil {
		return crud.StoreFailure(err)
	}
	if exists {
		return crud.AlreadyExists[E](id)
	}
	return nil
}

func (s Service[ID, M, E, I, O]) validate(ctx context.Context, model M) error {
	if s.Validate == nil {
		return nil
	}
	err := s.Validate(ctx, model)
	if err == nil || crud.IsClassified(err) {
		return err
	}
	return crud.ErrValidationFailed.Wrap(err)
}

// fail classifies err and logs it once.
// Taxonomy failures are caller mistakes and go to warn, store failures to error.
func (s Service[ID, M, E, I, O]) fail(ctx context.Context, operation string, err error) error {
	err = crud.StoreFailure(err)
	details := []logging.Detail{s.entityField(), logging.Field("operation", operation), logging.ErrField(err)}
	if isStoreFailure(err) {
		s.logger().Error(ctx, "entity operation failed", details...)
	} else {
		s.logger().Warn(ctx, "entity operation rejected", details...)
	}
	return err
}

func isStoreFailure(err error) bool {
	return errors.Is(err, crud.ErrStoreFailure)
}

func (s Service[ID, M, E, I, O]) entityField() logging.Detail {
	return logging.Field("entity", crud.TypeName[E]())
}

func (s Service[ID, M, E, I, O]) modelIDField(model M) logging.Detail {
	id, _ := s.Mapper.ExtractID(model)
	return logging.Field("id", id)
}

var discard = &logging.Logger{Out: io.Discard}

func (s Service[ID, M, E, I, O]) logger() *logging.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return discard
}
