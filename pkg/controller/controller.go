// Package controller translates Service outcomes into transport level responses.
// It holds no business logic; the only check it makes on its own is the path and body ID consistency on update.
package controller

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/binaryburst/entitykit/pkg/service"
	"github.com/binaryburst/entitykit/port/crud"
	"github.com/binaryburst/entitykit/port/mapping"
	"go.llib.dev/frameless/pkg/errorkit"
	"go.llib.dev/frameless/pkg/logging"
)

const (
	// ErrIDMismatch means the ID in the request path and the ID in the request body differ.
	ErrIDMismatch errorkit.Error = "err-id-mismatch"
	// ErrMalformedRequest means the transport couldn't decode the request.
	ErrMalformedRequest errorkit.Error = "err-malformed-request"
)

// StatusFor maps an outcome to its HTTP status code.
// A nil error is a plain success.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, crud.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, crud.ErrIDAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, crud.ErrIDRequired),
		errors.Is(err, ErrIDMismatch),
		errors.Is(err, crud.ErrValidationFailed),
		errors.Is(err, ErrMalformedRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Response is the transport neutral result of a controller call.
// Failed calls never carry a body.
type Response[T any] struct {
	Status  int
	Body    T
	HasBody bool
	Err     error
}

func ok[T any](status int, body T) Response[T] {
	return Response[T]{Status: status, Body: body, HasBody: true}
}

func noContent[T any]() Response[T] {
	return Response[T]{Status: http.StatusNoContent}
}

// Failure builds the response of a failed call.
func Failure[T any](err error) Response[T] {
	return Response[T]{Status: StatusFor(err), Err: err}
}

type Controller[ID comparable, M, E, I, O any] struct {
	Service service.Service[ID, M, E, I, O]
	// Mapper [optional]
	//
	// default: Service.Mapper
	Mapper mapping.Mapper[ID, M, E, I, O]
	// SetID [optional] sets the model ID.
	// On update, a body without an ID takes the path ID through SetID.
	// Without it, such a body reaches the Service without an ID and fails with crud.ErrIDRequired.
	SetID func(*M, ID)
	// Logger [optional]
	Logger *logging.Logger
}

func New[ID comparable, M, E, I, O any](svc service.Service[ID, M, E, I, O], setID func(*M, ID), l *logging.Logger) Controller[ID, M, E, I, O] {
	return Controller[ID, M, E, I, O]{Service: svc, SetID: setID, Logger: l}
}

func (c Controller[ID, M, E, I, O]) List(ctx context.Context) Response[[]O] {
	models, err := c.Service.FindAll(ctx)
	if err != nil {
		return fail[[]O](ctx, c.logger(), err)
	}
	return ok(http.StatusOK, mapping.Slice(models, c.mapper().ModelToDTO))
}

func (c Controller[ID, M, E, I, O]) Get(ctx context.Context, id ID) Response[O] {
	model, err := c.Service.FindByID(ctx, id)
	if err != nil {
		return fail[O](ctx, c.logger(), err)
	}
	return ok(http.StatusOK, c.mapper().ModelToDTO(model))
}

func (c Controller[ID, M, E, I, O]) Create(ctx context.Context, dto I) Response[O] {
	model, err := c.Service.Create(ctx, c.mapper().DTOToModel(dto))
	if err != nil {
		return fail[O](ctx, c.logger(), err)
	}
	return ok(http.StatusCreated, c.mapper().ModelToDTO(model))
}

func (c Controller[ID, M, E, I, O]) Update(ctx context.Context, id ID, dto I) Response[O] {
	model := c.mapper().DTOToModel(dto)
	bodyID, hasID := c.mapper().ExtractID(model)
	switch {
	case hasID && bodyID != id:
		return fail[O](ctx, c.logger(), ErrIDMismatch.F("path id '%v' doesn't match body id '%v'", id, bodyID))
	case !hasID && c.SetID != nil:
		c.SetID(&model, id)
	}
	updated, err := c.Service.Update(ctx, model)
	if err != nil {
		return fail[O](ctx, c.logger(), err)
	}
	return ok(http.StatusOK, c.mapper().ModelToDTO(updated))
}

func (c Controller[ID, M, E, I, O]) Delete(ctx context.Context, id ID) Response[struct{}] {
	if err := c.Service.DeleteByID(ctx, id); err != nil {
		return fail[struct{}](ctx, c.logger(), err)
	}
	return noContent[struct{}]()
}

func (c Controller[ID, M, E, I, O]) DeleteAll(ctx context.Context) Response[struct{}] {
	if err := c.Service.DeleteAll(ctx); err != nil {
		return fail[struct{}](ctx, c.logger(), err)
	}
	return noContent[struct{}]()
}

func (c Controller[ID, M, E, I, O]) AddAll(ctx context.Context, dtos []I) Response[[]O] {
	models, err := c.Service.AddAll(ctx, mapping.Slice(dtos, c.mapper().DTOToModel))
	if err != nil {
		return fail[[]O](ctx, c.logger(), err)
	}
	return ok(http.StatusOK, mapping.Slice(models, c.mapper().ModelToDTO))
}

func (c Controller[ID, M, E, I, O]) UpdateAll(ctx context.Context, dtos []I) Response[[]O] {
	models, err := c.Service.UpdateAll(ctx, mapping.Slice(dtos, c.mapper().DTOToModel))
	if err != nil {
		return fail[[]O](ctx, c.logger(), err)
	}
	return ok(http.StatusOK, mapping.Slice(models, c.mapper().ModelToDTO))
}

func (c Controller[ID, M, E, I, O]) mapper() mapping.Mapper[ID, M, E, I, O] {
	if c.Mapper != nil {
		return c.Mapper
	}
	return c.Service.Mapper
}

var discard = &logging.Logger{Out: io.Discard}

func (c Controller[ID, M, E, I, O]) logger() *logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return discard
}

func fail[T any](ctx context.Context, l *logging.Logger, err error) Response[T] {
	res := Failure[T](err)
	l.Debug(ctx, "request failed", logging.Field("status", res.Status), logging.ErrField(err))
	return res
}
