package crud

import (
	"context"
	"errors"

	"go.llib.dev/frameless/pkg/errorkit"
)

const (
	// ErrNotFound means no entity is stored with the requested ID.
	ErrNotFound errorkit.Error = "err-not-found"
	// ErrIDAlreadyExists means a caller supplied ID collides with a stored entity.
	ErrIDAlreadyExists errorkit.Error = "err-id-already-exists"
	// ErrIDRequired means the operation needs an ID that the model doesn't carry.
	ErrIDRequired errorkit.Error = "err-id-required"
	// ErrValidationFailed means a resource specific business rule rejected the input.
	ErrValidationFailed errorkit.Error = "err-validation-failed"
	// ErrStoreFailure means the underlying store failed in a way not covered by the other kinds.
	ErrStoreFailure errorkit.Error = "err-store-failure"
)

var kinds = []error{
	ErrNotFound,
	ErrIDAlreadyExists,
	ErrIDRequired,
	ErrValidationFailed,
	ErrStoreFailure,
}

// IsClassified tells if err already belongs to one of the taxonomy kinds.
func IsClassified(err error) bool {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// StoreFailure classifies an unexpected store error.
// Context cancellation and already classified errors are returned unchanged.
func StoreFailure(err error) error {
	if err == nil {
		return nil
	}
	if IsClassified(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return ErrStoreFailure.Wrap(err)
}

func errNotFound(typ string, id any) error {
	return ErrNotFound.F("Entity of type '%s' not found with id '%v'", typ, id)
}

func errIDAlreadyExists(typ string, id any) error {
	return ErrIDAlreadyExists.F("Entity of type '%s' already exists with id '%v'", typ, id)
}

// NotFound reports that no ENT is stored under id.
func NotFound[ENT any](id any) error { return errNotFound(TypeName[ENT](), id) }

// AlreadyExists reports that an ENT is already stored under id.
func AlreadyExists[ENT any](id any) error { return errIDAlreadyExists(TypeName[ENT](), id) }

// IDRequired reports that operation needed an ID which was missing.
func IDRequired(operation string) error {
	return ErrIDRequired.F("Entity ID is required for the operation '%s'", operation)
}
