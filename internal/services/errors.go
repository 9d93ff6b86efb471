package services

import (
	"errors"
	"fmt"

	"twitapp/internal/repositories"

	"github.com/samber/oops"
)

// Error kinds. Every error returned by a service wraps exactly one of them.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal server error")
)

// KindOf returns the kind wrapped by err. Unclassified errors count as internal.
func KindOf(err error) error {
	switch {
	case errors.Is(err, ErrBadRequest):
		return ErrBadRequest
	case errors.Is(err, ErrUnauthorized):
		return ErrUnauthorized
	default:
		return ErrInternal
	}
}

// withKind keeps both the kind and the cause reachable through errors.Is.
func withKind(kind, cause error) error {
	return fmt.Errorf("%w: %w", kind, cause)
}

// fromStore classifies a repository error. Missing records and unusable ids
// are the caller's fault; everything else is internal.
func fromStore(err error, code, public string) error {
	if errors.Is(err, repositories.ErrNotFound) || errors.Is(err, repositories.ErrInvalidID) {
		return oops.Code(code).Public(public).Wrap(withKind(ErrBadRequest, err))
	}
	return oops.Code(code).Wrap(withKind(ErrInternal, err))
}
