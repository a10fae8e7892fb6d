package domain

import (
	"errors"
	"fmt"
)

// Root error kinds. Every error returned by the services wraps exactly one of these.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid token")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
)

var (
	ErrUserNotFound       = fmt.Errorf("%w: user", ErrNotFound)
	ErrListingNotFound    = fmt.Errorf("%w: listing", ErrNotFound)
	ErrNotFavorite        = fmt.Errorf("%w: listing is not in your favorites", ErrNotFound)
	ErrOwnListing         = fmt.Errorf("%w: it is your own listing", ErrForbidden)
	ErrNotOwner           = fmt.Errorf("%w: listing belongs to another user", ErrForbidden)
	ErrAlreadyFavorite    = fmt.Errorf("%w: listing is already in your favorites", ErrConflict)
	ErrEmailTaken         = fmt.Errorf("%w: email is already registered", ErrConflict)
	ErrInvalidState       = fmt.Errorf("%w: state must be one of For sale, Reserved, Sold", ErrInvalidArgument)
	ErrInvalidID          = fmt.Errorf("%w: malformed id", ErrInvalidArgument)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthenticated)
)

// Kind is the stable classification of an error that clients can branch on.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindInvalidToken    Kind = "invalid_token"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInvalidArgument Kind = "invalid_argument"
	KindInternal        Kind = "internal"
)

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrInvalidToken):
		return KindInvalidToken
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	default:
		return KindInternal
	}
}

// InvalidArgument wraps a validation message as an ErrInvalidArgument.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
