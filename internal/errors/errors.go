package errors

import (
	"errors"
	"fmt"
)

// Error kinds shared by the matching engine, the message router and the relay.
// Callers wrap one of these with %w and match with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrConflict           = errors.New("conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrProtocol           = errors.New("protocol error")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func InvalidArgument(format string, args ...any) error {
	return wrap(ErrInvalidArgument, format, args...)
}

func PermissionDenied(format string, args ...any) error {
	return wrap(ErrPermissionDenied, format, args...)
}

func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

func Protocol(format string, args ...any) error {
	return wrap(ErrProtocol, format, args...)
}

func Unauthenticated(format string, args ...any) error {
	return wrap(ErrUnauthenticated, format, args...)
}

// Storage marks a collaborator failure. Errors that already carry a kind
// from this package are returned untouched.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	if kindOf(err) != nil {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// IsClientError reports whether err is caused by the caller rather than
// by infrastructure. Those are never logged above debug.
func IsClientError(err error) bool {
	switch kindOf(err) {
	case ErrNotFound, ErrInvalidArgument, ErrPermissionDenied, ErrConflict, ErrProtocol, ErrUnauthenticated:
		return true
	}
	return false
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func kindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidArgument,
		ErrPermissionDenied,
		ErrConflict,
		ErrStorageUnavailable,
		ErrProtocol,
		ErrUnauthenticated,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
