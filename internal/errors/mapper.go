package errors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Map converts service errors into gRPC-friendly status errors.
// Keeps transport layers clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrProtocol):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())

	case errors.Is(err, ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())

	case errors.Is(err, ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	case errors.Is(err, ErrStorageUnavailable):
		// driver details stay in the logs
		return status.Error(codes.Unavailable, ErrStorageUnavailable.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// HTTPStatus picks the response status for err.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrProtocol):
		return http.StatusBadRequest
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine-readable kind used in API error bodies and relay error frames.
func Code(err error) string {
	switch kindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrConflict:
		return "conflict"
	case ErrStorageUnavailable:
		return "storage_unavailable"
	case ErrProtocol:
		return "protocol_error"
	case ErrUnauthenticated:
		return "unauthenticated"
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "not_found"
	}
	return "internal"
}

// PublicMessage hides infrastructure details from callers.
func PublicMessage(err error) string {
	if errors.Is(err, ErrStorageUnavailable) {
		return ErrStorageUnavailable.Error()
	}
	if kindOf(err) == nil {
		return "internal error"
	}
	return err.Error()
}
