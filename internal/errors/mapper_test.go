package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

func TestMap(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"not found", NotFound("user %s", "u1"), codes.NotFound},
		{"gorm not found", gorm.ErrRecordNotFound, codes.NotFound},
		{"invalid", InvalidArgument("cannot decide on yourself"), codes.InvalidArgument},
		{"denied", PermissionDenied("not a participant"), codes.PermissionDenied},
		{"storage", Storage(fmt.Errorf("dial tcp: refused")), codes.Unavailable},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"unknown", fmt.Errorf("boom"), codes.Internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, ok := status.FromError(Map(tc.err))
			assert.True(t, ok)
			assert.Equal(t, tc.code, st.Code())
		})
	}
	assert.Nil(t, Map(nil))
}

func TestMap_StorageHidesDriverDetails(t *testing.T) {
	st, _ := status.FromError(Map(Storage(fmt.Errorf("password=secret"))))
	assert.NotContains(t, st.Message(), "secret")
}

func TestStorage_KeepsExistingKind(t *testing.T) {
	err := Storage(NotFound("match %s", "m1"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStorageUnavailable)
	assert.Nil(t, Storage(nil))
}

func TestHTTPStatusAndCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidArgument("x")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(PermissionDenied("x")))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(Unauthenticated("x")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(Storage(fmt.Errorf("down"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))

	assert.Equal(t, "protocol_error", Code(Protocol("bad frame")))
	assert.Equal(t, "permission_denied", Code(PermissionDenied("x")))
	assert.Equal(t, "internal", Code(fmt.Errorf("boom")))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(InvalidArgument("x")))
	assert.True(t, IsClientError(fmt.Errorf("wrapped: %w", NotFound("x"))))
	assert.False(t, IsClientError(Storage(fmt.Errorf("down"))))
	assert.False(t, IsClientError(fmt.Errorf("boom")))
}
