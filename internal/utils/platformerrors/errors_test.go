package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformError_Error(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")
	err := NewError(context.Background(), LayerDomain, ErrorTypeExtraction, "open archive", cause, "abc")

	assert.Equal(t, "[domain][EXTRACTION][abc] open archive: zip: not a valid zip file", err.Error())
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestNewError_RequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	err := NewError(ctx, LayerHandler, ErrorTypeValidation, "bad", nil, "")

	assert.Equal(t, "req-1", err.GetRequestID())
	assert.Equal(t, "auto-generated-uuid", err.GetUUID())
}

func TestIsErrorType(t *testing.T) {
	base := NewError(context.Background(), LayerRepository, ErrorTypeStorage, "upsert failed", nil, "x")
	wrapped := fmt.Errorf("load conversations: %w", base)

	assert.True(t, IsErrorType(wrapped, ErrorTypeStorage))
	assert.False(t, IsErrorType(wrapped, ErrorTypeLoad))
	assert.False(t, IsErrorType(nil, ErrorTypeStorage))
	assert.False(t, IsErrorType(errors.New("plain"), ErrorTypeStorage))
}

func TestAsError_KeepsType(t *testing.T) {
	base := NewError(context.Background(), LayerDomain, ErrorTypeLoad, "missing uuid", nil, "load-1")
	wrapped := AsError(context.Background(), LayerHandler, base, "import failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeLoad, wrapped.Type)
	assert.Equal(t, "load-1", wrapped.UUID)
	assert.Nil(t, AsError(context.Background(), LayerHandler, nil, "noop"))
	assert.Equal(t, ErrorTypeInternal, AsError(context.Background(), LayerHandler, errors.New("boom"), "x").Type)
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      int
	}{
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeExtraction, http.StatusBadRequest},
		{ErrorTypeLoad, http.StatusUnprocessableEntity},
		{ErrorTypeTooLarge, http.StatusRequestEntityTooLarge},
		{ErrorTypeStorage, http.StatusInternalServerError},
		{ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorTypeToHTTPStatus(tt.errorType))
		})
	}
}
