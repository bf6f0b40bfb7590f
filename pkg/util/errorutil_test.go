package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("create ticket: %w", NewInvalidCategory("42"))

	assert.True(t, errors.Is(wrapped, ErrInvalidCategory))
	assert.False(t, errors.Is(wrapped, ErrPermissionDenied))
}

func TestDomainErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStoreIOError("flush ticket store", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrStoreIO))
	assert.Equal(t, "flush ticket store: disk full", err.Error())
}

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{name: "not found", err: NewNotFound("ticket", nil), wantCode: CodeNotFound, wantStatus: http.StatusNotFound},
		{name: "unauthorized", err: NewUnauthorized("missing"), wantCode: CodeUnauthorized, wantStatus: http.StatusUnauthorized},
		{name: "plain error", err: errors.New("boom"), wantCode: CodeInternal, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := ToDomainError(tt.err)
			require.NotNil(t, de)
			assert.Equal(t, tt.wantCode, de.Code)
			assert.Equal(t, tt.wantStatus, de.HTTPStatus)
		})
	}

	assert.Nil(t, ToDomainError(nil))
}

func TestUserMessage(t *testing.T) {
	assert.Contains(t, UserMessage(NewNoButtonsConfigured()), "No ticket buttons")
	assert.Contains(t, UserMessage(NewPermissionDenied("admin only")), "permission")
	assert.Contains(t, UserMessage(errors.New("x")), "Something went wrong")
}
