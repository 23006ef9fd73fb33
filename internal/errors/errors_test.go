package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("New creates error correctly", func(t *testing.T) {
		err := New(ErrorTypeInvalidArgument, "Invalid input", ExitInvalidArgument)

		assert.Equal(t, ErrorTypeInvalidArgument, err.Type)
		assert.Equal(t, "Invalid input", err.Message)
		assert.Equal(t, ExitInvalidArgument, err.ExitCode)
		assert.Equal(t, "INVALID_ARGUMENT: Invalid input", err.Error())
	})

	t.Run("Wrap wraps error correctly", func(t *testing.T) {
		originalErr := errors.New("original error")
		err := Wrap(originalErr, ErrorTypeIO, "Something went wrong", ExitFailure)

		assert.Equal(t, ErrorTypeIO, err.Type)
		assert.Equal(t, "Something went wrong", err.Message)
		assert.Equal(t, originalErr, err.Unwrap())
		assert.Contains(t, err.Error(), "original error")
		assert.True(t, errors.Is(err, originalErr))
	})

	t.Run("WithDetails adds details", func(t *testing.T) {
		err := New(ErrorTypeDecode, "bad payload", ExitFailure)
		details := map[string]interface{}{
			"frame": 12,
		}
		_ = err.WithDetails(details)

		assert.Equal(t, details, err.Details)
	})

	t.Run("WithCode adds code", func(t *testing.T) {
		err := New(ErrorTypeDecode, "bad payload", ExitFailure)
		_ = err.WithCode("MALFORMED")

		assert.Equal(t, "MALFORMED", err.Code)
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() *AppError
		wantType ErrorType
		wantExit int
	}{
		{
			name:     "NewInvalidArgumentError",
			fn:       func() *AppError { return NewInvalidArgumentError("num_frames must be positive, got %d", -1) },
			wantType: ErrorTypeInvalidArgument,
			wantExit: ExitInvalidArgument,
		},
		{
			name:     "NewEmptyInputError",
			fn:       NewEmptyInputError,
			wantType: ErrorTypeEmptyInput,
			wantExit: ExitFailure,
		},
		{
			name:     "NewMissingSyncFrameError",
			fn:       func() *AppError { return NewMissingSyncFrameError("first sync frame missing") },
			wantType: ErrorTypeMissingSyncFrame,
			wantExit: ExitFailure,
		},
		{
			name:     "NewAnomalousDuplicateError",
			fn:       func() *AppError { return NewAnomalousDuplicateError(2) },
			wantType: ErrorTypeAnomalousDuplicate,
			wantExit: ExitAnomaly,
		},
		{
			name:     "NewDependencyMissingError",
			fn:       func() *AppError { return NewDependencyMissingError("ffmpeg", errors.New("not found")) },
			wantType: ErrorTypeDependencyMissing,
			wantExit: ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.wantExit, err.ExitCode)
		})
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewEmptyInputError()
	wrapped := fmt.Errorf("scan failed: %w", appErr)

	got, ok := GetAppError(wrapped)
	assert.True(t, ok)
	assert.Same(t, appErr, got)
	assert.True(t, IsAppError(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeEmptyInput))
	assert.False(t, IsType(wrapped, ErrorTypeMissingSyncFrame))

	_, ok = GetAppError(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsType(nil, ErrorTypeEmptyInput))
}
