package errors_test

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/hardcopy/pkg/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    errors.ErrorCode
		message string
		wantStr string
	}{
		{"tool not found", errors.ErrToolNotFound, "'robocopy' could not be found in PATH", "[TOOL_NOT_FOUND] 'robocopy' could not be found in PATH"},
		{"validation failed", errors.ErrValidationFailed, "b is not a valid copy of a", "[VALIDATION_FAILED] b is not a valid copy of a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.code, tt.message)
			assert.Equal(t, tt.code, err.Code)
			assert.NotNil(t, err.Details)
			assert.Equal(t, tt.wantStr, err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	t.Run("nil error stays nil", func(t *testing.T) {
		assert.Nil(t, errors.Wrap(nil, errors.ErrReadFailed, "read"))
	})

	t.Run("keeps the cause reachable", func(t *testing.T) {
		err := errors.Wrapf(fs.ErrNotExist, errors.ErrReadFailed, "checksum %s", "a.txt")
		assert.Equal(t, "[READ_FAILED] checksum a.txt: file does not exist", err.Error())
		assert.True(t, stderrors.Is(err, fs.ErrNotExist))
	})
}

func TestIsByCode(t *testing.T) {
	err := fmt.Errorf("copy: %w", errors.New(errors.ErrTransferFailed, "exit status 9"))

	assert.True(t, stderrors.Is(err, errors.New(errors.ErrTransferFailed, "")))
	assert.False(t, stderrors.Is(err, errors.New(errors.ErrToolNotFound, "")))
}

func TestIsErrorCode(t *testing.T) {
	inner := errors.New(errors.ErrToolNotFound, "missing")
	outer := errors.Wrap(inner, errors.ErrInvalidInput, "preflight")

	assert.True(t, errors.IsErrorCode(outer, errors.ErrInvalidInput))
	assert.True(t, errors.IsErrorCode(outer, errors.ErrToolNotFound))
	assert.False(t, errors.IsErrorCode(outer, errors.ErrTransferFailed))
	assert.False(t, errors.IsErrorCode(stderrors.New("plain"), errors.ErrUnknown))
}

func TestGetErrorCodeAndDetails(t *testing.T) {
	err := errors.New(errors.ErrUnexpectedExitStatus, "exit 3").WithDetail("exit_code", 3)
	wrapped := fmt.Errorf("preflight: %w", err)

	require.Equal(t, errors.ErrUnexpectedExitStatus, errors.GetErrorCode(wrapped))
	assert.Equal(t, 3, errors.GetErrorDetails(wrapped)["exit_code"])
	assert.Equal(t, errors.ErrUnknown, errors.GetErrorCode(stderrors.New("plain")))
	assert.Nil(t, errors.GetErrorDetails(stderrors.New("plain")))
}
