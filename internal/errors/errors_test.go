package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrInput,
		ErrAuth,
		ErrTransfer,
		ErrTimeout,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Group file is missing the worker key",
			suggestion: "Add a worker = ... line",
		},
		{
			name:       "input error",
			code:       ErrInput,
			message:    "No sources given",
			suggestion: "Pass at least one path to sync",
		},
		{
			name:       "auth error",
			code:       ErrAuth,
			message:    "Key login to node1 could not be verified",
			suggestion: "Check ~/.ssh permissions on the remote",
		},
		{
			name:       "transfer error",
			code:       ErrTransfer,
			message:    "rsync exited with code 23",
			suggestion: "Check the run log",
		},
		{
			name:       "timeout error",
			code:       ErrTimeout,
			message:    "ssh-copy-id did not finish within 1m0s",
			suggestion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestError_Format(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := WrapWithCode(cause, ErrAuth, "ssh-copy-id failed on node1", "Check the password")

	out := err.Error()
	lines := strings.Split(out, "\n")
	assert.Equal(t, "✗ ssh-copy-id failed on node1", lines[0])
	assert.Contains(t, out, "exit status 1")
	assert.Contains(t, out, "Check the password")
}

func TestError_FormatWithoutSuggestion(t *testing.T) {
	err := New(ErrInput, "No hosts", "")
	assert.Equal(t, "✗ No hosts\n", err.Error())
}

func TestWrap_DefaultsToTransfer(t *testing.T) {
	err := Wrap(fmt.Errorf("boom"), "rsync failed")
	assert.Equal(t, ErrTransfer, err.Code)
	assert.True(t, errors.Is(err, err.Cause))
}

func TestIsCode(t *testing.T) {
	inner := New(ErrTimeout, "timed out", "")
	outer := WrapWithCode(inner, ErrAuth, "push failed", "")

	assert.True(t, IsCode(outer, ErrAuth))
	assert.False(t, IsCode(outer, ErrTimeout), "IsCode only looks at the outermost coded error")
	assert.False(t, IsCode(nil, ErrAuth))
	assert.False(t, IsCode(fmt.Errorf("plain"), ErrAuth))

	wrapped := fmt.Errorf("context: %w", outer)
	assert.True(t, IsCode(wrapped, ErrAuth))
}

func TestHasCode(t *testing.T) {
	inner := New(ErrTimeout, "timed out", "")
	outer := WrapWithCode(inner, ErrAuth, "push failed", "")

	assert.True(t, HasCode(outer, ErrAuth))
	assert.True(t, HasCode(outer, ErrTimeout))
	assert.False(t, HasCode(outer, ErrTransfer))
	assert.False(t, HasCode(nil, ErrTimeout))

	mixed := WrapWithCode(fmt.Errorf("wrapping: %w", inner), ErrTransfer, "rsync failed", "")
	assert.True(t, HasCode(mixed, ErrTimeout))
}

func TestCode(t *testing.T) {
	assert.Equal(t, ErrConfig, Code(New(ErrConfig, "x", "")))
	assert.Equal(t, "", Code(fmt.Errorf("plain")))
	assert.Equal(t, "", Code(nil))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "push failed", Summary(WrapWithCode(fmt.Errorf("exit 1"), ErrAuth, "push failed", "hint")))
	assert.Equal(t, "first", Summary(fmt.Errorf("first\nsecond")))
	assert.Equal(t, "", Summary(nil))
}
