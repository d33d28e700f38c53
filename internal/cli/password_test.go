package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/keyfleet/internal/credential"
	"github.com/rileyhilliard/keyfleet/internal/errors"
)

func answer(t *testing.T, s credential.Supplier) (string, bool) {
	t.Helper()
	require.NotNil(t, s)
	return s.Answer(credential.PromptPassword, "password: ")
}

func TestResolveSupplier_KeyAuth(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")

	s, err := resolveSupplier(credentialOptions{KeyAuth: true}, strings.NewReader("ignored\n"))
	require.NoError(t, err)
	_, ok := answer(t, s)
	assert.False(t, ok, "key auth refuses password prompts")
}

func TestResolveSupplier_Stdin(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")

	tests := []struct {
		name  string
		input string
	}{
		{"newline", "hunter2\n"},
		{"crlf", "hunter2\r\n"},
		{"no newline", "hunter2"},
		{"only first line", "hunter2\nsomething else\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := resolveSupplier(credentialOptions{PasswordStdin: true}, strings.NewReader(tt.input))
			require.NoError(t, err)
			pw, ok := answer(t, s)
			assert.True(t, ok)
			assert.Equal(t, "hunter2", pw)
		})
	}
}

func TestResolveSupplier_EmptyStdin(t *testing.T) {
	_, err := resolveSupplier(credentialOptions{PasswordStdin: true}, strings.NewReader("\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInput))
}

func TestResolveSupplier_Env(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")

	s, err := resolveSupplier(credentialOptions{}, strings.NewReader(""))
	require.NoError(t, err)
	pw, _ := answer(t, s)
	assert.Equal(t, "from-env", pw)
}

func TestResolveSupplier_Prompt(t *testing.T) {
	t.Setenv(PasswordEnv, "")

	f, err := os.Create(filepath.Join(t.TempDir(), "tty"))
	require.NoError(t, err)
	defer f.Close()

	oldTerm, oldPrompt := isTerminal, promptPassword
	t.Cleanup(func() { isTerminal, promptPassword = oldTerm, oldPrompt })

	isTerminal = func(int) bool { return true }
	prompted := false
	promptPassword = func() (string, error) {
		prompted = true
		return "typed", nil
	}

	s, err := resolveSupplier(credentialOptions{}, f)
	require.NoError(t, err)
	assert.True(t, prompted)
	pw, _ := answer(t, s)
	assert.Equal(t, "typed", pw)

	isTerminal = func(int) bool { return false }
	prompted = false
	_, err = resolveSupplier(credentialOptions{}, f)
	require.Error(t, err)
	assert.False(t, prompted, "no prompt without a terminal")
	assert.True(t, errors.IsCode(err, errors.ErrInput))
	assert.Contains(t, err.Error(), "--password-stdin")
}
