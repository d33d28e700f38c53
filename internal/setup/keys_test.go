package setup

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKeygen records its args and writes both halves of the key like
// ssh-keygen does.
const fakeKeygen = `#!/bin/sh
echo "$*" > "$FAKE_KEYGEN_ARGS"
while [ $# -gt 0 ]; do
	if [ "$1" = "-f" ]; then
		out="$2"
	fi
	shift
done
echo private > "$out"
echo "ssh-ed25519 AAAA keyfleet" > "$out.pub"
`

func useFakeKeygen(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ssh-keygen")
	require.NoError(t, os.WriteFile(bin, []byte(fakeKeygen), 0755))

	argsFile := filepath.Join(dir, "args")
	t.Setenv("FAKE_KEYGEN_ARGS", argsFile)

	old := keygenBinary
	keygenBinary = bin
	t.Cleanup(func() { keygenBinary = old })
	return argsFile
}

func readArgs(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func TestInferKeyType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/home/user/.ssh/id_ed25519", "ed25519"},
		{"/home/user/.ssh/id_rsa", "rsa"},
		{"/home/user/.ssh/id_ecdsa", "ecdsa"},
		{"/home/user/.ssh/id_dsa", "unknown"},
		{"/home/user/.ssh/mykey_ed25519", "ed25519"},
		{"/home/user/.ssh/id_ed25519.pub", "ed25519"},
		{"/home/user/.ssh/backup_rsa_key", "rsa"},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.want, inferKeyType(tt.path))
		})
	}
}

func TestBuildKeygenArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-t", "ed25519", "-f", "/k/id", "-N", "", "-C", "keyfleet-generated-ed25519"},
		BuildKeygenArgs("/k/id", "ed25519", 0))
	assert.Equal(t,
		[]string{"-t", "rsa", "-b", "4096", "-f", "/k/id", "-N", "", "-C", "keyfleet-generated-rsa"},
		BuildKeygenArgs("/k/id", "rsa", 4096))
}

func TestGenerateKey(t *testing.T) {
	tests := []struct {
		name     string
		keyType  string
		bits     int
		wantArgs string
	}{
		{"default type", "", 0, "-t ed25519 -f %s -N  -C keyfleet-generated-ed25519"},
		{"ed25519 ignores bits", "ed25519", 4096, "-t ed25519 -f %s -N  -C keyfleet-generated-ed25519"},
		{"rsa default bits", "rsa", 0, "-t rsa -b 4096 -f %s -N  -C keyfleet-generated-rsa"},
		{"rsa explicit bits", "rsa", 3072, "-t rsa -b 3072 -f %s -N  -C keyfleet-generated-rsa"},
		{"ecdsa", "ecdsa", 384, "-t ecdsa -b 384 -f %s -N  -C keyfleet-generated-ecdsa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			argsFile := useFakeKeygen(t)
			path := filepath.Join(t.TempDir(), ".ssh", "id_test")

			require.NoError(t, GenerateKey(context.Background(), path, tt.keyType, tt.bits))

			assert.Equal(t, strings.Replace(tt.wantArgs, "%s", path, 1), readArgs(t, argsFile))
			assert.FileExists(t, path)
			assert.FileExists(t, path+".pub")

			info, err := os.Stat(filepath.Dir(path))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
		})
	}
}

func TestGenerateKey_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		keyType string
		bits    int
		want    string
	}{
		{"unknown type", "dsa", 0, "Invalid key type: dsa"},
		{"small rsa", "rsa", 1024, "Key size 1024 is too small for rsa"},
		{"odd ecdsa", "ecdsa", 300, "Invalid key size for ecdsa: 300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := GenerateKey(context.Background(), filepath.Join(t.TempDir(), "k"), tt.keyType, tt.bits)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGenerateKey_ExistingKey(t *testing.T) {
	useFakeKeygen(t)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0600))

	err := GenerateKey(context.Background(), path, "ed25519", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Key already exists")

	data, _ := os.ReadFile(path)
	assert.Equal(t, "existing", string(data), "existing key is never overwritten")
}

func TestGenerateKey_TildeExpansion(t *testing.T) {
	useFakeKeygen(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, GenerateKey(context.Background(), "~/.ssh/fleet_ed25519", "", 0))
	assert.FileExists(t, filepath.Join(home, ".ssh", "fleet_ed25519.pub"))
}

func TestGenerateKey_KeygenFails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	bin := filepath.Join(t.TempDir(), "ssh-keygen")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'Saving key failed' >&2\nexit 1\n"), 0755))
	old := keygenBinary
	keygenBinary = bin
	t.Cleanup(func() { keygenBinary = old })

	err := GenerateKey(context.Background(), filepath.Join(t.TempDir(), "k"), "", 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "Saving key failed")
}

func TestEnsureKey(t *testing.T) {
	useFakeKeygen(t)
	path := filepath.Join(t.TempDir(), "id_ed25519")

	created, err := EnsureKey(context.Background(), path, "", 0)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureKey(context.Background(), path, "", 0)
	require.NoError(t, err)
	assert.False(t, created, "second call finds the existing pair")
}

func TestFindLocalKeys_AndPreference(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	sshDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.MkdirAll(sshDir, 0700))

	assert.Empty(t, FindLocalKeys())
	assert.Nil(t, GetPreferredKey())

	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(sshDir, name), []byte("x"), 0600))
	}

	write("id_rsa")
	write("id_rsa.pub")
	write("id_ed25519") // no public half

	keys := FindLocalKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, "ed25519", keys[0].Type)
	assert.False(t, keys[0].HasPublic)
	assert.True(t, keys[1].HasPublic)

	assert.Equal(t, "rsa", GetPreferredKey().Type, "a key with a public half wins")

	write("id_ecdsa")
	write("id_ecdsa.pub")
	assert.Equal(t, "ecdsa", GetPreferredKey().Type)

	write("id_ed25519.pub")
	assert.Equal(t, "ed25519", GetPreferredKey().Type)
}

func TestDefaultKeyPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, ".ssh", "id_ed25519"), DefaultKeyPath(""))
	assert.Equal(t, filepath.Join(home, ".ssh", "id_rsa"), DefaultKeyPath("rsa"))
}

func TestReadPublicKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.pub")
	require.NoError(t, os.WriteFile(path, []byte("  ssh-ed25519 AAAA me\n\n"), 0644))

	got, err := ReadPublicKey(path)
	require.NoError(t, err)
	assert.Equal(t, "ssh-ed25519 AAAA me", got)

	_, err = ReadPublicKey(path + ".missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInput))
}
