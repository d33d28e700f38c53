package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay)
	assert.True(t, cfg.Retry.Sync)
	assert.Equal(t, 1, cfg.Parallel.Workers)
	assert.Equal(t, "ed25519", cfg.Push.KeyType)
	assert.Equal(t, 60*time.Second, cfg.Push.Timeout)
	assert.Equal(t, ProbeSSH, cfg.Push.Probe)
	assert.Equal(t, 5*time.Second, cfg.Push.ProbeTimeout)
	assert.Equal(t, time.Duration(0), cfg.Sync.Timeout)
	assert.False(t, cfg.Sync.DryRun)
	assert.Equal(t, 20, cfg.Logs.Keep)

	require.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)

	content := `
version: 1
groups_file: cluster.ini
user: admin
port: 2222
retry:
  attempts: 2
  delay: 500ms
  sync: false
parallel:
  workers: 4
push:
  key: /keys/id_rsa
  key_type: rsa
  key_bits: 4096
  timeout: 30s
  probe: native
sync:
  target: /srv/data
  exclude:
    - .git/
    - "*.tmp"
  dry_run: true
  verify_dry_run: true
  timeout: 10m
logs:
  dir: /var/log/keyfleet
  keep: 5
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "cluster.ini"), cfg.GroupsFile, "relative groups_file resolves against the config dir")
	assert.Equal(t, "admin", cfg.User)
	assert.Equal(t, 2222, cfg.Port)
	assert.Equal(t, 2, cfg.Retry.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Delay)
	assert.False(t, cfg.Retry.Sync)
	assert.Equal(t, 4, cfg.Parallel.Workers)
	assert.Equal(t, "/keys/id_rsa", cfg.Push.Key)
	assert.Equal(t, "rsa", cfg.Push.KeyType)
	assert.Equal(t, 4096, cfg.Push.KeyBits)
	assert.Equal(t, 30*time.Second, cfg.Push.Timeout)
	assert.Equal(t, ProbeNative, cfg.Push.Probe)
	assert.Equal(t, 5*time.Second, cfg.Push.ProbeTimeout, "unset keys keep defaults")
	assert.Equal(t, "/srv/data", cfg.Sync.Target)
	assert.Equal(t, []string{".git/", "*.tmp"}, cfg.Sync.Exclude)
	assert.True(t, cfg.Sync.DryRun)
	assert.True(t, cfg.Sync.VerifyDryRun)
	assert.Equal(t, 10*time.Minute, cfg.Sync.Timeout)
	assert.Equal(t, "/var/log/keyfleet", cfg.Logs.Dir)
	assert.Equal(t, 5, cfg.Logs.Keep)
}

func TestLoad_InlineGroups(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)

	content := `
groups:
  master:
    - cp1
  worker:
    - w1
    - admin@w2:2200
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, []string{"cp1"}, cfg.Groups["master"])
	assert.Equal(t, []string{"w1", "admin@w2:2200"}, cfg.Groups["worker"])
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("retry:\n  attempts: 2\n"), 0644))

	t.Setenv("KEYFLEET_RETRY_ATTEMPTS", "7")
	t.Setenv("KEYFLEET_PARALLEL_WORKERS", "3")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retry.Attempts)
	assert.Equal(t, 3, cfg.Parallel.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("retry:\n  attempts: 0\n"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "retry.attempts")
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/.keyfleet.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFind(t *testing.T) {
	t.Run("explicit path exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "custom.yaml")
		require.NoError(t, os.WriteFile(path, []byte("version: 1"), 0644))

		found, err := Find(path)
		require.NoError(t, err)
		assert.Equal(t, path, found)
	})

	t.Run("explicit path not found", func(t *testing.T) {
		_, err := Find("/nonexistent/config.yaml")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})

	t.Run("current directory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ConfigFileName)
		require.NoError(t, os.WriteFile(path, []byte("version: 1"), 0644))
		t.Chdir(dir)

		found, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, path, found)
	})

	t.Run("parent directory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ConfigFileName)
		require.NoError(t, os.WriteFile(path, []byte("version: 1"), 0644))
		child := filepath.Join(dir, "a", "b")
		require.NoError(t, os.MkdirAll(child, 0755))
		t.Chdir(child)

		found, err := Find("")
		require.NoError(t, err)
		assert.Equal(t, path, found)
	})

	t.Run("stops at git root", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("version: 1"), 0644))
		repo := filepath.Join(dir, "repo")
		require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0755))
		t.Chdir(repo)
		t.Setenv("HOME", t.TempDir())

		found, err := Find("")
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KEYFLEET_RETRY_ATTEMPTS", "5")

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, 5, cfg.Retry.Attempts, "env overrides apply without a file")
	assert.Equal(t, 22, cfg.Port)
}
