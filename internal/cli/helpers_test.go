package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/keyfleet/internal/action"
	"github.com/rileyhilliard/keyfleet/internal/config"
	"github.com/rileyhilliard/keyfleet/internal/credential"
	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
	"github.com/rileyhilliard/keyfleet/internal/probe"
	"github.com/rileyhilliard/keyfleet/internal/ui"
	"github.com/rileyhilliard/keyfleet/pkg/sshutil"
)

func init() {
	ui.DisableColors()
}

// testEnv is a temp workspace with a config file, a key pair and a log dir.
type testEnv struct {
	dir     string
	config  string
	key     string
	logsDir string
}

// newTestEnv writes a config whose body is extra plus logs, key and retry
// settings pointing into a temp dir.
func newTestEnv(t *testing.T, extra string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:     dir,
		config:  filepath.Join(dir, ".keyfleet.yaml"),
		key:     filepath.Join(dir, "id_ed25519"),
		logsDir: filepath.Join(dir, "logs"),
	}
	require.NoError(t, os.WriteFile(env.key, []byte("private"), 0600))
	require.NoError(t, os.WriteFile(env.key+".pub", []byte("ssh-ed25519 AAAA test"), 0644))

	body := strings.Join([]string{
		"logs:",
		"  dir: " + env.logsDir,
		"push:",
		"  key: " + env.key,
		"retry:",
		"  attempts: 2",
		"  delay: 0s",
		extra,
	}, "\n")
	require.NoError(t, os.WriteFile(env.config, []byte(body), 0644))
	return env
}

func (e *testEnv) globals() globalOptions {
	return globalOptions{ConfigPath: e.config}
}

func (e *testEnv) write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// logFiles lists run logs written so far.
func (e *testEnv) logFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.logsDir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

// stubs swaps the package seams for the duration of a test.
type stubs struct {
	exec     action.Executor
	prober   probe.Prober
	supplier credential.Supplier
	tools    []string
}

func installStubs(t *testing.T, s *stubs) {
	t.Helper()
	oldRequire, oldExec, oldProber, oldLookup := requireTools, newExecutor, newProber, sshLookup

	requireTools = func(tools ...string) error {
		s.tools = append(s.tools, tools...)
		return nil
	}
	newExecutor = func(supplier credential.Supplier, _ *config.Config) action.Executor {
		s.supplier = supplier
		return s.exec
	}
	newProber = func(*config.Config) (probe.Prober, error) {
		if s.prober == nil {
			return probe.Func(func(context.Context, nodegroup.Host, string) error { return nil }), nil
		}
		return s.prober, nil
	}
	sshLookup = func(string) sshutil.HostSettings { return sshutil.HostSettings{} }

	t.Cleanup(func() {
		requireTools, newExecutor, newProber, sshLookup = oldRequire, oldExec, oldProber, oldLookup
	})
}

// rejectHosts is a prober that fails key login on the named hosts.
func rejectHosts(names ...string) probe.Prober {
	return probe.Func(func(_ context.Context, h nodegroup.Host, _ string) error {
		for _, n := range names {
			if h.String() == n {
				return errors.New(errors.ErrAuth, "Permission denied on "+n, "")
			}
		}
		return nil
	})
}
