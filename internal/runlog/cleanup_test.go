package runlog

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, dir, name string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func TestCleanup_KeepsNewestPerCommand(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 4; i++ {
		mod := base.Add(time.Duration(i) * time.Minute)
		writeLog(t, dir, "push-"+mod.Format(timestampLayout)+".log", mod)
	}
	for i := 0; i < 2; i++ {
		mod := base.Add(time.Duration(i) * time.Minute)
		writeLog(t, dir, "sync-"+mod.Format(timestampLayout)+".log", mod)
	}
	writeLog(t, dir, "notes.txt", base)
	writeLog(t, dir, "random.log", base)

	require.NoError(t, Cleanup(dir, 2))

	assert.Equal(t, []string{
		"notes.txt",
		"push-" + base.Add(2*time.Minute).Format(timestampLayout) + ".log",
		"push-" + base.Add(3*time.Minute).Format(timestampLayout) + ".log",
		"random.log",
		"sync-" + base.Format(timestampLayout) + ".log",
		"sync-" + base.Add(time.Minute).Format(timestampLayout) + ".log",
	}, names(t, dir))
}

func TestCleanup_CountsSameSecondRuns(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	stamp := base.Format(timestampLayout)

	writeLog(t, dir, "push-"+stamp+".log", base)
	writeLog(t, dir, "push-"+stamp+"-1.log", base.Add(time.Second))
	writeLog(t, dir, "push-"+stamp+"-2.log", base.Add(2*time.Second))

	require.NoError(t, Cleanup(dir, 2))

	assert.Equal(t, []string{
		"push-" + stamp + "-1.log",
		"push-" + stamp + "-2.log",
	}, names(t, dir))
}

func TestCleanup_NoOp(t *testing.T) {
	assert.NoError(t, Cleanup(filepath.Join(t.TempDir(), "missing"), 3))
	assert.NoError(t, Cleanup("", 3))

	dir := t.TempDir()
	writeLog(t, dir, "push-20260101-000000.log", time.Now())
	require.NoError(t, Cleanup(dir, 0))
	assert.Len(t, names(t, dir), 1)
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"push-20260101-120000.log", "push"},
		{"sync-dry-20260101-120000.log", "sync-dry"},
		{"push-2026-120000.log", ""},
		{"20260101-120000.log", ""},
		{"push.log", ""},
		{"push-20260101-120000-1.log", "push"},
		{"sync-dry-20260101-120000-12.log", "sync-dry"},
		{"push-20260101-120000-x.log", ""},
		{"push-1.log", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandName(tt.name))
		})
	}
}
