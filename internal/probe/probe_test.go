package probe

import (
	"context"
	stderrors "errors"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
	sshtesting "github.com/rileyhilliard/keyfleet/pkg/sshutil/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		text string
		want FailReason
	}{
		{"dial tcp: i/o timeout", FailTimeout},
		{"ssh: connect to host n1 port 22: Connection timed out", FailTimeout},
		{"connection refused", FailRefused},
		{"no route to host", FailUnreachable},
		{"network is unreachable", FailUnreachable},
		{"ssh: Could not resolve hostname n1: Name or service not known", FailUnreachable},
		{"unable to authenticate", FailAuth},
		{"no supported methods remain", FailAuth},
		{"deploy@n1: Permission denied (publickey).", FailAuth},
		{"Host key verification failed.", FailHostKey},
		{"WARNING: REMOTE HOST IDENTIFICATION HAS CHANGED!", FailHostKey},
		{"something else", FailUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			perr := categorize("n1", stderrors.New(tt.text), "")
			require.NotNil(t, perr)
			assert.Equal(t, tt.want, perr.Reason)
		})
	}

	assert.Nil(t, categorize("n1", nil, ""))
}

func TestCategorize_UsesOutput(t *testing.T) {
	perr := categorize("n1", stderrors.New("exit status 255"), "deploy@n1: Permission denied (publickey).\n")
	assert.Equal(t, FailAuth, perr.Reason)
}

func TestCategorize_TimeoutCode(t *testing.T) {
	err := errors.New(errors.ErrTimeout, "Took too long", "")
	assert.Equal(t, FailTimeout, categorize("n1", err, "").Reason)
}

func TestAsCoded(t *testing.T) {
	err := asCoded(&Error{Host: "n1", Reason: FailAuth})
	assert.True(t, errors.IsCode(err, errors.ErrAuth))

	err = asCoded(&Error{Host: "n1", Reason: FailTimeout})
	assert.True(t, errors.IsCode(err, errors.ErrTimeout))

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "n1", perr.Host)
}

func TestFailReason_String(t *testing.T) {
	assert.Equal(t, "key not accepted", FailAuth.String())
	assert.Equal(t, "unknown error", FailReason(99).String())
}

func TestError_Message(t *testing.T) {
	e := &Error{Host: "n1", Reason: FailRefused, Cause: stderrors.New("dial tcp")}
	assert.Equal(t, "probe n1 failed: connection refused (dial tcp)", e.Error())
	assert.Equal(t, "probe n1 failed: connection refused", (&Error{Host: "n1", Reason: FailRefused}).Error())
}

func TestFunc(t *testing.T) {
	var got string
	p := Func(func(_ context.Context, h nodegroup.Host, key string) error {
		got = h.String() + " " + key
		return nil
	})
	require.NoError(t, p.Probe(context.Background(), nodegroup.Host{Alias: "n1"}, "/k/id"))
	assert.Equal(t, "n1 /k/id", got)
}

func TestBuildArgs(t *testing.T) {
	host := nodegroup.Host{Alias: "n1", Address: "n1", User: "deploy", Port: 2222}
	assert.Equal(t, []string{
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=5",
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "IdentitiesOnly=yes",
		"-o", "PasswordAuthentication=no",
		"-i", "/k/id",
		"-p", "2222",
		"deploy@n1", "echo keyfleet-ok",
	}, BuildArgs(host, "/k/id", 5*time.Second))

	args := BuildArgs(nodegroup.Host{Address: "n1"}, "/k/id", 0)
	assert.Contains(t, args, "ConnectTimeout=1")
	assert.NotContains(t, args, "-p")
}

func fakeSSH(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "ssh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestCommandProbe(t *testing.T) {
	host := nodegroup.Host{Alias: "n1", Address: "n1"}

	t.Run("success", func(t *testing.T) {
		p := CommandProbe{SSH: fakeSSH(t, `echo keyfleet-ok`), Timeout: time.Second}
		assert.NoError(t, p.Probe(context.Background(), host, "/k/id"))
	})

	t.Run("permission denied", func(t *testing.T) {
		p := CommandProbe{SSH: fakeSSH(t, "echo 'n1: Permission denied (publickey).' >&2\nexit 255\n")}
		err := p.Probe(context.Background(), host, "/k/id")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrAuth))

		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, FailAuth, perr.Reason)
	})

	t.Run("wrong output", func(t *testing.T) {
		p := CommandProbe{SSH: fakeSSH(t, `echo hello`)}
		err := p.Probe(context.Background(), host, "/k/id")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected reply")
	})

	t.Run("hangs", func(t *testing.T) {
		p := CommandProbe{SSH: fakeSSH(t, "exec sleep 10\n"), Timeout: 100 * time.Millisecond}
		err := p.Probe(context.Background(), host, "/k/id")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrTimeout))
	})
}

func TestNativeProbe(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	pub, keyPath := sshtesting.GenerateKey(t)
	srv := sshtesting.Start(t, sshtesting.WithPublicKey(pub))
	host := nodegroup.Host{Alias: "n1", Address: srv.Host, Port: srv.Port, User: "deploy"}

	p := NativeProbe{Timeout: 5 * time.Second}

	t.Run("authorized key", func(t *testing.T) {
		assert.NoError(t, p.Probe(context.Background(), host, keyPath))
	})

	t.Run("unauthorized key", func(t *testing.T) {
		_, otherKey := sshtesting.GenerateKey(t)
		err := p.Probe(context.Background(), host, otherKey)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrAuth))

		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, FailAuth, perr.Reason)
	})

	t.Run("command fails", func(t *testing.T) {
		failing := sshtesting.Start(t, sshtesting.WithPublicKey(pub),
			sshtesting.WithCmdHandler(func(string) (string, string, int) { return "", "no shell", 1 }))
		h := nodegroup.Host{Alias: "n2", Address: failing.Host, Port: failing.Port, User: "deploy"}

		err := p.Probe(context.Background(), h, keyPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "remote command exited 1")
	})

	t.Run("nothing listening", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		require.NoError(t, ln.Close())

		h := nodegroup.Host{Alias: "n3", Address: "127.0.0.1", Port: port}
		err = p.Probe(context.Background(), h, keyPath)
		require.Error(t, err)

		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, FailRefused, perr.Reason, strconv.Itoa(port))
	})
}
