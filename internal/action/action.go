// Package action runs one external process against one host: ssh-copy-id for
// a credential push, or rsync for a file sync.
//
// A Runner never retries and never decides whether a push "really" worked;
// that belongs to the retry controller. It maps process outcomes onto coded
// errors and streams every output line to the caller.
package action

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/credential"
	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/logger"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
)

// Kind names an action.
type Kind string

const (
	KindPush Kind = "push"
	KindSync Kind = "sync"
)

// Spec describes what to do on each host. Implementations are immutable values.
type Spec interface {
	Kind() Kind
	// Label identifies the spec in reports and logs: the source for sync, empty for push.
	Label() string
}

// PushSpec installs a public key on a host.
type PushSpec struct {
	// KeyPath is the private key; the public key is KeyPath + ".pub".
	KeyPath string
	// User and Port are used for hosts whose token doesn't name them.
	User string
	Port int
	// Timeout bounds the whole ssh-copy-id run including prompts.
	Timeout time.Duration
	// ConnectTimeout is passed to ssh as ConnectTimeout.
	ConnectTimeout time.Duration
}

func (PushSpec) Kind() Kind { return KindPush }
func (PushSpec) Label() string { return "" }

// PublicKeyPath returns the .pub file handed to ssh-copy-id.
func (s PushSpec) PublicKeyPath() string {
	if strings.HasSuffix(s.KeyPath, ".pub") {
		return s.KeyPath
	}
	return s.KeyPath + ".pub"
}

// PrivateKeyPath returns the private half, used by verification probes.
func (s PushSpec) PrivateKeyPath() string {
	return strings.TrimSuffix(s.KeyPath, ".pub")
}

// SyncSpec copies one local path to a host.
type SyncSpec struct {
	// Source is a local file or directory, absolute.
	Source string
	// Target overrides the remote destination directory.
	Target  string
	Exclude []string
	// DryRun asks rsync to report without changing anything.
	DryRun bool
	// VerifyDryRun checks over sftp that a dry run left the destination untouched.
	VerifyDryRun bool
	// Timeout bounds one rsync run. Zero means no limit.
	Timeout time.Duration
	// ConnectTimeout is passed to ssh as ConnectTimeout.
	ConnectTimeout time.Duration
	User           string
	Port           int
}

func (SyncSpec) Kind() Kind { return KindSync }
func (s SyncSpec) Label() string { return s.Source }

// Destination returns the remote directory the source is copied into:
// the target override, or else the source's own parent so the path is
// mirrored on every host.
func (s SyncSpec) Destination() string {
	if s.Target != "" {
		return s.Target
	}
	return filepath.Dir(filepath.Clean(s.Source))
}

// VerifyPath returns the remote path a run of s can touch: the copied entry
// itself, or the whole target when a trailing slash spreads the source's
// contents into it.
func (s SyncSpec) VerifyPath() string {
	if s.Target != "" && strings.HasSuffix(s.Source, "/") {
		return s.Target
	}
	base := filepath.Base(filepath.Clean(s.Source))
	if base == "/" || base == "." {
		return s.Destination()
	}
	return path.Join(s.Destination(), base)
}

// ForSource returns a copy of s for another source.
func (s SyncSpec) ForSource(source string) SyncSpec {
	s.Source = source
	return s
}

// Result is the outcome of one process run.
type Result struct {
	// Err is nil when the process succeeded.
	Err error
	// Output holds the last lines of combined output, for diagnostics.
	Output   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Executor runs an action against a host. Every output line is written to
// out as a single Write call.
type Executor interface {
	Execute(ctx context.Context, host nodegroup.Host, spec Spec, out io.Writer) Result
}

// Runner is the Executor backed by ssh-copy-id and rsync.
type Runner struct {
	// Supplier answers ssh-copy-id prompts. Nil refuses every prompt.
	Supplier credential.Supplier
	// SSHCopyID, Rsync and SSH are binary names or paths.
	SSHCopyID string
	Rsync     string
	SSH       string
	// Askpass is the executable OpenSSH runs for prompts. Defaults to this binary.
	Askpass string
	// Snapshotter reads remote trees for the dry-run guard.
	Snapshotter Snapshotter
	Log         logger.Logger
}

// NewRunner returns a Runner using binaries from PATH.
func NewRunner(supplier credential.Supplier) *Runner {
	return &Runner{
		Supplier:  supplier,
		SSHCopyID: "ssh-copy-id",
		Rsync:     "rsync",
		SSH:       "ssh",
		Log:       logger.Noop(),
	}
}

// Execute implements Executor.
func (r *Runner) Execute(ctx context.Context, host nodegroup.Host, spec Spec, out io.Writer) Result {
	if out == nil {
		out = io.Discard
	}
	start := time.Now()

	var res Result
	switch s := spec.(type) {
	case PushSpec:
		res = r.push(ctx, host.WithDefaults(s.User, s.Port), s, out)
	case SyncSpec:
		res = r.sync(ctx, host.WithDefaults(s.User, s.Port), s, out)
	default:
		res = Result{Err: errors.New(errors.ErrConfig, "Unknown action", ""), ExitCode: -1}
	}

	res.Duration = time.Since(start)
	return res
}

func (r *Runner) log() logger.Logger {
	if r.Log == nil {
		return logger.Noop()
	}
	return r.Log
}

func (r *Runner) askpassExecutable() string {
	if r.Askpass != "" {
		return r.Askpass
	}
	exe, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	return exe
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func seconds(d time.Duration) int {
	s := int(d / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
