package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
)

// defaultTimeout bounds a probe when none is configured.
const defaultTimeout = 10 * time.Second

// CommandProbe runs the ssh client in batch mode so any password prompt
// fails instead of blocking.
type CommandProbe struct {
	// SSH is the ssh binary. Empty means "ssh" from PATH.
	SSH     string
	Timeout time.Duration
}

// BuildArgs constructs the ssh arguments for a probe.
func BuildArgs(host nodegroup.Host, keyPath string, timeout time.Duration) []string {
	secs := int(timeout / time.Second)
	if secs < 1 {
		secs = 1
	}
	args := []string{
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=" + strconv.Itoa(secs),
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "IdentitiesOnly=yes",
		"-o", "PasswordAuthentication=no",
		"-i", keyPath,
	}
	if host.Port != 0 {
		args = append(args, "-p", strconv.Itoa(host.Port))
	}
	return append(args, host.Target(), "echo "+marker)
}

// Probe implements Prober.
func (p CommandProbe) Probe(ctx context.Context, host nodegroup.Host, keyPath string) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	// Connect timeout plus room for the command itself.
	ctx, cancel := context.WithTimeout(ctx, 2*timeout)
	defer cancel()

	ssh := p.SSH
	if ssh == "" {
		ssh = "ssh"
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, ssh, BuildArgs(host, keyPath, timeout)...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if err == nil {
		if strings.Contains(out.String(), marker) {
			return nil
		}
		err = fmt.Errorf("unexpected reply %q", strings.TrimSpace(out.String()))
	} else if ctx.Err() == context.DeadlineExceeded {
		return asCoded(&Error{Host: host.String(), Reason: FailTimeout, Cause: err})
	}

	return asCoded(categorize(host.String(), err, out.String()))
}
