package probe

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
	"github.com/rileyhilliard/keyfleet/pkg/sshutil"
)

// NativeProbe logs in with the Go ssh client using only the key, so it is
// independent of the local ssh binary, agent and config quirks.
type NativeProbe struct {
	// KnownHosts is the known_hosts file. Empty means ~/.ssh/known_hosts.
	KnownHosts string
	Timeout    time.Duration
}

// Probe implements Prober.
func (p NativeProbe) Probe(ctx context.Context, host nodegroup.Host, keyPath string) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client, err := sshutil.DialKey(ctx, sshutil.DialOptions{
		Host:       host.Address,
		Port:       host.Port,
		User:       host.User,
		KeyPath:    keyPath,
		KnownHosts: p.KnownHosts,
		Timeout:    timeout,
	})
	if err != nil {
		return asCoded(categorize(host.String(), err, ""))
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, code, err := client.Exec(ctx, "echo "+marker)
	if err != nil {
		return asCoded(categorize(host.String(), err, string(stderr)))
	}
	if code != 0 || !bytes.Contains(stdout, []byte(marker)) {
		return asCoded(&Error{
			Host:   host.String(),
			Reason: FailUnknown,
			Cause:  fmt.Errorf("remote command exited %d: %s", code, bytes.TrimSpace(stderr)),
		})
	}
	return nil
}
