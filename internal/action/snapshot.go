package action

import (
	"context"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
	"github.com/rileyhilliard/keyfleet/pkg/sshutil"
)

// Snapshotter records a remote directory tree.
type Snapshotter interface {
	Snapshot(ctx context.Context, host nodegroup.Host, dir string) (sshutil.Tree, error)
}

// SFTPSnapshotter logs in with a key and walks the tree over sftp.
type SFTPSnapshotter struct {
	KeyPath    string
	KnownHosts string
	Timeout    time.Duration
}

// Snapshot implements Snapshotter.
func (s SFTPSnapshotter) Snapshot(ctx context.Context, host nodegroup.Host, dir string) (sshutil.Tree, error) {
	client, err := sshutil.DialKey(ctx, sshutil.DialOptions{
		Host:       host.Address,
		Port:       host.Port,
		User:       host.User,
		KeyPath:    s.KeyPath,
		KnownHosts: s.KnownHosts,
		Timeout:    s.Timeout,
	})
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return client.Snapshot(dir)
}
