package sshutil

import (
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rileyhilliard/keyfleet/internal/errors"
)

// MaxSnapshotEntries caps how many paths Snapshot records.
const MaxSnapshotEntries = 50000

// Entry is one path's metadata in a Tree.
type Entry struct {
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
}

// Tree maps remote paths, relative to the snapshot root, to their metadata.
// A nil Tree means the root didn't exist.
type Tree map[string]Entry

// Diff lists paths that were added, removed or changed between t and after, sorted.
func (t Tree) Diff(after Tree) []string {
	var changed []string
	for p, e := range t {
		a, ok := after[p]
		if !ok || a.Size != e.Size || a.Mode != e.Mode || !a.ModTime.Equal(e.ModTime) {
			changed = append(changed, p)
		}
	}
	for p := range after {
		if _, ok := t[p]; !ok {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)
	return changed
}

// RemotePath converts a destination as written for rsync into an sftp path.
// sftp resolves relative paths against the login directory, so ~/ is dropped.
func RemotePath(dest string) string {
	switch {
	case dest == "~" || dest == "~/" || dest == "":
		return "."
	case strings.HasPrefix(dest, "~/"):
		return strings.TrimPrefix(dest, "~/")
	default:
		return dest
	}
}

// Snapshot walks root over sftp and records every path under it.
func (c *Client) Snapshot(root string) (Tree, error) {
	sc, err := sftp.NewClient(c.Client)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			fmt.Sprintf("Can't open sftp on %s", c.Host),
			"The sftp subsystem must be enabled in sshd to verify dry runs")
	}
	defer sc.Close()

	root = RemotePath(root)
	if _, err := sc.Lstat(root); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrTransfer,
			fmt.Sprintf("Can't stat %s on %s", root, c.Host), "")
	}

	tree := make(Tree)
	walker := sc.Walk(root)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrTransfer,
				fmt.Sprintf("Can't read %s on %s", walker.Path(), c.Host), "")
		}
		if len(tree) >= MaxSnapshotEntries {
			return nil, errors.New(errors.ErrTransfer,
				fmt.Sprintf("%s on %s has more than %d entries", root, c.Host, MaxSnapshotEntries),
				"Verify dry runs against a narrower --target")
		}

		rel := strings.TrimPrefix(walker.Path(), root)
		rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
		info := walker.Stat()
		e := Entry{Mode: info.Mode()}
		// Directory mtimes and sizes move when anything inside them is touched;
		// the children already capture that.
		if !info.IsDir() {
			e.Size = info.Size()
			e.ModTime = info.ModTime()
		}
		tree[rel] = e
	}

	return tree, nil
}
