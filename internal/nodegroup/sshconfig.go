package nodegroup

import "github.com/rileyhilliard/keyfleet/pkg/sshutil"

// LookupFunc returns ~/.ssh/config settings for an address or alias.
type LookupFunc func(alias string) sshutil.HostSettings

// ApplySSHConfig fills each host's empty user and zero port from ssh config,
// so those win over keyfleet's own defaults. Values in the host token are kept.
func ApplySSHConfig(hosts []Host, lookup LookupFunc) []Host {
	if lookup == nil {
		lookup = sshutil.LookupHost
	}
	out := make([]Host, len(hosts))
	for i, h := range hosts {
		s := lookup(h.Address)
		if h.User == "" {
			h.User = s.User
		}
		if h.Port == 0 {
			h.Port = s.Port
		}
		out[i] = h
	}
	return out
}
