// Package nodegroup resolves which hosts an operation targets.
//
// A fleet is split into two named groups, master and worker. A mode token
// picks one of them, or the concatenation of both (master first). Groups come
// from a group file, the groups: section of .keyfleet.yaml, or a built-in
// default, and are never modified once built.
package nodegroup

import (
	"strings"
)

// Group names recognized in group files and config.
const (
	GroupMaster = "master"
	GroupWorker = "worker"
)

// Group is a named, ordered, immutable set of hosts.
type Group struct {
	name  string
	hosts []Host
}

// NewGroup builds a group, dropping repeated entries so each host appears once.
func NewGroup(name string, hosts []Host) Group {
	seen := make(map[string]bool, len(hosts))
	kept := make([]Host, 0, len(hosts))
	for _, h := range hosts {
		if seen[h.id()] {
			continue
		}
		seen[h.id()] = true
		kept = append(kept, h)
	}
	return Group{name: name, hosts: kept}
}

// Name returns the group name.
func (g Group) Name() string { return g.name }

// Len returns the number of hosts in the group.
func (g Group) Len() int { return len(g.hosts) }

// Hosts returns a copy of the group's hosts in definition order.
func (g Group) Hosts() []Host {
	out := make([]Host, len(g.hosts))
	copy(out, g.hosts)
	return out
}

// Mapping holds the two groups a fleet is made of.
type Mapping struct {
	Master Group
	Worker Group
	// Source describes where the mapping came from, for display.
	Source string
}

// SourceBuiltin marks the default mapping compiled into the binary.
const SourceBuiltin = "built-in"

// DefaultMapping returns the fleet used when no group file or config groups are given.
func DefaultMapping() Mapping {
	return Mapping{
		Master: NewGroup(GroupMaster, []Host{
			{Alias: "master-01", Address: "master-01"},
		}),
		Worker: NewGroup(GroupWorker, []Host{
			{Alias: "worker-01", Address: "worker-01"},
			{Alias: "worker-02", Address: "worker-02"},
		}),
		Source: SourceBuiltin,
	}
}

// Mode selects which groups a run targets.
type Mode int

const (
	ModeAll Mode = iota
	ModeMaster
	ModeWorker
)

// String returns the canonical token for the mode.
func (m Mode) String() string {
	switch m {
	case ModeMaster:
		return GroupMaster
	case ModeWorker:
		return GroupWorker
	default:
		return "all"
	}
}

var modeTokens = map[string]Mode{
	"all": ModeAll,
	"a":   ModeAll,
	"*":   ModeAll,
	"":    ModeAll,

	"master":        ModeMaster,
	"masters":       ModeMaster,
	"m":             ModeMaster,
	"control":       ModeMaster,
	"control-plane": ModeMaster,
	"controlplane":  ModeMaster,
	"cp":            ModeMaster,

	"worker":  ModeWorker,
	"workers": ModeWorker,
	"w":       ModeWorker,
	"node":    ModeWorker,
	"nodes":   ModeWorker,
}

// ParseMode maps a mode token to a Mode, case-insensitively.
// Unrecognized tokens select ModeAll; ok reports whether the token was known.
func ParseMode(token string) (mode Mode, ok bool) {
	mode, ok = modeTokens[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return ModeAll, false
	}
	return mode, true
}

// Resolve returns the ordered host list for mode.
// ModeMaster and ModeWorker select one group; anything else yields master
// followed by worker. Hosts listed in both groups appear twice.
func Resolve(mode Mode, m Mapping) []Host {
	switch mode {
	case ModeMaster:
		return m.Master.Hosts()
	case ModeWorker:
		return m.Worker.Hosts()
	default:
		out := make([]Host, 0, m.Master.Len()+m.Worker.Len())
		out = append(out, m.Master.hosts...)
		out = append(out, m.Worker.hosts...)
		return out
	}
}

// WithDefaults returns a copy of hosts with user and port filled where unset.
func WithDefaults(hosts []Host, user string, port int) []Host {
	out := make([]Host, len(hosts))
	for i, h := range hosts {
		out[i] = h.WithDefaults(user, port)
	}
	return out
}
