package nodegroup

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/rileyhilliard/keyfleet/internal/errors"
)

// Host is one target machine for a single invocation.
type Host struct {
	// Alias is the token the host was written as in the group definition.
	Alias string
	// Address is the hostname or IP to connect to.
	Address string
	// Port is the SSH port. 0 means the ssh default.
	Port int
	// User overrides the login name. Empty means the ssh default.
	User string
}

// ParseHost parses a host token of the form [user@]address[:port].
// IPv6 addresses with a port must be bracketed: [fe80::1]:2222.
func ParseHost(token string) (Host, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Host{}, errors.New(errors.ErrInput,
			"Empty host entry",
			"Remove the blank entry from the group definition")
	}

	h := Host{Alias: token}
	rest := token

	if at := strings.LastIndex(rest, "@"); at != -1 {
		h.User = rest[:at]
		rest = rest[at+1:]
		if h.User == "" {
			return Host{}, errors.New(errors.ErrInput,
				fmt.Sprintf("Host %q has an empty user before @", token),
				"Write it as user@host or drop the @")
		}
	}

	addr, port, err := splitAddress(rest)
	if err != nil {
		return Host{}, errors.WrapWithCode(err, errors.ErrInput,
			fmt.Sprintf("Can't parse host %q", token),
			"Use host, user@host, host:port or [ipv6]:port")
	}
	if addr == "" {
		return Host{}, errors.New(errors.ErrInput,
			fmt.Sprintf("Host %q has no address", token),
			"Use host, user@host, host:port or [ipv6]:port")
	}
	if strings.ContainsAny(addr, " \t/") {
		return Host{}, errors.New(errors.ErrInput,
			fmt.Sprintf("Host %q contains characters that can't appear in a hostname", token),
			"Separate hosts with commas or newlines")
	}

	h.Address = addr
	h.Port = port
	return h, nil
}

// splitAddress separates an optional port from the address.
func splitAddress(s string) (string, int, error) {
	if strings.HasPrefix(s, "[") {
		if !strings.Contains(s, "]:") {
			return strings.Trim(s, "[]"), 0, nil
		}
		host, portStr, err := net.SplitHostPort(s)
		if err != nil {
			return "", 0, err
		}
		port, err := parsePort(portStr)
		return host, port, err
	}

	// A bare IPv6 address has several colons and no port.
	if strings.Count(s, ":") != 1 {
		return s, 0, nil
	}

	host, portStr, _ := strings.Cut(s, ":")
	port, err := parsePort(portStr)
	return host, port, err
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

// String returns the alias, which is how the host is shown to the user.
func (h Host) String() string {
	if h.Alias != "" {
		return h.Alias
	}
	return h.Target()
}

// Target returns the [user@]address form handed to ssh, ssh-copy-id and rsync.
func (h Host) Target() string {
	addr := h.Address
	if strings.Contains(addr, ":") {
		addr = "[" + addr + "]"
	}
	if h.User != "" {
		return h.User + "@" + addr
	}
	return addr
}

// Key identifies the machine regardless of login user. Two hosts with the same
// Key never have external processes in flight at the same time.
func (h Host) Key() string {
	port := h.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(h.Address, strconv.Itoa(port))
}

// id identifies a host entry including the login user; used for in-group dedup.
func (h Host) id() string {
	return h.User + "@" + h.Key()
}

// PortOr returns the host's port, or def when the host doesn't name one.
func (h Host) PortOr(def int) int {
	if h.Port != 0 {
		return h.Port
	}
	return def
}

// WithDefaults fills an empty user and zero port from the given values.
func (h Host) WithDefaults(user string, port int) Host {
	if h.User == "" {
		h.User = user
	}
	if h.Port == 0 {
		h.Port = port
	}
	return h
}
