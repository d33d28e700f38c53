// Package sshutil is a small SSH client used to verify key logins and to
// inspect remote directories over sftp without shelling out.
package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The host or alias used to connect
	Address string // The resolved address (host:port)
}

// DialOptions describes a key-only login.
type DialOptions struct {
	// Host is an address or ~/.ssh/config alias.
	Host string
	// Port overrides the config port. 0 uses the config or 22.
	Port int
	// User overrides the config user. Empty uses the config or $USER.
	User string
	// KeyPath is the private key to authenticate with. No agent or password
	// is tried, so a successful dial proves this key is authorized.
	KeyPath string
	// KnownHosts is checked with accept-new semantics. Empty or missing
	// means any host key is accepted.
	KnownHosts string
	// Timeout bounds the TCP connect and the handshake.
	Timeout time.Duration
}

// DialKey opens a connection that authenticates only with opts.KeyPath.
func DialKey(ctx context.Context, opts DialOptions) (*Client, error) {
	settings := LookupHost(opts.Host)

	hostname := opts.Host
	if settings.Hostname != "" {
		hostname = settings.Hostname
	}
	port := opts.Port
	if port == 0 {
		port = settings.Port
	}
	if port == 0 {
		port = 22
	}
	user := opts.User
	if user == "" {
		user = settings.User
	}
	if user == "" {
		user = currentUser()
	}

	auth, err := keyFileAuth(expandPath(opts.KeyPath))
	if err != nil {
		var encErr *EncryptedKeyError
		if stderrors.As(err, &encErr) {
			return nil, errors.WrapWithCode(err, errors.ErrAuth,
				fmt.Sprintf("Key %s needs a passphrase", opts.KeyPath),
				"Use the ssh probe (push.probe: ssh) so your agent can unlock it")
		}
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("Can't load key %s", opts.KeyPath),
			"Generate one with: keyfleet keygen")
	}

	hostKeyCallback, err := acceptNewCallback(expandPath(opts.KnownHosts))
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't read known_hosts %s", opts.KnownHosts),
			"Fix or remove the file, or point push.known_hosts elsewhere")
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}

	address := net.JoinHostPort(hostname, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		if isTimeout(err) {
			return nil, errors.WrapWithCode(err, errors.ErrTimeout,
				fmt.Sprintf("Timed out connecting to '%s' at %s", opts.Host, address),
				suggestionForDialError(err))
		}
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("Can't reach '%s' at %s", opts.Host, address),
			suggestionForDialError(err))
	}

	if opts.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(opts.Timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrAuth,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}
		if isTimeout(err) {
			return nil, errors.WrapWithCode(err, errors.ErrTimeout,
				fmt.Sprintf("SSH handshake with '%s' timed out", opts.Host),
				"The host accepted the connection but stopped responding")
		}
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", opts.Host),
			suggestionForHandshakeError(err))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    opts.Host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// acceptNewCallback verifies host keys the way ssh's StrictHostKeyChecking=accept-new
// does, without writing anything: unknown hosts pass, changed keys fail.
func acceptNewCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // accept-new with nothing on record
	}
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // accept-new with nothing on record
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) {
			if len(keyErr.Want) == 0 {
				return nil
			}
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
				Want:         keyErr.Want,
			}
		}
		return err
	}, nil
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		return "The key isn't authorized on the host yet. Run: keyfleet push"
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh -v <host>"
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the host was reinstalled, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		wantStr, e.ReceivedType, host, e.KnownHosts)
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}
