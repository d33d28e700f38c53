// Package testing provides an in-process SSH server with an sftp subsystem
// for tests that need a real handshake.
package testing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// CmdHandler processes an exec request and returns stdout, stderr and exit code.
type CmdHandler func(cmd string) (stdout, stderr string, exitCode int)

type serverConfig struct {
	keys       []ssh.PublicKey
	password   string
	cmdHandler CmdHandler
	sftp       bool
}

// Option configures a test server.
type Option func(*serverConfig)

// WithPublicKey authorizes a client key. May be given more than once.
func WithPublicKey(pub ssh.PublicKey) Option {
	return func(c *serverConfig) { c.keys = append(c.keys, pub) }
}

// WithPassword accepts password logins with pw.
func WithPassword(pw string) Option {
	return func(c *serverConfig) { c.password = pw }
}

// WithCmdHandler sets the exec handler. Without one, commands echo back.
func WithCmdHandler(h CmdHandler) Option {
	return func(c *serverConfig) { c.cmdHandler = h }
}

// WithSFTP enables the sftp subsystem, serving the local filesystem.
func WithSFTP() Option {
	return func(c *serverConfig) { c.sftp = true }
}

// Server is a running test server.
type Server struct {
	Addr    string
	Host    string
	Port    int
	HostKey ssh.PublicKey

	mu     sync.Mutex
	logins int
}

// Logins returns how many connections authenticated successfully.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Start launches a server on 127.0.0.1 and stops it when the test ends.
func Start(t *testing.T, opts ...Option) *Server {
	t.Helper()

	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	srv := &Server{HostKey: hostSigner.PublicKey()}

	serverConf := &ssh.ServerConfig{}
	serverConf.AddHostKey(hostSigner)
	serverConf.PublicKeyCallback = func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
		for _, k := range cfg.keys {
			if string(k.Marshal()) == string(key.Marshal()) {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("unknown key")
	}
	if cfg.password != "" {
		serverConf.PasswordCallback = func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if string(password) == cfg.password {
				return nil, nil
			}
			return nil, fmt.Errorf("wrong password")
		}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go srv.handleConnection(conn, serverConf, cfg)
		}
	}()
	t.Cleanup(func() {
		listener.Close()
		<-done
	})

	srv.Addr = listener.Addr().String()
	host, portStr, _ := net.SplitHostPort(srv.Addr)
	srv.Host = host
	srv.Port, _ = strconv.Atoi(portStr)
	return srv
}

func (s *Server) handleConnection(conn net.Conn, config *ssh.ServerConfig, cfg *serverConfig) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	s.mu.Lock()
	s.logins++
	s.mu.Unlock()

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go handleSession(ch, requests, cfg)
	}
}

func handleSession(ch ssh.Channel, reqs <-chan *ssh.Request, cfg *serverConfig) {
	defer ch.Close()

	for req := range reqs {
		switch req.Type {
		case "exec":
			cmd, ok := payloadString(req.Payload)
			if !ok {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			stdout, stderr, exitCode := cmd, "", 0
			if cfg.cmdHandler != nil {
				stdout, stderr, exitCode = cfg.cmdHandler(cmd)
			}
			if stdout != "" {
				io.WriteString(ch, stdout)
			}
			if stderr != "" {
				io.WriteString(ch.Stderr(), stderr)
			}
			sendExitStatus(ch, exitCode)
			return

		case "subsystem":
			name, ok := payloadString(req.Payload)
			if !ok || name != "sftp" || !cfg.sftp {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			server, err := sftp.NewServer(ch)
			if err != nil {
				sendExitStatus(ch, 1)
				return
			}
			_ = server.Serve()
			server.Close()
			sendExitStatus(ch, 0)
			return

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func payloadString(p []byte) (string, bool) {
	if len(p) < 4 {
		return "", false
	}
	n := int(binary.BigEndian.Uint32(p[:4]))
	if len(p) < 4+n {
		return "", false
	}
	return string(p[4 : 4+n]), true
}

func sendExitStatus(ch ssh.Channel, code int) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(code))
	ch.SendRequest("exit-status", false, payload)
}

// GenerateKey creates an ed25519 key pair in a temp dir. The private key is
// written to <dir>/id_ed25519 and the public key to id_ed25519.pub.
func GenerateKey(t *testing.T) (ssh.PublicKey, string) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}

	pemBlock := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privBytes,
	})

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, pemBlock, 0600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	if err := os.WriteFile(keyPath+".pub", ssh.MarshalAuthorizedKey(signer.PublicKey()), 0644); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	return signer.PublicKey(), keyPath
}
