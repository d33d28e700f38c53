// Package askpass lets ssh and ssh-copy-id children get prompt answers from
// the running keyfleet process.
//
// OpenSSH runs $SSH_ASKPASS with the prompt as its argument and reads the
// answer from its stdout. keyfleet points SSH_ASKPASS at its own executable;
// that helper process connects back to a unix socket owned by the parent,
// which consults a credential.Supplier.
//
// Wire format, one line each way:
//
//	child:  "<quoted prompt>\n"
//	parent: "OK <quoted answer>\n" or "NO\n"
package askpass

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/credential"
	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/logger"
)

// EnvSocket carries the socket path to the helper. Its presence is what puts
// the keyfleet binary into helper mode.
const EnvSocket = "KEYFLEET_ASKPASS_SOCKET"

// ioTimeout bounds one request/response exchange.
const ioTimeout = 30 * time.Second

// Observer is told about every prompt. It never sees the answer.
type Observer func(kind credential.PromptKind, answered bool)

// Server answers helper requests for one child process tree.
type Server struct {
	dir      string
	path     string
	ln       net.Listener
	supplier credential.Supplier
	observer Observer
	log      logger.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithObserver registers a prompt observer.
func WithObserver(o Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithLogger sets the server's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Listen creates a socket in a private temp directory and starts serving.
func Listen(supplier credential.Supplier, opts ...Option) (*Server, error) {
	dir, err := os.MkdirTemp("", "keyfleet-askpass-")
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't create a directory for the askpass socket",
			"Check that $TMPDIR is writable")
	}
	if err := os.Chmod(dir, 0700); err != nil {
		os.RemoveAll(dir)
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't restrict the askpass socket directory", "")
	}

	path := filepath.Join(dir, "s")
	ln, err := net.Listen("unix", path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Can't listen on the askpass socket",
			"Set TMPDIR to a shorter path if the socket path is too long")
	}

	s := &Server{
		dir:      dir,
		path:     path,
		ln:       ln,
		supplier: supplier,
		log:      logger.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Env returns the variables that route a child's prompts to this server.
// executable is the binary OpenSSH should run as the askpass program.
func (s *Server) Env(executable string) []string {
	env := []string{
		"SSH_ASKPASS=" + executable,
		"SSH_ASKPASS_REQUIRE=force",
		EnvSocket + "=" + s.path,
	}
	// Older OpenSSH only consults SSH_ASKPASS when DISPLAY is set.
	if os.Getenv("DISPLAY") == "" {
		env = append(env, "DISPLAY=keyfleet:0")
	}
	return env
}

// Close stops the server, waits for in-flight requests and removes the socket.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.ln.Close()
		s.wg.Wait()
		os.RemoveAll(s.dir)
	})
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		s.log.Debug("askpass: read request: %v", err)
		return
	}
	prompt, err := strconv.Unquote(strings.TrimSuffix(line, "\n"))
	if err != nil {
		s.log.Debug("askpass: malformed request")
		fmt.Fprint(conn, "NO\n")
		return
	}

	kind := credential.Classify(prompt)
	answer, ok := "", false
	if s.supplier != nil {
		answer, ok = s.supplier.Answer(kind, prompt)
	}
	if s.observer != nil {
		s.observer(kind, ok)
	}
	s.log.Debug("askpass: %s prompt answered=%t", kind, ok)

	if !ok {
		fmt.Fprint(conn, "NO\n")
		return
	}
	fmt.Fprintf(conn, "OK %s\n", strconv.Quote(answer))
}
