package askpass

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// IsHelper reports whether this process was started by OpenSSH as the askpass program.
func IsHelper() bool {
	return os.Getenv(EnvSocket) != ""
}

// Main runs helper mode: it relays the prompt in args to the parent and
// prints the answer to stdout. The return value is the process exit code;
// non-zero tells OpenSSH the prompt was refused.
func Main(args []string, stdout, stderr io.Writer) int {
	path := os.Getenv(EnvSocket)
	if path == "" {
		fmt.Fprintln(stderr, "keyfleet askpass: no socket in environment")
		return 2
	}

	answer, ok, err := Ask(path, strings.Join(args, " "))
	if err != nil {
		fmt.Fprintf(stderr, "keyfleet askpass: %v\n", err)
		return 2
	}
	if !ok {
		return 1
	}
	fmt.Fprintln(stdout, answer)
	return 0
}

// Ask sends one prompt to the server at path.
func Ask(path, prompt string) (answer string, ok bool, err error) {
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return "", false, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	if _, err := fmt.Fprintf(conn, "%s\n", strconv.Quote(prompt)); err != nil {
		return "", false, err
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", false, err
	}
	line = strings.TrimSuffix(line, "\n")

	if line == "NO" {
		return "", false, nil
	}
	quoted, found := strings.CutPrefix(line, "OK ")
	if !found {
		return "", false, fmt.Errorf("unexpected reply %q", line)
	}
	answer, err = strconv.Unquote(quoted)
	if err != nil {
		return "", false, fmt.Errorf("malformed answer: %w", err)
	}
	return answer, true, nil
}
