package cli

import (
	"bufio"
	stderrors "errors"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/rileyhilliard/keyfleet/internal/credential"
	"github.com/rileyhilliard/keyfleet/internal/errors"
)

// PasswordEnv carries the shared password for non-interactive runs.
const PasswordEnv = "KEYFLEET_PASSWORD"

var (
	isTerminal     = term.IsTerminal
	promptPassword = huhPasswordPrompt
)

// credentialOptions selects how push answers ssh-copy-id prompts.
type credentialOptions struct {
	// KeyAuth refuses password prompts; for hosts that already accept a key.
	KeyAuth bool
	// PasswordStdin reads the password from the first line of stdin.
	PasswordStdin bool
}

// resolveSupplier picks the credential source: --key-auth, --password-stdin,
// $KEYFLEET_PASSWORD, then an interactive prompt when stdin is a terminal.
func resolveSupplier(opts credentialOptions, stdin io.Reader) (credential.Supplier, error) {
	if opts.KeyAuth {
		return credential.Key{}, nil
	}

	if opts.PasswordStdin {
		pw, err := readPasswordLine(stdin)
		if err != nil {
			return nil, err
		}
		return credential.NewPassword(pw), nil
	}

	if pw := os.Getenv(PasswordEnv); pw != "" {
		return credential.NewPassword(pw), nil
	}

	if f, ok := stdin.(*os.File); ok && isTerminal(int(f.Fd())) {
		pw, err := promptPassword()
		if err != nil {
			return nil, err
		}
		return credential.NewPassword(pw), nil
	}

	return nil, errors.New(errors.ErrInput,
		"No password available for ssh-copy-id",
		"Pipe it in with --password-stdin, set "+PasswordEnv+", or run in a terminal.\n  Use --key-auth if the hosts already accept a key.")
}

func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !stderrors.Is(err, io.EOF) {
		return "", errors.WrapWithCode(err, errors.ErrInput,
			"Couldn't read the password from stdin", "")
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New(errors.ErrInput,
			"--password-stdin got an empty password",
			"echo \"$PASSWORD\" | keyfleet push --password-stdin")
	}
	return pw, nil
}

func huhPasswordPrompt() (string, error) {
	var pw string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH password for the fleet").
				Description("Answers ssh-copy-id password prompts. Never stored or logged.").
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if s == "" {
						return stderrors.New("password can't be empty")
					}
					return nil
				}).
				Value(&pw),
		),
	)

	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrInput,
			"Password prompt cancelled",
			"Use --password-stdin or "+PasswordEnv+" for unattended runs")
	}
	return pw, nil
}
