package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/keyfleet/internal/ui"
	"github.com/rileyhilliard/keyfleet/internal/util"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	ConfigPath string
	GroupsFile string
	Workers    int
	User       string
	Port       int
	Key        string
	NoColor    bool
}

var globals globalOptions

var rootCmd = &cobra.Command{
	Use:   "keyfleet",
	Short: "Push SSH keys and sync files across a cluster",
	Long: `keyfleet bootstraps passwordless SSH on a fleet of master and worker
nodes, then keeps files in step across them.

Hosts come from a group file, the groups: section of .keyfleet.yaml, or a
built-in default. Every host is handled on its own: one failing host never
stops the rest, and the run ends with a summary of exactly which hosts failed.

Examples:
  keyfleet push                 # install ~/.ssh/id_ed25519.pub everywhere
  keyfleet push worker --generate
  keyfleet sync all /etc/hosts /opt/app/conf
  keyfleet groups master`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.ConfigureColors(globals.NoColor)
	},
}

// ExitError ends the process with Code. Its message is never printed; the
// command has already reported what went wrong.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command and exits the process.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(handleError(err, os.Stderr))
}

// handleError prints err when it needs printing and returns the exit code.
func handleError(err error, w io.Writer) int {
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}

	msg := err.Error()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)

	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			if similar := util.SuggestSimilar(name, commandNames(), 3); len(similar) > 0 {
				fmt.Fprintf(w, "\nDid you mean: %s?\n", strings.Join(similar, ", "))
			}
		}
		fmt.Fprintln(w, "Run 'keyfleet --help' for usage.")
	}
	return 1
}

// isUnknownCommandError reports whether err is cobra's unknown command or flag error.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls the command name out of
// `unknown command "foo" for "keyfleet"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	if !strings.HasPrefix(msg, "unknown command") {
		return ""
	}
	start := strings.Index(msg, `"`)
	if start == -1 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end == -1 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

func commandNames() []string {
	var names []string
	for _, c := range rootCmd.Commands() {
		if !c.Hidden {
			names = append(names, c.Name())
		}
	}
	return names
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globals.ConfigPath, "config", "", "config file (default: .keyfleet.yaml, searched upward)")
	pf.StringVarP(&globals.GroupsFile, "groups", "g", "", "group file (INI or YAML) defining master and worker")
	pf.IntVarP(&globals.Workers, "workers", "j", 0, "hosts to process at once (default from config, 1 = sequential)")
	pf.StringVarP(&globals.User, "user", "u", "", "login user for hosts that don't name one")
	pf.IntVarP(&globals.Port, "port", "p", 0, "SSH port for hosts that don't name one")
	pf.StringVarP(&globals.Key, "key", "k", "", "private key path (the .pub next to it is pushed)")
	pf.BoolVar(&globals.NoColor, "no-color", false, "disable colored output")
}
