package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/keyfleet/internal/logger"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
	"github.com/rileyhilliard/keyfleet/internal/ui"
	"github.com/rileyhilliard/keyfleet/internal/util"
)

type groupsOptions struct {
	Global globalOptions
	Mode   string
}

var groupsCmd = &cobra.Command{
	Use:   "groups [mode]",
	Short: "Show the hosts a mode resolves to",
	Long: `Print the hosts push and sync would target for a mode, in the order
they would run, with the login each one ends up using after ~/.ssh/config
and keyfleet defaults are applied.

Examples:
  keyfleet groups
  keyfleet groups worker
  keyfleet groups --groups ./cluster.ini`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := groupsOptions{Global: globals}
		if len(args) > 0 {
			opts.Mode = args[0]
		}
		return runGroups(opts, cmd.OutOrStdout())
	},
}

func runGroups(opts groupsOptions, out io.Writer) error {
	env, err := prepare(opts.Global, opts.Mode, out, logger.NewEnvLogger("[groups]"))
	if err != nil {
		return err
	}

	muted := ui.MutedStyle()
	fmt.Fprintf(out, "%s %s\n", muted.Render("Source:"), env.mapping.Source)
	fmt.Fprintf(out, "%s %s (%d %s)\n", muted.Render("Mode:  "), env.mode,
		len(env.hosts), util.Pluralize(len(env.hosts), "host", "hosts"))
	if len(env.hosts) == 0 {
		return nil
	}
	fmt.Fprintln(out)

	nameWidth := 0
	for _, h := range env.hosts {
		if n := len(h.String()); n > nameWidth {
			nameWidth = n
		}
	}
	idxWidth := len(strconv.Itoa(len(env.hosts)))

	for i, h := range env.hosts {
		fmt.Fprintf(out, "  %*d. %-*s  %s\n", idxWidth, i+1, nameWidth, h.String(),
			muted.Render(endpoint(h)))
	}
	return nil
}

// endpoint is the login a host resolves to.
func endpoint(h nodegroup.Host) string {
	return h.Target() + ":" + strconv.Itoa(h.PortOr(22))
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}
