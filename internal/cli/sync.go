package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/keyfleet/internal/action"
	"github.com/rileyhilliard/keyfleet/internal/config"
	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/logger"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
	"github.com/rileyhilliard/keyfleet/internal/setup"
	"github.com/rileyhilliard/keyfleet/internal/util"
)

// syncOptions holds the sync command's inputs.
type syncOptions struct {
	Global       globalOptions
	Mode         string
	Sources      []string
	Target       string
	Exclude      []string
	DryRun       bool
	VerifyDryRun bool
}

var syncOpts syncOptions

var syncCmd = &cobra.Command{
	Use:   "sync [mode] [path...]",
	Short: "Copy local files or directories to every host",
	Long: `Copy each path to every host in the mode with rsync over key-based SSH.

Without --target a path lands in the same place on the remote side: its
parent directory is the destination. Paths that don't exist locally are
skipped with a notice and don't fail the run unless sync.strict_sources is set.

With --dry-run rsync only reports what it would change. Add --verify-dry-run
to snapshot the destination over sftp before and after and fail the host if
anything changed anyway.

Examples:
  keyfleet sync /etc/hosts
  keyfleet sync worker /opt/app/conf --exclude '*.bak'
  keyfleet sync master -s ./kubeadm.yaml --target /etc/kubernetes
  keyfleet sync all /etc/hosts --dry-run --verify-dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := syncOpts
		opts.Global = globals
		opts.Mode, opts.Sources = splitSyncArgs(args, syncOpts.Sources)
		return runSync(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

// splitSyncArgs separates an optional leading mode from positional paths.
// The first argument is a mode when it is one, or when it is a near miss of
// one and doesn't look like a path. Anything else is a source, so a missing
// file is skipped like any other source instead of being taken for a mode.
func splitSyncArgs(args, flagSources []string) (mode string, sources []string) {
	sources = append(sources, flagSources...)
	if len(args) == 0 {
		return "", sources
	}

	first := args[0]
	if _, ok := nodegroup.ParseMode(first); ok || looksLikeMode(first) {
		return first, append(sources, args[1:]...)
	}
	return "", append(sources, args...)
}

func looksLikeMode(s string) bool {
	if looksLikePath(s) {
		return false
	}
	return len(util.SuggestSimilar(s, modeNames, 1)) > 0
}

func looksLikePath(s string) bool {
	if strings.ContainsRune(s, '/') || strings.HasPrefix(s, ".") || strings.HasPrefix(s, "~") {
		return true
	}
	_, err := os.Stat(s)
	return err == nil
}

func runSync(ctx context.Context, opts syncOptions, out io.Writer) error {
	log := logger.NewEnvLogger("[sync]")

	env, err := prepare(opts.Global, opts.Mode, out, log)
	if err != nil {
		return err
	}
	cfg := env.cfg

	sources, err := absSources(opts.Sources)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New(errors.ErrInput,
			"No sources to sync",
			"Pass one or more paths: keyfleet sync <mode> <path>...")
	}

	if err := requireTools(setup.SyncTools...); err != nil {
		return err
	}

	spec := action.SyncSpec{
		Target:         cfg.Sync.Target,
		Exclude:        append(append([]string{}, cfg.Sync.Exclude...), opts.Exclude...),
		DryRun:         cfg.Sync.DryRun || opts.DryRun,
		VerifyDryRun:   cfg.Sync.VerifyDryRun || opts.VerifyDryRun,
		Timeout:        cfg.Sync.Timeout,
		ConnectTimeout: cfg.Push.ProbeTimeout,
	}
	if opts.Target != "" {
		spec.Target = opts.Target
	}
	spec.Target = config.ExpandRemote(spec.Target)

	sink, err := openRunLog(cfg, "sync", log)
	if err != nil {
		return err
	}
	defer sink.Close()

	controller := newController(cfg, nil, sink, log)
	orch := newOrchestrator(env, controller, newExecutor(nil, cfg), sink, out)

	report, err := orch.Sync(ctx, env.hosts, sources, spec)
	if err != nil {
		return err
	}
	return finish(out, report, sink)
}

// absSources makes every source absolute so its remote parent is well defined.
func absSources(sources []string) ([]string, error) {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		if s == "" {
			continue
		}
		if strings.HasPrefix(s, "~") {
			home, err := os.UserHomeDir()
			if err == nil {
				s = filepath.Join(home, strings.TrimPrefix(s, "~"))
			}
		}
		trailing := strings.HasSuffix(s, "/") && len(s) > 1
		abs, err := filepath.Abs(s)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrInput,
				"Can't resolve source path "+s, "")
		}
		if trailing {
			abs += "/"
		}
		out = append(out, abs)
	}
	return out, nil
}

func init() {
	f := syncCmd.Flags()
	f.StringArrayVarP(&syncOpts.Sources, "source", "s", nil, "local path to copy (repeatable)")
	f.StringVarP(&syncOpts.Target, "target", "t", "", "remote destination directory (default: the source's parent)")
	f.StringArrayVarP(&syncOpts.Exclude, "exclude", "x", nil, "rsync exclude pattern (repeatable)")
	f.BoolVarP(&syncOpts.DryRun, "dry-run", "n", false, "show what would change without changing anything")
	f.BoolVar(&syncOpts.VerifyDryRun, "verify-dry-run", false, "with --dry-run, fail a host whose files changed anyway")

	rootCmd.AddCommand(syncCmd)
}
