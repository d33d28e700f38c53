package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/rileyhilliard/keyfleet/internal/action"
	"github.com/rileyhilliard/keyfleet/internal/config"
	"github.com/rileyhilliard/keyfleet/internal/credential"
	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/fleet"
	"github.com/rileyhilliard/keyfleet/internal/logger"
	"github.com/rileyhilliard/keyfleet/internal/nodegroup"
	"github.com/rileyhilliard/keyfleet/internal/probe"
	"github.com/rileyhilliard/keyfleet/internal/retry"
	"github.com/rileyhilliard/keyfleet/internal/runlog"
	"github.com/rileyhilliard/keyfleet/internal/setup"
	"github.com/rileyhilliard/keyfleet/internal/ui"
	"github.com/rileyhilliard/keyfleet/internal/util"
	"github.com/rileyhilliard/keyfleet/pkg/sshutil"
)

// Seams replaced in tests.
var (
	requireTools = setup.Require
	newExecutor  = defaultExecutor
	newProber    = defaultProber
	now          = time.Now
)

var sshLookup nodegroup.LookupFunc = sshutil.LookupHost

// modeNames are offered when a mode token isn't recognized.
var modeNames = []string{"all", nodegroup.GroupMaster, nodegroup.GroupWorker}

func defaultExecutor(supplier credential.Supplier, cfg *config.Config) action.Executor {
	r := action.NewRunner(supplier)
	r.Log = logger.NewEnvLogger("[action]")
	r.Snapshotter = action.SFTPSnapshotter{
		KeyPath:    cfg.Push.Key,
		KnownHosts: cfg.Push.KnownHosts,
		Timeout:    cfg.Push.ProbeTimeout,
	}
	return r
}

func defaultProber(cfg *config.Config) (probe.Prober, error) {
	switch cfg.Push.Probe {
	case config.ProbeSSH, "":
		return probe.CommandProbe{Timeout: cfg.Push.ProbeTimeout}, nil
	case config.ProbeNative:
		return probe.NativeProbe{KnownHosts: cfg.Push.KnownHosts, Timeout: cfg.Push.ProbeTimeout}, nil
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown push.probe %q", cfg.Push.Probe),
			"Use \"ssh\" or \"native\"")
	}
}

// runEnv is the local state a fleet command resolves before touching any host.
type runEnv struct {
	cfg     *config.Config
	mapping nodegroup.Mapping
	mode    nodegroup.Mode
	hosts   []nodegroup.Host
	log     logger.Logger
}

// prepare loads config and groups and resolves modeToken to hosts. Unknown
// modes print a notice to w and target every host.
func prepare(g globalOptions, modeToken string, w io.Writer, log logger.Logger) (*runEnv, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	mapping, err := loadMapping(cfg, g.GroupsFile)
	if err != nil {
		return nil, err
	}

	mode, ok := nodegroup.ParseMode(modeToken)
	if !ok {
		notice := fmt.Sprintf("%s Unknown mode %q, targeting all hosts", ui.SymbolWarning, modeToken)
		if similar := util.SuggestSimilar(modeToken, modeNames, 1); len(similar) > 0 {
			notice += fmt.Sprintf(" (did you mean %s?)", similar[0])
		}
		fmt.Fprintln(w, ui.WarningStyle().Render(notice))
	}

	hosts := nodegroup.Resolve(mode, mapping)
	hosts = nodegroup.ApplySSHConfig(hosts, sshLookup)
	hosts = nodegroup.WithDefaults(hosts, cfg.User, cfg.Port)
	log.Debug("mode %s resolved to %d host(s) from %s", mode, len(hosts), mapping.Source)

	return &runEnv{cfg: cfg, mapping: mapping, mode: mode, hosts: hosts, log: log}, nil
}

// loadConfig reads the config file (or defaults) and applies flag overrides.
func loadConfig(g globalOptions) (*config.Config, error) {
	cfg, _, err := config.LoadOrDefault(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	if g.Workers < 0 {
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("--workers must be at least 1, got %d", g.Workers),
			"Use 1 for sequential processing")
	}
	if g.Workers > 0 {
		cfg.Parallel.Workers = g.Workers
	}
	if g.User != "" {
		cfg.User = g.User
	}
	if g.Port != 0 {
		if g.Port < 1 || g.Port > 65535 {
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("--port must be between 1 and 65535, got %d", g.Port),
				"Leave it out to use the config or 22")
		}
		cfg.Port = g.Port
	}
	if g.Key != "" {
		cfg.Push.Key = config.ExpandTilde(g.Key)
	}
	return cfg, nil
}

// loadMapping picks the group source: --groups, groups_file, the groups:
// map, then the built-in default.
func loadMapping(cfg *config.Config, groupsFlag string) (nodegroup.Mapping, error) {
	switch {
	case groupsFlag != "":
		return nodegroup.LoadFile(config.ExpandTilde(groupsFlag))
	case cfg.GroupsFile != "":
		return nodegroup.LoadFile(cfg.GroupsFile)
	case len(cfg.Groups) > 0:
		return nodegroup.FromConfig(cfg.Groups)
	default:
		return nodegroup.DefaultMapping(), nil
	}
}

// openRunLog prunes old run logs and opens a new one for command.
func openRunLog(cfg *config.Config, command string, log logger.Logger) (*runlog.Sink, error) {
	if err := runlog.Cleanup(cfg.Logs.Dir, cfg.Logs.Keep); err != nil {
		log.Warn("couldn't prune run logs: %s", errors.Summary(err))
	}
	return runlog.Open(cfg.Logs.Dir, command, now())
}

// runLogger sends diagnostics to log and, tagged "diag", to the run log.
func runLogger(log logger.Logger, sink *runlog.Sink) logger.Logger {
	return logger.Multi(log, logger.FromZap(sink.Logger().Named("diag")))
}

func newController(cfg *config.Config, prober probe.Prober, sink *runlog.Sink, log logger.Logger) *retry.Controller {
	return &retry.Controller{
		Attempts:  cfg.Retry.Attempts,
		Delay:     cfg.Retry.Delay,
		RetrySync: cfg.Retry.Sync,
		Prober:    prober,
		Sink:      sink,
		Log:       runLogger(log, sink),
	}
}

func newOrchestrator(env *runEnv, controller *retry.Controller, exec action.Executor, sink *runlog.Sink, out io.Writer) *fleet.Orchestrator {
	return fleet.New(controller, exec,
		fleet.WithWorkers(env.cfg.Parallel.Workers),
		fleet.WithOutput(out),
		fleet.WithSink(sink),
		fleet.WithLogger(runLogger(env.log, sink)),
		fleet.WithStrictSources(env.cfg.Sync.StrictSources),
	)
}

// finish prints the summary and turns an unsuccessful report into ExitError.
func finish(w io.Writer, report *fleet.Report, sink *runlog.Sink) error {
	fmt.Fprintln(w)
	if err := fleet.RenderSummary(w, report); err != nil {
		return err
	}
	if p := sink.Path(); p != "" {
		fmt.Fprintln(w, ui.MutedStyle().Render(fmt.Sprintf("Run log: %s (%s)", p, report.Duration().Round(time.Millisecond))))
	}
	if !report.Success() {
		return &ExitError{Code: 1}
	}
	return nil
}
