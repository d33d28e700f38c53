package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/keyfleet/internal/action"
	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/rileyhilliard/keyfleet/internal/logger"
	"github.com/rileyhilliard/keyfleet/internal/setup"
	"github.com/rileyhilliard/keyfleet/internal/ui"
)

// pushOptions holds the push command's inputs.
type pushOptions struct {
	Global     globalOptions
	Mode       string
	Credential credentialOptions
	Generate   bool
	KeyType    string
	KeyBits    int
}

var pushOpts pushOptions

var pushCmd = &cobra.Command{
	Use:   "push [mode]",
	Short: "Install your public key on every host",
	Long: `Push the public key (push.key + ".pub") to every host in the mode with
ssh-copy-id, answering its host-key and password prompts for you.

A push only counts once a key-only login to the host works, so a host that
silently ignored the key is reported as failed. Failed hosts are retried up
to retry.attempts times.

The password comes from --password-stdin, $KEYFLEET_PASSWORD, or an
interactive prompt. It is never logged.

Examples:
  keyfleet push
  keyfleet push worker --generate
  echo "$PW" | keyfleet push master --password-stdin
  keyfleet push --key-auth -k ~/.ssh/fleet_ed25519`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := pushOpts
		opts.Global = globals
		if len(args) > 0 {
			opts.Mode = args[0]
		}
		return runPush(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runPush(ctx context.Context, opts pushOptions, stdin io.Reader, out io.Writer) error {
	log := logger.NewEnvLogger("[push]")

	env, err := prepare(opts.Global, opts.Mode, out, log)
	if err != nil {
		return err
	}
	cfg := env.cfg

	tools := setup.PushTools
	if opts.Generate {
		tools = append(append([]string{}, tools...), setup.KeygenTools...)
	}
	if err := requireTools(tools...); err != nil {
		return err
	}

	if opts.KeyType != "" {
		cfg.Push.KeyType = opts.KeyType
	}
	if opts.KeyBits != 0 {
		cfg.Push.KeyBits = opts.KeyBits
	}
	if opts.Generate {
		created, err := setup.EnsureKey(ctx, cfg.Push.Key, cfg.Push.KeyType, cfg.Push.KeyBits)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintln(out, ui.SuccessStyle().Render(fmt.Sprintf("%s Generated %s key %s", ui.SymbolSuccess, cfg.Push.KeyType, cfg.Push.Key)))
		}
	}

	if !opts.Generate && opts.Global.Key == "" {
		cfg.Push.Key = fallbackKey(cfg.Push.Key, out)
	}

	spec := action.PushSpec{
		KeyPath:        cfg.Push.Key,
		Timeout:        cfg.Push.Timeout,
		ConnectTimeout: cfg.Push.ProbeTimeout,
	}
	if _, err := os.Stat(spec.PublicKeyPath()); err != nil {
		return errors.WrapWithCode(err, errors.ErrInput,
			fmt.Sprintf("Public key %s not found", spec.PublicKeyPath()),
			"Create it with: keyfleet keygen (or pass --generate)")
	}
	pub, err := setup.ReadPublicKey(spec.PublicKeyPath())
	if err != nil {
		return err
	}
	if len(strings.Fields(pub)) < 2 {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("%s is not an SSH public key", spec.PublicKeyPath()),
			"Regenerate it with: keyfleet keygen")
	}
	log.Debug("pushing %s key from %s", strings.Fields(pub)[0], spec.PublicKeyPath())

	supplier, err := resolveSupplier(opts.Credential, stdin)
	if err != nil {
		return err
	}
	prober, err := newProber(cfg)
	if err != nil {
		return err
	}

	sink, err := openRunLog(cfg, "push", log)
	if err != nil {
		return err
	}
	defer sink.Close()

	controller := newController(cfg, prober, sink, log)
	orch := newOrchestrator(env, controller, newExecutor(supplier, cfg), sink, out)

	report, err := orch.Push(ctx, env.hosts, spec)
	if err != nil {
		return err
	}
	return finish(out, report, sink)
}

// fallbackKey returns configured when its public half exists. Otherwise it
// picks the best standard key in ~/.ssh and says so on w.
func fallbackKey(configured string, w io.Writer) string {
	if _, err := os.Stat(action.PushSpec{KeyPath: configured}.PublicKeyPath()); err == nil {
		return configured
	}
	k := setup.GetPreferredKey()
	if k == nil || !k.HasPublic {
		return configured
	}
	fmt.Fprintln(w, ui.WarningStyle().Render(fmt.Sprintf(
		"%s %s.pub not found, using %s", ui.SymbolWarning, configured, k.PublicPath)))
	return k.Path
}

func init() {
	f := pushCmd.Flags()
	f.BoolVar(&pushOpts.Credential.PasswordStdin, "password-stdin", false, "read the SSH password from stdin")
	f.BoolVar(&pushOpts.Credential.KeyAuth, "key-auth", false, "don't answer password prompts (hosts already accept a key)")
	f.BoolVar(&pushOpts.Generate, "generate", false, "generate the key pair first if it doesn't exist")
	f.StringVar(&pushOpts.KeyType, "key-type", "", "key type for --generate: ed25519, ecdsa or rsa")
	f.IntVar(&pushOpts.KeyBits, "key-bits", 0, "key size for --generate (rsa or ecdsa)")
	pushCmd.MarkFlagsMutuallyExclusive("password-stdin", "key-auth")

	rootCmd.AddCommand(pushCmd)
}
