package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/keyfleet/internal/config"
	"github.com/rileyhilliard/keyfleet/internal/setup"
	"github.com/rileyhilliard/keyfleet/internal/ui"
)

type keygenOptions struct {
	Global globalOptions
	Type   string
	Bits   int
}

var keygenOpts keygenOptions

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the key pair that push installs",
	Long: `Generate an unencrypted key pair at push.key (or --key) with ssh-keygen.
An existing key is never overwritten.

Examples:
  keyfleet keygen
  keyfleet keygen --type rsa --bits 4096 -k ~/.ssh/fleet_rsa`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := keygenOpts
		opts.Global = globals
		return runKeygen(cmd.Context(), opts, cmd.OutOrStdout())
	},
}

func runKeygen(ctx context.Context, opts keygenOptions, out io.Writer) error {
	cfg, err := loadConfig(opts.Global)
	if err != nil {
		return err
	}
	keyType := cfg.Push.KeyType
	if opts.Type != "" {
		keyType = opts.Type
	}
	bits := cfg.Push.KeyBits
	if opts.Bits != 0 {
		bits = opts.Bits
	}

	// A different type without an explicit path gets its own default file.
	if opts.Global.Key == "" && keyType != cfg.Push.KeyType &&
		cfg.Push.Key == config.ExpandTilde(config.DefaultConfig().Push.Key) {
		cfg.Push.Key = setup.DefaultKeyPath(keyType)
	}

	if err := requireTools(setup.KeygenTools...); err != nil {
		return err
	}
	spin := ui.NewSpinner(fmt.Sprintf("Generating %s key", keyType), out, isTTY(out))
	spin.Start()
	if err := setup.GenerateKey(ctx, cfg.Push.Key, keyType, bits); err != nil {
		spin.Fail()
		return err
	}
	spin.Success()

	fmt.Fprintf(out, "  private: %s\n  public:  %s.pub\n", cfg.Push.Key, cfg.Push.Key)
	fmt.Fprintln(out, ui.MutedStyle().Render("Install it everywhere with: keyfleet push"))
	return nil
}

// isTTY reports whether w is a terminal worth animating.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(int(f.Fd()))
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOpts.Type, "type", "", "key type: ed25519, ecdsa or rsa (default from push.key_type)")
	keygenCmd.Flags().IntVar(&keygenOpts.Bits, "bits", 0, "key size for rsa or ecdsa (default from push.key_bits)")

	rootCmd.AddCommand(keygenCmd)
}
