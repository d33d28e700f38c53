// Package cli implements the keyfleet command-line interface.
//
// Each cobra command parses its flags into an options struct and hands it to
// a run function that does the work with explicit writers, so the commands
// can be driven from tests without a terminal.
//
// # Command Structure
//
//	keyfleet push [mode]              - Install your public key on every host
//	keyfleet sync [mode] [path...]    - Copy local paths to every host
//	keyfleet groups [mode]            - Show the hosts a mode resolves to
//	keyfleet keygen                   - Generate the key pair push installs
//	keyfleet version                  - Print version information
//
// The mode is master, worker or all (the default). Unknown modes fall back to
// all with a notice.
//
// # Run Phases
//
// push and sync share the same phases:
//
//  1. Load and validate config, apply flag overrides
//  2. Load group definitions and resolve the mode to hosts
//  3. Check that the external tools exist
//  4. Open the run log and prune old ones
//  5. Hand the hosts to the fleet orchestrator and print the summary
//
// Everything that can fail on local state fails before step 4, so a bad
// group file or missing tool never leaves a run log behind.
//
// # Exit Status
//
// A run whose report isn't fully successful returns ExitError{Code: 1}.
// Execute turns that into the process exit status without printing anything
// more; any other error is printed to stderr first.
package cli
