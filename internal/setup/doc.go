// Package setup prepares the local side of a run: SSH key pairs and the
// external tools keyfleet shells out to.
//
// # Key Discovery
//
// FindLocalKeys() searches the standard locations:
//
//	~/.ssh/id_ed25519
//	~/.ssh/id_rsa
//	~/.ssh/id_ecdsa
//
// GetPreferredKey() returns the best available pair, preferring ed25519
// over ECDSA over RSA.
//
// # Key Generation
//
// GenerateKey() creates a new unencrypted key pair with ssh-keygen:
//
//	err := setup.GenerateKey(ctx, "~/.ssh/id_ed25519", "ed25519", 0)
//
// Supported key types:
//
//	ed25519 - Recommended. Size is fixed.
//	ecdsa   - 256, 384 or 521 bits (default 256).
//	rsa     - At least 2048 bits (default 4096).
//
// EnsureKey() only generates when no public key exists at the path, which
// is what push --generate uses.
//
// # Tool Preconditions
//
// Require() checks that ssh-copy-id, ssh, rsync or ssh-keygen are on PATH
// before any host is touched:
//
//	if err := setup.Require(setup.PushTools...); err != nil {
//	    return err // CONFIG error with install hints
//	}
//
// # Security Notes
//
// Private keys are written by ssh-keygen with 0600 permissions inside a
// 0700 directory. The package never reads or logs private key contents.
package setup
