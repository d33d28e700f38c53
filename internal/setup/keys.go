package setup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rileyhilliard/keyfleet/internal/errors"
)

// DefaultKeyType is used when no key type is configured.
const DefaultKeyType = "ed25519"

// keygenBinary is the ssh-keygen executable; tests point it at a fake.
var keygenBinary = "ssh-keygen"

// KeyInfo contains information about an SSH key.
type KeyInfo struct {
	Path       string // Full path to private key
	Type       string // Key type (ed25519, rsa, ecdsa)
	PublicPath string // Path to public key
	HasPublic  bool   // Whether public key file exists
}

// DefaultKeyPaths returns the standard locations for SSH keys.
func DefaultKeyPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
	}
}

// FindLocalKeys returns the standard key files that exist.
func FindLocalKeys() []KeyInfo {
	var keys []KeyInfo

	for _, path := range DefaultKeyPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		pubPath := path + ".pub"
		_, pubErr := os.Stat(pubPath)

		keys = append(keys, KeyInfo{
			Path:       path,
			Type:       inferKeyType(path),
			PublicPath: pubPath,
			HasPublic:  pubErr == nil,
		})
	}

	return keys
}

// GetPreferredKey returns the best available key pair: ed25519, then ecdsa,
// then anything with a public half. Nil when there are no keys.
func GetPreferredKey() *KeyInfo {
	keys := FindLocalKeys()
	if len(keys) == 0 {
		return nil
	}

	for _, want := range []string{"ed25519", "ecdsa", ""} {
		for i := range keys {
			if keys[i].HasPublic && (want == "" || keys[i].Type == want) {
				return &keys[i]
			}
		}
	}
	return &keys[0]
}

// DefaultKeyPath returns the path for a new key of the given type.
func DefaultKeyPath(keyType string) string {
	if keyType == "" {
		keyType = DefaultKeyType
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.ssh/id_" + keyType
	}
	return filepath.Join(home, ".ssh", "id_"+keyType)
}

// validBits holds the -b rules per key type: an allowed list, or a minimum.
var validBits = map[string]struct {
	min     int
	allowed []int
	def     int
}{
	"ed25519": {},
	"rsa":     {min: 2048, def: 4096},
	"ecdsa":   {allowed: []int{256, 384, 521}, def: 256},
}

// BuildKeygenArgs returns the ssh-keygen arguments for a new unencrypted key.
func BuildKeygenArgs(path, keyType string, bits int) []string {
	args := []string{"-t", keyType}
	if bits > 0 {
		args = append(args, "-b", strconv.Itoa(bits))
	}
	return append(args,
		"-f", path,
		"-N", "",
		"-C", fmt.Sprintf("keyfleet-generated-%s", keyType),
	)
}

// GenerateKey creates a key pair at path with ssh-keygen. A zero bits picks
// the type's default; ed25519 ignores it.
func GenerateKey(ctx context.Context, path, keyType string, bits int) error {
	if keyType == "" {
		keyType = DefaultKeyType
	}
	rule, ok := validBits[keyType]
	if !ok {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid key type: %s", keyType),
			"Supported types: ed25519 (recommended), rsa, ecdsa")
	}

	switch {
	case keyType == "ed25519":
		bits = 0
	case bits == 0:
		bits = rule.def
	case rule.allowed != nil && !containsInt(rule.allowed, bits):
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid key size for %s: %d", keyType, bits),
			fmt.Sprintf("Use one of: %s", joinInts(rule.allowed)))
	case bits < rule.min:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Key size %d is too small for %s", bits, keyType),
			fmt.Sprintf("Use at least %d bits", rule.min))
	}

	path, err := expandHome(path)
	if err != nil {
		return err
	}

	sshDir := filepath.Dir(path)
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to create SSH directory: %s", sshDir),
			"Check permissions on home directory")
	}

	if _, err := os.Stat(path); err == nil {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Key already exists at %s", path),
			"Choose a different path or delete the existing key")
	}

	cmd := exec.CommandContext(ctx, keygenBinary, BuildKeygenArgs(path, keyType, bits)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to generate SSH key: %s", strings.TrimSpace(string(output))),
			"Ensure ssh-keygen is installed and accessible")
	}

	for _, p := range []string{path, path + ".pub"} {
		if _, err := os.Stat(p); err != nil {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Key generation completed but %s not found", p),
				"Check disk space and permissions")
		}
	}
	return nil
}

// EnsureKey generates a key at path unless a key pair is already there.
// It reports whether a new key was created.
func EnsureKey(ctx context.Context, path, keyType string, bits int) (bool, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(expanded + ".pub"); err == nil {
		return false, nil
	}
	if err := GenerateKey(ctx, expanded, keyType, bits); err != nil {
		return false, err
	}
	return true, nil
}

// ReadPublicKey reads the contents of a public key file.
func ReadPublicKey(pubPath string) (string, error) {
	data, err := os.ReadFile(pubPath)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrInput,
			fmt.Sprintf("Failed to read public key: %s", pubPath),
			"Check that the file exists and is readable")
	}
	return strings.TrimSpace(string(data)), nil
}

// inferKeyType determines key type from filename.
func inferKeyType(path string) string {
	base := filepath.Base(path)
	switch {
	case strings.Contains(base, "ed25519"):
		return "ed25519"
	case strings.Contains(base, "ecdsa"):
		return "ecdsa"
	case strings.Contains(base, "rsa"):
		return "rsa"
	default:
		return "unknown"
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to determine home directory",
			"Set HOME environment variable")
	}
	return filepath.Join(home, path[1:]), nil
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func joinInts(list []int) string {
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
