package config

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/keyfleet/internal/errors"
)

// validKeyTypes are the ssh-keygen -t values push can generate.
var validKeyTypes = map[string]bool{
	"ed25519": true,
	"rsa":     true,
	"ecdsa":   true,
}

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but keyfleet only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest keyfleet release")
	}

	if cfg.Port < 0 || cfg.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
			"Fix 'port' in your config, or leave it out to use 22")
	}

	if cfg.Retry.Attempts < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("retry.attempts must be at least 1, got %d", cfg.Retry.Attempts),
			"Set retry.attempts to 1 to disable retries")
	}

	if cfg.Retry.Delay < 0 {
		return errors.New(errors.ErrConfig,
			"retry.delay can't be negative",
			"Use a duration like 2s, or 0 for no pause")
	}

	if cfg.Parallel.Workers < 1 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("parallel.workers must be at least 1, got %d", cfg.Parallel.Workers),
			"Use 1 for sequential processing")
	}

	if err := validatePush(cfg.Push); err != nil {
		return err
	}

	if cfg.Sync.Timeout < 0 {
		return errors.New(errors.ErrConfig,
			"sync.timeout can't be negative",
			"Use 0 for no limit")
	}

	if cfg.Logs.Keep < 0 {
		return errors.New(errors.ErrConfig,
			"logs.keep can't be negative",
			"Use 0 to keep every run log")
	}

	return validateGroups(cfg.Groups)
}

func validatePush(p PushConfig) error {
	if p.KeyType != "" && !validKeyTypes[p.KeyType] {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown push.key_type %q", p.KeyType),
			"Supported types: ed25519 (recommended), rsa, ecdsa")
	}

	if p.KeyBits < 0 {
		return errors.New(errors.ErrConfig,
			"push.key_bits can't be negative",
			"Leave it at 0 to use ssh-keygen's default for the key type")
	}

	switch p.Probe {
	case ProbeSSH, ProbeNative:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown push.probe %q", p.Probe),
			"Use 'ssh' (runs the ssh binary) or 'native' (built-in client)")
	}

	if p.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			"push.timeout must be positive",
			"ssh-copy-id needs a bounded wait for its prompts, e.g. 60s")
	}

	if p.ProbeTimeout <= 0 {
		return errors.New(errors.ErrConfig,
			"push.probe_timeout must be positive",
			"Use a connect timeout like 5s")
	}

	return nil
}

// validateGroups only checks shape; the master/worker key rule is enforced
// by the resolver so it applies equally to group files.
func validateGroups(groups map[string][]string) error {
	for name, hosts := range groups {
		if strings.TrimSpace(name) == "" {
			return errors.New(errors.ErrConfig,
				"Group with an empty name in config",
				"Every entry under groups: needs a name like master or worker")
		}
		for _, h := range hosts {
			if strings.TrimSpace(h) == "" {
				return errors.New(errors.ErrConfig,
					fmt.Sprintf("Empty host entry in group %q", name),
					"Remove the blank item from the list")
			}
		}
	}
	return nil
}
