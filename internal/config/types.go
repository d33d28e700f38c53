package config

import "time"

// CurrentConfigVersion is the newest config schema this build understands.
const CurrentConfigVersion = 1

// Config is the .keyfleet.yaml schema.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// GroupsFile points at an INI or YAML file defining the master and worker groups.
	// Takes precedence over Groups.
	GroupsFile string `yaml:"groups_file" mapstructure:"groups_file"`

	// Groups is an inline group mapping: group name to host tokens.
	Groups map[string][]string `yaml:"groups" mapstructure:"groups"`

	// User and Port apply to hosts whose token doesn't name them.
	User string `yaml:"user" mapstructure:"user"`
	Port int    `yaml:"port" mapstructure:"port"`

	Retry    RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Parallel ParallelConfig `yaml:"parallel" mapstructure:"parallel"`
	Push     PushConfig     `yaml:"push" mapstructure:"push"`
	Sync     SyncConfig     `yaml:"sync" mapstructure:"sync"`
	Logs     LogsConfig     `yaml:"logs" mapstructure:"logs"`
}

// RetryConfig bounds the per-host attempt loop.
type RetryConfig struct {
	// Attempts is the maximum number of attempts per host.
	Attempts int `yaml:"attempts" mapstructure:"attempts"`

	// Delay is multiplied by the attempt number to get the pause before the next attempt.
	Delay time.Duration `yaml:"delay" mapstructure:"delay"`

	// Sync enables retries for file sync. Push always retries.
	Sync bool `yaml:"sync" mapstructure:"sync"`
}

// ParallelConfig controls host fan-out.
type ParallelConfig struct {
	// Workers is the number of hosts processed at once. 1 means sequential.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// PushConfig holds credential push settings.
type PushConfig struct {
	// Key is the private key path; the public half is Key + ".pub".
	Key string `yaml:"key" mapstructure:"key"`

	// KeyType and KeyBits are used when the key has to be generated.
	KeyType string `yaml:"key_type" mapstructure:"key_type"`
	KeyBits int    `yaml:"key_bits" mapstructure:"key_bits"`

	// Timeout bounds one ssh-copy-id invocation including prompts.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Probe selects the verification probe: "ssh" or "native".
	Probe string `yaml:"probe" mapstructure:"probe"`

	// ProbeTimeout is the connect timeout for the verification probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`

	// KnownHosts is consulted by the native probe. Unknown hosts are accepted,
	// mismatched keys are rejected.
	KnownHosts string `yaml:"known_hosts" mapstructure:"known_hosts"`
}

// SyncConfig holds file sync settings.
type SyncConfig struct {
	// Target overrides the remote destination. Empty means the source's parent directory.
	Target string `yaml:"target" mapstructure:"target"`

	// Exclude patterns passed to rsync as --exclude.
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`

	// DryRun passes --dry-run to rsync.
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`

	// VerifyDryRun snapshots the remote destination over sftp before and
	// after a dry run and fails the attempt if anything changed.
	VerifyDryRun bool `yaml:"verify_dry_run" mapstructure:"verify_dry_run"`

	// Timeout bounds one rsync invocation. Zero means no limit.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// StrictSources makes a missing source fail the run instead of only being skipped.
	StrictSources bool `yaml:"strict_sources" mapstructure:"strict_sources"`
}

// LogsConfig controls the run log.
type LogsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`

	// Keep is the number of run logs retained per command. 0 keeps everything.
	Keep int `yaml:"keep" mapstructure:"keep"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Port:    22,
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    2 * time.Second,
			Sync:     true,
		},
		Parallel: ParallelConfig{
			Workers: 1,
		},
		Push: PushConfig{
			Key:          "~/.ssh/id_ed25519",
			KeyType:      "ed25519",
			Timeout:      60 * time.Second,
			Probe:        ProbeSSH,
			ProbeTimeout: 5 * time.Second,
			KnownHosts:   "~/.ssh/known_hosts",
		},
		Logs: LogsConfig{
			Dir:  "~/.keyfleet/logs",
			Keep: 20,
		},
	}
}

// Probe kinds accepted by push.probe.
const (
	ProbeSSH    = "ssh"
	ProbeNative = "native"
)
