package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".keyfleet.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/keyfleet"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix is the prefix for environment overrides (KEYFLEET_RETRY_ATTEMPTS=5).
	EnvPrefix = "KEYFLEET"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Create "+ConfigFileName+" or point --config at an existing file")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .keyfleet.yaml in current directory
// 3. .keyfleet.yaml in parent directories (stops at git root or home)
// 4. ~/.config/keyfleet/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for {
		if isGitRoot(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if home != "" && parent == home {
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults
// (with environment overrides applied) if no file exists.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}

	if path == "" {
		cfg, err := parseConfig(newViper(), "")
		return cfg, "", err
	}

	cfg, err := Load(path)
	return cfg, path, err
}

// newViper returns a viper instance with defaults and KEYFLEET_* env overrides wired.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		where := "the environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+where)
	}

	expandPaths(cfg, configDir(path))

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every key with viper so AutomaticEnv can override
// keys that never appear in the file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("groups_file", d.GroupsFile)
	v.SetDefault("user", d.User)
	v.SetDefault("port", d.Port)
	v.SetDefault("retry.attempts", d.Retry.Attempts)
	v.SetDefault("retry.delay", d.Retry.Delay)
	v.SetDefault("retry.sync", d.Retry.Sync)
	v.SetDefault("parallel.workers", d.Parallel.Workers)
	v.SetDefault("push.key", d.Push.Key)
	v.SetDefault("push.key_type", d.Push.KeyType)
	v.SetDefault("push.key_bits", d.Push.KeyBits)
	v.SetDefault("push.timeout", d.Push.Timeout)
	v.SetDefault("push.probe", d.Push.Probe)
	v.SetDefault("push.probe_timeout", d.Push.ProbeTimeout)
	v.SetDefault("push.known_hosts", d.Push.KnownHosts)
	v.SetDefault("sync.target", d.Sync.Target)
	v.SetDefault("sync.exclude", d.Sync.Exclude)
	v.SetDefault("sync.dry_run", d.Sync.DryRun)
	v.SetDefault("sync.verify_dry_run", d.Sync.VerifyDryRun)
	v.SetDefault("sync.timeout", d.Sync.Timeout)
	v.SetDefault("sync.strict_sources", d.Sync.StrictSources)
	v.SetDefault("logs.dir", d.Logs.Dir)
	v.SetDefault("logs.keep", d.Logs.Keep)
}

// expandPaths resolves ~ and ${VAR} in local paths. A relative groups_file
// is resolved against the directory holding the config file.
func expandPaths(cfg *Config, baseDir string) {
	cfg.Push.Key = ExpandTilde(Expand(cfg.Push.Key))
	cfg.Push.KnownHosts = ExpandTilde(Expand(cfg.Push.KnownHosts))
	cfg.Logs.Dir = ExpandTilde(Expand(cfg.Logs.Dir))

	if cfg.GroupsFile != "" {
		gf := ExpandTilde(Expand(cfg.GroupsFile))
		if !filepath.IsAbs(gf) && baseDir != "" {
			gf = filepath.Join(baseDir, gf)
		}
		cfg.GroupsFile = gf
	}
}

// configDir returns the directory containing the config file.
func configDir(configPath string) string {
	if configPath == "" {
		cwd, _ := os.Getwd()
		return cwd
	}
	return filepath.Dir(configPath)
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}
