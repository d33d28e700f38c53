package sshutil

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
)

// HostSettings is what ~/.ssh/config says about one host alias.
// Empty fields mean the config doesn't set them.
type HostSettings struct {
	Alias        string
	Hostname     string
	User         string
	Port         int
	IdentityFile string
}

// Found reports whether the config set anything for the alias.
func (s HostSettings) Found() bool {
	return s.Hostname != "" || s.User != "" || s.Port != 0 || s.IdentityFile != ""
}

// matchWarningOnce ensures the Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// WarningHandler receives non-fatal warnings. If nil, warnings go to log.Printf.
var WarningHandler func(message string)

func emitWarning(message string) {
	if WarningHandler != nil {
		WarningHandler(message)
	} else {
		log.Printf("Warning: %s", message)
	}
}

// DefaultConfigPath returns ~/.ssh/config.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// LookupHost reads ~/.ssh/config for alias. A missing or unreadable config
// yields empty settings.
func LookupHost(alias string) HostSettings {
	s, err := LookupHostFile(DefaultConfigPath(), alias)
	if err != nil {
		return HostSettings{Alias: alias}
	}
	return s
}

// LookupHostFile reads settings for alias from the given ssh config file.
// A missing file is not an error.
func LookupHostFile(configPath, alias string) (HostSettings, error) {
	settings := HostSettings{Alias: alias}

	// kevinburke/ssh_config can't parse Match blocks, so only the part of the
	// file before the first one is used.
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return settings, err
	}

	if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
		settings.Hostname = hostname
	}
	if user, _ := cfg.Get(alias, "User"); user != "" {
		settings.User = user
	}
	if port, _ := cfg.Get(alias, "Port"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			settings.Port = p
		}
	}
	if identity, _ := cfg.Get(alias, "IdentityFile"); identity != "" {
		settings.IdentityFile = expandPath(identity)
	}

	if matchLine > 0 && !settings.Found() {
		matchWarningOnce.Do(func() {
			emitWarning(fmt.Sprintf(
				"Host '%s' not found in SSH config (config has a Match block at line %d that may hide later entries). "+
					"If this host is defined after line %d, move it earlier in %s.",
				alias, matchLine, matchLine, configPath))
		})
	}

	return settings, nil
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive,
// plus the 1-indexed line of that directive (0 if there is none).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
