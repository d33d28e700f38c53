package setup

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rileyhilliard/keyfleet/internal/errors"
)

// Tools used by each command.
var (
	PushTools   = []string{"ssh-copy-id", "ssh"}
	SyncTools   = []string{"rsync", "ssh"}
	KeygenTools = []string{"ssh-keygen"}
)

// lookPath resolves a tool on PATH; tests replace it.
var lookPath = exec.LookPath

// installHints maps a tool to install instructions per OS.
var installHints = map[string]map[string]string{
	"ssh": {
		"darwin": "ssh ships with macOS; check that /usr/bin is on your PATH",
		"linux":  "sudo apt-get install -y openssh-client  (or: sudo dnf install -y openssh-clients)",
	},
	"ssh-copy-id": {
		"darwin": "brew install ssh-copy-id",
		"linux":  "sudo apt-get install -y openssh-client  (or: sudo dnf install -y openssh-clients)",
	},
	"ssh-keygen": {
		"darwin": "ssh-keygen ships with macOS; check that /usr/bin is on your PATH",
		"linux":  "sudo apt-get install -y openssh-client  (or: sudo dnf install -y openssh-clients)",
	},
	"rsync": {
		"darwin": "brew install rsync",
		"linux":  "sudo apt-get install -y rsync  (or: sudo dnf install -y rsync)",
	},
}

// Require checks that every tool is on PATH. It returns a CONFIG error
// naming the missing tools, with install hints for this platform.
func Require(tools ...string) error {
	var missing []string
	seen := make(map[string]bool)
	for _, tool := range tools {
		if seen[tool] {
			continue
		}
		seen[tool] = true
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var hints []string
	for _, tool := range missing {
		hints = append(hints, fmt.Sprintf("%s: %s", tool, InstallHint(tool)))
	}
	noun := "tool"
	if len(missing) > 1 {
		noun = "tools"
	}
	return errors.New(errors.ErrConfig,
		fmt.Sprintf("Required %s not found on PATH: %s", noun, strings.Join(missing, ", ")),
		"Install it and try again:\n    "+strings.Join(hints, "\n    "))
}

// InstallHint returns how to install tool on this platform.
func InstallHint(tool string) string {
	if byOS, ok := installHints[tool]; ok {
		if hint, ok := byOS[runtime.GOOS]; ok {
			return hint
		}
	}
	return fmt.Sprintf("install %s with your system package manager", tool)
}
