package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandTilde(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"~", home},
		{"~/.ssh/id_ed25519", filepath.Join(home, ".ssh/id_ed25519")},
		{"/abs/path", "/abs/path"},
		{"relative/~/path", "relative/~/path"},
		{"~other/path", "~other/path"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandTilde(tt.input))
		})
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("USER", "deploy")
	home, _ := os.UserHomeDir()

	assert.Equal(t, "", Expand(""))
	assert.Equal(t, "/home/deploy/keys", Expand("/home/${USER}/keys"))
	assert.Equal(t, home+"/logs", Expand("${HOME}/logs"))
	assert.Equal(t, "/opt/data", Expand("/opt/data"))
}

func TestExpandRemote(t *testing.T) {
	t.Setenv("USER", "deploy")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"HOME becomes tilde", "${HOME}/data", "~/data"},
		{"USER expands locally", "/srv/${USER}", "/srv/deploy"},
		{"tilde kept", "~/data", "~/data"},
		{"absolute unchanged", "/opt/app", "/opt/app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExpandRemote(tt.input))
		})
	}
}
