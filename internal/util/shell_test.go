package util

import "testing"

func TestShellQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "'simple'"},
		{"with space", "'with space'"},
		{"with'quote", "'with'\\''quote'"},
		{"", "''"},
		{"path/to/file", "'path/to/file'"},
		{"$variable", "'$variable'"},
		{"$(command)", "'$(command)'"},
		{"`backtick`", "'`backtick`'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ShellQuote(tt.input)
			if got != tt.expected {
				t.Errorf("ShellQuote(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestShellJoin(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"plain", []string{"rsync", "-az", "--progress"}, "rsync -az --progress"},
		{"remote target", []string{"ops@node1:/srv/app"}, "ops@node1:/srv/app"},
		{"space", []string{"-e", "ssh -p 2222"}, "-e 'ssh -p 2222'"},
		{"glob", []string{"--exclude=*.log"}, "'--exclude=*.log'"},
		{"empty", []string{"a", ""}, "a ''"},
		{"none", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShellJoin(tt.args)
			if got != tt.expected {
				t.Errorf("ShellJoin(%q) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}
