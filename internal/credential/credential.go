// Package credential answers the prompts ssh-copy-id and ssh raise while a
// push is running, so no operator has to sit at the terminal.
//
// A Supplier is asked once per prompt. Password answers host-key confirmation
// with "yes" and password prompts with the shared secret. Key answers only
// host-key confirmation, for hosts that already trust a key.
package credential

import "strings"

// PromptKind is what an ssh prompt is asking for.
type PromptKind int

const (
	PromptUnknown PromptKind = iota
	PromptHostKey
	PromptPassword
	PromptPassphrase
)

func (k PromptKind) String() string {
	switch k {
	case PromptHostKey:
		return "host-key"
	case PromptPassword:
		return "password"
	case PromptPassphrase:
		return "passphrase"
	default:
		return "unknown"
	}
}

// Classify inspects prompt text as printed by OpenSSH.
func Classify(prompt string) PromptKind {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "continue connecting") || strings.Contains(p, "(yes/no"):
		return PromptHostKey
	case strings.Contains(p, "passphrase"):
		return PromptPassphrase
	case strings.Contains(p, "password"):
		return PromptPassword
	default:
		return PromptUnknown
	}
}

// Supplier answers prompts. ok is false when the prompt should be refused,
// which makes the child process fail that authentication step.
type Supplier interface {
	Answer(kind PromptKind, prompt string) (answer string, ok bool)
}

// Password supplies one shared password for every host.
type Password struct {
	secret string
}

// NewPassword returns a supplier for secret.
func NewPassword(secret string) *Password {
	return &Password{secret: secret}
}

// Answer implements Supplier.
func (p *Password) Answer(kind PromptKind, _ string) (string, bool) {
	switch kind {
	case PromptHostKey:
		return "yes", true
	case PromptPassword:
		if p.secret == "" {
			return "", false
		}
		return p.secret, true
	default:
		return "", false
	}
}

// String never includes the secret.
func (p *Password) String() string { return "password(redacted)" }

// GoString keeps %#v from printing the secret.
func (p *Password) GoString() string { return p.String() }

// Key confirms host keys and refuses everything else.
type Key struct{}

// Answer implements Supplier.
func (Key) Answer(kind PromptKind, _ string) (string, bool) {
	if kind == PromptHostKey {
		return "yes", true
	}
	return "", false
}

func (Key) String() string { return "key" }
