package nodegroup

import (
	"testing"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHost(t *testing.T) {
	tests := []struct {
		token  string
		want   Host
		target string
		key    string
	}{
		{"master-01", Host{Alias: "master-01", Address: "master-01"}, "master-01", "master-01:22"},
		{"deploy@10.0.0.5", Host{Alias: "deploy@10.0.0.5", Address: "10.0.0.5", User: "deploy"}, "deploy@10.0.0.5", "10.0.0.5:22"},
		{"node:2222", Host{Alias: "node:2222", Address: "node", Port: 2222}, "node", "node:2222"},
		{"ops@node:2222", Host{Alias: "ops@node:2222", Address: "node", Port: 2222, User: "ops"}, "ops@node", "node:2222"},
		{"fe80::1", Host{Alias: "fe80::1", Address: "fe80::1"}, "[fe80::1]", "[fe80::1]:22"},
		{"[fe80::1]:2200", Host{Alias: "[fe80::1]:2200", Address: "fe80::1", Port: 2200}, "[fe80::1]", "[fe80::1]:2200"},
		{"  padded  ", Host{Alias: "padded", Address: "padded"}, "padded", "padded:22"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			h, err := ParseHost(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h)
			assert.Equal(t, tt.target, h.Target())
			assert.Equal(t, tt.key, h.Key())
		})
	}
}

func TestParseHost_Invalid(t *testing.T) {
	tokens := []string{"", "   ", "@host", "host:abc", "host:0", "host:70000", "user@", "a/b"}

	for _, tok := range tokens {
		t.Run(tok, func(t *testing.T) {
			_, err := ParseHost(tok)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrInput))
		})
	}
}

func TestHost_String(t *testing.T) {
	assert.Equal(t, "alias", Host{Alias: "alias", Address: "10.0.0.1"}.String())
	assert.Equal(t, "u@10.0.0.1", Host{Address: "10.0.0.1", User: "u"}.String())
}

func TestHost_PortOr(t *testing.T) {
	assert.Equal(t, 22, Host{}.PortOr(22))
	assert.Equal(t, 2200, Host{Port: 2200}.PortOr(22))
}

func TestHost_KeyIgnoresUser(t *testing.T) {
	a := Host{Address: "n1", User: "root"}
	b := Host{Address: "n1", User: "deploy", Port: 22}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.id(), b.id())
}
