package config

import (
	"testing"

	"github.com/rileyhilliard/keyfleet/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "future version",
			mutate:  func(c *Config) { c.Version = CurrentConfigVersion + 1 },
			wantErr: "from the future",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: "port must be between",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Retry.Attempts = 0 },
			wantErr: "retry.attempts",
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Retry.Delay = -1 },
			wantErr: "retry.delay",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Parallel.Workers = 0 },
			wantErr: "parallel.workers",
		},
		{
			name:    "unknown key type",
			mutate:  func(c *Config) { c.Push.KeyType = "dsa" },
			wantErr: "push.key_type",
		},
		{
			name:    "unknown probe",
			mutate:  func(c *Config) { c.Push.Probe = "telnet" },
			wantErr: "push.probe",
		},
		{
			name:    "unbounded push",
			mutate:  func(c *Config) { c.Push.Timeout = 0 },
			wantErr: "push.timeout",
		},
		{
			name:    "zero probe timeout",
			mutate:  func(c *Config) { c.Push.ProbeTimeout = 0 },
			wantErr: "push.probe_timeout",
		},
		{
			name:    "negative sync timeout",
			mutate:  func(c *Config) { c.Sync.Timeout = -1 },
			wantErr: "sync.timeout",
		},
		{
			name:    "negative keep",
			mutate:  func(c *Config) { c.Logs.Keep = -1 },
			wantErr: "logs.keep",
		},
		{
			name: "blank host in group",
			mutate: func(c *Config) {
				c.Groups = map[string][]string{"master": {"m1"}, "worker": {" "}}
			},
			wantErr: "Empty host entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
