package nodegroup

import (
	"testing"

	"github.com/rileyhilliard/keyfleet/pkg/sshutil"
	"github.com/stretchr/testify/assert"
)

func TestApplySSHConfig(t *testing.T) {
	lookup := func(alias string) sshutil.HostSettings {
		if alias == "cp1" {
			return sshutil.HostSettings{Alias: alias, User: "admin", Port: 2222}
		}
		return sshutil.HostSettings{Alias: alias}
	}

	hosts := []Host{
		{Alias: "cp1", Address: "cp1"},
		{Alias: "root@cp1:22", Address: "cp1", User: "root", Port: 22},
		{Alias: "n1", Address: "n1"},
	}

	got := ApplySSHConfig(hosts, lookup)
	assert.Equal(t, "admin", got[0].User)
	assert.Equal(t, 2222, got[0].Port)
	assert.Equal(t, "root", got[1].User)
	assert.Equal(t, 22, got[1].Port)
	assert.Equal(t, "", got[2].User)
	assert.Equal(t, 0, got[2].Port)

	got = WithDefaults(got, "deploy", 22)
	assert.Equal(t, "admin", got[0].User, "ssh config beats keyfleet defaults")
	assert.Equal(t, "deploy", got[2].User)
}
