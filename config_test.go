package emdisk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenFlagsHas(t *testing.T) {
	f := ReadWrite | Create | Direct
	require.True(t, f.Has(Create))
	require.True(t, f.Has(ReadWrite|Direct))
	require.False(t, f.Has(RequireDirect))
}

func TestConfigPathEnvVar(t *testing.T) {
	require.Empty(t, ConfigPath())
	t.Setenv(ConfigPathEnvVar, "/etc/emdisk.toml")
	require.Equal(t, "/etc/emdisk.toml", ConfigPath())
}
