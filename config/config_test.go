package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultsApplyWithoutEnvOrOpts(t *testing.T) {
	c := New()
	require.Equal(t, defaultPoolSize, c.PoolSize)
	require.Equal(t, defaultInstances, c.Instances)
	require.Equal(t, defaultDataDir, c.DataDir)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("COREDB_POOL_SIZE", "256")
	t.Setenv("COREDB_DATA_DIR", "/tmp/coredb")

	c := New()
	require.Equal(t, 256, c.PoolSize)
	require.Equal(t, "/tmp/coredb", c.DataDir)
	require.Equal(t, defaultInstances, c.Instances)
}

func TestOptionsOverrideEnv(t *testing.T) {
	t.Setenv("COREDB_POOL_SIZE", "256")

	c := New(WithPoolSize(8), WithInstances(2))
	require.Equal(t, 8, c.PoolSize)
	require.Equal(t, 2, c.Instances)
}

func TestInvalidEnvIntFallsBackToDefault(t *testing.T) {
	t.Setenv("COREDB_POOL_SIZE", "not-a-number")

	c := New()
	require.Equal(t, defaultPoolSize, c.PoolSize)
}
