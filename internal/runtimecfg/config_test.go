package runtimecfg_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskkern/taskkernd/internal/runtimecfg"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		runtimecfg.EnvSocketPath, runtimecfg.EnvWorktree, runtimecfg.EnvRuntimeKind,
		runtimecfg.EnvContainerID, runtimecfg.EnvHostPath, runtimecfg.EnvContainerPath,
		runtimecfg.EnvUIDMapping, runtimecfg.EnvWorkerIDFile, runtimecfg.EnvDotenvOverlay,
		runtimecfg.EnvYAMLOverlay, runtimecfg.EnvTrajectoryCapMB,
	} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := runtimecfg.Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Runtime.Kind)
	assert.Equal(t, 1<<20, cfg.TrajectoryTailCap)
	assert.Nil(t, cfg.Runtime.UIDMapping)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(runtimecfg.EnvRuntimeKind, "containerized")
	t.Setenv(runtimecfg.EnvContainerID, "abc123")
	t.Setenv(runtimecfg.EnvUIDMapping, "false")

	cfg, err := runtimecfg.Load()
	require.NoError(t, err)
	assert.Equal(t, "containerized", cfg.Runtime.Kind)
	assert.Equal(t, "abc123", cfg.Runtime.ContainerID)
	require.NotNil(t, cfg.Runtime.UIDMapping)
	assert.False(t, *cfg.Runtime.UIDMapping)
}

func TestLoadInvalidBooleanErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv(runtimecfg.EnvUIDMapping, "not-a-bool")
	_, err := runtimecfg.Load()
	require.Error(t, err)
}

func TestLoadDotenvOverlayFillsGaps(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "overlay.env")
	require.NoError(t, os.WriteFile(path, []byte("TASKKERN_RUNTIME_KIND=local\n"), 0o644))
	t.Setenv(runtimecfg.EnvDotenvOverlay, path)

	cfg, err := runtimecfg.Load()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Runtime.Kind)
}

func TestLoadEnvironmentWinsOverDotenvOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "overlay.env")
	require.NoError(t, os.WriteFile(path, []byte("TASKKERN_RUNTIME_KIND=containerized\n"), 0o644))
	t.Setenv(runtimecfg.EnvDotenvOverlay, path)
	t.Setenv(runtimecfg.EnvRuntimeKind, "local")

	cfg, err := runtimecfg.Load()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Runtime.Kind)
}

func TestLoadYAMLOverlayFillsGaps(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runtime_kind: containerized\ncontainer_id: xyz\nuid_mapping: true\n"), 0o644))
	t.Setenv(runtimecfg.EnvYAMLOverlay, path)

	cfg, err := runtimecfg.Load()
	require.NoError(t, err)
	assert.Equal(t, "containerized", cfg.Runtime.Kind)
	assert.Equal(t, "xyz", cfg.Runtime.ContainerID)
	require.NotNil(t, cfg.Runtime.UIDMapping)
	assert.True(t, *cfg.Runtime.UIDMapping)
}

func TestLoadMissingYAMLOverlayIsNotAnError(t *testing.T) {
	clearEnv(t)
	t.Setenv(runtimecfg.EnvYAMLOverlay, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := runtimecfg.Load()
	require.NoError(t, err)
}
