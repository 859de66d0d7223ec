// Package runtimecfg resolves daemon configuration from the environment,
// an optional dotenv-style overlay file, and an optional YAML file, in that
// precedence order (environment wins; see original spec §6's configuration
// table).
package runtimecfg

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/taskkern/taskkernd/internal/envfile"
	"github.com/taskkern/taskkernd/internal/runtime"
)

// Env names recognized by the daemon and runtime factory.
const (
	EnvSocketPath      = "TASKKERN_SOCKET_PATH"
	EnvWorktree        = "TASKKERN_WORKTREE"
	EnvRuntimeKind     = "TASKKERN_RUNTIME_KIND"
	EnvContainerID     = "TASKKERN_CONTAINER_ID"
	EnvHostPath        = "TASKKERN_HOST_PATH"
	EnvContainerPath   = "TASKKERN_CONTAINER_PATH"
	EnvUIDMapping      = "TASKKERN_UID_MAPPING"
	EnvWorkerIDFile    = "TASKKERN_WORKER_ID_FILE"
	EnvDotenvOverlay   = "TASKKERN_ENV_FILE"
	EnvYAMLOverlay     = "TASKKERN_CONFIG_FILE"
	EnvTrajectoryCapMB = "TASKKERN_TRAJECTORY_TAIL_CAP_BYTES"
)

// Config is the fully resolved daemon configuration.
type Config struct {
	SocketPath        string
	WorktreeOverride  string
	WorkerIDFile      string
	TrajectoryTailCap int
	Runtime           runtime.Config
}

// yamlOverlay mirrors the subset of Config a YAML file may override. Fields
// are pointers so an absent key in the file does not clobber an
// environment-supplied value.
type yamlOverlay struct {
	SocketPath        *string `yaml:"socket_path"`
	Worktree          *string `yaml:"worktree"`
	RuntimeKind       *string `yaml:"runtime_kind"`
	ContainerID       *string `yaml:"container_id"`
	HostPath          *string `yaml:"host_path"`
	ContainerPath     *string `yaml:"container_path"`
	UIDMapping        *bool   `yaml:"uid_mapping"`
	WorkerIDFile      *string `yaml:"worker_id_file"`
	TrajectoryTailCap *int    `yaml:"trajectory_tail_cap_bytes"`
}

// Load resolves Config from the process environment, then applies a dotenv
// overlay (TASKKERN_ENV_FILE) for anything still unset, then a YAML overlay
// (TASKKERN_CONFIG_FILE) for anything still unset after that. Environment
// variables that are genuinely set always win, matching the runtime's own
// "ambient wins for anything not explicitly set" merge rule.
func Load() (Config, error) {
	lookup := buildLookup()

	cfg := Config{
		SocketPath:        lookup[EnvSocketPath],
		WorktreeOverride:  lookup[EnvWorktree],
		WorkerIDFile:      lookup[EnvWorkerIDFile],
		TrajectoryTailCap: 1 << 20,
	}

	cfg.Runtime = runtime.Config{
		Kind:          lookup[EnvRuntimeKind],
		ContainerID:   lookup[EnvContainerID],
		HostPath:      lookup[EnvHostPath],
		ContainerPath: lookup[EnvContainerPath],
	}

	if raw, ok := lookup[EnvUIDMapping]; ok && raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: invalid boolean %q: %w", EnvUIDMapping, raw, err)
		}
		cfg.Runtime.UIDMapping = &v
	}

	if raw, ok := lookup[EnvTrajectoryCapMB]; ok && raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: invalid integer %q: %w", EnvTrajectoryCapMB, raw, err)
		}
		cfg.TrajectoryTailCap = v
	}

	if yamlPath := lookup[EnvYAMLOverlay]; yamlPath != "" {
		envCap := cfg.TrajectoryTailCap
		if err := applyYAMLOverlay(&cfg, yamlPath); err != nil {
			return Config{}, err
		}
		if lookup[EnvTrajectoryCapMB] != "" {
			cfg.TrajectoryTailCap = envCap
		}
	}

	return cfg, nil
}

// buildLookup merges the dotenv overlay under the real process environment:
// file-sourced values fill gaps, real env vars always take precedence.
func buildLookup() map[string]string {
	merged := map[string]string{}
	if overlayPath, ok := os.LookupEnv(EnvDotenvOverlay); ok && overlayPath != "" {
		for k, v := range envfile.Load(overlayPath) {
			merged[k] = v
		}
	}
	for _, name := range []string{
		EnvSocketPath, EnvWorktree, EnvRuntimeKind, EnvContainerID,
		EnvHostPath, EnvContainerPath, EnvUIDMapping, EnvWorkerIDFile,
		EnvTrajectoryCapMB, EnvYAMLOverlay,
	} {
		if v, ok := os.LookupEnv(name); ok {
			merged[name] = v
		}
	}
	return merged
}

func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if cfg.SocketPath == "" && overlay.SocketPath != nil {
		cfg.SocketPath = *overlay.SocketPath
	}
	if cfg.WorktreeOverride == "" && overlay.Worktree != nil {
		cfg.WorktreeOverride = *overlay.Worktree
	}
	if cfg.Runtime.Kind == "" && overlay.RuntimeKind != nil {
		cfg.Runtime.Kind = *overlay.RuntimeKind
	}
	if cfg.Runtime.ContainerID == "" && overlay.ContainerID != nil {
		cfg.Runtime.ContainerID = *overlay.ContainerID
	}
	if cfg.Runtime.HostPath == "" && overlay.HostPath != nil {
		cfg.Runtime.HostPath = *overlay.HostPath
	}
	if cfg.Runtime.ContainerPath == "" && overlay.ContainerPath != nil {
		cfg.Runtime.ContainerPath = *overlay.ContainerPath
	}
	if cfg.Runtime.UIDMapping == nil && overlay.UIDMapping != nil {
		cfg.Runtime.UIDMapping = overlay.UIDMapping
	}
	if cfg.WorkerIDFile == "" && overlay.WorkerIDFile != nil {
		cfg.WorkerIDFile = *overlay.WorkerIDFile
	}
	if overlay.TrajectoryTailCap != nil {
		cfg.TrajectoryTailCap = *overlay.TrajectoryTailCap
	}

	return nil
}
